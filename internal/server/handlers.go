package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/protocol"
	"github.com/adiwijaya/smarthome-server/internal/telemetry"
)

const latestReadingKey = "sensor:latest"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "smarthome-server",
	})
}

// handleSensor ingests one sensor submission: authenticate and validate,
// fan out to the readings topic, refresh the latest-reading cache, then run
// alert evaluation inline so actuation happens before the response.
func (s *Server) handleSensor(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "failed to read request body"})
		return
	}

	reading, err := s.decoder.Decode(body)
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrAuthenticationFailed):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "decryption failed"})
		case errors.Is(err, telemetry.ErrOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		case errors.Is(err, telemetry.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid sensor payload"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to process sensor data"})
		}
		return
	}

	msg := &protocol.ReadingMessage{
		ReadingID:   uuid.NewString(),
		DeviceID:    reading.DeviceID,
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		Smoke:       reading.Smoke,
		Timestamp:   reading.Timestamp,
	}
	s.publisher.PublishReading(msg)

	if data, err := protocol.EncodeReadingMessage(msg); err == nil {
		if err := s.redis.Set(c.Request.Context(), latestReadingKey, data, latestReadingTTL).Err(); err != nil {
			fmt.Printf("Failed to cache latest reading: %v\n", err)
		}
	}

	fired := s.engine.Evaluate(reading)
	alerts := make([]string, 0, len(fired))
	for _, key := range fired {
		alerts = append(alerts, string(key))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"device_id":   reading.DeviceID,
		"temperature": reading.Temperature,
		"humidity":    reading.Humidity,
		"smoke":       reading.Smoke,
		"alerts":      alerts,
	})
}

func (s *Server) handleState(c *gin.Context) {
	snapshot := s.arbiter.Snapshot()

	states := gin.H{}
	for device, state := range snapshot {
		states[string(device)] = gin.H{
			"on":         state.On,
			"updated_at": state.UpdatedAt,
			"updated_by": state.UpdatedBy,
		}
	}

	c.JSON(http.StatusOK, states)
}

func (s *Server) handleControl(c *gin.Context) {
	var req protocol.ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	device, err := devices.ParseDevice(req.Device)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": fmt.Sprintf("unknown device: %s", req.Device)})
		return
	}

	var on bool
	switch req.Action {
	case "on":
		on = true
	case "off":
		on = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": fmt.Sprintf("unknown action: %s", req.Action)})
		return
	}

	source := req.Source
	if source == "" {
		source = devices.SourceWeb
	}

	if _, err := s.arbiter.Set(device, on, source); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to update device"})
		return
	}

	fan, _ := s.arbiter.Get(devices.DeviceFan)
	light, _ := s.arbiter.Get(devices.DeviceLight)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"fan":    fan.On,
		"light":  light.On,
	})
}

// handleChat runs free text through the command classifier and executes the
// extracted command with web_chat attribution. Text with no recognizable
// command gets a polite refusal rather than an error.
func (s *Server) handleChat(c *gin.Context) {
	var req protocol.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "message is required"})
		return
	}

	cmd, ok := s.classifier.Classify(req.Message)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"executed": false,
			"response": "Maaf, saya tidak mengerti perintah itu. Coba 'nyalakan lampu' atau 'matikan kipas'.",
		})
		return
	}

	state, err := s.arbiter.Set(cmd.Device, cmd.On, devices.SourceWebChat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to update device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"executed": true,
		"device":   string(cmd.Device),
		"action":   state.Action(),
		"response": fmt.Sprintf("Oke, %s sekarang %s. ✅", cmd.Device, state.Action()),
	})
}

// handleLatest serves the most recent reading from the Redis cache, falling
// back to the database when the cache is cold.
func (s *Server) handleLatest(c *gin.Context) {
	cached, err := s.redis.Get(c.Request.Context(), latestReadingKey).Result()
	if err == nil {
		if msg, decodeErr := protocol.DecodeReadingMessage([]byte(cached)); decodeErr == nil {
			c.JSON(http.StatusOK, msg)
			return
		}
	} else if err != redis.Nil {
		fmt.Printf("Failed to read latest-reading cache: %v\n", err)
	}

	reading, err := s.db.GetLatestReading()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to query latest reading"})
		return
	}
	if reading == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no readings yet"})
		return
	}

	c.JSON(http.StatusOK, reading)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	readings, err := s.db.GetReadingHistory(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to query history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}

func (s *Server) handleStatistics(c *gin.Context) {
	hours := queryInt(c, "hours", 24)

	stats, err := s.db.GetStats(hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to compute statistics"})
		return
	}
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "hours": hours})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hours":       hours,
		"count":       stats.Count,
		"temperature": stats.Temperature,
		"humidity":    stats.Humidity,
		"smoke":       stats.Smoke,
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	limit := queryInt(c, "limit", 20)

	alerts, err := s.db.GetRecentAlerts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to query alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleControlLog(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	entries, err := s.db.GetControlLog(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to query control log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleWeather(c *gin.Context) {
	data, err := s.weather.Fetch(c.Request.Context())
	if err != nil {
		fmt.Printf("Failed to fetch weather: %v\n", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": "weather service unavailable"})
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) handleSholat(c *gin.Context) {
	result, err := s.prayer.Fetch(c.Request.Context(), timeNow())
	if err != nil {
		fmt.Printf("Failed to fetch prayer schedule: %v\n", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": "prayer schedule unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
