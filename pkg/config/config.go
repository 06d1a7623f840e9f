package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPServer HTTPServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Sensor     SensorConfig
	Alerting   AlertingConfig
	Telegram   TelegramConfig
	Weather    WeatherConfig
	Prayer     PrayerConfig
	Schedule   ScheduleConfig
}

type HTTPServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers         []string
	TopicReadings   string
	TopicAlerts     string
	TopicControlLog string
}

// SensorConfig holds ingestion settings for the sensor node, including the
// pre-shared AES-256 key used for the encrypted payload envelope.
type SensorConfig struct {
	AESKeyHex       string
	DefaultDeviceID string
}

// Key decodes the hex-encoded pre-shared key. The key must be 32 bytes (AES-256).
func (s SensorConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(s.AESKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// AlertingConfig holds the alert thresholds and the notification cooldown window.
type AlertingConfig struct {
	TempMax       float64
	TempMin       float64
	HumidMax      float64
	HumidMin      float64
	SmokeWarning  int
	SmokeCritical int
	Cooldown      time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

type WeatherConfig struct {
	Latitude  float64
	Longitude float64
	CacheTTL  time.Duration
}

type PrayerConfig struct {
	CityID int
}

// ScheduleConfig lists timed automation rules in the form "device:action:HH:MM",
// comma separated (e.g. "light:on:18:00,light:off:22:00").
type ScheduleConfig struct {
	Rules []string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		HTTPServer: HTTPServerConfig{
			Port:            getEnvAsInt("HTTP_PORT", 5000),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "smarthome_user"),
			Password: getEnv("DB_PASSWORD", "smarthome_pass"),
			DBName:   getEnv("DB_NAME", "smarthome_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:         strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings:   getEnv("KAFKA_TOPIC_READINGS", "smarthome.readings"),
			TopicAlerts:     getEnv("KAFKA_TOPIC_ALERTS", "smarthome.alerts"),
			TopicControlLog: getEnv("KAFKA_TOPIC_CONTROL_LOG", "smarthome.control_log"),
		},
		Sensor: SensorConfig{
			// Development key; override in production.
			AESKeyHex:       getEnv("SENSOR_AES_KEY", "9dbc8c1c9432a82af784a952592a908e72896018b7d1c6f61f8eef518d426ab0"),
			DefaultDeviceID: getEnv("SENSOR_DEFAULT_DEVICE_ID", "ESP32_SMART_HOME"),
		},
		Alerting: AlertingConfig{
			TempMax:       getEnvAsFloat("ALERT_TEMP_MAX", 35),
			TempMin:       getEnvAsFloat("ALERT_TEMP_MIN", 15),
			HumidMax:      getEnvAsFloat("ALERT_HUMID_MAX", 80),
			HumidMin:      getEnvAsFloat("ALERT_HUMID_MIN", 30),
			SmokeWarning:  getEnvAsInt("ALERT_SMOKE_WARNING", 600),
			SmokeCritical: getEnvAsInt("ALERT_SMOKE_CRITICAL", 1200),
			Cooldown:      getEnvAsDuration("ALERT_COOLDOWN", 300*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Weather: WeatherConfig{
			Latitude:  getEnvAsFloat("WEATHER_LATITUDE", -6.3328),
			Longitude: getEnvAsFloat("WEATHER_LONGITUDE", 106.8312),
			CacheTTL:  getEnvAsDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		},
		Prayer: PrayerConfig{
			CityID: getEnvAsInt("PRAYER_CITY_ID", 501),
		},
		Schedule: ScheduleConfig{
			Rules: splitNonEmpty(getEnv("SCHEDULE_RULES", "")),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
