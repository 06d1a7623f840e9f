package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/adiwijaya/smarthome-server/internal/alerting"
	"github.com/adiwijaya/smarthome-server/internal/command"
	"github.com/adiwijaya/smarthome-server/internal/database"
	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/prayer"
	"github.com/adiwijaya/smarthome-server/internal/queue"
	"github.com/adiwijaya/smarthome-server/internal/telemetry"
	"github.com/adiwijaya/smarthome-server/internal/weather"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

// Server is the HTTP front of the smart home: sensor ingestion, device
// control, chat commands and read-side queries.
type Server struct {
	config     *config.Config
	decoder    *telemetry.Decoder
	engine     *alerting.Engine
	arbiter    *devices.Arbiter
	publisher  *queue.Publisher
	db         *database.DB
	redis      *redis.Client
	weather    *weather.Fetcher
	prayer     *prayer.Fetcher
	classifier command.Classifier

	httpServer *http.Server
}

// New creates the HTTP server with its collaborators wired in.
func New(
	cfg *config.Config,
	decoder *telemetry.Decoder,
	engine *alerting.Engine,
	arbiter *devices.Arbiter,
	publisher *queue.Publisher,
	db *database.DB,
	redisClient *redis.Client,
	weatherFetcher *weather.Fetcher,
	prayerFetcher *prayer.Fetcher,
	classifier command.Classifier,
) *Server {
	return &Server{
		config:     cfg,
		decoder:    decoder,
		engine:     engine,
		arbiter:    arbiter,
		publisher:  publisher,
		db:         db,
		redis:      redisClient,
		weather:    weatherFetcher,
		prayer:     prayerFetcher,
		classifier: classifier,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/sensor", s.handleSensor)
		api.GET("/state", s.handleState)
		api.POST("/control", s.handleControl)
		api.POST("/chat", s.handleChat)
		api.GET("/latest", s.handleLatest)
		api.GET("/history", s.handleHistory)
		api.GET("/statistics", s.handleStatistics)
		api.GET("/alerts", s.handleAlerts)
		api.GET("/control-log", s.handleControlLog)
		api.GET("/weather", s.handleWeather)
		api.GET("/sholat", s.handleSholat)
	}

	return router
}

// Run starts the HTTP listener and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.HTTPServer.Port),
		Handler: s.Router(),
	}

	fmt.Printf("🏠 Smart home server listening on port %d\n", s.config.HTTPServer.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.HTTPServer.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// cacheTTL for the latest-reading Redis entry. Long enough to survive a
// sensor hiccup, short enough that a dead sensor eventually reads as absent.
const latestReadingTTL = 24 * time.Hour

// timeNow is replaced in tests.
var timeNow = time.Now
