package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiwijaya/smarthome-server/internal/alerting"
	"github.com/adiwijaya/smarthome-server/internal/command"
	"github.com/adiwijaya/smarthome-server/internal/database"
	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/prayer"
	"github.com/adiwijaya/smarthome-server/internal/queue"
	"github.com/adiwijaya/smarthome-server/internal/scheduler"
	"github.com/adiwijaya/smarthome-server/internal/server"
	"github.com/adiwijaya/smarthome-server/internal/telemetry"
	"github.com/adiwijaya/smarthome-server/internal/timer"
	"github.com/adiwijaya/smarthome-server/internal/weather"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Smart Home Server...")

	aesKey, err := cfg.Sensor.Key()
	if err != nil {
		log.Fatalf("Failed to load sensor AES key: %v", err)
	}
	decoder, err := telemetry.NewDecoder(aesKey, cfg.Sensor.DefaultDeviceID)
	if err != nil {
		log.Fatalf("Failed to create telemetry decoder: %v", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Ensure topics exist before the first publish
	for _, topic := range []string{cfg.Kafka.TopicReadings, cfg.Kafka.TopicAlerts, cfg.Kafka.TopicControlLog} {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, topic, 3, 1); err != nil {
			log.Printf("Warning: failed to create topic %s: %v", topic, err)
		}
	}

	readingsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer readingsProducer.Close()
	alertsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertsProducer.Close()
	controlLogProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicControlLog)
	defer controlLogProducer.Close()
	fmt.Println("Kafka producers initialized")

	publisher := queue.NewPublisher(readingsProducer, alertsProducer, controlLogProducer)

	arbiter := devices.NewArbiter(publisher.ControlSink())
	cooldowns := alerting.NewCooldownRegistry(cfg.Alerting.Cooldown)
	engine := alerting.NewEngine(cfg.Alerting, cooldowns, arbiter, publisher)

	// Timed automation rules
	timers := timer.NewManager()
	timers.Start()
	defer timers.Stop()

	rules := make([]scheduler.Rule, 0, len(cfg.Schedule.Rules))
	for _, raw := range cfg.Schedule.Rules {
		rule, err := scheduler.ParseRule(raw)
		if err != nil {
			log.Fatalf("Failed to parse schedule rule %q: %v", raw, err)
		}
		rules = append(rules, rule)
	}
	sched := scheduler.New(timers, arbiter, rules)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	if len(rules) > 0 {
		fmt.Printf("Scheduler armed with %d rule(s)\n", len(rules))
	}

	weatherFetcher := weather.NewFetcher(&cfg.Weather, redisClient)
	prayerFetcher := prayer.NewFetcher(&cfg.Prayer, redisClient)

	// Prefetch loop keeps the weather and prayer caches warm so clients
	// never wait on the upstream APIs. Runs once at startup, then re-fetches
	// as the weather cache expires.
	go func() {
		ctx := context.Background()
		for {
			if _, err := weatherFetcher.Fetch(ctx); err != nil {
				log.Printf("Weather prefetch failed: %v", err)
			}
			if _, err := prayerFetcher.Fetch(ctx, time.Now()); err != nil {
				log.Printf("Prayer prefetch failed: %v", err)
			}
			time.Sleep(cfg.Weather.CacheTTL)
		}
	}()

	srv := server.New(cfg, decoder, engine, arbiter, publisher, db, redisClient,
		weatherFetcher, prayerFetcher, command.KeywordClassifier{})

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	fmt.Println("\n✓ Smart Home Server is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("Failed to shut down HTTP server: %v", err)
	}
	fmt.Println("Smart Home Server stopped")
}
