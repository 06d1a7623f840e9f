package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/adiwijaya/smarthome-server/internal/database"
	"github.com/adiwijaya/smarthome-server/internal/protocol"
	"github.com/adiwijaya/smarthome-server/internal/queue"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Database Writer Service...")
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	readingsConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "dbwriter-group")
	defer readingsConsumer.Close()
	alertsConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "dbwriter-group")
	defer alertsConsumer.Close()
	controlLogConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicControlLog, "dbwriter-group")
	defer controlLogConsumer.Close()
	fmt.Println("Kafka consumers created (registering with broker...)")

	ctx := context.Background()

	writers := []*queue.BatchWriter{
		queue.NewBatchWriter("readings", readingsConsumer, func(msg kafka.Message) error {
			reading, err := protocol.DecodeReadingMessage(msg.Value)
			if err != nil {
				return fmt.Errorf("failed to decode reading: %w", err)
			}
			return db.InsertReading(&database.Reading{
				DeviceID:    reading.DeviceID,
				Temperature: reading.Temperature,
				Humidity:    reading.Humidity,
				Smoke:       reading.Smoke,
				Timestamp:   reading.Timestamp,
			})
		}, 100, 5*time.Second),

		queue.NewBatchWriter("alerts", alertsConsumer, func(msg kafka.Message) error {
			alert, err := protocol.DecodeAlertMessage(msg.Value)
			if err != nil {
				return fmt.Errorf("failed to decode alert: %w", err)
			}
			return db.InsertAlert(&database.Alert{
				Message:   alert.Message,
				Severity:  alert.Severity,
				Timestamp: alert.Timestamp,
			})
		}, 20, 2*time.Second),

		queue.NewBatchWriter("control_log", controlLogConsumer, func(msg kafka.Message) error {
			entry, err := protocol.DecodeControlLogMessage(msg.Value)
			if err != nil {
				return fmt.Errorf("failed to decode control log entry: %w", err)
			}
			return db.InsertControlLog(&database.ControlLog{
				Device:    entry.Device,
				Action:    entry.Action,
				Source:    entry.Source,
				Timestamp: entry.Timestamp,
			})
		}, 20, 2*time.Second),
	}

	for _, writer := range writers {
		writer.Start(ctx)
	}

	fmt.Println("\n✓ Database Writer Service is running")
	fmt.Println("✓ Consuming readings, alerts and control log from Kafka")
	fmt.Println("✓ Press Ctrl+C to stop")
	fmt.Println("\nWaiting for messages...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	for _, writer := range writers {
		writer.Stop()
	}
	fmt.Println("Database Writer Service stopped")
}
