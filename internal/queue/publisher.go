package queue

import (
	"context"
	"log"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/protocol"
)

// Publisher fans validated readings, alert records and control-log records
// out to their Kafka topics. Every method is fire-and-forget: publication
// runs on its own goroutine with a bounded timeout, and broker failures are
// logged and absorbed so a slow or failing downstream never stalls ingestion
// or arbitration.
type Publisher struct {
	readings   *Producer
	alerts     *Producer
	controlLog *Producer
	timeout    time.Duration
}

// NewPublisher creates a publisher over the three record topics.
func NewPublisher(readings, alerts, controlLog *Producer) *Publisher {
	return &Publisher{
		readings:   readings,
		alerts:     alerts,
		controlLog: controlLog,
		timeout:    10 * time.Second,
	}
}

// PublishReading queues a validated reading for persistence.
func (p *Publisher) PublishReading(msg *protocol.ReadingMessage) {
	data, err := protocol.EncodeReadingMessage(msg)
	if err != nil {
		log.Printf("Failed to encode reading: %v", err)
		return
	}
	p.send(p.readings, msg.DeviceID, data)
}

// EmitAlert queues an alert record for persistence and notification. It
// implements the alert engine's emitter.
func (p *Publisher) EmitAlert(msg *protocol.AlertMessage) {
	data, err := protocol.EncodeAlertMessage(msg)
	if err != nil {
		log.Printf("Failed to encode alert: %v", err)
		return
	}
	p.send(p.alerts, msg.Severity, data)
}

// ControlSink returns the arbiter sink that queues one control-log record per
// device state change.
func (p *Publisher) ControlSink() devices.ControlSink {
	return func(device devices.Device, action, source string, at time.Time) {
		msg := &protocol.ControlLogMessage{
			Device:    string(device),
			Action:    action,
			Source:    source,
			Timestamp: at,
		}
		data, err := protocol.EncodeControlLogMessage(msg)
		if err != nil {
			log.Printf("Failed to encode control log: %v", err)
			return
		}
		p.send(p.controlLog, string(device), data)
	}
}

func (p *Publisher) send(producer *Producer, key string, data []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := producer.Publish(ctx, key, data); err != nil {
			// Downstream unavailability is absorbed here, never propagated
			// to the ingestion or arbitration caller.
			log.Printf("Failed to publish message (key=%s): %v", key, err)
		}
	}()
}
