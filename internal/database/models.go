package database

import (
	"time"
)

// Reading is a persisted sensor measurement.
type Reading struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Smoke       int       `json:"smoke"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alert is a persisted alert record.
type Alert struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// ControlLog is a persisted device state change with attribution.
type ControlLog struct {
	ID        int64     `json:"id"`
	Device    string    `json:"device"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricStats summarizes one metric over a window.
type MetricStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Stats summarizes readings over a window.
type Stats struct {
	Count       int         `json:"count"`
	Temperature MetricStats `json:"temperature"`
	Humidity    MetricStats `json:"humidity"`
	Smoke       MetricStats `json:"smoke"`
}
