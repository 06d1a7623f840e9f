package protocol

import (
	"encoding/json"
	"time"
)

// ReadingMessage is the internal message format for validated sensor readings.
type ReadingMessage struct {
	ReadingID   string    `json:"reading_id"`
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Smoke       int       `json:"smoke"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertMessage carries an alert record plus the notification text to deliver.
// Message is the terse line persisted to the alerts table; Text is the
// human-facing notification body (falls back to Message when empty).
type AlertMessage struct {
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationText returns the body to deliver to the notification channel.
func (a *AlertMessage) NotificationText() string {
	if a.Text != "" {
		return a.Text
	}
	return a.Message
}

// ControlLogMessage records a device state change with attribution.
type ControlLogMessage struct {
	Device    string    `json:"device"`
	Action    string    `json:"action"` // "on" or "off"
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeReadingMessage encodes a ReadingMessage to JSON.
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to a ReadingMessage.
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertMessage encodes an AlertMessage to JSON.
func EncodeAlertMessage(msg *AlertMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeAlertMessage decodes JSON to an AlertMessage.
func DecodeAlertMessage(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeControlLogMessage encodes a ControlLogMessage to JSON.
func EncodeControlLogMessage(msg *ControlLogMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeControlLogMessage decodes JSON to a ControlLogMessage.
func DecodeControlLogMessage(data []byte) (*ControlLogMessage, error) {
	var msg ControlLogMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
