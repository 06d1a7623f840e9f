package telemetry

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/protocol"
)

// Physical sanity bounds for DHT11-class sensors. Readings outside these
// ranges are rejected before any alerting or persistence occurs.
const (
	TempMinValid  = -40.0
	TempMaxValid  = 80.0
	HumidMinValid = 0.0
	HumidMaxValid = 100.0
)

var (
	// ErrAuthenticationFailed is returned when the AEAD tag does not verify.
	// No plaintext is exposed in this case.
	ErrAuthenticationFailed = errors.New("payload authentication failed")

	// ErrMalformedPayload is returned for payloads that cannot be parsed.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrOutOfRange is returned when a parsed value is outside physical
	// sanity bounds.
	ErrOutOfRange = errors.New("sensor data out of range")
)

// Reading is a validated sensor measurement. Immutable once constructed;
// produced only by Decoder.Decode after range validation.
type Reading struct {
	DeviceID    string
	Temperature float64
	Humidity    float64
	Smoke       int
	Timestamp   time.Time
}

// Decoder authenticates and decodes sensor payloads. Stateless and safe for
// concurrent use.
type Decoder struct {
	aead            cipher.AEAD
	defaultDeviceID string
}

// NewDecoder creates a decoder with the given 32-byte pre-shared AES key.
func NewDecoder(key []byte, defaultDeviceID string) (*Decoder, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Decoder{aead: aead, defaultDeviceID: defaultDeviceID}, nil
}

// Decode parses a sensor submission, decrypting the envelope form if present,
// and returns a validated Reading. The error is one of the sentinel kinds
// (ErrAuthenticationFailed, ErrMalformedPayload, ErrOutOfRange), possibly
// wrapped with detail.
func (d *Decoder) Decode(body []byte) (*Reading, error) {
	envelope, plaintext, err := protocol.ParseSensorBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if envelope != nil {
		plaintext, err = d.open(envelope)
		if err != nil {
			return nil, err
		}
	}

	var payload protocol.SensorPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if payload.DeviceID == "" {
		payload.DeviceID = d.defaultDeviceID
	}

	if payload.Temperature < TempMinValid || payload.Temperature > TempMaxValid ||
		payload.Humidity < HumidMinValid || payload.Humidity > HumidMaxValid {
		return nil, fmt.Errorf("%w: temperature=%.1f humidity=%.1f",
			ErrOutOfRange, payload.Temperature, payload.Humidity)
	}

	return &Reading{
		DeviceID:    payload.DeviceID,
		Temperature: payload.Temperature,
		Humidity:    payload.Humidity,
		Smoke:       payload.Smoke,
		Timestamp:   time.Now(),
	}, nil
}

// open decrypts and authenticates an encrypted envelope in one step. A tag
// mismatch yields ErrAuthenticationFailed without exposing any plaintext.
func (d *Decoder) open(env *protocol.EncryptedEnvelope) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedPayload)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid nonce encoding", ErrMalformedPayload)
	}

	if len(nonce) != d.aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrMalformedPayload, d.aead.NonceSize())
	}

	plaintext, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return plaintext, nil
}
