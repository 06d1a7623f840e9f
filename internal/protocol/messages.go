package protocol

import (
	"encoding/json"
	"fmt"
)

// SensorPayload is the plaintext JSON structure submitted by the sensor node,
// either directly or as the decrypted content of an EncryptedEnvelope.
// Missing numeric fields decode as zero; callers should treat zero-valued
// defaults as "no data", not as a genuine sensor zero.
type SensorPayload struct {
	DeviceID    string  `json:"device_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Smoke       int     `json:"smoke"`
}

// EncryptedEnvelope is the encrypted form of a sensor submission:
// base64(ciphertext+tag) and a base64 96-bit nonce, sealed with AES-256-GCM
// under the pre-shared key with no associated data.
type EncryptedEnvelope struct {
	EncryptedData string `json:"encrypted_data"`
	Nonce         string `json:"nonce"`
}

// ControlRequest is the body of a device control command.
type ControlRequest struct {
	Device string `json:"device"`
	Action string `json:"action"`
	Source string `json:"source"`
}

// ChatRequest is the body of a free-text command message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ParseSensorBody splits a sensor submission into its encrypted or plaintext
// form. It returns the envelope when both encrypted fields are present,
// otherwise the raw body is treated as a plaintext payload.
func ParseSensorBody(body []byte) (*EncryptedEnvelope, []byte, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if _, ok := probe["encrypted_data"]; ok {
		if _, ok := probe["nonce"]; ok {
			var env EncryptedEnvelope
			if err := json.Unmarshal(body, &env); err != nil {
				return nil, nil, fmt.Errorf("invalid envelope: %w", err)
			}
			return &env, nil, nil
		}
	}

	return nil, body, nil
}
