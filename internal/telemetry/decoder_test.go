package telemetry

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

var testKey = make([]byte, 32)

func init() {
	for i := range testKey {
		testKey[i] = byte(i)
	}
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder(testKey, "ESP32_SMART_HOME")
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	return d
}

// seal builds an encrypted envelope the way the sensor firmware does.
func seal(t *testing.T, plaintext []byte) []byte {
	t.Helper()

	block, err := aes.NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("NewGCM failed: %v", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rand failed: %v", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	body, err := json.Marshal(map[string]string{
		"encrypted_data": base64.StdEncoding.EncodeToString(ciphertext),
		"nonce":          base64.StdEncoding.EncodeToString(nonce),
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return body
}

func TestDecoder_Plaintext(t *testing.T) {
	d := newTestDecoder(t)

	body := []byte(`{"device_id":"node-1","temperature":28.5,"humidity":65,"smoke":120}`)
	reading, err := d.Decode(body)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if reading.DeviceID != "node-1" {
		t.Errorf("Expected device node-1, got %s", reading.DeviceID)
	}
	if reading.Temperature != 28.5 {
		t.Errorf("Expected temperature 28.5, got %v", reading.Temperature)
	}
	if reading.Humidity != 65 {
		t.Errorf("Expected humidity 65, got %v", reading.Humidity)
	}
	if reading.Smoke != 120 {
		t.Errorf("Expected smoke 120, got %d", reading.Smoke)
	}
}

func TestDecoder_EncryptedRoundTrip(t *testing.T) {
	d := newTestDecoder(t)

	plaintext := []byte(`{"device_id":"node-2","temperature":31.2,"humidity":70.5,"smoke":450}`)
	reading, err := d.Decode(seal(t, plaintext))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if reading.DeviceID != "node-2" || reading.Temperature != 31.2 ||
		reading.Humidity != 70.5 || reading.Smoke != 450 {
		t.Errorf("Round trip mismatch: %+v", reading)
	}
}

func TestDecoder_TamperedCiphertext(t *testing.T) {
	d := newTestDecoder(t)

	body := seal(t, []byte(`{"device_id":"node-2","temperature":25,"humidity":50,"smoke":0}`))

	var env map[string]string
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	ciphertext, _ := base64.StdEncoding.DecodeString(env["encrypted_data"])
	// Flip one bit in each byte position in turn; every variant must fail
	// authentication and expose nothing.
	for i := 0; i < len(ciphertext); i++ {
		tampered := make([]byte, len(ciphertext))
		copy(tampered, ciphertext)
		tampered[i] ^= 0x01

		tamperedBody, _ := json.Marshal(map[string]string{
			"encrypted_data": base64.StdEncoding.EncodeToString(tampered),
			"nonce":          env["nonce"],
		})

		reading, err := d.Decode(tamperedBody)
		if !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("bit %d: expected ErrAuthenticationFailed, got %v", i, err)
		}
		if reading != nil {
			t.Fatalf("bit %d: tampered payload produced a reading", i)
		}
	}
}

func TestDecoder_WrongKey(t *testing.T) {
	otherKey := make([]byte, 32)
	otherKey[0] = 0xff
	other, err := NewDecoder(otherKey, "ESP32_SMART_HOME")
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	body := seal(t, []byte(`{"temperature":25,"humidity":50}`))
	if _, err := other.Decode(body); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecoder_OutOfRange(t *testing.T) {
	d := newTestDecoder(t)

	cases := []struct {
		name string
		body string
	}{
		{"temperature high", `{"temperature":85,"humidity":50}`},
		{"temperature low", `{"temperature":-41,"humidity":50}`},
		{"humidity high", `{"temperature":25,"humidity":150}`},
		{"humidity low", `{"temperature":25,"humidity":-1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Decode([]byte(tc.body)); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Expected ErrOutOfRange, got %v", err)
			}
		})
	}
}

func TestDecoder_OutOfRangeEncrypted(t *testing.T) {
	// Range rejection applies after a successful decrypt too.
	d := newTestDecoder(t)

	body := seal(t, []byte(`{"temperature":85,"humidity":50}`))
	if _, err := d.Decode(body); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
}

func TestDecoder_Defaults(t *testing.T) {
	d := newTestDecoder(t)

	// Missing fields default to the placeholder ID and zero values. A zero
	// here is indistinguishable from a genuine zero reading; that ambiguity
	// is inherited from the firmware protocol.
	reading, err := d.Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if reading.DeviceID != "ESP32_SMART_HOME" {
		t.Errorf("Expected default device ID, got %s", reading.DeviceID)
	}
	if reading.Temperature != 0 || reading.Humidity != 0 || reading.Smoke != 0 {
		t.Errorf("Expected zero defaults, got %+v", reading)
	}
}

func TestDecoder_Malformed(t *testing.T) {
	d := newTestDecoder(t)

	cases := []string{
		`not json`,
		`{"encrypted_data":"!!!","nonce":"AAAAAAAAAAAAAAAA"}`,
		`{"encrypted_data":"AAAA","nonce":"!!!"}`,
		fmt.Sprintf(`{"encrypted_data":"AAAA","nonce":"%s"}`,
			base64.StdEncoding.EncodeToString(make([]byte, 8))), // short nonce
	}

	for _, body := range cases {
		if _, err := d.Decode([]byte(body)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Decode(%q): expected ErrMalformedPayload, got %v", body, err)
		}
	}
}

func TestNewDecoder_BadKey(t *testing.T) {
	if _, err := NewDecoder([]byte("short"), "x"); err == nil {
		t.Error("Expected error for short key")
	}
}
