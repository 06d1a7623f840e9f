package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/adiwijaya/smarthome-server/internal/command"
	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/telemetry"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("failed to decode test key: %v", err)
	}
	decoder, err := telemetry.NewDecoder(key, "ESP32_SMART_HOME")
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	arbiter := devices.NewArbiter(nil)

	// Handlers under test never reach the engine, queue, database or Redis.
	srv := New(
		&config.Config{HTTPServer: config.HTTPServerConfig{Port: 0}},
		decoder, nil, arbiter, nil, nil, nil, nil, nil,
		command.KeywordClassifier{},
	)
	return srv, srv.Router()
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestControlSetsDeviceState(t *testing.T) {
	srv, router := newTestServer(t)

	w := postJSON(router, "/api/control", map[string]string{
		"device": "fan",
		"action": "on",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Fan    bool   `json:"fan"`
		Light  bool   `json:"light"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected status \"success\", got %q", resp.Status)
	}
	if !resp.Fan || resp.Light {
		t.Errorf("expected fan on, light off; got fan=%v light=%v", resp.Fan, resp.Light)
	}

	state, err := srv.arbiter.Get(devices.DeviceFan)
	if err != nil {
		t.Fatalf("failed to read fan state: %v", err)
	}
	if !state.On || state.UpdatedBy != devices.SourceWeb {
		t.Errorf("expected fan on attributed to web, got on=%v by=%q", state.On, state.UpdatedBy)
	}
}

func TestControlRejectsUnknownDeviceAndAction(t *testing.T) {
	_, router := newTestServer(t)

	w := postJSON(router, "/api/control", map[string]string{"device": "heater", "action": "on"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown device: expected 400, got %d", w.Code)
	}

	w = postJSON(router, "/api/control", map[string]string{"device": "fan", "action": "toggle"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action: expected 400, got %d", w.Code)
	}
}

func TestControlPreservesCustomSource(t *testing.T) {
	srv, router := newTestServer(t)

	w := postJSON(router, "/api/control", map[string]string{
		"device": "light",
		"action": "on",
		"source": "telegram",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	state, _ := srv.arbiter.Get(devices.DeviceLight)
	if state.UpdatedBy != devices.SourceTelegram {
		t.Errorf("expected telegram attribution, got %q", state.UpdatedBy)
	}
}

func TestChatExecutesCommand(t *testing.T) {
	srv, router := newTestServer(t)

	w := postJSON(router, "/api/chat", map[string]string{"message": "tolong nyalakan lampu"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Executed bool   `json:"executed"`
		Device   string `json:"device"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Executed || resp.Device != "light" || resp.Action != "on" {
		t.Errorf("unexpected response: %+v", resp)
	}

	state, _ := srv.arbiter.Get(devices.DeviceLight)
	if !state.On || state.UpdatedBy != devices.SourceWebChat {
		t.Errorf("expected light on attributed to web_chat, got on=%v by=%q", state.On, state.UpdatedBy)
	}
}

func TestChatRefusesUnrecognizedText(t *testing.T) {
	_, router := newTestServer(t)

	w := postJSON(router, "/api/chat", map[string]string{"message": "apa kabar"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Executed bool `json:"executed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Executed {
		t.Error("expected command not to execute")
	}
}

func TestStateReportsBothDevices(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]struct {
		On bool `json:"on"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	for _, device := range []string{"fan", "light"} {
		state, ok := resp[device]
		if !ok {
			t.Fatalf("missing device %q in state response", device)
		}
		if state.On {
			t.Errorf("expected %s to start off", device)
		}
	}
}

func TestSensorRejectsBadPayloads(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"tampered envelope", `{"encrypted_data":"AAAA","nonce":"AAAAAAAAAAAAAAAA"}`},
		{"out of range", `{"temperature":200,"humidity":50,"smoke":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sensor", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}

			var resp struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse error response: %v", err)
			}
			if resp.Status != "error" {
				t.Errorf("expected status \"error\", got %q", resp.Status)
			}
			if resp.Message == "" {
				t.Error("expected a message in the error response")
			}
		})
	}
}

func TestErrorResponseShape(t *testing.T) {
	_, router := newTestServer(t)

	w := postJSON(router, "/api/control", map[string]string{"device": "heater", "action": "on"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if resp.Status != "error" || resp.Message == "" {
		t.Errorf("expected {status: error, message: ...}, got %s", w.Body.String())
	}
}
