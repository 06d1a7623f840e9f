package command

import (
	"testing"

	"github.com/adiwijaya/smarthome-server/internal/devices"
)

func TestKeywordClassifier(t *testing.T) {
	cases := []struct {
		text   string
		device devices.Device
		on     bool
		ok     bool
	}{
		{"tolong nyalakan lampu", devices.DeviceLight, true, true},
		{"matikan kipas", devices.DeviceFan, false, true},
		{"turn the fan on", devices.DeviceFan, true, true},
		{"lamp off please", devices.DeviceLight, false, true},
		{"nonaktifkan lampu", devices.DeviceLight, false, true},
		{"hidupkan kipas sekarang", devices.DeviceFan, true, true},
		{"PADAMKAN CAHAYA", devices.DeviceLight, false, true},
		{"suhu sekarang berapa?", "", false, false},
		{"nyalakan", "", false, false}, // action without device
		{"kipas", "", false, false},    // device without action
		{"", "", false, false},
	}

	c := KeywordClassifier{}
	for _, tc := range cases {
		cmd, ok := c.Classify(tc.text)
		if ok != tc.ok {
			t.Errorf("Classify(%q): expected ok=%v, got %v", tc.text, tc.ok, ok)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Device != tc.device || cmd.On != tc.on {
			t.Errorf("Classify(%q): expected %s/%v, got %s/%v",
				tc.text, tc.device, tc.on, cmd.Device, cmd.On)
		}
	}
}
