package scheduler

import (
	"testing"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/timer"
)

func TestParseRule(t *testing.T) {
	rule, err := ParseRule("light:on:18:00")
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}
	if rule.Device != devices.DeviceLight || !rule.On || rule.Hour != 18 || rule.Minute != 0 {
		t.Errorf("Unexpected rule: %+v", rule)
	}

	bad := []string{
		"light:on:18",
		"toaster:on:18:00",
		"light:toggle:18:00",
		"light:on:25:00",
		"light:on:18:70",
		"",
	}
	for _, s := range bad {
		if _, err := ParseRule(s); err == nil {
			t.Errorf("ParseRule(%q): expected error", s)
		}
	}
}

func TestRule_NextFiring(t *testing.T) {
	rule := Rule{Device: devices.DeviceLight, On: true, Hour: 18, Minute: 0}

	morning := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next := rule.nextFiring(morning)
	if next.Day() != 1 || next.Hour() != 18 {
		t.Errorf("Expected same-day 18:00, got %v", next)
	}

	// Past today's slot: rolls over to tomorrow.
	evening := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	next = rule.nextFiring(evening)
	if next.Day() != 2 || next.Hour() != 18 {
		t.Errorf("Expected next-day 18:00, got %v", next)
	}
}

func TestScheduler_Start(t *testing.T) {
	timers := timer.NewManager()
	timers.Start()
	defer timers.Stop()

	arbiter := devices.NewArbiter(nil)
	s := New(timers, arbiter, []Rule{
		{Device: devices.DeviceLight, On: true, Hour: 18, Minute: 0},
		{Device: devices.DeviceLight, On: false, Hour: 22, Minute: 0},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if timers.Len() != 2 {
		t.Errorf("Expected 2 pending tasks, got %d", timers.Len())
	}
}

func TestScheduler_FireSetsDeviceWithScheduleSource(t *testing.T) {
	timers := timer.NewManager()
	timers.Start()
	defer timers.Stop()

	arbiter := devices.NewArbiter(nil)
	s := New(timers, arbiter, nil)

	s.fire(Rule{Device: devices.DeviceLight, On: true, Hour: 18, Minute: 0})

	state, err := arbiter.Get(devices.DeviceLight)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !state.On || state.UpdatedBy != devices.SourceSchedule {
		t.Errorf("Expected light on by schedule, got %+v", state)
	}

	// Firing re-arms the rule for the next day.
	if timers.Len() != 1 {
		t.Errorf("Expected rule to be re-scheduled, got %d tasks", timers.Len())
	}
}
