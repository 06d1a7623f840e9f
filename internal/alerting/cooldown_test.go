package alerting

import (
	"sync"
	"testing"
	"time"
)

func TestCooldownRegistry_Dedup(t *testing.T) {
	r := NewCooldownRegistry(300 * time.Second)
	t0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	if !r.TryFire(AlertTempHigh, t0) {
		t.Fatal("First fire should succeed")
	}
	if r.TryFire(AlertTempHigh, t0.Add(100*time.Second)) {
		t.Error("Fire at t+100s should be suppressed")
	}
	if !r.TryFire(AlertTempHigh, t0.Add(301*time.Second)) {
		t.Error("Fire at t+301s should succeed")
	}
}

func TestCooldownRegistry_SuppressedFireDoesNotExtend(t *testing.T) {
	r := NewCooldownRegistry(300 * time.Second)
	t0 := time.Now()

	r.TryFire(AlertSmokeWarning, t0)
	// A suppressed attempt must not refresh the window.
	r.TryFire(AlertSmokeWarning, t0.Add(200*time.Second))
	if !r.TryFire(AlertSmokeWarning, t0.Add(301*time.Second)) {
		t.Error("Window was extended by a suppressed fire")
	}
}

func TestCooldownRegistry_IndependentKeys(t *testing.T) {
	r := NewCooldownRegistry(300 * time.Second)
	t0 := time.Now()

	if !r.TryFire(AlertTempHigh, t0) {
		t.Fatal("temp_high should fire")
	}
	if !r.TryFire(AlertHumidHigh, t0) {
		t.Error("humid_high has its own timer and should fire")
	}
}

func TestCooldownRegistry_ClearRearms(t *testing.T) {
	r := NewCooldownRegistry(300 * time.Second)
	t0 := time.Now()

	r.TryFire(AlertTempHigh, t0)
	if !r.HasEntry(AlertTempHigh) {
		t.Fatal("Entry should exist after fire")
	}

	r.Clear(AlertTempHigh)
	if r.HasEntry(AlertTempHigh) {
		t.Fatal("Entry should be gone after clear")
	}

	// Re-armed: next breach fires immediately.
	if !r.TryFire(AlertTempHigh, t0.Add(time.Second)) {
		t.Error("Fire after clear should succeed")
	}
}

func TestCooldownRegistry_ConcurrentTryFire(t *testing.T) {
	// TryFire is a single atomic operation: of N goroutines racing on the
	// same key at the same instant, exactly one may win.
	r := NewCooldownRegistry(300 * time.Second)
	now := time.Now()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if r.TryFire(AlertSmokeCritical, now) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", wins)
	}
}
