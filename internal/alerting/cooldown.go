package alerting

import (
	"sync"
	"time"
)

// AlertKey identifies a monitored condition. Each key has an independent
// cooldown timer.
type AlertKey string

const (
	AlertTempHigh      AlertKey = "temp_high"
	AlertTempLow       AlertKey = "temp_low"
	AlertHumidHigh     AlertKey = "humid_high"
	AlertHumidLow      AlertKey = "humid_low"
	AlertSmokeWarning  AlertKey = "smoke_warning"
	AlertSmokeCritical AlertKey = "smoke_critical"
)

// CooldownRegistry tracks the last-fired timestamp per alert key so repeat
// notifications within the cooldown window are suppressed. One mutex covers
// the whole registry; TryFire is an atomic check-and-set so two concurrent
// evaluations cannot both pass the check for the same key.
type CooldownRegistry struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[AlertKey]time.Time
}

// NewCooldownRegistry creates a registry with the given cooldown window.
func NewCooldownRegistry(cooldown time.Duration) *CooldownRegistry {
	return &CooldownRegistry{
		cooldown: cooldown,
		lastSent: make(map[AlertKey]time.Time),
	}
}

// TryFire records now as the key's last-fired time and returns true if no
// entry exists or the existing entry is at least one cooldown old. Otherwise
// it returns false without mutating state.
func (r *CooldownRegistry) TryFire(key AlertKey, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastSent[key]
	if ok && now.Sub(last) < r.cooldown {
		return false
	}

	r.lastSent[key] = now
	return true
}

// Clear removes the key's entry unconditionally. Called on recovery; entries
// are never expired on a timer.
func (r *CooldownRegistry) Clear(key AlertKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSent, key)
}

// HasEntry reports whether the key has an entry. An entry implies the
// condition breached within the cooldown window or has not yet cleared.
func (r *CooldownRegistry) HasEntry(key AlertKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lastSent[key]
	return ok
}
