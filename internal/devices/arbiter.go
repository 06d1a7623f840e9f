package devices

import (
	"fmt"
	"sync"
	"time"
)

// Device identifies an actuated device.
type Device string

const (
	DeviceFan   Device = "fan"
	DeviceLight Device = "light"
)

// Well-known attribution sources. Callers may also supply opaque strings.
const (
	SourceWeb           = "web"
	SourceWebChat       = "web_chat"
	SourceTelegram      = "telegram"
	SourceTelegramVoice = "telegram_voice"
	SourceAutoTemp      = "auto_temperature"
	SourceAutoSmoke     = "auto_smoke"
	SourceSchedule      = "schedule"
)

// ErrUnknownDevice is returned for a device outside {fan, light}.
var ErrUnknownDevice = fmt.Errorf("unknown device")

// State is a snapshot of one device. A State returned by the arbiter is a
// copy; it never reflects a partial update.
type State struct {
	On        bool
	UpdatedAt time.Time
	UpdatedBy string
}

// Action returns the control-log action string for this state.
func (s State) Action() string {
	if s.On {
		return "on"
	}
	return "off"
}

// ControlSink receives one record per successful Set. It is invoked after the
// arbiter lock is released and must not block; implementations that perform
// I/O should hand off to a queue or goroutine.
type ControlSink func(device Device, action, source string, at time.Time)

// Arbiter owns the mutable state of the actuated devices and serializes
// concurrent set/get requests. Writes are last-writer-wins with no merge or
// rejection logic; automatic callers enforce their own attribution guard
// before reversing a state they did not set.
type Arbiter struct {
	mu     sync.Mutex
	states map[Device]State
	sink   ControlSink
}

// NewArbiter creates an arbiter with both devices off and no attribution.
func NewArbiter(sink ControlSink) *Arbiter {
	return &Arbiter{
		states: map[Device]State{
			DeviceFan:   {},
			DeviceLight: {},
		},
		sink: sink,
	}
}

// Get returns the current state of a device.
func (a *Arbiter) Get(device Device) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.states[device]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	return state, nil
}

// Set unconditionally overwrites the device state, timestamp and attribution,
// then emits exactly one control-log record through the sink. The sink runs
// outside the critical section so arbitration latency is bounded by the lock
// alone.
func (a *Arbiter) Set(device Device, on bool, source string) (State, error) {
	a.mu.Lock()
	if _, ok := a.states[device]; !ok {
		a.mu.Unlock()
		return State{}, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}

	state := State{
		On:        on,
		UpdatedAt: time.Now(),
		UpdatedBy: source,
	}
	a.states[device] = state
	a.mu.Unlock()

	if a.sink != nil {
		a.sink(device, state.Action(), source, state.UpdatedAt)
	}

	return state, nil
}

// Snapshot returns a copy of the state of all devices.
func (a *Arbiter) Snapshot() map[Device]State {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := make(map[Device]State, len(a.states))
	for device, state := range a.states {
		snapshot[device] = state
	}
	return snapshot
}

// ParseDevice validates a device name from an external request.
func ParseDevice(name string) (Device, error) {
	switch Device(name) {
	case DeviceFan:
		return DeviceFan, nil
	case DeviceLight:
		return DeviceLight, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
}
