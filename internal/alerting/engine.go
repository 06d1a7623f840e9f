package alerting

import (
	"fmt"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/protocol"
	"github.com/adiwijaya/smarthome-server/internal/telemetry"
	"github.com/adiwijaya/smarthome-server/pkg/config"
)

// Emitter receives alert records for persistence and notification. It must
// not block; failures downstream are the implementation's concern and are
// never surfaced back into evaluation.
type Emitter interface {
	EmitAlert(alert *protocol.AlertMessage)
}

// Engine evaluates readings against hysteresis thresholds and drives the fan
// for the two auto-actuated conditions. Rules run independently and in a
// fixed order: temp_high, temp_low, humid_high, humid_low, smoke_critical,
// smoke_warning.
type Engine struct {
	cfg       config.AlertingConfig
	cooldowns *CooldownRegistry
	devices   *devices.Arbiter
	emitter   Emitter
}

// NewEngine creates an alert engine. Thresholds and the cooldown window come
// from the config so tests can shorten them.
func NewEngine(cfg config.AlertingConfig, cooldowns *CooldownRegistry, arbiter *devices.Arbiter, emitter Emitter) *Engine {
	return &Engine{
		cfg:       cfg,
		cooldowns: cooldowns,
		devices:   arbiter,
		emitter:   emitter,
	}
}

// Evaluate runs all rules against a validated reading and returns the alert
// keys that fired (passed their cooldown gate) during this call.
func (e *Engine) Evaluate(reading *telemetry.Reading) []AlertKey {
	now := reading.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var fired []AlertKey

	fired = e.evaluateTempHigh(reading, now, fired)
	fired = e.evaluateTempLow(reading, now, fired)
	fired = e.evaluateHumidity(reading, now, fired)
	fired = e.evaluateSmokeCritical(reading, now, fired)
	fired = e.evaluateSmokeWarning(reading, now, fired)

	return fired
}

// evaluateTempHigh handles the high-temperature band. It is one of the two
// auto-actuated conditions: the fan is forced on while breached, and turned
// back off on recovery only if this engine's attribution is still on it.
func (e *Engine) evaluateTempHigh(reading *telemetry.Reading, now time.Time, fired []AlertKey) []AlertKey {
	if reading.Temperature > e.cfg.TempMax {
		// Actuation is not gated by the cooldown and is idempotent.
		e.ensureFanOn(devices.SourceAutoTemp)

		if e.cooldowns.TryFire(AlertTempHigh, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("High temperature: %.1f°C - fan ON automatically", reading.Temperature),
				Severity: protocol.SeverityCritical,
				Text: fmt.Sprintf("🚨 HIGH TEMPERATURE\nTemperature: %.1f°C\n🌀 Fan turned on automatically!\nTime: %s",
					reading.Temperature, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertTempHigh)
		}
		return fired
	}

	if e.cooldowns.HasEntry(AlertTempHigh) {
		e.cooldowns.Clear(AlertTempHigh)

		if e.autoFanOff(devices.SourceAutoTemp) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Temperature normal: %.1f°C - fan OFF automatically", reading.Temperature),
				Severity: protocol.SeverityInfo,
				Text: fmt.Sprintf("✅ Temperature back to normal: %.1f°C\n🌀 Fan turned off automatically.",
					reading.Temperature),
				Timestamp: now,
			})
		} else {
			e.emit(&protocol.AlertMessage{
				Message:   fmt.Sprintf("Temperature back to normal: %.1f°C", reading.Temperature),
				Severity:  protocol.SeverityInfo,
				Timestamp: now,
			})
		}
	}
	return fired
}

// evaluateTempLow handles the low-temperature band. Never actuates anything;
// the asymmetry with temp_high is deliberate.
func (e *Engine) evaluateTempLow(reading *telemetry.Reading, now time.Time, fired []AlertKey) []AlertKey {
	if reading.Temperature < e.cfg.TempMin {
		if e.cooldowns.TryFire(AlertTempLow, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Low temperature: %.1f°C", reading.Temperature),
				Severity: protocol.SeverityWarning,
				Text: fmt.Sprintf("❄️ LOW TEMPERATURE\nTemperature: %.1f°C\nTime: %s",
					reading.Temperature, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertTempLow)
		}
		return fired
	}

	if e.cooldowns.HasEntry(AlertTempLow) {
		e.cooldowns.Clear(AlertTempLow)
		e.emit(&protocol.AlertMessage{
			Message:   fmt.Sprintf("Temperature back to normal: %.1f°C", reading.Temperature),
			Severity:  protocol.SeverityInfo,
			Timestamp: now,
		})
	}
	return fired
}

func (e *Engine) evaluateHumidity(reading *telemetry.Reading, now time.Time, fired []AlertKey) []AlertKey {
	if reading.Humidity > e.cfg.HumidMax {
		if e.cooldowns.TryFire(AlertHumidHigh, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("High humidity: %.1f%%", reading.Humidity),
				Severity: protocol.SeverityWarning,
				Text: fmt.Sprintf("💧 HIGH HUMIDITY\nHumidity: %.1f%%\nTime: %s",
					reading.Humidity, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertHumidHigh)
		}
	} else if e.cooldowns.HasEntry(AlertHumidHigh) {
		e.cooldowns.Clear(AlertHumidHigh)
		e.emit(&protocol.AlertMessage{
			Message:   fmt.Sprintf("Humidity back to normal: %.1f%%", reading.Humidity),
			Severity:  protocol.SeverityInfo,
			Timestamp: now,
		})
	}

	if reading.Humidity < e.cfg.HumidMin {
		if e.cooldowns.TryFire(AlertHumidLow, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Low humidity: %.1f%%", reading.Humidity),
				Severity: protocol.SeverityWarning,
				Text: fmt.Sprintf("🌵 LOW HUMIDITY\nHumidity: %.1f%%\nTime: %s",
					reading.Humidity, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertHumidLow)
		}
	} else if e.cooldowns.HasEntry(AlertHumidLow) {
		e.cooldowns.Clear(AlertHumidLow)
		e.emit(&protocol.AlertMessage{
			Message:   fmt.Sprintf("Humidity back to normal: %.1f%%", reading.Humidity),
			Severity:  protocol.SeverityInfo,
			Timestamp: now,
		})
	}

	return fired
}

// evaluateSmokeCritical handles the critical smoke band, the second
// auto-actuated condition (air circulation).
func (e *Engine) evaluateSmokeCritical(reading *telemetry.Reading, now time.Time, fired []AlertKey) []AlertKey {
	if reading.Smoke > e.cfg.SmokeCritical {
		e.ensureFanOn(devices.SourceAutoSmoke)

		if e.cooldowns.TryFire(AlertSmokeCritical, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Critical smoke level: %d - fan ON automatically", reading.Smoke),
				Severity: protocol.SeverityCritical,
				Text: fmt.Sprintf("🔥 CRITICAL SMOKE!\nMQ-2: %d\n⚠️ Check the room!\n🌀 Fan turned on for air circulation!\nTime: %s",
					reading.Smoke, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertSmokeCritical)
		}
		return fired
	}

	if e.cooldowns.HasEntry(AlertSmokeCritical) {
		e.cooldowns.Clear(AlertSmokeCritical)

		if e.autoFanOff(devices.SourceAutoSmoke) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Smoke level safe: %d - fan OFF automatically", reading.Smoke),
				Severity: protocol.SeverityInfo,
				Text: fmt.Sprintf("✅ Smoke level back to safe: %d\n🌀 Fan turned off automatically.",
					reading.Smoke),
				Timestamp: now,
			})
		} else {
			e.emit(&protocol.AlertMessage{
				Message:   fmt.Sprintf("Smoke level back to safe: %d", reading.Smoke),
				Severity:  protocol.SeverityInfo,
				Timestamp: now,
			})
		}
	}
	return fired
}

// evaluateSmokeWarning handles the warning band, active only between the
// warning and critical thresholds so it never fires alongside the critical
// band. It only notifies; it never actuates, and its recovery is silent.
func (e *Engine) evaluateSmokeWarning(reading *telemetry.Reading, now time.Time, fired []AlertKey) []AlertKey {
	if reading.Smoke > e.cfg.SmokeWarning && reading.Smoke <= e.cfg.SmokeCritical {
		if e.cooldowns.TryFire(AlertSmokeWarning, now) {
			e.emit(&protocol.AlertMessage{
				Message:  fmt.Sprintf("Smoke warning: %d", reading.Smoke),
				Severity: protocol.SeverityWarning,
				Text: fmt.Sprintf("⚠️ Smoke detected\nMQ-2: %d\nTime: %s",
					reading.Smoke, now.Format("15:04:05")),
				Timestamp: now,
			})
			fired = append(fired, AlertSmokeWarning)
		}
		return fired
	}

	if e.cooldowns.HasEntry(AlertSmokeWarning) {
		e.cooldowns.Clear(AlertSmokeWarning)
	}
	return fired
}

// ensureFanOn turns the fan on with the given automatic attribution if it is
// currently off. Repeated breaches while already on issue no second set.
func (e *Engine) ensureFanOn(source string) {
	state, err := e.devices.Get(devices.DeviceFan)
	if err != nil || state.On {
		return
	}
	e.devices.Set(devices.DeviceFan, true, source)
}

// autoFanOff turns the fan off only when its current attribution matches the
// automatic source that turned it on. A human command arriving between the
// Get and the Set is an accepted race under last-writer-wins; the pair is
// deliberately not atomic.
func (e *Engine) autoFanOff(source string) bool {
	state, err := e.devices.Get(devices.DeviceFan)
	if err != nil || !state.On || state.UpdatedBy != source {
		return false
	}
	e.devices.Set(devices.DeviceFan, false, source)
	return true
}

func (e *Engine) emit(alert *protocol.AlertMessage) {
	if e.emitter != nil {
		e.emitter.EmitAlert(alert)
	}
}
