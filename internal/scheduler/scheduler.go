package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/adiwijaya/smarthome-server/internal/devices"
	"github.com/adiwijaya/smarthome-server/internal/timer"
)

// Rule is a daily timed device command.
type Rule struct {
	Device devices.Device
	On     bool
	Hour   int
	Minute int
}

// ParseRule parses "device:action:HH:MM" (e.g. "light:on:18:00").
func ParseRule(s string) (Rule, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Rule{}, fmt.Errorf("invalid rule %q: want device:action:HH:MM", s)
	}

	device, err := devices.ParseDevice(parts[0])
	if err != nil {
		return Rule{}, fmt.Errorf("invalid rule %q: %w", s, err)
	}

	var on bool
	switch parts[1] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return Rule{}, fmt.Errorf("invalid rule %q: action must be on or off", s)
	}

	var hour, minute int
	if _, err := fmt.Sscanf(parts[2]+":"+parts[3], "%d:%d", &hour, &minute); err != nil {
		return Rule{}, fmt.Errorf("invalid rule %q: bad time: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Rule{}, fmt.Errorf("invalid rule %q: time out of range", s)
	}

	return Rule{Device: device, On: on, Hour: hour, Minute: minute}, nil
}

func (r Rule) id() string {
	action := "off"
	if r.On {
		action = "on"
	}
	return fmt.Sprintf("%s-%s-%02d%02d", r.Device, action, r.Hour, r.Minute)
}

// nextFiring returns the next wall-clock occurrence of the rule's time.
func (r Rule) nextFiring(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), r.Hour, r.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler drives daily device automation rules through the timer manager.
// Fired commands go through the arbiter like any other manual source, with
// attribution "schedule", so they race with human commands under
// last-writer-wins.
type Scheduler struct {
	timers  *timer.Manager
	arbiter *devices.Arbiter
	rules   []Rule
}

// New creates a scheduler over the given rules.
func New(timers *timer.Manager, arbiter *devices.Arbiter, rules []Rule) *Scheduler {
	return &Scheduler{
		timers:  timers,
		arbiter: arbiter,
		rules:   rules,
	}
}

// Start schedules the first firing of every rule.
func (s *Scheduler) Start() error {
	now := time.Now()
	for _, rule := range s.rules {
		if err := s.scheduleRule(rule, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) scheduleRule(rule Rule, now time.Time) error {
	next := rule.nextFiring(now)
	return s.timers.Schedule(rule.id(), next, func() {
		s.fire(rule)
	})
}

func (s *Scheduler) fire(rule Rule) {
	if _, err := s.arbiter.Set(rule.Device, rule.On, devices.SourceSchedule); err != nil {
		fmt.Printf("Scheduled command failed: %v\n", err)
	} else {
		fmt.Printf("Scheduled command applied: %s %s\n", rule.Device, map[bool]string{true: "on", false: "off"}[rule.On])
	}

	// Re-arm for the next day.
	if err := s.scheduleRule(rule, time.Now()); err != nil && err != timer.ErrManagerStopped {
		fmt.Printf("Failed to re-schedule rule: %v\n", err)
	}
}
