package command

import (
	"strings"

	"github.com/adiwijaya/smarthome-server/internal/devices"
)

// Command is a structured device command extracted from free text.
type Command struct {
	Device devices.Device
	On     bool
}

// Classifier extracts a device command from free text. Implementations may be
// backed by an external language model; Classify returns ok=false when the
// text holds no recognizable command.
type Classifier interface {
	Classify(text string) (Command, bool)
}

// KeywordClassifier is a deterministic keyword matcher covering the
// Indonesian and English phrasings the household actually uses. It also
// serves as the fallback when no model-backed classifier is configured.
type KeywordClassifier struct{}

var (
	onKeywords  = []string{"nyalakan", "hidupkan", "nyala", "hidup", "aktifkan", "on"}
	offKeywords = []string{"matikan", "padamkan", "mati", "padam", "nonaktifkan", "off"}

	fanKeywords   = []string{"kipas", "fan"}
	lightKeywords = []string{"lampu", "lamp", "cahaya", "light"}
)

// Classify scans the text for an action keyword and a device keyword. Off
// keywords are checked first so "nonaktifkan" is not shadowed by "aktifkan".
func (KeywordClassifier) Classify(text string) (Command, bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	var on bool
	switch {
	case containsAny(t, offKeywords):
		on = false
	case containsAny(t, onKeywords):
		on = true
	default:
		return Command{}, false
	}

	switch {
	case containsAny(t, fanKeywords):
		return Command{Device: devices.DeviceFan, On: on}, true
	case containsAny(t, lightKeywords):
		return Command{Device: devices.DeviceLight, On: on}, true
	}

	return Command{}, false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
