package prayer

import (
	"testing"
	"time"
)

func testSchedule() *Schedule {
	return &Schedule{
		Subuh:   "04:35",
		Dzuhur:  "11:55",
		Ashar:   "15:15",
		Maghrib: "17:55",
		Isya:    "19:05",
	}
}

func TestNextPrayer(t *testing.T) {
	tests := []struct {
		name     string
		clock    string
		wantName string
		wantTime string
	}{
		{"before dawn", "03:00", "Subuh", "04:35"},
		{"mid morning", "09:00", "Dzuhur", "11:55"},
		{"afternoon", "14:00", "Ashar", "15:15"},
		{"just before maghrib", "17:54", "Maghrib", "17:55"},
		{"evening", "18:30", "Isya", "19:05"},
		{"after isya rolls over", "22:00", "Subuh", "04:35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock, err := time.Parse("15:04", tt.clock)
			if err != nil {
				t.Fatalf("failed to parse clock %q: %v", tt.clock, err)
			}

			next := nextPrayer(testSchedule(), clock)
			if next.Name != tt.wantName || next.Time != tt.wantTime {
				t.Errorf("at %s got %s %s, want %s %s",
					tt.clock, next.Name, next.Time, tt.wantName, tt.wantTime)
			}
		})
	}
}
