package scheduling

import (
	"testing"
	"time"
)

var scorePreferred = time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 25, hour, min, 0, 0, time.Local)
}

func TestScoreExactMatch(t *testing.T) {
	// 100 distance + 10 mid-morning + 5 on-the-hour
	if got := Score(scorePreferred, scorePreferred); got != 115 {
		t.Errorf("exact match score = %d, want 115", got)
	}
}

func TestScoreDistanceBuckets(t *testing.T) {
	tests := []struct {
		name      string
		candidate time.Time
		want      int
	}{
		{"one hour later", at(11, 0), 80 + 10 + 5},
		{"one hour earlier", at(9, 0), 80 + 10 + 5},
		{"two hours later", at(12, 0), 60 + 0 + 5},
		{"four hours later", at(14, 0), 40 + 8 + 5},
		{"next day", at(10, 0).AddDate(0, 0, 1), 20 + 10 + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.candidate, scorePreferred); got != tt.want {
				t.Errorf("Score(%s) = %d, want %d", tt.candidate.Format("Mon 15:04"), got, tt.want)
			}
		})
	}
}

func TestScoreCloserNeverRanksLower(t *testing.T) {
	// Holding hour band and minute constant, a candidate closer to the
	// preferred start never scores below a farther one.
	closer := at(11, 0)                    // 1h away, mid-morning band
	farther := at(11, 0).AddDate(0, 0, 2)  // same wall clock, 2 days away
	if Score(closer, scorePreferred) < Score(farther, scorePreferred) {
		t.Errorf("closer slot scored below farther slot")
	}
}

func TestTimeOfDayBands(t *testing.T) {
	tests := []struct {
		hour int
		want int
	}{
		{9, 10},  // boundary hour resolves to the stronger band
		{10, 10},
		{11, 10},
		{14, 8},
		{16, 8}, // 14-16 band wins over 16-17
		{8, 6},
		{17, 4},
		{12, 0},
		{13, 0},
	}
	for _, tt := range tests {
		if got := timeOfDayBonus(tt.hour); got != tt.want {
			t.Errorf("timeOfDayBonus(%d) = %d, want %d", tt.hour, got, tt.want)
		}
	}
}

func TestRoundTimeBonus(t *testing.T) {
	if got := roundTimeBonus(0); got != 5 {
		t.Errorf("on the hour = %d, want 5", got)
	}
	if got := roundTimeBonus(30); got != 3 {
		t.Errorf("half hour = %d, want 3", got)
	}
	if got := roundTimeBonus(15); got != 0 {
		t.Errorf("quarter hour = %d, want 0", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	c := at(14, 30)
	first := Score(c, scorePreferred)
	for i := 0; i < 10; i++ {
		if got := Score(c, scorePreferred); got != first {
			t.Fatalf("score changed between calls: %d then %d", first, got)
		}
	}
}
