package scheduling

import (
	"time"
)

// Score rates how desirable a candidate start is relative to the preferred
// start. Pure and deterministic; output is only meaningful for ranking
// within a single search. Higher is better.
func Score(candidate, preferred time.Time) int {
	score := distanceBucket(candidate, preferred)
	score += timeOfDayBonus(candidate.Hour())
	score += roundTimeBonus(candidate.Minute())
	return score
}

// distanceBucket rewards temporal closeness to the preferred start.
func distanceBucket(candidate, preferred time.Time) int {
	d := candidate.Sub(preferred)
	if d < 0 {
		d = -d
	}
	switch {
	case d == 0:
		return 100
	case d <= time.Hour:
		return 80
	case d <= 2*time.Hour:
		return 60
	case d <= 4*time.Hour:
		return 40
	default:
		return 20
	}
}

// timeOfDayBonus favors mid-morning, then mid-afternoon. Bands are checked
// in priority order so the boundary hours resolve to the stronger band.
func timeOfDayBonus(hour int) int {
	switch {
	case hour >= 9 && hour <= 11:
		return 10
	case hour >= 14 && hour <= 16:
		return 8
	case hour >= 8 && hour <= 9:
		return 6
	case hour >= 16 && hour <= 17:
		return 4
	default:
		return 0
	}
}

// roundTimeBonus nudges on-the-hour and half-hour starts up the ranking.
func roundTimeBonus(minute int) int {
	switch minute {
	case 0:
		return 5
	case 30:
		return 3
	default:
		return 0
	}
}
