package scheduling

import (
	"fmt"
	"time"
)

// ValidateIntent checks a meeting intent against the scheduling
// configuration before any search runs. Failures are returned as
// *ValidationError and are never silently corrected.
func ValidateIntent(intent MeetingIntent, cfg Config) error {
	if intent.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if intent.PreferredStart.IsZero() {
		return &ValidationError{Field: "preferred_start", Reason: "must be set"}
	}

	if !businessDay(intent.PreferredStart) {
		return &ValidationError{
			Field:  "preferred_start",
			Reason: "date must be a weekday (Monday-Friday)",
		}
	}

	if !cfg.ValidFrom.IsZero() && intent.PreferredStart.Before(cfg.ValidFrom) {
		return &ValidationError{
			Field:  "preferred_start",
			Reason: fmt.Sprintf("date must not be before %s", cfg.ValidFrom.Format("2006-01-02")),
		}
	}
	if !cfg.ValidUntil.IsZero() && intent.PreferredStart.After(cfg.ValidUntil) {
		return &ValidationError{
			Field:  "preferred_start",
			Reason: fmt.Sprintf("date must not be after %s", cfg.ValidUntil.Format("2006-01-02")),
		}
	}

	hour := intent.PreferredStart.Hour()
	if hour < cfg.BusinessOpen || hour >= cfg.BusinessClose {
		return &ValidationError{
			Field: "preferred_start",
			Reason: fmt.Sprintf("time must be between %02d:00 and %02d:00",
				cfg.BusinessOpen, cfg.BusinessClose),
		}
	}

	if !allowedDuration(intent.DurationMin, cfg.AllowedDurations) {
		return &ValidationError{
			Field:  "duration_minutes",
			Reason: fmt.Sprintf("duration must be one of %v minutes", cfg.AllowedDurations),
		}
	}

	if n := len(intent.ParticipantIDs); n < 2 || n > 3 {
		return &ValidationError{
			Field:  "participants",
			Reason: "negotiation requires 2 or 3 parties",
		}
	}

	return nil
}

func allowedDuration(minutes int, allowed []int) bool {
	for _, d := range allowed {
		if minutes == d {
			return true
		}
	}
	return false
}

// dayStart truncates t to midnight in its location.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
