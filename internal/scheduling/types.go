package scheduling

import (
	"context"
	"time"

	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/profile"
)

// Party is a calendar-holding participant in a scheduling run.
type Party struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	AgentRef string          `json:"agent_ref,omitempty"`
	Profile  profile.Profile `json:"profile"`
}

// MeetingIntent is a single meeting request: what to schedule and around
// when. Created once per negotiation and read-only thereafter.
type MeetingIntent struct {
	Title          string    `json:"title"`
	DurationMin    int       `json:"duration_minutes"`
	PreferredStart time.Time `json:"preferred_start"`
	Priority       int       `json:"priority"`
	InitiatorID    string    `json:"initiator_id"`
	ParticipantIDs []string  `json:"participant_ids"`
}

// End returns the half-open end instant for the preferred slot.
func (m MeetingIntent) End() time.Time {
	return m.PreferredStart.Add(time.Duration(m.DurationMin) * time.Minute)
}

// CandidateSlot is a scored candidate interval produced by Search. The
// per-party conflict lists carry whatever soft conflicts survivors still
// have, so a presentation layer can explain the ranking.
type CandidateSlot struct {
	Start     time.Time             `json:"start_time"`
	End       time.Time             `json:"end_time"`
	Score     int                   `json:"score"`
	Conflicts map[string][]Conflict `json:"conflicts,omitempty"` // partyID -> soft conflicts
}

// CalendarQuery is the calendar read port. Implementations return every
// block owned by the party that overlaps [start, end).
type CalendarQuery interface {
	CheckConflicts(ctx context.Context, partyID string, start, end time.Time) ([]calendar.Block, error)
}

// Config is the scheduling surface consumed by the search and negotiation
// code. Durations are whole minutes; hours are local wall-clock hours.
type Config struct {
	BusinessOpen     int         // first bookable hour, default 8
	BusinessClose    int         // slots must end by this hour, default 17
	GranularityMin   int         // candidate alignment, default 15
	TopN             int         // ranked slots returned, default 5
	SoftPenalty      int         // score deduction per surviving soft conflict
	AllowedDurations []int       // discrete duration set in minutes
	ValidFrom        time.Time   // zero means unbounded
	ValidUntil       time.Time   // zero means unbounded
	Now              func() time.Time
}

// DefaultConfig returns the stock scheduling configuration.
func DefaultConfig() Config {
	return Config{
		BusinessOpen:     8,
		BusinessClose:    17,
		GranularityMin:   15,
		TopN:             5,
		SoftPenalty:      2,
		AllowedDurations: []int{15, 30, 45, 60, 90, 120},
		Now:              time.Now,
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// businessDay reports whether t falls on a bookable weekday.
func businessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
