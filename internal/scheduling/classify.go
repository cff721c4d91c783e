package scheduling

import (
	"time"

	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/profile"
)

// Conflict describes one calendar block colliding with a candidate interval.
// The block title and kind are kept so the presentation layer can explain a
// rejection without re-reading the calendar.
type Conflict struct {
	BlockID  string        `json:"block_id"`
	Title    string        `json:"title"`
	Kind     calendar.Kind `json:"kind"`
	Priority int           `json:"priority"`
	Hard     bool          `json:"hard"`
}

// Assessment is the result of classifying a candidate interval against one
// party's calendar.
type Assessment struct {
	Hard      bool       `json:"hard"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// SoftCount returns the number of tolerable conflicts in the assessment.
func (a Assessment) SoftCount() int {
	n := 0
	for _, c := range a.Conflicts {
		if !c.Hard {
			n++
		}
	}
	return n
}

// Soft returns only the tolerable conflicts.
func (a Assessment) Soft() []Conflict {
	var out []Conflict
	for _, c := range a.Conflicts {
		if !c.Hard {
			out = append(out, c)
		}
	}
	return out
}

// Usable reports whether the assessed interval is acceptable under the given
// profile: no hard conflict and the soft-conflict count within tolerance.
func (a Assessment) Usable(p profile.Profile) bool {
	return !a.Hard && a.SoftCount() <= p.SoftTolerance
}

// Classify evaluates the half-open interval [start, end) against a party's
// blocks under its profile. Pure: identical inputs yield identical results.
//
// Rules: focus_time above the profile's priority threshold is a hard
// conflict (unconditionally for profiles that reject any focus overlap),
// immovable busy blocks are hard, flexible blocks are soft. Moveable busy
// and available blocks do not count against the candidate.
func Classify(start, end time.Time, blocks []calendar.Block, p profile.Profile) Assessment {
	var out Assessment
	for _, b := range blocks {
		if !b.Overlaps(start, end) {
			continue
		}
		switch b.Kind {
		case calendar.KindFocusTime:
			if p.RejectAnyFocus || b.Priority > p.PriorityThreshold {
				out.Hard = true
				out.Conflicts = append(out.Conflicts, conflictOf(b, true))
			}
		case calendar.KindBusy:
			if !b.Moveable {
				out.Hard = true
				out.Conflicts = append(out.Conflicts, conflictOf(b, true))
			}
		case calendar.KindFlexible:
			out.Conflicts = append(out.Conflicts, conflictOf(b, false))
		}
	}
	return out
}

func conflictOf(b calendar.Block, hard bool) Conflict {
	return Conflict{
		BlockID:  b.ID,
		Title:    b.Title,
		Kind:     b.Kind,
		Priority: b.Priority,
		Hard:     hard,
	}
}
