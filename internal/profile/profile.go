package profile

import (
	"fmt"
	"strings"
)

// Profile is a negotiation personality: how willing a party is to accept a
// slot that collides with something already on its calendar. Profiles are
// plain data records selected from a closed set at agent construction time
// and never mutated during a negotiation.
type Profile struct {
	Name string `json:"name"`

	// Flexibility is the 1-10 willingness-to-compromise scale. It feeds the
	// confidence score attached to proposals, not the accept/reject rule.
	Flexibility int `json:"flexibility"`

	// PriorityThreshold is the minimum focus_time block priority that counts
	// as a hard conflict.
	PriorityThreshold int `json:"priority_threshold"`

	// SoftTolerance is the maximum number of simultaneous soft conflicts the
	// party will absorb before refusing a slot.
	SoftTolerance int `json:"soft_tolerance"`

	// RejectAnyFocus makes every focus_time overlap a hard conflict
	// regardless of priority. The focused profile sets this.
	RejectAnyFocus bool `json:"reject_any_focus"`

	// HourWeights is the preferred-hour-of-day weighting: a score adjustment
	// applied when ranking slots for this party. Hours absent from the map
	// weigh zero.
	HourWeights map[int]int `json:"hour_weights,omitempty"`
}

// WeightFor returns the preferred-hour adjustment for the given hour of day.
func (p Profile) WeightFor(hour int) int {
	return p.HourWeights[hour]
}

var morningWeights = map[int]int{9: 4, 10: 4, 11: 3}
var afternoonWeights = map[int]int{14: 4, 15: 4, 16: 3}

// catalog is the closed set of named profiles. Values mirror the negotiation
// behavior each personality is meant to exhibit: strict tolerates nothing,
// flexible absorbs up to two soft conflicts, focused guards deep work
// unconditionally.
var catalog = map[string]Profile{
	"collaborative": {
		Name:              "collaborative",
		Flexibility:       7,
		PriorityThreshold: 6,
		SoftTolerance:     1,
	},
	"strict": {
		Name:              "strict",
		Flexibility:       3,
		PriorityThreshold: 8,
		SoftTolerance:     0,
	},
	"flexible": {
		Name:              "flexible",
		Flexibility:       9,
		PriorityThreshold: 3,
		SoftTolerance:     2,
	},
	"focused": {
		Name:              "focused",
		Flexibility:       4,
		PriorityThreshold: 7,
		SoftTolerance:     1,
		RejectAnyFocus:    true,
		HourWeights:       afternoonWeights,
	},
	"analytical": {
		Name:              "analytical",
		Flexibility:       5,
		PriorityThreshold: 5,
		SoftTolerance:     1,
		HourWeights:       morningWeights,
	},
}

// Lookup returns the named profile. Unknown names are an error rather than a
// silent fallback so misconfigured parties fail loudly at startup.
func Lookup(name string) (Profile, error) {
	p, ok := catalog[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the catalog's profile names in stable order.
func Names() []string {
	return []string{"analytical", "collaborative", "flexible", "focused", "strict"}
}

// All returns the full catalog in Names order.
func All() []Profile {
	out := make([]Profile, 0, len(catalog))
	for _, n := range Names() {
		out = append(out, catalog[n])
	}
	return out
}
