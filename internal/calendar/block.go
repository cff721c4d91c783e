package calendar

import (
	"time"
)

// Kind categorizes what a calendar block protects.
type Kind string

const (
	KindBusy      Kind = "busy"
	KindFocusTime Kind = "focus_time"
	KindFlexible  Kind = "flexible"
	KindAvailable Kind = "available"
)

// Block is a single entry on a party's calendar. The interval is half-open:
// [Start, End). Blocks are immutable once created.
type Block struct {
	ID       string    `json:"id"`
	PartyID  string    `json:"party_id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Kind     Kind      `json:"kind"`
	Priority int       `json:"priority"` // 1-10
	Moveable bool      `json:"moveable"`
}

// Overlaps reports whether the block intersects the half-open interval
// [start, end).
func (b Block) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}
