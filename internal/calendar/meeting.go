package calendar

import (
	"time"
)

// MeetingStatus tracks a meeting through its lifecycle.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Meeting is a persisted meeting record.
type Meeting struct {
	ID             string        `json:"id"`
	InitiatorID    string        `json:"initiator_id"`
	Title          string        `json:"title"`
	DurationMin    int           `json:"duration_minutes"`
	PreferredStart time.Time     `json:"preferred_start"`
	PreferredEnd   time.Time     `json:"preferred_end"`
	Priority       int           `json:"priority"`
	Status         MeetingStatus `json:"status"`
	FinalStart     *time.Time    `json:"final_start,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Participant links a party (and its agent address, if any) to a meeting.
type Participant struct {
	MeetingID string `json:"meeting_id"`
	PartyID   string `json:"party_id"`
	AgentRef  string `json:"agent_ref,omitempty"`
}
