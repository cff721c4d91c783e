package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nidhogg/parley/internal/calendar"
	"go.uber.org/zap"
)

// execer lets the participant upsert run on the pool or inside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertParticipant(ctx context.Context, db execer, meetingID, partyID, agentRef string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO meeting_participants (meeting_id, party_id, agent_ref)
		VALUES ($1, $2, $3)
		ON CONFLICT (meeting_id, party_id) DO UPDATE SET agent_ref = EXCLUDED.agent_ref`,
		meetingID, partyID, agentRef)
	if err != nil {
		return fmt.Errorf("add participant %s to %s: %w", partyID, meetingID, err)
	}
	return nil
}

// CreateMeeting inserts a meeting record and returns its id.
func (s *Store) CreateMeeting(ctx context.Context, m calendar.Meeting) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = calendar.MeetingPending
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO meetings (id, initiator_id, title, duration_minutes, preferred_start, preferred_end, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.InitiatorID, m.Title, m.DurationMin, m.PreferredStart, m.PreferredEnd, m.Priority, string(m.Status))
	if err != nil {
		return "", fmt.Errorf("create meeting %q: %w", m.Title, err)
	}
	return m.ID, nil
}

// AddParticipant links a party to a meeting, updating the agent reference on
// re-registration. Scheduling goes through CommitSchedule, which writes
// participants itself; this covers registration ahead of a commit.
func (s *Store) AddParticipant(ctx context.Context, meetingID, partyID, agentRef string) error {
	return upsertParticipant(ctx, s.db, meetingID, partyID, agentRef)
}

// SetStatus updates a meeting's status and, when scheduled, its final time.
func (s *Store) SetStatus(ctx context.Context, meetingID string, status calendar.MeetingStatus, finalTime time.Time) error {
	var final *time.Time
	if !finalTime.IsZero() {
		final = &finalTime
	}
	_, err := s.db.Exec(ctx, `
		UPDATE meetings SET status = $1, final_start = $2 WHERE id = $3`,
		string(status), final, meetingID)
	if err != nil {
		return fmt.Errorf("set status of %s: %w", meetingID, err)
	}
	return nil
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]calendar.Meeting, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, initiator_id, title, duration_minutes, preferred_start, preferred_end, priority, status, final_start, created_at
		FROM meetings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []calendar.Meeting
	for rows.Next() {
		var m calendar.Meeting
		if err := rows.Scan(&m.ID, &m.InitiatorID, &m.Title, &m.DurationMin, &m.PreferredStart,
			&m.PreferredEnd, &m.Priority, &m.Status, &m.FinalStart, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Participant holds one committed attendee.
type Participant struct {
	PartyID  string
	AgentRef string
}

// CommitSchedule persists an agreed slot atomically: it re-validates that
// [start, end) is still free of immovable blocks for every participant,
// marks the meeting scheduled, and inserts the busy blocks that claim the
// slot. A concurrent commit that got there first surfaces as ErrSlotTaken,
// and the caller may re-run the search rather than double-book.
func (s *Store) CommitSchedule(ctx context.Context, meetingID, title string, start, end time.Time, participants []Participant) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range participants {
		var n int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM calendar_blocks
			WHERE party_id = $1 AND start_time < $3 AND end_time > $2
			  AND ((kind = 'busy' AND NOT moveable) OR kind = 'focus_time')`,
			p.PartyID, start, end).Scan(&n)
		if err != nil {
			return fmt.Errorf("revalidate slot for %s: %w", p.PartyID, err)
		}
		if n > 0 {
			return fmt.Errorf("commit %s for %s: %w", meetingID, p.PartyID, ErrSlotTaken)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE meetings SET status = 'scheduled', final_start = $1 WHERE id = $2`,
		start, meetingID); err != nil {
		return fmt.Errorf("mark scheduled %s: %w", meetingID, err)
	}

	for _, p := range participants {
		if err := upsertParticipant(ctx, tx, meetingID, p.PartyID, p.AgentRef); err != nil {
			return err
		}
		// The committed slot becomes an immovable busy block on each calendar.
		if _, err := tx.Exec(ctx, `
			INSERT INTO calendar_blocks (id, party_id, title, start_time, end_time, kind, priority, moveable)
			VALUES ($1, $2, $3, $4, $5, 'busy', 8, false)`,
			uuid.New().String(), p.PartyID, "Meeting: "+title, start, end); err != nil {
			return fmt.Errorf("insert busy block for %s: %w", p.PartyID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schedule %s: %w", meetingID, err)
	}
	s.logger.Info("meeting committed",
		zap.String("meeting", meetingID),
		zap.Time("start", start),
		zap.Int("participants", len(participants)))
	return nil
}
