package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/parley/internal/negotiation"
)

// NegotiationRecord is a persisted negotiation run with its full trace.
type NegotiationRecord struct {
	ID         string            `json:"id"`
	MeetingID  string            `json:"meeting_id"`
	Outcome    negotiation.Phase `json:"outcome"`
	Rounds     int               `json:"rounds"`
	FinalStart *time.Time        `json:"final_start,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Trace      []negotiation.Step `json:"trace"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SaveNegotiation persists a completed run and returns its id. The trace is
// stored as JSON alongside the structured outcome columns.
func (s *Store) SaveNegotiation(ctx context.Context, meetingID string, r *negotiation.Result) (string, error) {
	id := uuid.New().String()
	trace, err := json.Marshal(r.Trace)
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	var final *time.Time
	if r.Agreed() {
		final = &r.FinalStart
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO negotiations (id, meeting_id, outcome, rounds, final_start, reason, trace)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, meetingID, string(r.Outcome), r.Rounds, final, r.Reason, trace)
	if err != nil {
		return "", fmt.Errorf("save negotiation for %s: %w", meetingID, err)
	}
	return id, nil
}

// GetNegotiation retrieves one run by id.
func (s *Store) GetNegotiation(ctx context.Context, id string) (*NegotiationRecord, error) {
	rec := &NegotiationRecord{}
	var trace []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, meeting_id, outcome, rounds, final_start, reason, trace, created_at
		FROM negotiations WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.MeetingID, &rec.Outcome, &rec.Rounds, &rec.FinalStart, &rec.Reason, &trace, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get negotiation %s: %w", id, err)
	}
	if err := json.Unmarshal(trace, &rec.Trace); err != nil {
		return nil, fmt.Errorf("decode trace of %s: %w", id, err)
	}
	return rec, nil
}

// ListNegotiations returns all runs, newest first.
func (s *Store) ListNegotiations(ctx context.Context) ([]*NegotiationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, meeting_id, outcome, rounds, final_start, reason, trace, created_at
		FROM negotiations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	var out []*NegotiationRecord
	for rows.Next() {
		rec := &NegotiationRecord{}
		var trace []byte
		if err := rows.Scan(&rec.ID, &rec.MeetingID, &rec.Outcome, &rec.Rounds, &rec.FinalStart,
			&rec.Reason, &trace, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		if err := json.Unmarshal(trace, &rec.Trace); err != nil {
			return nil, fmt.Errorf("decode trace of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
