package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/parley/internal/calendar"
)

// CheckConflicts returns every block owned by the party that overlaps the
// half-open interval [start, end). Implements scheduling.CalendarQuery.
func (s *Store) CheckConflicts(ctx context.Context, partyID string, start, end time.Time) ([]calendar.Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, party_id, title, start_time, end_time, kind, priority, moveable
		FROM calendar_blocks
		WHERE party_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, partyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query blocks for %s: %w", partyID, err)
	}
	defer rows.Close()

	var blocks []calendar.Block
	for rows.Next() {
		var b calendar.Block
		if err := rows.Scan(&b.ID, &b.PartyID, &b.Title, &b.Start, &b.End, &b.Kind, &b.Priority, &b.Moveable); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ListBlocks returns a party's full calendar ordered by start time.
func (s *Store) ListBlocks(ctx context.Context, partyID string) ([]calendar.Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, party_id, title, start_time, end_time, kind, priority, moveable
		FROM calendar_blocks
		WHERE party_id = $1
		ORDER BY start_time`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list blocks for %s: %w", partyID, err)
	}
	defer rows.Close()

	var blocks []calendar.Block
	for rows.Next() {
		var b calendar.Block
		if err := rows.Scan(&b.ID, &b.PartyID, &b.Title, &b.Start, &b.End, &b.Kind, &b.Priority, &b.Moveable); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// AddCalendarBlock inserts a new block and returns its id.
func (s *Store) AddCalendarBlock(ctx context.Context, b calendar.Block) (string, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if !b.Start.Before(b.End) {
		return "", fmt.Errorf("block %q: start must be before end", b.Title)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO calendar_blocks (id, party_id, title, start_time, end_time, kind, priority, moveable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.PartyID, b.Title, b.Start, b.End, string(b.Kind), b.Priority, b.Moveable)
	if err != nil {
		return "", fmt.Errorf("add block for %s: %w", b.PartyID, err)
	}
	return b.ID, nil
}
