package store

import (
	"context"
	"errors"
	"testing"
	"time"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/negotiation"
)

// startPostgres starts a PostgreSQL testcontainer and returns a migrated
// Store plus a cleanup func.
func startPostgres(t *testing.T) (*Store, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("parley_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("pg connection string: %v", err)
	}

	s, err := New(dsn, zap.NewNop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("connect store: %v", err)
	}
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		s.Close()
		container.Terminate(ctx)
		t.Fatalf("migrate: %v", err)
	}

	return s, func() {
		s.Close()
		container.Terminate(ctx)
	}
}

func TestStoreCalendarRoundtrip(t *testing.T) {
	s, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.AddCalendarBlock(ctx, calendar.Block{
		PartyID: "bob", Title: "Standup",
		Start: start, End: start.Add(30 * time.Minute),
		Kind: calendar.KindBusy, Priority: 8, Moveable: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a generated block id")
	}

	// Overlapping query finds it, adjacent query does not.
	hits, err := s.CheckConflicts(ctx, "bob", start.Add(15*time.Minute), start.Add(45*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != id {
		t.Fatalf("expected the standup block, got %d hits", len(hits))
	}
	none, err := s.CheckConflicts(ctx, "bob", start.Add(30*time.Minute), start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("half-open adjacency should not conflict, got %d", len(none))
	}

	// Wrong party sees nothing.
	other, err := s.CheckConflicts(ctx, "alice", start, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("alice should not see bob's blocks")
	}

	if _, err := s.AddCalendarBlock(ctx, calendar.Block{
		PartyID: "bob", Title: "Backwards",
		Start: start.Add(time.Hour), End: start,
		Kind: calendar.KindBusy,
	}); err == nil {
		t.Errorf("inverted interval should be rejected")
	}
}

func TestStoreCommitSchedule(t *testing.T) {
	s, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	participants := []Participant{{PartyID: "bob", AgentRef: "agent://bob"}, {PartyID: "alice", AgentRef: "agent://alice"}}

	meetingID, err := s.CreateMeeting(ctx, calendar.Meeting{
		InitiatorID: "bob", Title: "Planning",
		DurationMin: 60, PreferredStart: start, PreferredEnd: end, Priority: 7,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Bob registered before the commit under a stale agent ref; the commit's
	// upsert refreshes it rather than duplicating the row.
	if err := s.AddParticipant(ctx, meetingID, "bob", "agent://bob-old"); err != nil {
		t.Fatal(err)
	}

	if err := s.CommitSchedule(ctx, meetingID, "Planning", start, end, participants); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM meeting_participants WHERE meeting_id = $1`, meetingID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 participant rows, got %d", count)
	}
	var ref string
	if err := s.db.QueryRow(ctx, `SELECT agent_ref FROM meeting_participants WHERE meeting_id = $1 AND party_id = 'bob'`, meetingID).Scan(&ref); err != nil {
		t.Fatal(err)
	}
	if ref != "agent://bob" {
		t.Errorf("agent ref not refreshed on commit: %q", ref)
	}

	// The meeting is scheduled and the slot is claimed on both calendars.
	meetings, err := s.ListMeetings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(meetings) != 1 || meetings[0].Status != calendar.MeetingScheduled {
		t.Fatalf("expected one scheduled meeting, got %+v", meetings)
	}
	if meetings[0].FinalStart == nil || !meetings[0].FinalStart.Equal(start) {
		t.Errorf("final start not recorded")
	}
	for _, p := range participants {
		blocks, err := s.ListBlocks(ctx, p.PartyID)
		if err != nil {
			t.Fatal(err)
		}
		if len(blocks) != 1 || blocks[0].Title != "Meeting: Planning" || blocks[0].Moveable {
			t.Errorf("expected an immovable claim block for %s, got %+v", p.PartyID, blocks)
		}
	}

	// A second commit over the same interval loses the race.
	secondID, err := s.CreateMeeting(ctx, calendar.Meeting{
		InitiatorID: "bob", Title: "Clash",
		DurationMin: 60, PreferredStart: start, PreferredEnd: end, Priority: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = s.CommitSchedule(ctx, secondID, "Clash", start.Add(30*time.Minute), end.Add(30*time.Minute), participants)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// The losing meeting stays pending and claims no calendar space.
	blocks, err := s.ListBlocks(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Errorf("failed commit must not leave partial blocks, got %d", len(blocks))
	}

	// Cancellation is a plain status flip.
	if err := s.SetStatus(ctx, meetingID, calendar.MeetingCancelled, time.Time{}); err != nil {
		t.Fatal(err)
	}
	meetings, err = s.ListMeetings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range meetings {
		if m.ID == meetingID && m.Status != calendar.MeetingCancelled {
			t.Errorf("status not updated: %s", m.Status)
		}
	}
}

func TestStoreNegotiationRoundtrip(t *testing.T) {
	s, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC)
	result := &negotiation.Result{
		Outcome:    negotiation.PhaseAccepted,
		FinalStart: start,
		FinalEnd:   start.Add(time.Hour),
		Rounds:     2,
		Trace: []negotiation.Step{
			{Round: 0, PartyID: "bob", Action: negotiation.ActionPropose, ProposedTime: start, Confidence: 0.94},
			{Round: 0, PartyID: "alice", Action: negotiation.ActionAccept, ProposedTime: start},
		},
	}

	id, err := s.SaveNegotiation(ctx, "", result)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := s.GetNegotiation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != negotiation.PhaseAccepted || rec.Rounds != 2 {
		t.Errorf("outcome/rounds not preserved: %+v", rec)
	}
	if len(rec.Trace) != 2 || rec.Trace[0].Action != negotiation.ActionPropose {
		t.Errorf("trace not preserved: %+v", rec.Trace)
	}
	if rec.FinalStart == nil || !rec.FinalStart.Equal(start) {
		t.Errorf("final start not preserved")
	}

	all, err := s.ListNegotiations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected one record, got %d", len(all))
	}
}
