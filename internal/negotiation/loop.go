package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/profile"
	"github.com/nidhogg/parley/internal/scheduling"
	"go.uber.org/zap"
)

// Engine drives the multi-round proposal loop between two or three parties.
// Each run owns its own State; one Engine serves concurrent runs.
type Engine struct {
	searcher      *scheduling.Searcher
	query         scheduling.CalendarQuery
	maxRounds     int
	lookaheadDays int
	logger        *zap.Logger
}

// NewEngine creates a negotiation engine. lookaheadDays bounds the window a
// rejecting party searches for counter-proposals.
func NewEngine(searcher *scheduling.Searcher, query scheduling.CalendarQuery, maxRounds, lookaheadDays int, logger *zap.Logger) *Engine {
	return &Engine{
		searcher:      searcher,
		query:         query,
		maxRounds:     maxRounds,
		lookaheadDays: lookaheadDays,
		logger:        logger,
	}
}

// Run executes the negotiation to a terminal phase. The initial state is the
// initiator proposing the intent's preferred start at round 0. Responders
// evaluate in the fixed order the parties were given; the first rejecting
// responder counter-proposes from its own calendar or ends the run.
//
// A returned error is always an input-validation or infrastructure failure;
// a negotiation that simply found no agreement returns a Result with a
// Rejected or Exhausted outcome and a nil error.
func (e *Engine) Run(ctx context.Context, intent scheduling.MeetingIntent, parties []scheduling.Party) (*Result, error) {
	if err := scheduling.ValidateIntent(intent, e.searcher.Config()); err != nil {
		return nil, err
	}
	if err := checkInitiator(intent, parties); err != nil {
		return nil, err
	}

	duration := time.Duration(intent.DurationMin) * time.Minute
	st := &State{
		Phase:        PhaseProposed,
		Round:        0,
		ProposedTime: intent.PreferredStart,
		ProposerID:   intent.InitiatorID,
	}
	st.record(Step{
		Round:        0,
		PartyID:      st.ProposerID,
		Action:       ActionPropose,
		ProposedTime: st.ProposedTime,
		Reason:       "initial proposal at preferred time",
		Confidence:   e.confidence(ctx, st.ProposedTime, duration, findParty(parties, st.ProposerID)),
	})

	for {
		rejector, err := e.evaluateRound(ctx, st, duration, parties)
		if err != nil {
			return nil, err
		}

		if rejector == nil {
			if err := st.advance(PhaseAccepted); err != nil {
				return nil, err
			}
			e.logger.Info("negotiation agreed",
				zap.String("title", intent.Title),
				zap.Time("start", st.ProposedTime),
				zap.Int("rounds", st.Round))
			return &Result{
				Outcome:    PhaseAccepted,
				FinalStart: st.ProposedTime,
				FinalEnd:   st.ProposedTime.Add(duration),
				Rounds:     st.Round,
				Trace:      st.Trace,
			}, nil
		}

		if st.Round >= e.maxRounds {
			if err := st.advance(PhaseExhausted); err != nil {
				return nil, err
			}
			st.record(Step{
				Round:   st.Round,
				PartyID: rejector.ID,
				Action:  ActionExhaust,
				Reason:  fmt.Sprintf("round limit of %d reached without agreement", e.maxRounds),
			})
			return &Result{
				Outcome: PhaseExhausted,
				Rounds:  st.Round,
				Reason:  "negotiation rounds exhausted",
				Trace:   st.Trace,
			}, nil
		}

		counter, err := e.counterPropose(ctx, intent, st.ProposedTime, *rejector)
		if err != nil {
			return nil, err
		}
		if counter == nil {
			if err := st.advance(PhaseRejected); err != nil {
				return nil, err
			}
			// The rejection itself is already on the trace; this step records
			// that the rejector found nothing to counter with.
			st.record(Step{
				Round:   st.Round,
				PartyID: rejector.ID,
				Action:  ActionAbandon,
				Reason:  "no alternative available",
			})
			return &Result{
				Outcome: PhaseRejected,
				Rounds:  st.Round,
				Reason:  "no alternative available",
				Trace:   st.Trace,
			}, nil
		}

		if err := st.advance(PhaseProposed); err != nil {
			return nil, err
		}
		st.Round++
		st.ProposedTime = counter.Start
		st.ProposerID = rejector.ID
		st.record(Step{
			Round:        st.Round,
			PartyID:      rejector.ID,
			Action:       ActionCounter,
			ProposedTime: counter.Start,
			Reason:       fmt.Sprintf("counter-proposal %s from rejected time", counter.Start.Format("Mon 15:04")),
			Confidence:   e.confidence(ctx, counter.Start, duration, rejector),
		})
		e.logger.Debug("counter-proposed",
			zap.String("party", rejector.ID),
			zap.Time("time", counter.Start),
			zap.Int("round", st.Round))
	}
}

// evaluateRound has every responder classify the current proposal against
// its own calendar. It returns the first rejecting party, or nil when all
// responders accept. Accept and reject steps are recorded on the trace.
func (e *Engine) evaluateRound(ctx context.Context, st *State, duration time.Duration, parties []scheduling.Party) (*scheduling.Party, error) {
	end := st.ProposedTime.Add(duration)
	for i := range parties {
		p := parties[i]
		if p.ID == st.ProposerID {
			continue
		}
		blocks, err := e.query.CheckConflicts(ctx, p.ID, st.ProposedTime, end)
		if err != nil {
			return nil, &scheduling.InfraError{
				Op:  fmt.Sprintf("calendar query for %s", p.ID),
				Err: err,
			}
		}
		a := scheduling.Classify(st.ProposedTime, end, blocks, p.Profile)
		if !a.Usable(p.Profile) {
			st.record(Step{
				Round:        st.Round,
				PartyID:      p.ID,
				Action:       ActionReject,
				ProposedTime: st.ProposedTime,
				Reason:       rejectionReason(a, p.Profile.SoftTolerance),
				Conflicts:    a.Conflicts,
			})
			return &parties[i], nil
		}
		st.record(Step{
			Round:        st.Round,
			PartyID:      p.ID,
			Action:       ActionAccept,
			ProposedTime: st.ProposedTime,
			Reason:       acceptanceReason(a),
			Conflicts:    a.Conflicts,
			Confidence:   confidenceFrom(a, p.Profile, st.ProposedTime),
		})
	}
	return nil, nil
}

// counterPropose searches the rejecting party's own calendar for the best
// usable slot inside the bounded look-ahead window. Returns nil when the
// window holds nothing usable.
func (e *Engine) counterPropose(ctx context.Context, intent scheduling.MeetingIntent, rejected time.Time, rejector scheduling.Party) (*scheduling.CandidateSlot, error) {
	from := rejected
	to := rejected.AddDate(0, 0, e.lookaheadDays)
	slots, err := e.searcher.FindSlots(ctx, intent.DurationMin, rejected, []scheduling.Party{rejector}, from, to)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		// Re-proposing the exact rejected instant would loop.
		if !slots[i].Start.Equal(rejected) {
			return &slots[i], nil
		}
	}
	return nil, nil
}

// confidence scores how comfortable a party is with proposing the given
// time: conflict-free calendars and flexible personalities raise it, and a
// slot landing in the party's preferred hours adds a nudge.
func (e *Engine) confidence(ctx context.Context, start time.Time, duration time.Duration, p *scheduling.Party) float64 {
	if p == nil {
		return 0
	}
	blocks, err := e.query.CheckConflicts(ctx, p.ID, start, start.Add(duration))
	if err != nil {
		return 0
	}
	a := scheduling.Classify(start, start.Add(duration), blocks, p.Profile)
	return confidenceFrom(a, p.Profile, start)
}

// confidenceFrom derives the proposal confidence from an assessment and the
// party's personality. The constants come from the original tuning: 0.5
// base, +0.3 when conflict-free, up to +0.2 from flexibility, +0.1 for a
// preferred hour, capped at 1.0.
func confidenceFrom(a scheduling.Assessment, p profile.Profile, start time.Time) float64 {
	c := 0.5
	if len(a.Conflicts) == 0 {
		c += 0.3
	}
	c += float64(p.Flexibility) / 10 * 0.2
	if p.WeightFor(start.Hour()) > 0 {
		c += 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// rejectionReason summarizes why an assessment was unusable. Hard conflicts
// name the first offending block; otherwise the soft-conflict budget was
// exceeded.
func rejectionReason(a scheduling.Assessment, tolerance int) string {
	for _, c := range a.Conflicts {
		if c.Hard {
			switch c.Kind {
			case calendar.KindFocusTime:
				return fmt.Sprintf("conflicts with protected focus time: %s", c.Title)
			default:
				return fmt.Sprintf("conflicts with fixed meeting: %s", c.Title)
			}
		}
	}
	return fmt.Sprintf("%d soft conflicts exceed tolerance of %d", a.SoftCount(), tolerance)
}

func acceptanceReason(a scheduling.Assessment) string {
	if n := a.SoftCount(); n > 0 {
		return fmt.Sprintf("acceptable despite %d flexible conflict(s)", n)
	}
	return "no conflicts on calendar"
}

func findParty(parties []scheduling.Party, id string) *scheduling.Party {
	for i := range parties {
		if parties[i].ID == id {
			return &parties[i]
		}
	}
	return nil
}

// checkInitiator verifies the initiator is one of the participating parties.
func checkInitiator(intent scheduling.MeetingIntent, parties []scheduling.Party) error {
	if findParty(parties, intent.InitiatorID) == nil {
		return &scheduling.ValidationError{
			Field:  "initiator_id",
			Reason: fmt.Sprintf("initiator %q is not a participant", intent.InitiatorID),
		}
	}
	return nil
}
