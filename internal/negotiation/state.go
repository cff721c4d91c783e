package negotiation

import (
	"fmt"
	"time"

	"github.com/nidhogg/parley/internal/scheduling"
)

// Phase is the state of a negotiation run.
type Phase string

const (
	PhaseProposed  Phase = "proposed"
	PhaseAccepted  Phase = "accepted"
	PhaseRejected  Phase = "rejected"
	PhaseExhausted Phase = "exhausted"
)

// Terminal reports whether the phase ends the negotiation.
func (p Phase) Terminal() bool {
	return p == PhaseAccepted || p == PhaseRejected || p == PhaseExhausted
}

// validTransitions defines allowed state transitions. Terminal phases have
// no outgoing edges.
var validTransitions = map[Phase][]Phase{
	PhaseProposed: {PhaseProposed, PhaseAccepted, PhaseRejected, PhaseExhausted},
}

// Transition returns nil if from→to is a legal transition.
func Transition(from, to Phase) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, p := range allowed {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// Action is what a party did in one negotiation step.
type Action string

const (
	ActionPropose Action = "propose"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCounter Action = "counter"
	ActionAbandon Action = "abandon"
	ActionExhaust Action = "exhaust"
)

// Step is one recorded transition in the negotiation trace. The trace is
// part of the result so a presentation layer can reconstruct the reasoning
// without replaying the run.
type Step struct {
	Round        int                    `json:"round"`
	PartyID      string                 `json:"party_id"`
	Action       Action                 `json:"action"`
	ProposedTime time.Time              `json:"proposed_time"`
	Reason       string                 `json:"reason"`
	Conflicts    []scheduling.Conflict  `json:"conflicts,omitempty"`
	Confidence   float64                `json:"confidence,omitempty"`
}

// State is the live negotiation state. Created at round 0 and discarded on
// the terminal transition; the round counter only ever increases.
type State struct {
	Phase        Phase     `json:"phase"`
	Round        int       `json:"round"`
	ProposedTime time.Time `json:"proposed_time"`
	ProposerID   string    `json:"proposer_id"`
	Trace        []Step    `json:"trace"`
}

// advance moves the state machine to the next phase, enforcing the
// transition table.
func (s *State) advance(to Phase) error {
	if err := Transition(s.Phase, to); err != nil {
		return err
	}
	s.Phase = to
	return nil
}

// record appends a step to the trace.
func (s *State) record(step Step) {
	s.Trace = append(s.Trace, step)
}

// Result is the outcome of one negotiation run. Rejected and Exhausted are
// legitimate outcomes, not errors.
type Result struct {
	Outcome    Phase     `json:"outcome"`
	FinalStart time.Time `json:"final_start,omitempty"`
	FinalEnd   time.Time `json:"final_end,omitempty"`
	Rounds     int       `json:"rounds"`
	Reason     string    `json:"reason,omitempty"`
	Trace      []Step    `json:"trace"`
}

// Agreed reports whether the run converged on a time.
func (r *Result) Agreed() bool { return r.Outcome == PhaseAccepted }
