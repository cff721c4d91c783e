package negotiation

import (
	"testing"
	"time"
)

func TestTransitionTable(t *testing.T) {
	for _, to := range []Phase{PhaseProposed, PhaseAccepted, PhaseRejected, PhaseExhausted} {
		if err := Transition(PhaseProposed, to); err != nil {
			t.Errorf("proposed → %s should be legal: %v", to, err)
		}
	}

	terminals := []Phase{PhaseAccepted, PhaseRejected, PhaseExhausted}
	for _, from := range terminals {
		for _, to := range []Phase{PhaseProposed, PhaseAccepted, PhaseRejected, PhaseExhausted} {
			if err := Transition(from, to); err == nil {
				t.Errorf("%s → %s should be illegal", from, to)
			}
		}
	}
}

func TestTerminalPhases(t *testing.T) {
	if PhaseProposed.Terminal() {
		t.Errorf("proposed must not be terminal")
	}
	for _, p := range []Phase{PhaseAccepted, PhaseRejected, PhaseExhausted} {
		if !p.Terminal() {
			t.Errorf("%s must be terminal", p)
		}
	}
}

func TestStateAdvanceEnforcesTable(t *testing.T) {
	st := &State{Phase: PhaseProposed}
	if err := st.advance(PhaseAccepted); err != nil {
		t.Fatalf("proposed → accepted: %v", err)
	}
	if err := st.advance(PhaseRejected); err == nil {
		t.Errorf("advancing out of a terminal phase should fail")
	}
	if st.Phase != PhaseAccepted {
		t.Errorf("failed advance must not change the phase, got %s", st.Phase)
	}
}

func TestStateTraceAppends(t *testing.T) {
	st := &State{Phase: PhaseProposed}
	st.record(Step{Round: 0, PartyID: "bob", Action: ActionPropose, ProposedTime: time.Now()})
	st.record(Step{Round: 0, PartyID: "alice", Action: ActionAccept})
	if len(st.Trace) != 2 {
		t.Fatalf("expected 2 trace steps, got %d", len(st.Trace))
	}
	if st.Trace[0].Action != ActionPropose || st.Trace[1].Action != ActionAccept {
		t.Errorf("trace order not preserved")
	}
}

func TestResultAgreed(t *testing.T) {
	if !(&Result{Outcome: PhaseAccepted}).Agreed() {
		t.Errorf("accepted result should report agreement")
	}
	for _, p := range []Phase{PhaseRejected, PhaseExhausted, PhaseProposed} {
		if (&Result{Outcome: p}).Agreed() {
			t.Errorf("%s result must not report agreement", p)
		}
	}
}
