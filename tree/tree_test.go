package tree

import (
	"testing"

	"github.com/samuelfneumann/despot/scenario"
)

func TestNewRootGap(t *testing.T) {
	tr := New()
	set := scenario.NewSet([]scenario.Particle{{ID: 0, State: 1, Weight: 1}})
	idx := tr.NewRoot(set)

	v := tr.V(idx)
	v.L = 1
	v.U = 4
	if got := v.Gap(); got != 3 {
		t.Errorf("Gap() = %v, want 3", got)
	}
	if tr.Root() != idx {
		t.Errorf("Root() = %v, want %v", tr.Root(), idx)
	}
}

func TestQNodeOutcomeMemoization(t *testing.T) {
	tr := New()
	qidx := tr.NewQNode(QNode{Action: 0})
	q := tr.Q(qidx)

	if _, ok := q.Outcome(7); ok {
		t.Fatalf("Outcome(7) ok before SetOutcome")
	}

	want := StepOutcome{Reward: 1.5, Next: "s", Obs: 2, Terminal: true}
	q.SetOutcome(7, want)

	got, ok := q.Outcome(7)
	if !ok {
		t.Fatalf("Outcome(7) not ok after SetOutcome")
	}
	if got != want {
		t.Errorf("Outcome(7) = %+v, want %+v", got, want)
	}
}

func TestNewVNodeChildrenIndependent(t *testing.T) {
	tr := New()
	a := tr.NewVNode(VNode{Depth: 1})
	b := tr.NewVNode(VNode{Depth: 2})
	if a == b {
		t.Fatalf("distinct VNode allocations returned the same index")
	}
	if tr.NumVNodes() != 2 {
		t.Errorf("NumVNodes() = %d, want 2", tr.NumVNodes())
	}
}

func TestCheckInvariantsCatchesBoundViolation(t *testing.T) {
	tr := New()
	tr.NewVNode(VNode{L: 5, U: 1})
	if err := CheckInvariants(tr); err == nil {
		t.Fatalf("CheckInvariants returned nil for L > U")
	}
}

func TestCheckInvariantsPassesOnCleanTree(t *testing.T) {
	tr := New()
	set := scenario.NewSet([]scenario.Particle{{ID: 0, State: 1, Weight: 1}})
	tr.NewRoot(set)
	if err := CheckInvariants(tr); err != nil {
		t.Errorf("CheckInvariants returned %v for a fresh root", err)
	}
}
