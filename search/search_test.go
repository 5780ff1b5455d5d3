package search

import (
	"math"
	"testing"

	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/rstream"
	"github.com/samuelfneumann/despot/scenario"
	"github.com/samuelfneumann/despot/tree"
)

// countingProblem is a trivial two-action, two-observation problem:
// action 0 ("safe") always pays 1 and terminates after depth 2, action
// 1 ("risky") pays 5 but only half the time, 0 the other half, and
// never terminates on its own.
type countingProblem struct{}

func (countingProblem) NumActions() int { return 2 }

func (countingProblem) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	depth := s.(int)
	if a == 0 {
		return 1, depth + 1, 0, depth+1 >= 2
	}
	if u < 0.5 {
		return 5, depth + 1, 0, false
	}
	return 0, depth + 1, 1, false
}

func newParticles(root *rstream.Root, n int) []scenario.Particle {
	particles := make([]scenario.Particle, n)
	for i := 0; i < n; i++ {
		particles[i] = scenario.Particle{ID: i, State: 0, Weight: 1.0 / float64(n), Stream: root.Scenario(i)}
	}
	return particles
}

func newTestRunner() *Runner {
	registry := bound.NewRegistry(func(scenario.State, int) float64 { return 5 }, 0.9, 0, 10)
	lower, _ := registry.Lower("DEFAULT")
	upper, _ := registry.Upper("DEFAULT")
	return &Runner{
		Problem:     countingProblem{},
		Lower:       lower,
		Upper:       upper,
		Discount:    0.9,
		Xi:          0.95,
		Lambda:      0,
		SearchDepth: 5,
	}
}

func TestTrialExpandsExactlyOneLeaf(t *testing.T) {
	root := rstream.NewRoot(1)
	r := newTestRunner()
	tr := tree.New()
	rootIdx := r.NewRoot(tr, newParticles(root, 20))

	before := tr.NumVNodes()
	r.Trial(tr)
	after := tr.NumVNodes()

	if after <= before {
		t.Fatalf("Trial did not expand any new VNode: before=%d after=%d", before, after)
	}
	if rv := tr.V(rootIdx); !rv.Expanded {
		t.Fatalf("root not expanded after one trial")
	}
	expanded := 0
	for vi := 0; vi < tr.NumVNodes(); vi++ {
		if tr.V(tree.NodeIndex(vi)).Expanded {
			expanded++
		}
	}
	if expanded != 1 {
		t.Errorf("%d VNodes expanded after one trial, want exactly 1", expanded)
	}
}

func TestRepeatedTrialsShrinkGap(t *testing.T) {
	root := rstream.NewRoot(2)
	r := newTestRunner()
	tr := tree.New()
	rootIdx := r.NewRoot(tr, newParticles(root, 30))

	initialGap := tr.V(rootIdx).Gap()
	for i := 0; i < 50; i++ {
		r.Trial(tr)
	}
	finalGap := tr.V(rootIdx).Gap()

	if finalGap >= initialGap {
		t.Errorf("gap did not shrink: %v before, %v after 50 trials", initialGap, finalGap)
	}
}

func TestBoundMonotonicityHolds(t *testing.T) {
	root := rstream.NewRoot(3)
	r := newTestRunner()
	tr := tree.New()
	r.NewRoot(tr, newParticles(root, 15))

	for i := 0; i < 30; i++ {
		r.Trial(tr)
	}
	if err := tree.CheckInvariants(tr); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestQNodeBackupIsExact(t *testing.T) {
	root := rstream.NewRoot(8)
	r := newTestRunner()
	tr := tree.New()
	r.NewRoot(tr, newParticles(root, 20))

	for i := 0; i < 30; i++ {
		r.Trial(tr)
	}

	for vi := 0; vi < tr.NumVNodes(); vi++ {
		v := tr.V(tree.NodeIndex(vi))
		if !v.Expanded {
			continue
		}
		for _, qidx := range v.Children {
			q := tr.Q(qidx)
			var sumL, sumU float64
			for _, cidx := range q.Children {
				c := tr.V(cidx)
				sumL += c.L
				sumU += c.U
			}
			if wantL := q.R + r.Discount*sumL; math.Abs(q.L-wantL) > 1e-9 {
				t.Fatalf("qnode backup not exact: L = %v, want %v", q.L, wantL)
			}
			if wantU := q.R + r.Discount*sumU; math.Abs(q.U-wantU) > 1e-9 {
				t.Fatalf("qnode backup not exact: U = %v, want %v", q.U, wantU)
			}
			wantReg := q.U - r.Lambda*v.Scenarios.TotalWeight()
			if math.Abs(q.RegularizedU-wantReg) > 1e-9 {
				t.Fatalf("regularized upper bound = %v, want %v", q.RegularizedU, wantReg)
			}
		}
	}
}

// countingWrapper counts model invocations so tests can assert that
// revisiting trials reuse memoized outcomes instead of re-stepping.
type countingWrapper struct {
	inner Problem
	steps int
}

func (c *countingWrapper) NumActions() int { return c.inner.NumActions() }

func (c *countingWrapper) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	c.steps++
	return c.inner.Step(s, u, a)
}

func TestRevisitingTrialsNeverReinvokeModel(t *testing.T) {
	root := rstream.NewRoot(4)
	counter := &countingWrapper{inner: countingProblem{}}
	r := newTestRunner()
	r.Problem = counter
	r.SearchDepth = 2
	tr := tree.New()
	r.NewRoot(tr, newParticles(root, 5))

	// The tree is finite at this depth; enough trials fully expand it.
	for i := 0; i < 200; i++ {
		r.Trial(tr)
	}
	vnodes, steps := tr.NumVNodes(), counter.steps

	for i := 0; i < 50; i++ {
		r.Trial(tr)
	}
	if tr.NumVNodes() != vnodes {
		t.Fatalf("tree kept growing after %d trials: %d -> %d vnodes", 200, vnodes, tr.NumVNodes())
	}
	if counter.steps != steps {
		t.Errorf("model re-invoked on revisits: %d Step calls grew to %d with no new expansion", steps, counter.steps)
	}
}

// singleObsProblem always emits observation 0, so every expansion
// produces Q-nodes with exactly one observation child.
type singleObsProblem struct{}

func (singleObsProblem) NumActions() int { return 2 }

func (singleObsProblem) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	depth := s.(int)
	return float64(a), depth + 1, 0, depth+1 >= 3
}

func TestSingleObservationYieldsOneChildPerQNode(t *testing.T) {
	root := rstream.NewRoot(5)
	registry := bound.NewRegistry(func(scenario.State, int) float64 { return 1 }, 0.9, 0, 5)
	lower, _ := registry.Lower("DEFAULT")
	upper, _ := registry.Upper("DEFAULT")
	r := &Runner{
		Problem: singleObsProblem{}, Lower: lower, Upper: upper,
		Discount: 0.9, Xi: 0.95, SearchDepth: 3,
	}
	tr := tree.New()
	r.NewRoot(tr, newParticles(root, 10))

	for i := 0; i < 20; i++ {
		r.Trial(tr)
	}

	for qi := 0; qi < tr.NumQNodes(); qi++ {
		q := tr.Q(tree.NodeIndex(qi))
		if len(q.Children) != 1 {
			t.Fatalf("qnode %d has %d observation children, want 1", qi, len(q.Children))
		}
	}
	if err := tree.CheckInvariants(tr); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

// absorbedProblem has a single state that is terminal from the start.
type absorbedProblem struct{}

func (absorbedProblem) NumActions() int { return 2 }

func (absorbedProblem) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	return 0, s, 0, true
}

func (absorbedProblem) IsTerminal(s scenario.State) bool { return true }

func TestTerminalRootIsNeverExpanded(t *testing.T) {
	root := rstream.NewRoot(6)
	registry := bound.NewRegistry(func(scenario.State, int) float64 { return 0 }, 0.9, 0, 5)
	lower, _ := registry.Lower("DEFAULT")
	upper, _ := registry.Upper("DEFAULT")
	r := &Runner{
		Problem: absorbedProblem{}, Lower: lower, Upper: upper,
		Discount: 0.9, Xi: 0.95, SearchDepth: 5,
	}
	tr := tree.New()
	rootIdx := r.NewRoot(tr, newParticles(root, 5))

	if !tr.V(rootIdx).Terminal {
		t.Fatalf("root with all-terminal scenarios not flagged terminal")
	}
	for i := 0; i < 5; i++ {
		r.Trial(tr)
	}
	if tr.NumVNodes() != 1 || tr.NumQNodes() != 0 {
		t.Errorf("terminal root grew a tree: %d vnodes, %d qnodes, want 1 and 0",
			tr.NumVNodes(), tr.NumQNodes())
	}
}

func TestTrialDoesNotReexpandExpandedLeaf(t *testing.T) {
	root := rstream.NewRoot(7)
	r := newTestRunner()
	r.SearchDepth = 1
	tr := tree.New()
	r.NewRoot(tr, newParticles(root, 10))

	r.Trial(tr)
	vnodes, qnodes := tr.NumVNodes(), tr.NumQNodes()

	r.Trial(tr)
	if tr.NumVNodes() != vnodes || tr.NumQNodes() != qnodes {
		t.Errorf("second trial changed tree shape: %d/%d -> %d/%d vnodes/qnodes",
			vnodes, qnodes, tr.NumVNodes(), tr.NumQNodes())
	}
}
