package planner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/internal/clock"
	"github.com/samuelfneumann/despot/problem/tiger"
	"github.com/samuelfneumann/despot/rstream"
	"github.com/samuelfneumann/despot/scenario"
)

// collapsibleProblem is a one-action, two-state problem whose prior
// always starts at state 0: asking it to explain an observation no
// state can produce leaves prior-filtering resampling with nothing to
// accept, so an Update with an impossible observation always
// collapses the belief (Tiger's bounded-away-from-zero observation
// model can never do this, so these tests use their own problem).
type collapsibleProblem struct{}

func (collapsibleProblem) NumActions() int { return 1 }

func (collapsibleProblem) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	state := s.(int)
	return 0, state, state, false
}

func (collapsibleProblem) ObsProbability(obs int, next scenario.State, a int) float64 {
	if obs == next.(int) {
		return 1
	}
	return 0
}

func (collapsibleProblem) CreateStartState(rng *rand.Rand) scenario.State {
	return 0
}

func (collapsibleProblem) InitialBelief(start scenario.State, stream *rstream.Stream) (*belief.Belief, error) {
	return belief.New([]scenario.State{0, 1}, []float64{0.5, 0.5}, stream)
}

func newTigerPlanner(t *testing.T, opts ...Option) *Planner {
	t.Helper()
	cfg, err := NewConfig(opts...)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	p := tiger.New()
	registry := tiger.NewBoundRegistry(cfg.Discount, cfg.MaxPolicySimLen)
	pl, err := Init(p, registry, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	b, err := p.InitialBelief(tiger.Left, rstream.NewRoot(cfg.RootSeed).Belief())
	if err != nil {
		t.Fatalf("InitialBelief: %v", err)
	}
	pl.SetBelief(b)
	return pl
}

func TestPlanDeterministicForFixedSeed(t *testing.T) {
	opts := []Option{
		WithRootSeed(42),
		WithNumScenarios(200),
		WithTimePerMove(100 * time.Millisecond),
		WithMaxPolicySimLen(30),
		WithSearchDepth(20),
	}

	pl1 := newTigerPlanner(t, opts...)
	a1, err := pl1.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	gap1 := pl1.LastRootGap()

	pl2 := newTigerPlanner(t, opts...)
	a2, err := pl2.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	gap2 := pl2.LastRootGap()

	if a1 != a2 {
		t.Errorf("two runs with root_seed=42 chose different actions: %d vs %d", a1, a2)
	}
	if gap1 != gap2 {
		t.Errorf("two runs with root_seed=42 produced different root gaps: %v vs %v", gap1, gap2)
	}
}

func TestPlanFirstActionIsListen(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(7),
		WithNumScenarios(300),
		WithTimePerMove(200*time.Millisecond),
		WithMaxPolicySimLen(30),
		WithSearchDepth(20),
	)

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a != tiger.Listen {
		t.Errorf("first action from a uniform Tiger belief = %d, want Listen (%d)", a, tiger.Listen)
	}
}

func TestZeroTimePerMoveRunsNoTrials(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(1),
		WithNumScenarios(50),
		WithTimePerMove(0),
	)

	_, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if pl.LastTrials() != 0 {
		t.Errorf("LastTrials() = %d, want 0 for time_per_move=0", pl.LastTrials())
	}
}

func TestDiscountZeroMaximizesImmediateReward(t *testing.T) {
	// With discount 0, every rollout's value collapses to its first
	// reward: Listen (-1) beats either Open (-45 in expectation over
	// the uniform prior), so Listen must still win.
	pl := newTigerPlanner(t,
		WithRootSeed(9),
		WithDiscount(1e-9), // Validate requires discount in (0, 1]
		WithNumScenarios(200),
		WithTimePerMove(100*time.Millisecond),
		WithMaxPolicySimLen(1),
		WithSearchDepth(1),
	)

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a != tiger.Listen {
		t.Errorf("action with near-zero discount = %d, want Listen (%d)", a, tiger.Listen)
	}
}

func TestNumScenariosOneProducesValidAction(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(11),
		WithNumScenarios(1),
		WithTimePerMove(20*time.Millisecond),
	)

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a < 0 || a >= tiger.New().NumActions() {
		t.Errorf("action %d out of range", a)
	}
}

func TestPlanRespectsCancelledContext(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(13),
		WithNumScenarios(500),
		WithTimePerMove(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := pl.Plan(ctx)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a < 0 || a >= tiger.New().NumActions() {
		t.Errorf("action %d out of range after cancellation", a)
	}
}

func TestUpdateAfterTwoConsistentListensOpensCorrectDoor(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(21),
		WithNumScenarios(500),
		WithTimePerMove(150*time.Millisecond),
		WithMaxPolicySimLen(30),
		WithSearchDepth(20),
	)

	if err := pl.Update(tiger.Listen, tiger.HearLeft); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := pl.Update(tiger.Listen, tiger.HearLeft); err != nil {
		t.Fatalf("Update: %v", err)
	}

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a != tiger.OpenRight {
		t.Errorf("action after two HearLeft observations = %d, want OpenRight (%d)", a, tiger.OpenRight)
	}
}

func TestPlanFallsBackToDefaultActionOnCollapse(t *testing.T) {
	cfg, err := NewConfig(
		WithRootSeed(31),
		WithNumScenarios(50),
		WithTimePerMove(20*time.Millisecond),
		WithDefaultAction(7),
	)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	p := collapsibleProblem{}
	registry := bound.NewRegistry(func(scenario.State, int) float64 { return 0 }, cfg.Discount, 0, cfg.MaxPolicySimLen)
	pl, err := Init(p, registry, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	b, err := p.InitialBelief(0, rstream.NewRoot(cfg.RootSeed).Belief())
	if err != nil {
		t.Fatalf("InitialBelief: %v", err)
	}
	pl.SetBelief(b)

	// Ask for an observation no state can produce: the reweight step
	// drops every particle and prior-filtering resampling never
	// accepts a candidate, so the belief collapses.
	if err := pl.Update(0, 99); err == nil {
		t.Fatalf("Update with impossible observation did not fail")
	}
	if !pl.GetBelief().Collapsed() {
		t.Fatalf("belief not marked collapsed after Update failure")
	}

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan after collapse returned an error: %v", err)
	}
	if a != 7 {
		t.Errorf("Plan after collapse = %d, want configured default action 7", a)
	}
}

// absorbedProblem has a single state that is terminal from the start,
// with zero reward everywhere.
type absorbedProblem struct{}

func (absorbedProblem) NumActions() int { return 2 }

func (absorbedProblem) Step(s scenario.State, u float64, a int) (float64, scenario.State, int, bool) {
	return 0, s, 0, true
}

func (absorbedProblem) ObsProbability(obs int, next scenario.State, a int) float64 {
	if obs == 0 {
		return 1
	}
	return 0
}

func (absorbedProblem) CreateStartState(rng *rand.Rand) scenario.State { return 0 }

func (absorbedProblem) InitialBelief(start scenario.State, stream *rstream.Stream) (*belief.Belief, error) {
	return belief.New([]scenario.State{start}, []float64{1}, stream)
}

func (absorbedProblem) IsTerminal(s scenario.State) bool { return true }

func TestPlanOnDegenerateTerminalProblem(t *testing.T) {
	cfg, err := NewConfig(
		WithRootSeed(51),
		WithNumScenarios(20),
		WithTimePerMove(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	p := absorbedProblem{}
	registry := bound.NewRegistry(func(scenario.State, int) float64 { return 0 }, cfg.Discount, 0, cfg.MaxPolicySimLen)
	pl, err := Init(p, registry, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	b, err := p.InitialBelief(0, rstream.NewRoot(cfg.RootSeed).Belief())
	if err != nil {
		t.Fatalf("InitialBelief: %v", err)
	}
	pl.SetBelief(b)

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan on a degenerate terminal problem: %v", err)
	}
	if a < 0 || a >= p.NumActions() {
		t.Errorf("action %d out of range", a)
	}
	if pl.LastTrials() != 0 {
		t.Errorf("LastTrials() = %d, want 0: a terminal root has nothing to search", pl.LastTrials())
	}
}

func TestFakeClockBoundsTrialLoop(t *testing.T) {
	pl := newTigerPlanner(t,
		WithRootSeed(41),
		WithNumScenarios(50),
		WithTimePerMove(time.Second),
	)
	fc := clock.NewFake(time.Unix(0, 0))
	pl.setClock(fc)
	fc.Advance(2 * time.Second) // already past the deadline before Plan runs

	_, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if pl.LastTrials() != 0 {
		t.Errorf("LastTrials() = %d, want 0 when the clock starts past the deadline", pl.LastTrials())
	}
}
