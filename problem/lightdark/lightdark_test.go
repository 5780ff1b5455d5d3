package lightdark

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/samuelfneumann/despot/planner"
	"github.com/samuelfneumann/despot/rstream"
)

func TestNumActions(t *testing.T) {
	if n := New().NumActions(); n != 3 {
		t.Errorf("NumActions() = %d, want 3", n)
	}
}

func TestStepMovesAndPaysCost(t *testing.T) {
	p := New()

	reward, next, obs, term := p.Step([]float64{2}, 0.5, MoveRight)
	if term {
		t.Errorf("MoveRight reported terminal")
	}
	if reward != moveCost {
		t.Errorf("MoveRight reward = %v, want %v", reward, moveCost)
	}
	if x := next.([]float64)[0]; x != 3 {
		t.Errorf("MoveRight from x=2 reached x=%v, want 3", x)
	}
	if obs < 0 || obs >= numBuckets {
		t.Errorf("movement observation %d outside bucket range", obs)
	}

	_, next, _, _ = p.Step([]float64{positionMin}, 0.5, MoveLeft)
	if x := next.([]float64)[0]; x != positionMin {
		t.Errorf("MoveLeft at the boundary reached x=%v, want clamp at %v", x, positionMin)
	}
}

func TestCommitRewardsByDistance(t *testing.T) {
	p := New()

	reward, next, obs, term := p.Step([]float64{0.5}, 0.5, Commit)
	if !term || reward != commitBonus {
		t.Errorf("Commit at x=0.5: reward=%v term=%v, want %v and true", reward, term, commitBonus)
	}
	if obs != ObsNone {
		t.Errorf("Commit observation = %d, want ObsNone", obs)
	}
	if !terminal(next.([]float64)) {
		t.Errorf("Commit did not reach the absorbing state")
	}

	reward, _, _, term = p.Step([]float64{4}, 0.5, Commit)
	if !term || reward != commitPenalty {
		t.Errorf("Commit at x=4: reward=%v term=%v, want %v and true", reward, term, commitPenalty)
	}
}

func TestAbsorbingStateStaysTerminal(t *testing.T) {
	p := New()
	done := []float64{math.Inf(1)}

	reward, next, obs, term := p.Step(done, 0.5, MoveRight)
	if reward != 0 || !term || obs != ObsNone {
		t.Errorf("Step from absorbing state = (%v, _, %d, %v), want (0, _, ObsNone, true)", reward, obs, term)
	}
	if !p.IsTerminal(next) {
		t.Errorf("absorbing state escaped on Step")
	}
}

func TestObsProbabilitySumsToOne(t *testing.T) {
	p := New()
	for _, x := range []float64{-8, 0, 2, 5, 9} {
		var total float64
		for obs := 0; obs < numBuckets; obs++ {
			prob := p.ObsProbability(obs, []float64{x}, MoveRight)
			if prob < 0 {
				t.Fatalf("ObsProbability(%d) at x=%v is negative: %v", obs, x, prob)
			}
			total += prob
		}
		if math.Abs(total-1) > 1e-9 {
			t.Errorf("observation probabilities at x=%v sum to %v, want 1", x, total)
		}
	}
}

func TestSensingIsSharperNearTheLight(t *testing.T) {
	p := New()
	if atLight, far := p.sigma(p.LightX), p.sigma(-5); atLight >= far {
		t.Errorf("sigma at the light (%v) not smaller than far from it (%v)", atLight, far)
	}
}

func TestBoundRegistryResolvesNoisy(t *testing.T) {
	registry, err := New().NewBoundRegistry(0.95, 30)
	if err != nil {
		t.Fatalf("NewBoundRegistry: %v", err)
	}
	if _, err := registry.Lower("DEFAULT"); err != nil {
		t.Errorf(`Lower("DEFAULT"): %v`, err)
	}
	if _, err := registry.Lower("NOISY"); err != nil {
		t.Errorf(`Lower("NOISY"): %v`, err)
	}
}

func TestPlanWithNoisyLowerBound(t *testing.T) {
	cfg, err := planner.NewConfig(
		planner.WithRootSeed(17),
		planner.WithNumScenarios(100),
		planner.WithTimePerMove(100*time.Millisecond),
		planner.WithMaxPolicySimLen(20),
		planner.WithSearchDepth(15),
		planner.WithLowerBoundName("NOISY"),
	)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	p := New()
	registry, err := p.NewBoundRegistry(cfg.Discount, cfg.MaxPolicySimLen)
	if err != nil {
		t.Fatalf("NewBoundRegistry: %v", err)
	}
	pl, err := planner.Init(p, registry, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	b, err := p.InitialBelief([]float64{2}, rstream.NewRoot(cfg.RootSeed).Belief())
	if err != nil {
		t.Fatalf("InitialBelief: %v", err)
	}
	pl.SetBelief(b)

	a, err := pl.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if a < 0 || a >= p.NumActions() {
		t.Errorf("action %d out of range", a)
	}
}
