// Package planner implements the driver that repeats trials until a
// decision's time/trial budget is exhausted, selects the best root
// action, and advances the belief between decisions.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/despoterr"
	"github.com/samuelfneumann/despot/internal/clock"
	"github.com/samuelfneumann/despot/model"
	"github.com/samuelfneumann/despot/rstream"
	"github.com/samuelfneumann/despot/search"
	"github.com/samuelfneumann/despot/tree"
)

// rootGapTolerance is the small tolerance below which the root gap is
// considered converged, ending trials early even if time_per_move has
// not yet elapsed.
const rootGapTolerance = 1e-6

// Planner is the online POMDP planner: a Problem Model, a resolved
// pair of bound strategies, and the belief it currently tracks.
type Planner struct {
	problem  model.Problem
	registry *bound.Registry
	config   Config
	lower    bound.Lower
	upper    bound.Upper
	root     *rstream.Root
	b        *belief.Belief
	clock    clock.Clock

	lastTrials int
	lastGap    float64
}

// Init constructs a Planner for the given Problem Model, bound
// registry, and configuration. The registry's "DEFAULT" lower and
// upper bound strategies must resolve, along with whatever names the
// config selects; any failure here is a configuration error and the
// planner refuses to start.
func Init(p model.Problem, registry *bound.Registry, cfg Config) (*Planner, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: planner: Init: nil problem", despoterr.ErrConfig)
	}
	if p.NumActions() <= 0 {
		return nil, fmt.Errorf("%w: planner: Init: problem reports %d actions", despoterr.ErrConfig, p.NumActions())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", despoterr.ErrConfig, err)
	}

	lower, err := registry.Lower(cfg.LowerBoundName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", despoterr.ErrConfig, err)
	}
	upper, err := registry.Upper(cfg.UpperBoundName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", despoterr.ErrConfig, err)
	}

	seed := cfg.RootSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixMilli()) % 1_000_000_000
	}

	if cfg.Silence || cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}

	return &Planner{
		problem:  p,
		registry: registry,
		config:   cfg,
		lower:    lower,
		upper:    upper,
		root:     rstream.NewRoot(seed),
		clock:    clock.Real{},
	}, nil
}

// setClock overrides the planner's time source. Exposed only within
// the package, for deterministic trial-count tests.
func (pl *Planner) setClock(c clock.Clock) {
	pl.clock = c
}

// SetBelief replaces the planner's current belief.
func (pl *Planner) SetBelief(b *belief.Belief) {
	pl.b = b
}

// GetBelief returns the planner's current belief.
func (pl *Planner) GetBelief() *belief.Belief {
	return pl.b
}

// LastTrials returns the number of trials the most recent Plan call
// ran, for diagnostics.
func (pl *Planner) LastTrials() int {
	return pl.lastTrials
}

// LastRootGap returns the root gap U-L after the most recent Plan
// call, for diagnostics.
func (pl *Planner) LastRootGap() float64 {
	return pl.lastGap
}

// Plan searches from the current belief until config.TimePerMove
// elapses, the root gap converges, or ctx is cancelled, then returns
// the action maximizing the root's per-action lower bound. On belief
// collapse it returns the configured default action without error.
func (pl *Planner) Plan(ctx context.Context) (int, error) {
	if pl.b == nil {
		return 0, fmt.Errorf("planner: Plan: no belief set")
	}
	if pl.b.Collapsed() {
		pl.config.Logf("despot: belief collapsed, returning default action %d", pl.config.DefaultAction)
		return pl.config.DefaultAction, nil
	}

	particles, err := pl.b.Sample(pl.config.NumScenarios, pl.root)
	if err != nil {
		if errors.Is(err, belief.ErrCollapsed) {
			pl.config.Logf("despot: belief collapsed during sampling, returning default action %d", pl.config.DefaultAction)
			return pl.config.DefaultAction, nil
		}
		return 0, fmt.Errorf("%w: %v", despoterr.ErrModel, err)
	}

	t := tree.New()
	runner := &search.Runner{
		Problem:        pl.problem,
		Lower:          pl.lower,
		Upper:          pl.upper,
		Discount:       pl.config.Discount,
		Xi:             pl.config.Xi,
		Lambda:         pl.config.PruningConstant,
		SearchDepth:    pl.config.SearchDepth,
		ParallelBounds: pl.config.ParallelBounds,
	}
	rootIdx := runner.NewRoot(t, particles)

	var deadline time.Time
	hasDeadline := pl.config.TimePerMove > 0
	if hasDeadline {
		deadline = pl.clock.Now().Add(pl.config.TimePerMove)
	}

	trials := 0
	for hasDeadline && pl.clock.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}
		root := t.V(rootIdx)
		if root.Terminal || root.Gap() < rootGapTolerance {
			break
		}
		runner.Trial(t)
		trials++
	}

	pl.lastTrials = trials
	pl.lastGap = t.V(rootIdx).Gap()
	pl.config.Logf("despot: plan done: trials=%d gap=%v", trials, pl.lastGap)

	return selectBestAction(t, rootIdx), nil
}

// Update advances the belief with the realized (action, observation)
// pair. Belief collapse is recovered locally: it is reported via a
// wrapped despoterr.ErrCollapsed but does not corrupt planner state,
// and the next Plan call falls back to the default action.
func (pl *Planner) Update(action, obs int) error {
	if pl.b == nil {
		return fmt.Errorf("planner: Update: no belief set")
	}
	err := pl.b.Update(pl.problem, action, obs, pl.resampleOptions()...)
	if err != nil {
		if errors.Is(err, belief.ErrCollapsed) {
			return fmt.Errorf("%w", despoterr.ErrCollapsed)
		}
		return fmt.Errorf("%w: %v", despoterr.ErrModel, err)
	}
	return nil
}

// resampleOptions derives the belief resampling policies available
// from whichever optional capabilities the Problem implements.
func (pl *Planner) resampleOptions() []belief.ResampleOption {
	var opts []belief.ResampleOption
	if starter, ok := pl.problem.(belief.Starter); ok {
		opts = append(opts, belief.WithStarter(starter))
	}
	if indexer, ok := pl.problem.(belief.Indexer); ok {
		opts = append(opts, belief.WithIndexer(indexer))
	}
	return opts
}

// selectBestAction returns the root action maximizing the per-action
// lower bound, ties broken toward the smaller action index. If the
// root was never expanded (e.g. time_per_move == 0), it returns the
// default action computed by the initial bound evaluation.
func selectBestAction(t *tree.Tree, rootIdx tree.NodeIndex) int {
	v := t.V(rootIdx)
	if !v.Expanded {
		return v.DefaultAction
	}
	best := v.DefaultAction
	bestVal := math.Inf(-1)
	for a, qidx := range v.Children {
		if qidx == tree.NoNode {
			continue
		}
		if l := t.Q(qidx).L; l > bestVal {
			bestVal = l
			best = a
		}
	}
	return best
}
