// Package eval drives episodes of a Problem Model against a planner:
// step the true world forward with the chosen action, feed the
// observation back into the belief, and accumulate discounted and
// undiscounted return until the episode terminates or the step budget
// runs out.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/despoterr"
	"github.com/samuelfneumann/despot/model"
	"github.com/samuelfneumann/despot/planner"
	"github.com/samuelfneumann/despot/rstream"
)

// StepTrace describes one executed step, for diagnostic printing.
type StepTrace struct {
	Step    int
	State   string
	Action  string
	Obs     string
	Reward  float64
	Trials  int
	RootGap float64
}

// EpisodeResult summarizes a single completed (or truncated) episode.
type EpisodeResult struct {
	Steps              int
	DiscountedReturn   float64
	UndiscountedReturn float64
	Terminal           bool
}

// Evaluator runs episodes of problem against a freshly initialized
// planner per episode.
type Evaluator struct {
	Problem  model.Problem
	Registry *bound.Registry
	Config   planner.Config

	// PrintStep, if non-nil, is called after every executed step.
	PrintStep func(StepTrace)
}

// New returns an Evaluator for the given Problem, bound registry, and
// planner configuration.
func New(p model.Problem, registry *bound.Registry, cfg planner.Config) *Evaluator {
	return &Evaluator{Problem: p, Registry: registry, Config: cfg}
}

// RunEpisode runs one episode: a fresh world state, a fresh planner
// seeded from the configured root seed plus the episode index (so
// episodes in the same evaluation run don't alias each other's
// streams), re-planning and updating the belief every step until the
// world terminates or maxSteps is reached.
func (e *Evaluator) RunEpisode(ctx context.Context, episodeIndex, maxSteps int) (EpisodeResult, error) {
	cfg := e.Config
	if cfg.RootSeed != 0 {
		cfg.RootSeed = rstream.Mix(cfg.RootSeed, uint64(episodeIndex))
	}

	pl, err := planner.Init(e.Problem, e.Registry, cfg)
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("eval: RunEpisode: %w", err)
	}

	worldSeed := cfg.RootSeed
	if worldSeed == 0 {
		worldSeed = uint64(episodeIndex) + 1
	}
	worldRoot := rstream.NewRoot(worldSeed)
	worldStream := worldRoot.World()

	start := e.Problem.CreateStartState(worldStream.Rand())
	b, err := e.Problem.InitialBelief(start, worldRoot.Belief())
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("eval: RunEpisode: %w", err)
	}
	pl.SetBelief(b)

	state := start
	var discounted, undiscounted float64
	discount := 1.0
	result := EpisodeResult{}

	for step := 0; step < maxSteps; step++ {
		if ctx.Err() != nil {
			break
		}

		action, err := pl.Plan(ctx)
		if err != nil {
			return result, fmt.Errorf("eval: RunEpisode: step %d: %w", step, err)
		}

		u := worldStream.Float64()
		reward, next, obs, terminal := e.Problem.Step(state, u, action)

		discounted += discount * reward
		undiscounted += reward
		discount *= cfg.Discount

		if e.PrintStep != nil {
			e.PrintStep(stepTrace(e.Problem, step, state, action, obs, reward, pl))
		}

		// Belief collapse is recovered locally (the next Plan call falls
		// back to the default action); a model violation aborts the
		// episode.
		if err := pl.Update(action, obs); err != nil {
			if !errors.Is(err, despoterr.ErrCollapsed) {
				return result, fmt.Errorf("eval: RunEpisode: step %d: %w", step, err)
			}
			if cfg.Logf != nil {
				cfg.Logf("despot: eval: belief collapsed at step %d, continuing with default action", step)
			}
		}

		state = next
		result.Steps = step + 1
		if terminal {
			result.Terminal = true
			break
		}
	}

	result.DiscountedReturn = discounted
	result.UndiscountedReturn = undiscounted
	return result, nil
}

func stepTrace(p model.Problem, step int, state any, action, obs int, reward float64, pl *planner.Planner) StepTrace {
	t := StepTrace{Step: step, Reward: reward, Trials: pl.LastTrials(), RootGap: pl.LastRootGap()}
	if printer, ok := p.(model.Printer); ok {
		t.State = printer.PrintState(state)
		t.Action = printer.PrintAction(action)
		t.Obs = printer.PrintObs(obs)
	} else {
		t.State = fmt.Sprintf("%v", state)
		t.Action = fmt.Sprintf("%d", action)
		t.Obs = fmt.Sprintf("%d", obs)
	}
	return t
}

// Summary aggregates RunEpisode results across an evaluation run.
type Summary struct {
	NumEpisodes        int
	MeanDiscounted     float64
	StdErrDiscounted   float64
	MeanUndiscounted   float64
	StdErrUndiscounted float64
	MeanSteps          float64
}

// RunEvaluation runs numEpisodes independent episodes and reports
// mean and standard error of discounted and undiscounted return.
func (e *Evaluator) RunEvaluation(ctx context.Context, numEpisodes, maxSteps int) (Summary, error) {
	discounted := make([]float64, 0, numEpisodes)
	undiscounted := make([]float64, 0, numEpisodes)
	steps := make([]float64, 0, numEpisodes)

	for i := 0; i < numEpisodes; i++ {
		if ctx.Err() != nil {
			break
		}
		result, err := e.RunEpisode(ctx, i, maxSteps)
		if err != nil {
			return Summary{}, fmt.Errorf("eval: RunEvaluation: episode %d: %w", i, err)
		}
		discounted = append(discounted, result.DiscountedReturn)
		undiscounted = append(undiscounted, result.UndiscountedReturn)
		steps = append(steps, float64(result.Steps))
	}

	meanD, seD := meanStdErr(discounted)
	meanU, seU := meanStdErr(undiscounted)
	meanSteps, _ := meanStdErr(steps)

	return Summary{
		NumEpisodes:        len(discounted),
		MeanDiscounted:     meanD,
		StdErrDiscounted:   seD,
		MeanUndiscounted:   meanU,
		StdErrUndiscounted: seU,
		MeanSteps:          meanSteps,
	}, nil
}

func meanStdErr(xs []float64) (mean, stderr float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	var sqDiff float64
	for _, x := range xs {
		d := x - mean
		sqDiff += d * d
	}
	variance := sqDiff / float64(len(xs)-1)
	stderr = math.Sqrt(variance / float64(len(xs)))
	return mean, stderr
}
