// Package lightdark implements the light-dark localization problem: an
// agent moves along a line and must commit at the origin, but only
// observes its position through a noisy sensor whose accuracy improves
// near a light source away from the goal. The optimal policy detours
// toward the light to localize before heading back to commit, which
// makes the problem a standard stress test for belief-space planning
// over a continuous state.
package lightdark

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/rstream"
)

// Actions.
const (
	MoveLeft = iota
	MoveRight
	Commit
)

// Observations are discretized position readings: bucket i covers
// positions rounding to obsMin+i, with the first and last buckets
// absorbing the tails. ObsNone is emitted once the episode is over.
const (
	obsMin     = -10
	obsMax     = 10
	numBuckets = obsMax - obsMin + 1

	// ObsNone is the observation of a finished trajectory.
	ObsNone = numBuckets
)

const (
	moveCost      = -1.0
	commitBonus   = 100.0
	commitPenalty = -100.0
	goalRadius    = 1.0
	positionMin   = -12.0
	positionMax   = 12.0
)

// Problem is the light-dark line. LightX is where sensing is sharpest;
// NoiseScale scales the sensor's noise level, with 1 the standard
// parameterization.
type Problem struct {
	LightX     float64
	NoiseScale float64
}

// New returns the standard parameterization: light at x=5, unit noise
// scale, start prior centered at x=2.
func New() *Problem {
	return &Problem{LightX: 5, NoiseScale: 1}
}

// NumActions returns 3: MoveLeft, MoveRight, Commit.
func (p *Problem) NumActions() int {
	return 3
}

func terminal(vec []float64) bool {
	return math.IsInf(vec[0], 1)
}

// sigma is the sensor's noise standard deviation at position x: small
// under the light, growing linearly with distance from it.
func (p *Problem) sigma(x float64) float64 {
	return (0.5 + 0.25*math.Abs(x-p.LightX)) * p.NoiseScale
}

// Step executes one transition. Movement costs moveCost and produces a
// noisy position reading; Commit ends the episode, paying commitBonus
// within goalRadius of the origin and commitPenalty outside it. The
// finished state is absorbing: +Inf position, zero reward forever.
func (p *Problem) Step(s any, u float64, a int) (reward float64, next any, obs int, term bool) {
	vec := s.([]float64)
	if terminal(vec) {
		return 0, vec, ObsNone, true
	}
	x := vec[0]

	switch a {
	case MoveLeft, MoveRight:
		if a == MoveLeft {
			x--
		} else {
			x++
		}
		x = math.Max(positionMin, math.Min(positionMax, x))
		return moveCost, []float64{x}, p.reading(x, u), false
	case Commit:
		if math.Abs(x) <= goalRadius {
			reward = commitBonus
		} else {
			reward = commitPenalty
		}
		return reward, []float64{math.Inf(1)}, ObsNone, true
	default:
		panic(fmt.Sprintf("lightdark: Step: invalid action %d", a))
	}
}

// reading maps the uniform sample u through the sensor's noise model
// to a discretized position observation.
func (p *Problem) reading(x, u float64) int {
	// Quantile(0) and Quantile(1) are infinite; the clamp keeps the
	// draw finite without visibly distorting the distribution.
	u = math.Max(1e-12, math.Min(1-1e-12, u))
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(u)
	return bucketOf(x + z*p.sigma(x))
}

func bucketOf(reading float64) int {
	center := int(math.Round(reading))
	if center < obsMin {
		center = obsMin
	}
	if center > obsMax {
		center = obsMax
	}
	return center - obsMin
}

// ObsProbability integrates the sensor's Gaussian over the bucket obs
// covers, with the edge buckets absorbing the tails so probabilities
// over all observations sum to 1.
func (p *Problem) ObsProbability(obs int, next any, a int) float64 {
	vec := next.([]float64)
	if terminal(vec) {
		if obs == ObsNone {
			return 1
		}
		return 0
	}
	if obs < 0 || obs >= numBuckets {
		return 0
	}

	x := vec[0]
	n := distuv.Normal{Mu: x, Sigma: p.sigma(x)}
	center := float64(obsMin + obs)
	lo, hi := center-0.5, center+0.5
	cdfLo := 0.0
	if obs > 0 {
		cdfLo = n.CDF(lo)
	}
	cdfHi := 1.0
	if obs < numBuckets-1 {
		cdfHi = n.CDF(hi)
	}
	return cdfHi - cdfLo
}

// CreateStartState draws the agent's true position uniformly from the
// start region [0, 4] around the prior's center.
func (p *Problem) CreateStartState(rng *rand.Rand) any {
	return []float64{4 * rng.Float64()}
}

// InitialBelief spreads particles over the start region. The true
// start position is unknown to the agent, so start itself is unused
// beyond satisfying the bootstrap signature.
func (p *Problem) InitialBelief(start any, stream *rstream.Stream) (*belief.Belief, error) {
	const n = 100
	states := make([]any, n)
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		states[i] = []float64{4 * stream.Float64()}
		weights[i] = 1.0 / n
	}
	return belief.New(states, weights, stream)
}

// IsTerminal reports whether s is the absorbing finished state.
func (p *Problem) IsTerminal(s any) bool {
	return terminal(s.([]float64))
}

// DefaultAction heads toward the light to localize.
func (p *Problem) DefaultAction() int {
	return MoveRight
}

// MaxReward bounds the best achievable one-step reward: a successful
// commit, or nothing once finished.
func (p *Problem) MaxReward(s any, depth int) float64 {
	if terminal(s.([]float64)) {
		return 0
	}
	return commitBonus
}

// NewBoundRegistry returns a bound.Registry for the light-dark
// problem: "DEFAULT" is a toward-the-light rollout, "NOISY" the same
// rollout with actuation noise injected into the position between
// steps, matching the uncertainty the planner believes the world has.
func (p *Problem) NewBoundRegistry(discount float64, maxSimLen int) (*bound.Registry, error) {
	r := bound.NewRegistry(p.MaxReward, discount, MoveRight, maxSimLen)
	noisy, err := bound.NewNoisyRollout(MoveRight, discount, maxSimLen, 1, 0.5*p.NoiseScale)
	if err != nil {
		return nil, fmt.Errorf("lightdark: NewBoundRegistry: %w", err)
	}
	r.RegisterLower("NOISY", noisy)
	return r, nil
}

// PrintState, PrintObs, and PrintAction implement the optional Printer
// capability.
func (p *Problem) PrintState(s any) string {
	vec := s.([]float64)
	if terminal(vec) {
		return "done"
	}
	return fmt.Sprintf("x=%.2f", vec[0])
}

func (p *Problem) PrintObs(obs int) string {
	if obs == ObsNone {
		return "None"
	}
	return fmt.Sprintf("reading(%d)", obsMin+obs)
}

func (p *Problem) PrintAction(a int) string {
	switch a {
	case MoveLeft:
		return "MoveLeft"
	case MoveRight:
		return "MoveRight"
	case Commit:
		return "Commit"
	default:
		return "Unknown"
	}
}
