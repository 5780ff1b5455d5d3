// Package belief implements the particle-filter belief that survives
// action/observation histories by consistency resampling.
package belief

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/despot/rstream"
	"github.com/samuelfneumann/despot/scenario"
)

// MinWeight is the epsilon below which a particle's weight is
// considered dead and is dropped during Update.
const MinWeight = 1e-20

// ErrCollapsed indicates every particle died during Update and no
// resampling policy could recover a non-empty set.
var ErrCollapsed = errors.New("belief: collapsed")

// Problem is the slice of a Problem Model that belief reweighting and
// resampling needs. It is satisfied structurally by model.Problem, so
// this package never imports the model package (which itself returns
// *Belief from Problem.InitialBelief).
type Problem interface {
	Step(s scenario.State, u float64, a int) (reward float64, next scenario.State, obs int, terminal bool)
	ObsProbability(obs int, next scenario.State, a int) float64
}

// Starter is the slice of a Problem Model needed to draw fresh states
// from the prior, used by the prior-filtering resampling policies.
type Starter interface {
	CreateStartState(rng *rand.Rand) scenario.State
}

// Indexer is the slice of a Problem Model needed for the
// state-indexer-inversion resampling policy.
type Indexer interface {
	NumStates() int
	StateFromIndex(i int) scenario.State
}

// WeightedState is a (state, weight) pair held by a Belief, prior to
// being sampled into scenario-ided particles.
type WeightedState struct {
	State  scenario.State
	Weight float64
}

// HistoryEntry is a single (action, observation) pair in a belief's
// history.
type HistoryEntry struct {
	Action int
	Obs    int
}

// Belief is a probability distribution over states, represented by a
// particle set plus the history that produced it.
type Belief struct {
	particles []WeightedState
	history   []HistoryEntry
	stream    *rstream.Stream
	collapsed bool
}

// New constructs a Belief from a set of states and weights, which are
// normalized to sum to 1. stream is the belief's private random
// stream, used for reweighting draws and resampling; it should be
// distinct from any stream used by the search (e.g. root.World() or a
// seed carved out specifically for this belief).
func New(states []scenario.State, weights []float64, stream *rstream.Stream) (*Belief, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("belief: New: no particles")
	}
	if len(states) != len(weights) {
		return nil, fmt.Errorf("belief: New: %d states but %d weights", len(states), len(weights))
	}
	particles := make([]WeightedState, len(states))
	var total float64
	for i := range states {
		total += weights[i]
	}
	if total <= 0 {
		return nil, fmt.Errorf("belief: New: non-positive total weight %v", total)
	}
	for i := range states {
		particles[i] = WeightedState{State: states[i], Weight: weights[i] / total}
	}
	return &Belief{particles: particles, stream: stream}, nil
}

// NumParticles returns the number of particles currently held.
func (b *Belief) NumParticles() int {
	return len(b.particles)
}

// Collapsed reports whether the most recent Update failed to recover
// a non-empty particle set.
func (b *Belief) Collapsed() bool {
	return b.collapsed
}

// History returns the belief's (action, observation) history.
func (b *Belief) History() []HistoryEntry {
	return append([]HistoryEntry(nil), b.history...)
}

// MakeCopy returns a deep, independent copy of the belief. The copy
// shares no mutable state with the original: its stream is a clone of
// the original's current generator state, so an Update on the copy
// draws exactly what the same Update on the original would have drawn,
// and updating one never advances the other's stream.
func (b *Belief) MakeCopy() *Belief {
	particles := append([]WeightedState(nil), b.particles...)
	history := append([]HistoryEntry(nil), b.history...)
	return &Belief{
		particles: particles,
		history:   history,
		stream:    b.stream.Clone(),
		collapsed: b.collapsed,
	}
}

// Sample draws n particles with replacement, weights proportional to
// the belief's stored weights, and binds each to a fresh scenario
// stream drawn from root. Each returned particle carries a scenario
// id in [0, n) and weight 1/n.
func (b *Belief) Sample(n int, root *rstream.Root) ([]scenario.Particle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("belief: Sample: n must be positive, got %d", n)
	}
	if len(b.particles) == 0 {
		return nil, fmt.Errorf("belief: Sample: %w", ErrCollapsed)
	}

	weights := make([]float64, len(b.particles))
	for i, p := range b.particles {
		weights[i] = p.Weight
	}

	beliefStream := root.Belief()
	cat := distuv.NewCategorical(weights, beliefStream.Rand())

	particles := make([]scenario.Particle, n)
	for i := 0; i < n; i++ {
		idx := int(cat.Rand())
		particles[i] = scenario.Particle{
			ID:     i,
			State:  b.particles[idx].State,
			Weight: 1.0 / float64(n),
			Stream: root.Scenario(i),
		}
	}
	return particles, nil
}

// Update reweights each particle by the observation probability of
// the realized (action, observation) pair, drops particles whose
// weight falls below MinWeight, and normalizes survivors. If every
// particle dies, the resampling policies in resample.go are tried in
// order; if none succeeds the belief is flagged collapsed and an
// error wrapping ErrCollapsed is returned.
func (b *Belief) Update(p Problem, action, obs int, opts ...ResampleOption) error {
	cfg := defaultResampleConfig()
	for _, o := range opts {
		o(&cfg)
	}

	next := make([]WeightedState, 0, len(b.particles))
	var total float64
	for _, particle := range b.particles {
		u := b.stream.Float64()
		_, nextState, _, _ := p.Step(particle.State, u, action)
		prob := p.ObsProbability(obs, nextState, action)
		if prob < 0 {
			return fmt.Errorf("belief: Update: negative observation probability %v", prob)
		}
		w := particle.Weight * prob
		if w < MinWeight {
			continue
		}
		next = append(next, WeightedState{State: nextState, Weight: w})
		total += w
	}

	if len(next) == 0 {
		resampled, ok := resample(p, b, action, obs, cfg)
		if !ok {
			b.collapsed = true
			b.history = append(b.history, HistoryEntry{Action: action, Obs: obs})
			return fmt.Errorf("belief: Update: %w", ErrCollapsed)
		}
		next = resampled
		total = 0
		for _, p := range next {
			total += p.Weight
		}
	}

	for i := range next {
		next[i].Weight /= total
	}

	b.particles = next
	b.history = append(b.history, HistoryEntry{Action: action, Obs: obs})
	b.collapsed = false
	return nil
}

// WeightSum returns the sum of the belief's particle weights. After a
// successful Update this is 1 within floating-point tolerance.
func (b *Belief) WeightSum() float64 {
	var total float64
	for _, p := range b.particles {
		total += p.Weight
	}
	return total
}

// WeightsNormalized reports whether the belief's weights sum to 1
// within tol.
func (b *Belief) WeightsNormalized(tol float64) bool {
	return math.Abs(b.WeightSum()-1) <= tol
}

// Particles exposes the belief's current (state, weight) pairs.
func (b *Belief) Particles() []WeightedState {
	return append([]WeightedState(nil), b.particles...)
}
