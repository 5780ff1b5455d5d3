package bound

import "github.com/samuelfneumann/despot/scenario"

// FixedActionRollout is the default scenario lower bound: it rolls
// each particle forward under a fixed action, truncated at maxSimLen
// steps or on termination, and sums the discounted reward.
type FixedActionRollout struct {
	action    int
	discount  float64
	maxSimLen int
}

// NewFixedActionRollout returns a lower bound that always rolls out
// the given action.
func NewFixedActionRollout(action int, discount float64, maxSimLen int) *FixedActionRollout {
	return &FixedActionRollout{action: action, discount: discount, maxSimLen: maxSimLen}
}

func (f *FixedActionRollout) Name() string { return "DEFAULT" }

// Value rolls every particle forward under the fixed action and
// returns the scenario-weighted discounted sum, along with the fixed
// action itself as the default action.
func (f *FixedActionRollout) Value(p Problem, particles []scenario.Particle, depth int) (float64, int) {
	var total float64
	for _, particle := range particles {
		total += particle.Weight * rollout(p, particle, f.action, f.discount, f.maxSimLen)
	}
	return total, f.action
}

// RandomRollout is a scenario lower bound that rolls each particle
// forward under a uniformly random action at every step, re-drawn
// from the particle's own stream. It reports action 0 as its nominal
// default action since no single action characterizes a random
// policy.
type RandomRollout struct {
	discount  float64
	maxSimLen int
}

// NewRandomRollout returns a lower bound that rolls out uniformly
// random actions.
func NewRandomRollout(discount float64, maxSimLen int) *RandomRollout {
	return &RandomRollout{discount: discount, maxSimLen: maxSimLen}
}

func (r *RandomRollout) Name() string { return "RANDOM" }

func (r *RandomRollout) Value(p Problem, particles []scenario.Particle, depth int) (float64, int) {
	n := p.NumActions()
	var total float64
	for _, particle := range particles {
		pick := func() int { return particle.Stream.Intn(n) }
		total += particle.Weight * rolloutWith(p, particle, pick, r.discount, r.maxSimLen)
	}
	return total, 0
}

// rollout simulates a single particle forward under the fixed action,
// truncated at maxSimLen steps or on termination.
func rollout(p Problem, particle scenario.Particle, action int, discount float64, maxSimLen int) float64 {
	return rolloutWith(p, particle, func() int { return action }, discount, maxSimLen)
}

func rolloutWith(p Problem, particle scenario.Particle, pick func() int, discount float64, maxSimLen int) float64 {
	state := particle.State
	var value float64
	discountFactor := 1.0
	for step := 0; step < maxSimLen; step++ {
		u := particle.Stream.Float64()
		reward, next, _, terminal := p.Step(state, u, pick())
		value += discountFactor * reward
		if terminal {
			break
		}
		state = next
		discountFactor *= discount
	}
	return value
}

// MaxRewardUpper is the default scenario upper bound: the maximum
// reward obtainable from a state, divided by 1-discount (the value of
// achieving that reward every step forever).
type MaxRewardUpper struct {
	maxReward func(scenario.State, int) float64
	discount  float64
}

// NewMaxRewardUpper returns an upper bound using maxReward(s) as the
// best one-step reward achievable from s, amortized over an infinite
// horizon at the given discount.
func NewMaxRewardUpper(maxReward func(scenario.State, int) float64, discount float64) *MaxRewardUpper {
	return &MaxRewardUpper{maxReward: maxReward, discount: discount}
}

func (m *MaxRewardUpper) Name() string { return "DEFAULT" }

func (m *MaxRewardUpper) Value(p Problem, particles []scenario.Particle, depth int) float64 {
	var total float64
	denom := 1 - m.discount
	if denom <= 0 {
		denom = 1e-9
	}
	for _, particle := range particles {
		best := m.maxReward(particle.State, depth)
		total += particle.Weight * best / denom
	}
	return total
}
