// Package bound implements the scenario-wise upper and lower value
// bound strategies the search uses to evaluate unexpanded subtrees,
// and the string-keyed registry problem packages register them under.
//
// Bound outputs are scenario-weight-additive: the bound for a node
// equals the sum over its particles of per-particle bounds, so
// subsets of a scenario set can be bounded independently and
// combined.
package bound

import (
	"fmt"

	"github.com/samuelfneumann/despot/scenario"
)

// Problem is the slice of a Problem Model a bound strategy needs.
// Satisfied structurally by model.Problem.
type Problem interface {
	NumActions() int
	Step(s scenario.State, u float64, a int) (reward float64, next scenario.State, obs int, terminal bool)
}

// Lower computes a scenario lower bound: a weighted-sum lower bound
// on optimal value plus the action a fallback policy would take.
type Lower interface {
	Name() string
	Value(p Problem, particles []scenario.Particle, depth int) (value float64, defaultAction int)
}

// Upper computes a scenario upper bound: a weighted-sum upper bound
// on optimal value.
type Upper interface {
	Name() string
	Value(p Problem, particles []scenario.Particle, depth int) float64
}

// Registry maps string names to lower/upper bound strategies. It is
// populated at startup by problem packages and consulted once at
// planner construction.
type Registry struct {
	lower map[string]Lower
	upper map[string]Upper
}

// NewRegistry returns an empty Registry pre-seeded with the "DEFAULT"
// rollout lower bound and per-state-max-reward upper bound, which
// every problem can fall back to without registering anything.
func NewRegistry(maxReward func(scenario.State, int) float64, discount float64, defaultAction int, maxSimLen int) *Registry {
	r := &Registry{
		lower: make(map[string]Lower),
		upper: make(map[string]Upper),
	}
	r.lower["DEFAULT"] = NewFixedActionRollout(defaultAction, discount, maxSimLen)
	r.upper["DEFAULT"] = NewMaxRewardUpper(maxReward, discount)
	return r
}

// RegisterLower registers a lower-bound strategy under name.
// Registering under "DEFAULT" overrides the built-in default.
func (r *Registry) RegisterLower(name string, l Lower) {
	r.lower[name] = l
}

// RegisterUpper registers an upper-bound strategy under name.
func (r *Registry) RegisterUpper(name string, u Upper) {
	r.upper[name] = u
}

// Lower resolves a lower-bound strategy by name.
func (r *Registry) Lower(name string) (Lower, error) {
	l, ok := r.lower[name]
	if !ok {
		return nil, fmt.Errorf("bound: no lower bound strategy registered under name %q", name)
	}
	return l, nil
}

// Upper resolves an upper-bound strategy by name.
func (r *Registry) Upper(name string) (Upper, error) {
	u, ok := r.upper[name]
	if !ok {
		return nil, fmt.Errorf("bound: no upper bound strategy registered under name %q", name)
	}
	return u, nil
}
