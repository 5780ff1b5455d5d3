package tiger

import "github.com/samuelfneumann/despot/bound"

// NewBoundRegistry returns a bound.Registry for the Tiger problem:
// "DEFAULT" is a Listen-forever rollout (the safe, information-seeking
// fallback), with "RANDOM" registered alongside it for comparison.
func NewBoundRegistry(discount float64, maxSimLen int) *bound.Registry {
	r := bound.NewRegistry(MaxReward, discount, Listen, maxSimLen)
	r.RegisterLower("RANDOM", bound.NewRandomRollout(discount, maxSimLen))
	return r
}
