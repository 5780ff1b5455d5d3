package bound

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/samuelfneumann/despot/scenario"
)

// NoisyRollout is a lower bound for Problem Models whose state is a
// []float64 vector subject to continuous sensing/actuation noise (the
// "noise" configuration parameter): it perturbs the fixed
// rollout action's outcome with zero-mean Gaussian noise of the
// configured covariance before handing the particle back to the
// model, so the rollout reflects the same noise level the planner
// believes the real world has. Problems with discrete states (Tiger,
// RockSample) have no use for it; it exists for continuous-state
// models built against this package.
//
// Each rollout draws its noise from the particle's own scenario
// stream rather than a package-shared source, so two trials replaying
// the same scenario still see identical noise draws and concurrent
// scenario-parallel bound evaluation (bound.EvaluateGroups with
// parallel=true) never races on a shared generator.
type NoisyRollout struct {
	action    int
	discount  float64
	maxSimLen int
	mu        []float64
	cov       *mat.SymDense
	dim       int
}

// NewNoisyRollout returns a NoisyRollout injecting isotropic Gaussian
// noise of standard deviation sigma into each dimension of a
// dim-dimensional float64 state vector.
func NewNoisyRollout(action int, discount float64, maxSimLen, dim int, sigma float64) (*NoisyRollout, error) {
	mu := make([]float64, dim)
	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		cov.SetSym(i, i, sigma*sigma)
	}
	if _, ok := distmv.NewNormal(mu, cov, nil); !ok {
		return nil, errNoiseCovariance
	}
	return &NoisyRollout{action: action, discount: discount, maxSimLen: maxSimLen, mu: mu, cov: cov, dim: dim}, nil
}

// Name returns "NOISY".
func (n *NoisyRollout) Name() string { return "NOISY" }

// Value simulates each particle forward under the fixed action,
// perturbing the resulting state vector by a fresh noise draw at
// every step, and returns the weighted discounted sum.
func (n *NoisyRollout) Value(p Problem, particles []scenario.Particle, depth int) (float64, int) {
	var total float64
	for _, particle := range particles {
		total += particle.Weight * n.rollout(p, particle, depth)
	}
	return total, n.action
}

func (n *NoisyRollout) rollout(p Problem, particle scenario.Particle, depth int) float64 {
	// distmv.NewNormal cannot fail here: the covariance was already
	// validated in NewNoisyRollout.
	noise, _ := distmv.NewNormal(n.mu, n.cov, particle.Stream.Source())

	state := particle.State
	discount := 1.0
	var sum float64
	for d := depth; d-depth < n.maxSimLen; d++ {
		u := particle.Stream.Float64()
		reward, next, _, terminal := p.Step(state, u, n.action)
		sum += discount * reward
		if terminal {
			break
		}
		state = n.perturb(next, noise)
		discount *= n.discount
	}
	return sum
}

// perturb adds a fresh noise draw to a []float64-valued state,
// leaving any other state representation unchanged.
func (n *NoisyRollout) perturb(s scenario.State, noise *distmv.Normal) scenario.State {
	vec, ok := s.([]float64)
	if !ok {
		return s
	}
	draw := noise.Rand(nil)
	out := make([]float64, len(vec))
	copy(out, vec)
	for i := range out {
		if i < len(draw) {
			out[i] += draw[i]
		}
	}
	return out
}

var errNoiseCovariance = &noiseCovarianceError{}

type noiseCovarianceError struct{}

func (*noiseCovarianceError) Error() string {
	return "bound: NewNoisyRollout: covariance matrix is not positive definite"
}
