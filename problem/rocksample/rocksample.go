// Package rocksample implements RockSample(n, k): a rover on an n×n
// grid must sample good rocks among k known rock locations and then
// exit east, with a noisy long-range sensor giving it a hint about
// each rock's quality that degrades with distance. It supplements the
// Tiger problem with a larger, enumerable state space exercised
// through the state-indexer resampling path.
package rocksample

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/rstream"
)

// State is a rover position plus a bitmask of which rocks are still
// good (bit i set means rock i is good). X >= N (the rover has moved
// east off the grid) marks the terminal "exited" state.
type State struct {
	X, Y     int
	RockGood uint32
}

// Actions: 0=North, 1=South, 2=East, 3=West, 4=Sample,
// 5..5+k-1 = CheckRock(i).
const (
	North = iota
	South
	East
	West
	Sample
	firstCheck
)

const (
	moveReward       = 0.0
	sampleGoodReward = 10.0
	sampleBadReward  = -10.0
	exitReward       = 10.0
	illegalPenalty   = -100.0
	halfSensorRange  = 20.0
)

// Observations: 0=Good, 1=Bad, 2=None (for non-check actions).
const (
	ObsGood = iota
	ObsBad
	ObsNone
)

// Problem is a RockSample(n, k) instance: an n×n grid with k rocks at
// fixed locations, each independently good with probability
// RockProb. SensorEfficiency controls how fast sensing accuracy decays
// with distance.
type Problem struct {
	N                int
	K                int
	RockX, RockY     []int
	RockProb         float64
	SensorEfficiency float64
	Discount         float64
}

// New returns the standard RockSample(7, 8) layout used in the DESPOT
// and POMCP papers, with rocks at the canonical fixed positions.
func New() *Problem {
	return &Problem{
		N: 7, K: 8,
		RockX:            []int{2, 0, 3, 6, 2, 3, 5, 1},
		RockY:            []int{0, 1, 1, 3, 4, 4, 5, 6},
		RockProb:         0.5,
		SensorEfficiency: 20,
		Discount:         0.95,
	}
}

// NumActions returns 5 + K: North, South, East, West, Sample, and one
// CheckRock action per rock.
func (p *Problem) NumActions() int {
	return firstCheck + p.K
}

func (p *Problem) exited(s State) bool {
	return s.X >= p.N
}

func (p *Problem) rockAt(x, y int) (int, bool) {
	for i := 0; i < p.K; i++ {
		if p.RockX[i] == x && p.RockY[i] == y {
			return i, true
		}
	}
	return -1, false
}

func isGood(mask uint32, i int) bool {
	return mask&(1<<uint(i)) != 0
}

// Step executes one RockSample transition.
func (p *Problem) Step(s any, u float64, a int) (reward float64, next any, obs int, terminal bool) {
	state := s.(State)
	if p.exited(state) {
		return 0, state, ObsNone, true
	}

	switch {
	case a == North:
		state.Y = min(state.Y+1, p.N-1)
		return moveReward, state, ObsNone, false
	case a == South:
		state.Y = max(state.Y-1, 0)
		return moveReward, state, ObsNone, false
	case a == East:
		state.X++
		if p.exited(state) {
			return exitReward, state, ObsNone, true
		}
		return moveReward, state, ObsNone, false
	case a == West:
		state.X = max(state.X-1, 0)
		return moveReward, state, ObsNone, false
	case a == Sample:
		i, ok := p.rockAt(state.X, state.Y)
		if !ok {
			return illegalPenalty, state, ObsNone, false
		}
		if isGood(state.RockGood, i) {
			state.RockGood &^= 1 << uint(i)
			return sampleGoodReward, state, ObsNone, false
		}
		return sampleBadReward, state, ObsNone, false
	default:
		rockIdx := a - firstCheck
		if rockIdx < 0 || rockIdx >= p.K {
			panic(fmt.Sprintf("rocksample: Step: invalid action %d", a))
		}
		o := p.checkObs(state, rockIdx, u)
		return 0, state, o, false
	}
}

// checkObs draws a noisy CheckRock observation, correct with
// probability decaying exponentially with distance to the rock.
func (p *Problem) checkObs(state State, rockIdx int, u float64) int {
	dist := math.Hypot(float64(state.X-p.RockX[rockIdx]), float64(state.Y-p.RockY[rockIdx]))
	eta := p.sensorAccuracy(dist)
	good := isGood(state.RockGood, rockIdx)
	correct := ObsBad
	if good {
		correct = ObsGood
	}
	if u < eta {
		return correct
	}
	if correct == ObsGood {
		return ObsBad
	}
	return ObsGood
}

func (p *Problem) sensorAccuracy(dist float64) float64 {
	eff := p.SensorEfficiency
	if eff <= 0 {
		eff = halfSensorRange
	}
	decay := math.Exp(-dist / eff * math.Ln2)
	return 0.5 + 0.5*decay
}

// ObsProbability returns the probability of obs given the CheckRock
// action reporting on next's rock state; non-check actions always
// produce ObsNone deterministically.
func (p *Problem) ObsProbability(obs int, next any, a int) float64 {
	if a < firstCheck || a >= firstCheck+p.K {
		if obs == ObsNone {
			return 1
		}
		return 0
	}
	if obs == ObsNone {
		return 0
	}
	state := next.(State)
	rockIdx := a - firstCheck
	dist := math.Hypot(float64(state.X-p.RockX[rockIdx]), float64(state.Y-p.RockY[rockIdx]))
	eta := p.sensorAccuracy(dist)
	good := isGood(state.RockGood, rockIdx)
	if (good && obs == ObsGood) || (!good && obs == ObsBad) {
		return eta
	}
	return 1 - eta
}

// CreateStartState places the rover at (0, 0) and draws each rock's
// quality independently with probability RockProb.
func (p *Problem) CreateStartState(rng *rand.Rand) any {
	var mask uint32
	for i := 0; i < p.K; i++ {
		if rng.Float64() < p.RockProb {
			mask |= 1 << uint(i)
		}
	}
	return State{X: 0, Y: 0, RockGood: mask}
}

// InitialBelief returns a belief with the rover position fixed at
// start (known exactly) and uniform uncertainty over all 2^K rock
// quality assignments.
func (p *Problem) InitialBelief(start any, stream *rstream.Stream) (*belief.Belief, error) {
	s := start.(State)
	n := 1 << uint(p.K)
	states := make([]any, n)
	weights := make([]float64, n)
	for mask := 0; mask < n; mask++ {
		states[mask] = State{X: s.X, Y: s.Y, RockGood: uint32(mask)}
		weights[mask] = 1.0 / float64(n)
	}
	return belief.New(states, weights, stream)
}

// NumStates returns the number of distinct (position, rock-mask)
// combinations, including the exited absorbing state.
func (p *Problem) NumStates() int {
	return (p.N*p.N + 1) * (1 << uint(p.K))
}

// StateFromIndex maps a dense index back to a State, inverse of
// IndexOfState.
func (p *Problem) StateFromIndex(i int) any {
	masks := 1 << uint(p.K)
	posIdx := i / masks
	mask := i % masks
	if posIdx == p.N*p.N {
		return State{X: p.N, Y: 0, RockGood: uint32(mask)}
	}
	return State{X: posIdx % p.N, Y: posIdx / p.N, RockGood: uint32(mask)}
}

// IndexOfState is the inverse of StateFromIndex.
func (p *Problem) IndexOfState(s any) int {
	state := s.(State)
	masks := 1 << uint(p.K)
	if p.exited(state) {
		return p.N*p.N*masks + int(state.RockGood)
	}
	posIdx := state.Y*p.N + state.X
	return posIdx*masks + int(state.RockGood)
}

// IsTerminal reports whether s is the absorbing exited state.
func (p *Problem) IsTerminal(s any) bool {
	return p.exited(s.(State))
}

// DefaultAction names East (heading for the exit) as the fallback
// action when no belief information is available.
func (p *Problem) DefaultAction() int {
	return East
}

// MaxReward upper-bounds the best reward obtainable from any state at
// any depth: sampling every remaining good rock plus exiting, or
// nothing once the rover has exited.
func (p *Problem) MaxReward(s any, depth int) float64 {
	state := s.(State)
	if p.exited(state) {
		return 0
	}
	n := bitsSet(state.RockGood)
	return float64(n)*sampleGoodReward + exitReward
}

func bitsSet(mask uint32) int {
	count := 0
	for mask != 0 {
		count += int(mask & 1)
		mask >>= 1
	}
	return count
}

// NewBoundRegistry returns a bound.Registry for RockSample: "DEFAULT"
// is a fixed East rollout (head for the exit), matching the simplest
// useful fallback policy.
func (p *Problem) NewBoundRegistry(maxSimLen int) *bound.Registry {
	return bound.NewRegistry(p.MaxReward, p.Discount, East, maxSimLen)
}

// RockVector returns the rock-quality mask as a dense 0/1 vector, for
// diagnostic printing and for bound strategies that want the belief's
// rock-quality marginal in vector form.
func (s State) RockVector(k int) *mat.VecDense {
	v := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		if isGood(s.RockGood, i) {
			v.SetVec(i, 1)
		}
	}
	return v
}

// PrintState renders a state as its position and rock-quality vector.
func (p *Problem) PrintState(s any) string {
	state := s.(State)
	vec := state.RockVector(p.K)
	parts := make([]string, p.K)
	for i := 0; i < p.K; i++ {
		parts[i] = fmt.Sprintf("%.0f", vec.AtVec(i))
	}
	if p.exited(state) {
		return fmt.Sprintf("exited rocks=[%s]", strings.Join(parts, ""))
	}
	return fmt.Sprintf("(%d,%d) rocks=[%s]", state.X, state.Y, strings.Join(parts, ""))
}

// PrintObs renders an observation.
func (p *Problem) PrintObs(obs int) string {
	switch obs {
	case ObsGood:
		return "Good"
	case ObsBad:
		return "Bad"
	default:
		return "None"
	}
}

// PrintAction renders an action.
func (p *Problem) PrintAction(a int) string {
	switch a {
	case North:
		return "North"
	case South:
		return "South"
	case East:
		return "East"
	case West:
		return "West"
	case Sample:
		return "Sample"
	default:
		return fmt.Sprintf("CheckRock(%d)", a-firstCheck)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
