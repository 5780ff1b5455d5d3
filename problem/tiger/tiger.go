// Package tiger implements the classic Tiger problem: a door hides a
// tiger behind it, the other safety. Listening gives a noisy hint
// about which side the tiger is on; opening the wrong door is costly,
// the right door pays off, and opening either door ends the episode.
package tiger

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/rstream"
)

// State is which side the tiger is actually on, or Done once a door
// has been opened. Done is absorbing: stepping it yields zero reward
// forever, so value bounds on finished trajectories are exactly zero.
type State int

const (
	Left State = iota
	Right
	Done
)

func (s State) String() string {
	switch s {
	case Left:
		return "TigerLeft"
	case Right:
		return "TigerRight"
	default:
		return "Done"
	}
}

// Actions.
const (
	Listen = iota
	OpenLeft
	OpenRight
)

// Observations.
const (
	HearLeft = iota
	HearRight
)

const (
	listenReward     = -1.0
	correctOpenBonus = 10.0
	wrongOpenPenalty = -100.0
)

// Problem is the Tiger Problem Model. ListenAccuracy is the
// probability Listen correctly reports the tiger's true side; the
// classic parameterization uses 0.85.
type Problem struct {
	ListenAccuracy float64
}

// New returns a Tiger Problem with the classic 0.85 listen accuracy.
func New() *Problem {
	return &Problem{ListenAccuracy: 0.85}
}

// NewWithAccuracy returns a Tiger Problem with a custom listen
// accuracy, for sensitivity experiments.
func NewWithAccuracy(accuracy float64) *Problem {
	return &Problem{ListenAccuracy: accuracy}
}

// NumActions returns 3: Listen, OpenLeft, OpenRight.
func (p *Problem) NumActions() int {
	return 3
}

// Step executes one transition. Listening never moves the tiger and
// never terminates the episode; opening either door terminates it,
// moving the state to the absorbing Done value.
func (p *Problem) Step(s any, u float64, a int) (reward float64, next any, obs int, terminal bool) {
	state := s.(State)
	if state == Done {
		return 0, Done, p.nominalObs(u), true
	}

	switch a {
	case Listen:
		obs = p.listenObs(state, u)
		return listenReward, state, obs, false
	case OpenLeft:
		return p.openReward(state, Left), Done, p.nominalObs(u), true
	case OpenRight:
		return p.openReward(state, Right), Done, p.nominalObs(u), true
	default:
		panic(fmt.Sprintf("tiger: Step: invalid action %d", a))
	}
}

func (p *Problem) openReward(state State, opened State) float64 {
	if state == opened {
		return wrongOpenPenalty
	}
	return correctOpenBonus
}

// listenObs draws the observation Listen produces against u, correct
// with probability ListenAccuracy.
func (p *Problem) listenObs(state State, u float64) int {
	correct := stateToObs(state)
	if u < p.ListenAccuracy {
		return correct
	}
	return 1 - correct
}

// nominalObs gives opening actions a well-defined observation (the
// door's contents are already known by the reward); it carries no
// information and is drawn uniformly so ObsProbability stays
// consistent at 0.5 each.
func (p *Problem) nominalObs(u float64) int {
	if u < 0.5 {
		return HearLeft
	}
	return HearRight
}

func stateToObs(s State) int {
	if s == Left {
		return HearLeft
	}
	return HearRight
}

// ObsProbability returns the probability of obs having been produced
// by action a arriving at next.
func (p *Problem) ObsProbability(obs int, next any, a int) float64 {
	state := next.(State)
	switch a {
	case Listen:
		correct := stateToObs(state)
		if obs == correct {
			return p.ListenAccuracy
		}
		return 1 - p.ListenAccuracy
	default:
		return 0.5
	}
}

// CreateStartState samples a fresh tiger placement, uniform over the
// two doors.
func (p *Problem) CreateStartState(rng *rand.Rand) any {
	if rng.Float64() < 0.5 {
		return Left
	}
	return Right
}

// InitialBelief returns the uniform prior over {Left, Right}: the
// classic Tiger problem never actually knows the true side a priori,
// so start is unused; stream becomes the belief's private stream.
func (p *Problem) InitialBelief(start any, stream *rstream.Stream) (*belief.Belief, error) {
	return belief.New([]any{Left, Right}, []float64{0.5, 0.5}, stream)
}

// Reward is a direct reward shortcut for upper bounds: worst case at
// any given depth is still bounded by the best possible open.
func (p *Problem) Reward(s any, a int) float64 {
	state := s.(State)
	if state == Done {
		return 0
	}
	switch a {
	case Listen:
		return listenReward
	case OpenLeft:
		return p.openReward(state, Left)
	case OpenRight:
		return p.openReward(state, Right)
	default:
		return 0
	}
}

// IsTerminal reports whether s is the absorbing Done state.
func (p *Problem) IsTerminal(s any) bool {
	return s.(State) == Done
}

// MaxReward is the best possible reward achievable from any state at
// any depth, used to seed an upper bound strategy: opening the
// correct door, or nothing once a door has been opened.
func MaxReward(s any, depth int) float64 {
	if s.(State) == Done {
		return 0
	}
	return correctOpenBonus
}

// NumStates returns 2.
func (p *Problem) NumStates() int {
	return 2
}

// StateFromIndex maps {0, 1} to {Left, Right}.
func (p *Problem) StateFromIndex(i int) any {
	if i == 0 {
		return Left
	}
	return Right
}

// IndexOfState is the inverse of StateFromIndex.
func (p *Problem) IndexOfState(s any) int {
	if s.(State) == Left {
		return 0
	}
	return 1
}

// DefaultAction names Listen as the fallback action when no belief
// information is available.
func (p *Problem) DefaultAction() int {
	return Listen
}

// PrintState, PrintObs, and PrintAction implement the optional
// Printer capability for diagnostic episode traces.
func (p *Problem) PrintState(s any) string {
	return s.(State).String()
}

func (p *Problem) PrintObs(obs int) string {
	if obs == HearLeft {
		return "HearLeft"
	}
	return "HearRight"
}

func (p *Problem) PrintAction(a int) string {
	switch a {
	case Listen:
		return "Listen"
	case OpenLeft:
		return "OpenLeft"
	case OpenRight:
		return "OpenRight"
	default:
		return "Unknown"
	}
}
