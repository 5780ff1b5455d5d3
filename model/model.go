// Package model defines the Problem Model interface the planner is
// parameterized over. The core never assumes anything about state
// encoding: it clones, weighs, and hands states back to the model
// that produced them.
package model

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/despot/belief"
	"github.com/samuelfneumann/despot/rstream"
	"github.com/samuelfneumann/despot/scenario"
)

// State is an opaque, problem-defined value identifying a world
// configuration. It is the same type as scenario.State; the alias
// exists so problem packages only need to import model.
type State = scenario.State

// Problem is the generative model the planner searches over.
type Problem interface {
	// NumActions returns the number of actions, which are assumed to
	// be small dense integers in [0, NumActions()).
	NumActions() int

	// Step executes the generative model once, deterministically,
	// given the uniform sample u. For fixed s, u, and a the result
	// must be bit-reproducible.
	Step(s State, u float64, a int) (reward float64, next State, obs int, terminal bool)

	// ObsProbability returns the probability of observing obs having
	// arrived at next by taking action a.
	ObsProbability(obs int, next State, a int) float64

	// CreateStartState samples a fresh start state using rng.
	CreateStartState(rng *rand.Rand) State

	// InitialBelief returns the prior belief over states given a
	// concrete start state and the belief's private random stream,
	// used to bootstrap an episode.
	InitialBelief(start State, stream *rstream.Stream) (*belief.Belief, error)
}

// RewardModel is an optional capability: a direct reward function used
// as a shortcut by some upper bounds instead of re-deriving reward
// from Step.
type RewardModel interface {
	Reward(s State, a int) float64
}

// Printer is an optional diagnostic capability.
type Printer interface {
	PrintState(State) string
	PrintObs(obs int) string
	PrintAction(a int) string
}

// StateIndexer is an optional capability a Problem provides when its
// state space is small and enumerable, enabling the state-indexer
// inversion resampling policy. It mirrors belief.Indexer structurally.
type StateIndexer interface {
	NumStates() int
	StateFromIndex(i int) State
	IndexOfState(s State) int
}

// DefaultActioner is an optional capability naming the action a
// default (fallback) policy should take when no better information is
// available, e.g. on belief collapse.
type DefaultActioner interface {
	DefaultAction() int
}

// TerminalChecker is an optional capability letting a Problem flag a
// state as terminal without the search having to step away from it
// first. Problems with a designated absorbing state (e.g. a single
// terminal state reached deterministically) should implement this so
// the root can be recognized as terminal before any expansion.
type TerminalChecker interface {
	IsTerminal(s State) bool
}
