// Package scenario implements the determinized-trajectory machinery
// the search core is built on: states, weighted particles, and the
// scenario sets that V-nodes and Q-nodes carry.
package scenario

import "github.com/samuelfneumann/despot/rstream"

// State is an opaque, problem-defined value identifying a world
// configuration. The search core clones, weighs, and hands states
// back to the Problem that produced them; it never inspects their
// contents.
type State = any

// Particle is a weighted state bound to a scenario id and that
// scenario's private random stream. Two particles sharing a scenario
// id anywhere in a tree must, by construction, have descended from
// the same root particle and therefore resolve identically against
// their shared Stream.
type Particle struct {
	ID     int
	State  State
	Weight float64
	Stream *rstream.Stream
}

// Set is a finite collection of particles, each a determinization of
// the problem bound to a private random stream. A Set is the payload
// every V-node and Q-node carries: it is the "scenarios currently
// consistent with the path from the root to this node."
type Set struct {
	Particles []Particle
}

// NewSet builds a Set from the given particles.
func NewSet(particles []Particle) Set {
	return Set{Particles: particles}
}

// Len returns the number of particles in the set.
func (s Set) Len() int {
	return len(s.Particles)
}

// TotalWeight returns the sum of particle weights in the set. Because
// bound outputs are scenario-weight-additive, this is also the factor
// by which a subtree's bound contribution should be read relative to
// its parent's.
func (s Set) TotalWeight() float64 {
	var total float64
	for _, p := range s.Particles {
		total += p.Weight
	}
	return total
}

// Empty reports whether the set has no particles.
func (s Set) Empty() bool {
	return len(s.Particles) == 0
}
