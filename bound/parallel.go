package bound

import (
	"golang.org/x/sync/errgroup"

	"github.com/samuelfneumann/despot/scenario"
)

// Group is one observation-group's particles awaiting bound
// evaluation during expansion.
type Group struct {
	Particles []scenario.Particle
	Depth     int
}

// GroupResult is the Lower/Upper bound pair computed for a Group.
type GroupResult struct {
	Lower         float64
	DefaultAction int
	Upper         float64
}

// EvaluateGroups computes Lower and Upper for every group. When
// parallel is true the groups are evaluated concurrently via
// errgroup, one goroutine per group; bound strategies must not share
// mutable state across calls for this to be safe, which holds for
// every strategy in this package (each call reads the Problem it's
// given and advances only its own particles' streams, and groups do
// not share particles). When parallel is false the
// groups are evaluated in order on the calling goroutine, preserving
// the single-threaded contract the planner defaults to.
func EvaluateGroups(p Problem, lower Lower, upper Upper, groups []Group, parallel bool) []GroupResult {
	results := make([]GroupResult, len(groups))

	eval := func(i int) {
		l, a := lower.Value(p, groups[i].Particles, groups[i].Depth)
		u := upper.Value(p, groups[i].Particles, groups[i].Depth)
		results[i] = GroupResult{Lower: l, DefaultAction: a, Upper: u}
	}

	if !parallel {
		for i := range groups {
			eval(i)
		}
		return results
	}

	var g errgroup.Group
	for i := range groups {
		i := i
		g.Go(func() error {
			eval(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
