// Package search implements the gap-directed trial runner: the
// engine that builds and refines a belief tree one trajectory at a
// time by descending on regularized upper bound and excess
// uncertainty, expanding the leaf it reaches, and backing up exact
// value bounds along the path it took.
package search

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/samuelfneumann/despot/bound"
	"github.com/samuelfneumann/despot/scenario"
	"github.com/samuelfneumann/despot/tree"
)

// tolerance for the blocked-Q-node equality check U(q) == L(q); exact
// floating equality would be too brittle given accumulated rounding.
const blockTol = 1e-9

// Problem is the slice of a Problem Model the search needs: stepping
// scenarios forward and counting actions. Satisfied structurally by
// model.Problem.
type Problem interface {
	NumActions() int
	Step(s scenario.State, u float64, a int) (reward float64, next scenario.State, obs int, terminal bool)
}

// TerminalChecker is an optional capability letting a Problem flag a
// state as already terminal, without the search having to step away
// from it first. Satisfied structurally by model.TerminalChecker.
type TerminalChecker interface {
	IsTerminal(s scenario.State) bool
}

// Runner owns everything a trial needs beyond the tree itself: the
// problem it searches over, the bound strategies it falls back to at
// unexpanded leaves, and the gap/regularization parameters from
// planner configuration.
type Runner struct {
	Problem Problem
	Lower   bound.Lower
	Upper   bound.Upper

	Discount    float64
	Xi          float64
	Lambda      float64
	SearchDepth int

	// ParallelBounds enables scenario-parallel bound evaluation across
	// an expanded node's observation groups. Off by default.
	ParallelBounds bool
}

// NewRoot builds the tree's root V-node from a freshly sampled
// scenario set, computing its initial bounds from the configured
// strategies and flagging it terminal up front when the Problem
// implements TerminalChecker and every particle's state already
// qualifies.
func (r *Runner) NewRoot(t *tree.Tree, particles []scenario.Particle) tree.NodeIndex {
	set := scenario.NewSet(particles)
	lowerVal, defAction := r.Lower.Value(r.Problem, particles, 0)
	upperVal := r.Upper.Value(r.Problem, particles, 0)

	idx := t.NewRoot(set)
	v := t.V(idx)
	v.L = lowerVal
	v.U = upperVal
	v.DefaultValue = lowerVal
	v.DefaultAction = defAction
	v.Terminal = allInitiallyTerminal(r.Problem, particles)
	return idx
}

func allInitiallyTerminal(p Problem, particles []scenario.Particle) bool {
	tc, ok := p.(TerminalChecker)
	if !ok || len(particles) == 0 {
		return false
	}
	for _, particle := range particles {
		if !tc.IsTerminal(particle.State) {
			return false
		}
	}
	return true
}

// step records one edge taken during a descent: the V-node visited,
// the Q-node (action) chosen from it, and the observation chosen from
// that Q-node. The last step in a path holds the V-node the trial
// stopped at; its qnode is tree.NoNode unless the chosen Q-node had no
// observation children to descend into.
type step struct {
	vnode tree.NodeIndex
	qnode tree.NodeIndex
}

// Trial runs a single root-to-leaf descent, expands the leaf it
// reaches (unless the descent stopped for depth, gap, or a terminal
// scenario set), and backs up L/U along the path. It invokes the
// model at most once per (node, scenario) pair: revisits reuse the
// outcome memoized on the Q-node.
func (r *Runner) Trial(t *tree.Tree) {
	root := t.Root()
	eps := r.Xi * t.V(root).Gap()

	path := r.descend(t, root, eps)
	leaf := path[len(path)-1].vnode
	if r.expandable(t.V(leaf), eps) {
		r.expand(t, leaf)
	}
	r.backup(t, path)

	if tree.DebugChecks {
		if err := tree.CheckInvariants(t); err != nil {
			panic(err)
		}
	}
}

// expandable reports whether the trial stopped at v because it has
// not been expanded yet, rather than for depth, convergence, or
// terminality. Only the former stop reason grows the tree.
func (r *Runner) expandable(v *tree.VNode, eps float64) bool {
	if v.Expanded || v.Terminal || v.Depth >= r.SearchDepth {
		return false
	}
	target := eps * math.Pow(r.Discount, -float64(v.Depth))
	return v.Gap() >= target
}

func (r *Runner) descend(t *tree.Tree, root tree.NodeIndex, eps float64) []step {
	var path []step
	cur := root
	for {
		v := t.V(cur)
		depth := v.Depth
		target := eps * math.Pow(r.Discount, -float64(depth))
		if depth >= r.SearchDepth || v.Terminal || v.Gap() < target || !v.Expanded {
			path = append(path, step{vnode: cur, qnode: tree.NoNode})
			return path
		}

		qidx, ok := r.selectAction(t, v)
		if !ok {
			path = append(path, step{vnode: cur, qnode: tree.NoNode})
			return path
		}

		childIdx, ok := r.selectObservation(t, qidx, eps, depth)
		if !ok {
			path = append(path, step{vnode: cur, qnode: qidx})
			return path
		}

		path = append(path, step{vnode: cur, qnode: qidx})
		cur = childIdx
	}
}

// selectAction picks the unblocked Q-node child with the largest
// regularized upper bound, ties broken toward the smaller action.
func (r *Runner) selectAction(t *tree.Tree, v *tree.VNode) (tree.NodeIndex, bool) {
	best := tree.NoNode
	bestVal := math.Inf(-1)
	for _, qidx := range v.Children {
		if qidx == tree.NoNode {
			continue
		}
		q := t.Q(qidx)
		if q.Blocked {
			continue
		}
		if q.RegularizedU > bestVal {
			bestVal = q.RegularizedU
			best = qidx
		}
	}
	if best == tree.NoNode {
		return tree.NoNode, false
	}
	return best, true
}

// selectObservation picks the observation child with the largest
// excess uncertainty (U-L)(child) - eps*discount^-depth, ties broken
// toward the smaller observation value.
func (r *Runner) selectObservation(t *tree.Tree, qidx tree.NodeIndex, eps float64, parentDepth int) (tree.NodeIndex, bool) {
	q := t.Q(qidx)
	if len(q.Children) == 0 {
		return tree.NoNode, false
	}

	obsKeys := make([]int, 0, len(q.Children))
	for o := range q.Children {
		obsKeys = append(obsKeys, o)
	}
	sort.Ints(obsKeys)

	target := eps * math.Pow(r.Discount, -float64(parentDepth+1))
	best := tree.NoNode
	bestVal := math.Inf(-1)
	for _, o := range obsKeys {
		cidx := q.Children[o]
		excess := t.V(cidx).Gap() - target
		if excess > bestVal {
			bestVal = excess
			best = cidx
		}
	}
	return best, true
}

// expand creates one Q-node per action, steps every particle in v's
// scenario set once per action, groups the resulting (state, reward,
// observation) triples by observation to form the action's children,
// and bounds each child from the configured strategies. Outcomes are
// memoized on the Q-node so a later trial revisiting the same
// (node, scenario) pair never re-invokes the model.
func (r *Runner) expand(t *tree.Tree, vidx tree.NodeIndex) {
	// NewVNode below may grow the arena and invalidate node pointers,
	// so the parent's fields are copied out here and the final writes
	// re-resolve vidx.
	parentParticles := t.V(vidx).Scenarios.Particles
	childDepth := t.V(vidx).Depth + 1
	n := r.Problem.NumActions()
	children := make([]tree.NodeIndex, n)

	for a := 0; a < n; a++ {
		qidx := t.NewQNode(tree.QNode{Action: a, Parent: vidx})
		q := t.Q(qidx)

		groups := make(map[int][]scenario.Particle)
		var rsum float64
		for _, particle := range parentParticles {
			u := particle.Stream.Float64()
			reward, next, obs, terminal := r.Problem.Step(particle.State, u, a)
			q.SetOutcome(particle.ID, tree.StepOutcome{
				Reward: reward, Next: next, Obs: obs, Terminal: terminal,
			})
			rsum += particle.Weight * reward
			groups[obs] = append(groups[obs], scenario.Particle{
				ID: particle.ID, State: next, Weight: particle.Weight, Stream: particle.Stream,
			})
		}
		q.R = rsum

		obsKeys := make([]int, 0, len(groups))
		boundGroups := make([]bound.Group, 0, len(groups))
		for obs, particles := range groups {
			obsKeys = append(obsKeys, obs)
			boundGroups = append(boundGroups, bound.Group{Particles: particles, Depth: childDepth})
		}
		results := bound.EvaluateGroups(r.Problem, r.Lower, r.Upper, boundGroups, r.ParallelBounds)

		for i, obs := range obsKeys {
			particles := groups[obs]
			res := results[i]
			childIdx := t.NewVNode(tree.VNode{
				Scenarios:     scenario.NewSet(particles),
				Depth:         childDepth,
				Parent:        qidx,
				L:             res.Lower,
				U:             res.Upper,
				DefaultValue:  res.Lower,
				DefaultAction: res.DefaultAction,
				Terminal:      allTerminal(q, particles),
			})
			q.Children[obs] = childIdx
		}
		children[a] = qidx
	}

	v := t.V(vidx)
	v.Children = children
	v.Expanded = true
	r.recomputeV(t, vidx)
}

func allTerminal(q *tree.QNode, particles []scenario.Particle) bool {
	for _, p := range particles {
		o, ok := q.Outcome(p.ID)
		if !ok || !o.Terminal {
			return false
		}
	}
	return true
}

// backup recomputes L and U back along the descent path, deepest
// node first, and marks Q-nodes blocked once they can no longer
// change the outcome of action selection.
func (r *Runner) backup(t *tree.Tree, path []step) {
	for i := len(path) - 1; i >= 0; i-- {
		v := t.V(path[i].vnode)
		if v.Expanded {
			r.recomputeV(t, path[i].vnode)
		}
	}
}

// recomputeV recomputes every child Q-node of v from its own
// children's current bounds, then sets v.L and v.U to the max over
// actions, per the backup rules.
func (r *Runner) recomputeV(t *tree.Tree, vidx tree.NodeIndex) {
	v := t.V(vidx)
	parentWeight := v.Scenarios.TotalWeight()

	bestL := math.Inf(-1)
	bestRegU := math.Inf(-1)
	for _, qidx := range v.Children {
		if qidx == tree.NoNode {
			continue
		}
		r.recomputeQ(t, qidx, parentWeight)
		q := t.Q(qidx)
		if q.L > bestL {
			bestL = q.L
		}
		if q.RegularizedU > bestRegU {
			bestRegU = q.RegularizedU
		}
	}
	v.L = bestL
	v.U = bestRegU

	for _, qidx := range v.Children {
		if qidx == tree.NoNode {
			continue
		}
		q := t.Q(qidx)
		if q.U-q.L <= blockTol || q.RegularizedU <= v.L {
			q.Blocked = true
		}
	}
}

// recomputeQ recomputes q.L, q.U, and q.RegularizedU from its
// children's current bounds: R(q) + discount * sum over children,
// minus a weight-proportional penalty on the upper bound.
func (r *Runner) recomputeQ(t *tree.Tree, qidx tree.NodeIndex, parentWeight float64) {
	q := t.Q(qidx)

	childL := make([]float64, 0, len(q.Children))
	childU := make([]float64, 0, len(q.Children))
	for _, cidx := range q.Children {
		c := t.V(cidx)
		childL = append(childL, c.L)
		childU = append(childU, c.U)
	}
	sumL := floats.Sum(childL)
	sumU := floats.Sum(childU)

	q.L = q.R + r.Discount*sumL
	q.U = q.R + r.Discount*sumU
	q.RegularizedU = q.U - r.Lambda*parentWeight
}
