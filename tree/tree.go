// Package tree implements the arena-allocated belief-tree: alternating
// V-nodes (belief nodes) and Q-nodes (action nodes) carrying
// scenario-indexed value bounds. Parent references are non-owning
// indices into the arena rather than pointers, so a tree has no
// cycles to manage and is trivially freed by dropping the arena.
package tree

import "github.com/samuelfneumann/despot/scenario"

// NodeIndex identifies a node within a Tree's arena. Indices start at
// 0 (the first node allocated, normally the root); use NoNode to
// represent "no parent"/"no child".
type NodeIndex int32

// NoNode is the index used where a node has no parent or a child slot
// is not yet populated.
const NoNode NodeIndex = -1

// StepOutcome records the result of stepping a single scenario once
// at a Q-node, so a later trial that revisits the same (node,
// scenario) pair reuses the outcome instead of re-invoking the model.
type StepOutcome struct {
	Reward   float64
	Next     scenario.State
	Obs      int
	Terminal bool
}

// VNode is a belief node: the set of scenarios consistent with the
// path from the root, upper/lower value bounds, a default-policy
// fallback, and one child Q-node per action once expanded.
type VNode struct {
	Scenarios scenario.Set
	Depth     int
	Parent    NodeIndex // owning Q-node, or NoNode for the root

	L, U          float64
	DefaultValue  float64
	DefaultAction int

	Children []NodeIndex // indexed by action; NoNode until expanded
	Expanded bool
	Terminal bool
	Pruned   bool
}

// QNode is an action node: the action it represents, one child V-node
// per observation actually produced by stepping its parent's
// scenarios, scenario-weighted reward and bounds, and the
// memoized per-scenario step outcomes taken to build its children.
type QNode struct {
	Action int
	Parent NodeIndex // owning V-node

	Children map[int]NodeIndex // keyed by observation

	R            float64
	L, U         float64
	RegularizedU float64
	Blocked      bool

	outcomes map[int]StepOutcome // scenario id -> memoized outcome
}

// Tree is the arena owning all nodes created during a single
// decision. It grows monotonically during that decision and is
// discarded once the action is committed.
type Tree struct {
	vnodes []VNode
	qnodes []QNode
	root   NodeIndex
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{root: NoNode}
}

// NewRoot creates the root V-node from a freshly sampled scenario set
// and returns its index.
func (t *Tree) NewRoot(scenarios scenario.Set) NodeIndex {
	idx := t.addVNode(VNode{Scenarios: scenarios, Depth: 0, Parent: NoNode})
	t.root = idx
	return idx
}

// Root returns the index of the tree's root V-node.
func (t *Tree) Root() NodeIndex {
	return t.root
}

// NewVNode appends a new V-node to the arena and returns its index.
func (t *Tree) NewVNode(v VNode) NodeIndex {
	return t.addVNode(v)
}

func (t *Tree) addVNode(v VNode) NodeIndex {
	t.vnodes = append(t.vnodes, v)
	return NodeIndex(len(t.vnodes) - 1)
}

// NewQNode appends a new Q-node to the arena and returns its index.
func (t *Tree) NewQNode(q QNode) NodeIndex {
	if q.Children == nil {
		q.Children = make(map[int]NodeIndex)
	}
	if q.outcomes == nil {
		q.outcomes = make(map[int]StepOutcome)
	}
	t.qnodes = append(t.qnodes, q)
	return NodeIndex(len(t.qnodes) - 1)
}

// V returns a pointer to the V-node at idx, for in-place mutation.
func (t *Tree) V(idx NodeIndex) *VNode {
	return &t.vnodes[idx]
}

// Q returns a pointer to the Q-node at idx, for in-place mutation.
func (t *Tree) Q(idx NodeIndex) *QNode {
	return &t.qnodes[idx]
}

// NumVNodes returns the number of V-nodes allocated so far.
func (t *Tree) NumVNodes() int {
	return len(t.vnodes)
}

// NumQNodes returns the number of Q-nodes allocated so far.
func (t *Tree) NumQNodes() int {
	return len(t.qnodes)
}

// Outcome returns the memoized step outcome for scenario id on this
// Q-node, if one has been recorded.
func (q *QNode) Outcome(scenarioID int) (StepOutcome, bool) {
	o, ok := q.outcomes[scenarioID]
	return o, ok
}

// SetOutcome memoizes the step outcome for scenario id on this
// Q-node. Subsequent visits to the same (node, scenario) pair must
// call Outcome instead of re-invoking the model.
func (q *QNode) SetOutcome(scenarioID int, o StepOutcome) {
	q.outcomes[scenarioID] = o
}

// Gap returns U-L for the V-node, the remaining uncertainty the
// search targets at this node.
func (v *VNode) Gap() float64 {
	return v.U - v.L
}
