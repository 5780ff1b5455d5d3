package tree

import "fmt"

// DebugChecks enables the invariant checks CheckInvariants performs.
// Off by default; the search runner calls CheckInvariants after every
// trial only when this is set, so release builds pay nothing for it.
var DebugChecks = false

// CheckInvariants verifies the bound monotonicity and scenario
// set non-emptiness invariants over every node in t, returning the
// first violation found.
func CheckInvariants(t *Tree) error {
	for i, v := range t.vnodes {
		if v.L > v.U+1e-9 {
			return fmt.Errorf("tree: invariant violation: vnode %d has L=%v > U=%v", i, v.L, v.U)
		}
		if v.Expanded && v.Scenarios.Empty() {
			return fmt.Errorf("tree: invariant violation: expanded vnode %d has empty scenario set", i)
		}
	}
	for i, q := range t.qnodes {
		if q.L > q.U+1e-9 {
			return fmt.Errorf("tree: invariant violation: qnode %d has L=%v > U=%v", i, q.L, q.U)
		}
	}
	return nil
}
