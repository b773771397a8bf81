// Package gc implements the VM's mark-and-sweep collector.
//
// Architecture:
//
// The collector is stop-the-world, non-moving, and threshold-triggered:
// pkg/vm checks heap.Len() against Threshold after every instruction
// retires, and runs a Cycle when it is exceeded. A Cycle has two
// phases:
//
//  1. Mark — start a worklist seeded with the roots (the VM's env and
//     every Ref on its stack), and drain it: pop a Ref, and if it
//     hasn't been visited yet, color it Black and push every Ref it
//     directly references (via heap.Value.Refs) onto the worklist.
//  2. Sweep — walk every Ref currently in the heap; anything still
//     White (never reached from a root) is deleted, and anything
//     Black is reset to White so the next cycle starts from a clean
//     slate.
//
// This is the same two-step shape as the reference collector's
// Vacuum.mark/finish pair (a pending set drained into a marked set,
// followed by a single retain pass) — rendered here without a separate
// Vacuum type, since Go doesn't need the borrow-checker dance that
// motivated splitting "still mutating the pending set" from "now
// mutating the heap" into two structs.
package gc

import "github.com/kristofer/gokart/pkg/heap"

// DefaultThreshold is the object count above which a Cycle runs, absent
// an explicit override (see cmd/gokart's --gc-threshold flag).
const DefaultThreshold = 10000

// Collector runs mark-and-sweep cycles against one Heap.
type Collector struct {
	Threshold int
}

// New returns a Collector using the given threshold.
func New(threshold int) *Collector {
	return &Collector{Threshold: threshold}
}

// Necessary reports whether h has grown past the configured threshold
// and a Cycle should run before the next instruction.
func (c *Collector) Necessary(h *heap.Heap) bool {
	return h.Len() > c.Threshold
}

// Cycle runs one full mark-and-sweep pass over h, treating env and every
// Ref in stack as roots. It returns the number of objects reclaimed.
func (c *Collector) Cycle(h *heap.Heap, env heap.Ref, stack []heap.Ref) int {
	marked := mark(h, env, stack)
	return sweep(h, marked)
}

// mark drains a worklist seeded with the roots, returning the set of
// Refs reachable from them.
func mark(h *heap.Heap, env heap.Ref, stack []heap.Ref) map[heap.Ref]bool {
	marked := make(map[heap.Ref]bool)
	pending := append([]heap.Ref{env}, stack...)

	for len(pending) > 0 {
		n := len(pending) - 1
		ref := pending[n]
		pending = pending[:n]

		if marked[ref] {
			continue
		}
		marked[ref] = true
		h.SetColor(ref, heap.Black)
		pending = append(pending, h.Get(ref).Refs()...)
	}
	return marked
}

// sweep deletes every Ref not in marked and resets every surviving
// Ref's color back to White, so the heap is ready for the next cycle.
// It returns the number of Refs deleted.
func sweep(h *heap.Heap, marked map[heap.Ref]bool) int {
	var dead []heap.Ref
	h.Each(func(ref heap.Ref) {
		if !marked[ref] {
			dead = append(dead, ref)
		}
	})
	for _, ref := range dead {
		h.Delete(ref)
	}
	for ref := range marked {
		h.SetColor(ref, heap.White)
	}
	return len(dead)
}
