package compiler

import (
	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/ir"
)

// queueItem is one Abs or Letrec body awaiting compilation. Abs
// enqueues its body and emits a placeholder Cur; Letrec enqueues its
// rhs and emits nothing itself (each reference to its binding emits a
// placeholder Call, see compileVar). The body itself is compiled later, by the work-queue drain in
// makeLabels, so that sibling expressions in the enclosing scope finish
// compiling (and any labels they need stay contiguous) before a nested
// function's code is appended after them.
type queueItem struct {
	body ir.Exp
	env  *frame
}

// patchSite records a Cur or Call instruction whose target label could
// not be known when it was emitted, because it points at a queueItem's
// body, which hasn't been compiled (and so hasn't been assigned a
// label) yet. ctx resolves every patchSite in one pass once the whole
// queue has drained — see applyPatches.
type patchSite struct {
	at       bytecode.Label
	queueIdx int
}

// ctx is the compiler's mutable state: the instruction buffer under
// construction, the queue of not-yet-compiled function bodies, and the
// patch sites waiting on queue labels.
type ctx struct {
	code    *bytecode.Code
	queue   []queueItem
	patches []patchSite
}

func newCtx() *ctx {
	return &ctx{code: bytecode.New()}
}

// deferCur enqueues body (to compile under env once drained) and emits
// a Cur instruction targeting it, to be patched in once body's label is
// known.
func (c *ctx) deferCur(body ir.Exp, env *frame) {
	queueIdx := len(c.queue)
	c.queue = append(c.queue, queueItem{body: body, env: env})
	c.emitDeferred(bytecode.OpCur, queueIdx)
}

// emitDeferred appends a placeholder instruction of the given opcode
// and records it as a patch site for queueIdx's eventual label.
func (c *ctx) emitDeferred(op bytecode.OpCode, queueIdx int) {
	site := c.code.Emit(bytecode.Instr{Op: op})
	c.patches = append(c.patches, patchSite{at: site, queueIdx: queueIdx})
}

// makeLabels drains c.queue, assigning each item's body the label it
// occupies in c.code the moment it is dequeued — before compiling it.
// A self-reference inside a Letrec body is still emitted as a patch
// site by compileVar and resolved by applyPatches once every label is
// known. Compiling a body
// may append new items to the queue (nested Abs/Letrec), which this
// loop picks up on a later iteration.
func (c *ctx) makeLabels() []bytecode.Label {
	var labels []bytecode.Label
	for idx := 0; idx < len(c.queue); idx++ {
		item := c.queue[idx]
		labels = append(labels, bytecode.Label(c.code.Len()))
		compileExp(c, item.body, item.env)
		c.code.Emit(bytecode.Return())
	}
	return labels
}

// applyPatches resolves every recorded patchSite against the now-known
// queue labels.
func (c *ctx) applyPatches(labels []bytecode.Label) {
	for _, p := range c.patches {
		target := labels[p.queueIdx]
		switch c.code.At(p.at).Op {
		case bytecode.OpCur:
			c.code.Patch(p.at, bytecode.Cur(target))
		case bytecode.OpCall:
			c.code.Patch(p.at, bytecode.Call(target))
		default:
			invariant("patch site at %d has unexpected opcode %v", p.at, c.code.At(p.at).Op)
		}
	}
}
