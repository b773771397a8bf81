// Package compiler translates a resolved ir.Exp tree into a bytecode.Code
// buffer.
//
// Architecture:
//
// Compilation is a single recursive walk of the Exp tree (compileExp),
// carrying a compile-time environment (*frame, see env.go) that mirrors
// the runtime env's Pair-spine shape one frame per binding site. Two
// things don't fit into that single walk, and both are handled by
// deferring work onto ctx's queue (see ctx.go):
//
//   - Abs and Letrec bodies are compiled after the expression containing
//     them, not inline, so that the enclosing code stays contiguous and
//     a function's body can be placed wherever is convenient once its
//     label is known.
//   - Cond and Case already know how to backpatch their own Goto/
//     GotoFalse/Switch targets inline (the gap between a placeholder and
//     its patch never crosses a deferred body), but Cur and the Lab-
//     frame Call emitted by a recursive variable reference cannot be
//     patched inline, since their target is a deferred body's label —
//     unknown until the queue drains. Those go through ctx's
//     patchSite list instead.
//
// Variable compilation (the E-rule, in env.go and compileVar below) is
// the other half of the design: a Var is not a stack slot, it's a walk
// through the compile-time environment counting frames until the
// binding pattern that introduced it is found, translated into an
// Acc/Rest walk (or, crossing a Letrec boundary, a Rest then Call into
// the recursive body's own frame).
package compiler

import (
	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/ir"
)

// Compile translates exp into a complete, runnable Code buffer ending in
// Stop.
func Compile(exp ir.Exp) *bytecode.Code {
	c := newCtx()
	compileExp(c, exp, nil)
	c.code.Emit(bytecode.Stop())

	labels := c.makeLabels()
	c.applyPatches(labels)
	return c.code
}

// compileExp emits the instructions for exp evaluated under env,
// leaving its result in env (the VM's convention: every instruction
// sequence produces its value in the env register, not on the stack).
func compileExp(c *ctx, exp ir.Exp, env *frame) {
	switch e := exp.(type) {
	case ir.Empty:
		c.code.Emit(bytecode.Clear())

	case ir.Var_:
		compileVar(c, e.V, env)

	case ir.Sys0:
		c.code.Emit(bytecode.Sys0(e.Op))

	case ir.Sys1:
		compileExp(c, e.Arg, env)
		c.code.Emit(bytecode.Sys1(e.Op))

	case ir.Sys2:
		compilePairExp(c, e.Left, e.Right, env)
		c.code.Emit(bytecode.Sys2(e.Op))

	case ir.Pair:
		compilePairExp(c, e.Left, e.Right, env)
		c.code.Emit(bytecode.Cons())

	case ir.Con:
		compileExp(c, e.Arg, env)
		c.code.Emit(bytecode.Pack(e.Tag))

	case ir.App:
		// The argument is compiled before the function, matching the
		// T-rule's left-then-right order; App itself pops the argument
		// from the stack and applies the closure left in env to it.
		compilePairExp(c, e.Arg, e.Fn, env)
		c.code.Emit(bytecode.App())

	case ir.Abs:
		c.deferCur(e.Body, consCon(env, e.Param))

	case ir.Cond:
		c.code.Emit(bytecode.Push())
		compileExp(c, e.Cond, env)

		gotoFalseSite := c.code.Emit(bytecode.Instr{})
		compileExp(c, e.Then, env)

		gotoSite := c.code.Emit(bytecode.Instr{})
		c.code.Patch(gotoFalseSite, bytecode.GotoFalse(bytecode.Label(c.code.Len())))
		compileExp(c, e.Else, env)
		c.code.Patch(gotoSite, bytecode.Goto(bytecode.Label(c.code.Len())))

	case ir.Case:
		compileCase(c, e, env)

	case ir.Let:
		c.code.Emit(bytecode.Push())
		compileExp(c, e.Rhs, env)
		c.code.Emit(bytecode.Cons())
		compileExp(c, e.Body, consCon(env, e.Pat))

	case ir.Letrec:
		queueIdx := len(c.queue)
		newEnv := consLab(env, e.Pat, queueIdx)
		c.queue = append(c.queue, queueItem{body: e.Rhs, env: newEnv})
		compileExp(c, e.Body, newEnv)

	default:
		invariant("unknown Exp variant %T", exp)
	}
}

// compileCase emits Push; the scrutinee; one reserved Switch slot per
// branch; then, per branch, patches its Switch to the branch's start
// label, compiles the branch body under a pattern-extended env, and (for
// every branch but the last) emits a placeholder Goto to the position
// after the whole Case — patched once that position is known.
func compileCase(c *ctx, e ir.Case, env *frame) {
	c.code.Emit(bytecode.Push())
	compileExp(c, e.Scrutinee, env)

	switchSites := make([]bytecode.Label, len(e.Branches))
	for i := range e.Branches {
		switchSites[i] = c.code.Emit(bytecode.Instr{})
	}

	var gotoSites []bytecode.Label
	for i, branch := range e.Branches {
		c.code.Patch(switchSites[i], bytecode.Switch(branch.Tag, bytecode.Label(c.code.Len())))
		compileExp(c, branch.Body, consCon(env, branch.Pat))
		if i != len(e.Branches)-1 {
			gotoSites = append(gotoSites, c.code.Emit(bytecode.Instr{}))
		}
	}

	end := bytecode.Label(c.code.Len())
	for _, site := range gotoSites {
		c.code.Patch(site, bytecode.Goto(end))
	}
}

// compilePairExp is the T-rule: Push a copy of env, compile left into
// env, Swap the pushed copy back into env, then compile right — leaving
// (left's value, right's value) arranged for the next instruction
// (Cons, App, or a Sys2) to combine.
func compilePairExp(c *ctx, left, right ir.Exp, env *frame) {
	c.code.Emit(bytecode.Push())
	compileExp(c, left, env)
	c.code.Emit(bytecode.Swap())
	compileExp(c, right, env)
}

// compileVar is the E-rule: walk the environment frames outward from
// the innermost binding, counting ordinary (conFrame) frames in lvl.
// The first frame whose pattern binds v wins:
//
//   - a conFrame hit emits Acc(lvl) followed by compilePattern's
//     selector path;
//   - a labFrame hit emits Rest(lvl); Call(L) (L is this frame's
//     deferred body) followed by compilePattern's selector path — Call
//     evaluates the recursive binding to produce the value at this
//     position, since a Letrec frame's "value" is the result of running
//     its own body, not a plain stack slot.
//
// labFrames that don't match v are skipped without advancing lvl: they
// don't correspond to a real slot in the conFrame spine Acc/Rest walk.
func compileVar(c *ctx, v ir.Var, env *frame) {
	lvl := uint64(0)
	for f := env; ; f = f.parent {
		if f == nil {
			invariant("free variable %d (resolution is assumed complete upstream)", v)
		}
		if f.isLab {
			if code, ok := compilePattern(v, f.pat); ok {
				c.code.Emit(bytecode.Rest(lvl))
				c.emitDeferred(bytecode.OpCall, f.queueIdx)
				for _, instr := range code {
					c.code.Emit(instr)
				}
				return
			}
			continue
		}
		if code, ok := compilePattern(v, f.pat); ok {
			c.code.Emit(bytecode.Acc(lvl))
			for _, instr := range code {
				c.code.Emit(instr)
			}
			return
		}
		lvl++
	}
}
