package compiler

import (
	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/ir"
)

// frame is one link of the compile-time environment, a stack of pattern
// bindings threaded through compileExp as a persistent singly linked
// list (each Abs/Let/Case branch pushes a new frame in front without
// mutating the one its caller is still holding — siblings in a Case
// see independent extensions of the same parent chain).
//
// A conFrame is an ordinary binding introduced by Abs, Let, or a Case
// branch. A labFrame is introduced by Letrec: it additionally carries
// the deferred body index so a recursive reference inside rhs compiles
// to Rest(lvl); Call(L) instead of a plain Acc/Rest walk — see
// compileVar.
type frame struct {
	parent *frame
	pat    ir.Pat
	// isLab and queueIdx are only meaningful together: isLab marks this
	// frame as a Letrec binding, and queueIdx names its entry in ctx's
	// deferred body queue.
	isLab    bool
	queueIdx int
}

func consCon(parent *frame, pat ir.Pat) *frame {
	return &frame{parent: parent, pat: pat}
}

func consLab(parent *frame, pat ir.Pat, queueIdx int) *frame {
	return &frame{parent: parent, pat: pat, isLab: true, queueIdx: queueIdx}
}

// compilePattern locates v within pat and returns the instruction
// sequence that, given the whole matched value already in env, selects
// v's component of it. ok is false if pat does not bind v anywhere.
//
// A PPair tries its left child first (prefixed with Rest(1), since
// Rest walks left without taking the final right step) and falls back
// to its right child (prefixed with Acc(0)). A PLayer checks whether it
// itself is v before recursing into its inner pattern — an as-pattern
// binds at every level it wraps.
func compilePattern(v ir.Var, pat ir.Pat) ([]bytecode.Instr, bool) {
	switch p := pat.(type) {
	case ir.PEmpty:
		return nil, false
	case ir.PVar:
		if p.V == v {
			return nil, true
		}
		return nil, false
	case ir.PPair:
		if code, ok := compilePattern(v, p.Left); ok {
			return prepend(bytecode.Rest(1), code), true
		}
		if code, ok := compilePattern(v, p.Right); ok {
			return prepend(bytecode.Acc(0), code), true
		}
		return nil, false
	case ir.PLayer:
		if p.V == v {
			return nil, true
		}
		return compilePattern(v, p.Inner)
	default:
		invariant("unknown Pat variant %T", pat)
		return nil, false
	}
}

func prepend(first bytecode.Instr, rest []bytecode.Instr) []bytecode.Instr {
	out := make([]bytecode.Instr, 0, len(rest)+1)
	out = append(out, first)
	out = append(out, rest...)
	return out
}
