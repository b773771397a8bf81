// Package bytecode defines the linear instruction format the compiler
// produces and the VM executes.
//
// The bytecode is the boundary between pkg/compiler and pkg/vm: it is a
// flat, indexable buffer of instructions, addressed by label (a plain
// index into the buffer, not a pointer). Nothing about it is specific to
// any one source language — it only knows about environments, a single
// operand stack, and the nine runtime value shapes in pkg/heap.
//
// Architecture:
//
// Code holds the full instruction buffer. An Instr is deliberately flat
// — one struct shape for every opcode, most fields unused for any given
// opcode — rather than one Go type per opcode, because the VM's dispatch
// loop and the on-disk format both want to switch on a single byte-sized
// tag and decode a fixed-size record.
//
// Example:
//
//	Source (already desugared): (\n -> n + x) 4, where x is bound to 1
//	by the initial env Pair(Empty, Int(1))
//
//	Code.Instrs:
//	  0: Push
//	  1: Sys0 (NullOp{Kind: NullIntLit, Int: 4})
//	  2: Swap
//	  3: Cur(6)
//	  4: App
//	  5: Stop
//	  6: Push
//	  7: Acc(0)
//	  8: Swap
//	  9: Acc(1)
//	 10: Sys2 (BinOp{Kind: BinIntPlus})
//	 11: Return
package bytecode

import (
	"fmt"

	"github.com/kristofer/gokart/pkg/ir"
)

// OpCode identifies a bytecode instruction. Values are fixed by the wire
// format (see Encode/Decode) and must never be renumbered: a serialised
// .gkc file from one compiler build must stay loadable by a VM build
// compiled against a later version of this package.
type OpCode uint8

const (
	OpAcc       OpCode = 1
	OpRest      OpCode = 2
	OpPush      OpCode = 3
	OpSwap      OpCode = 4
	OpSys0      OpCode = 5
	OpSys1      OpCode = 6
	OpSys2      OpCode = 7
	OpCur       OpCode = 8
	OpReturn    OpCode = 9
	OpClear     OpCode = 10
	OpCons      OpCode = 11
	OpApp       OpCode = 12
	OpPack      OpCode = 13
	OpSkip      OpCode = 14
	OpStop      OpCode = 15
	OpCall      OpCode = 16
	OpGotoFalse OpCode = 17
	OpSwitch    OpCode = 18
	OpGoto      OpCode = 19
)

// String returns the mnemonic used by the disassembler and in runtime
// error stack traces.
func (op OpCode) String() string {
	switch op {
	case OpAcc:
		return "ACC"
	case OpRest:
		return "REST"
	case OpPush:
		return "PUSH"
	case OpSwap:
		return "SWAP"
	case OpSys0:
		return "SYS0"
	case OpSys1:
		return "SYS1"
	case OpSys2:
		return "SYS2"
	case OpCur:
		return "CUR"
	case OpReturn:
		return "RETURN"
	case OpClear:
		return "CLEAR"
	case OpCons:
		return "CONS"
	case OpApp:
		return "APP"
	case OpPack:
		return "PACK"
	case OpSkip:
		return "SKIP"
	case OpStop:
		return "STOP"
	case OpCall:
		return "CALL"
	case OpGotoFalse:
		return "GOTOFALSE"
	case OpSwitch:
		return "SWITCH"
	case OpGoto:
		return "GOTO"
	default:
		return "UNKNOWN"
	}
}

// Label is an index into a Code's Instrs buffer.
type Label uint64

// Instr is one bytecode instruction. Only the fields relevant to Op are
// meaningful; the rest are zero. This flat shape (rather than one Go
// type per opcode) is what lets the VM dispatch on Op alone and lets
// Encode/Decode use one fixed-size-plus-payload record shape.
//
//	Acc, Rest        use A (the walk count)
//	Push, Swap, Clear,
//	Cons, App, Return,
//	Skip, Stop        use no operand
//	Sys0              uses Op0
//	Sys1              uses Op1 (operand comes from env at run time)
//	Sys2              uses Op2 (left operand from stack, right from env)
//	Cur, Call, Goto   use A (the target Label)
//	GotoFalse         uses A (the target Label)
//	Pack              uses A (the constructor Tag)
//	Switch            uses A (the Tag) and B (the target Label)
type Instr struct {
	Op  OpCode
	A   uint64
	B   uint64
	Op0 ir.NullOp
	Op1 ir.UnOp
	Op2 ir.BinOp
}

// Acc builds an Acc(n) instruction.
func Acc(n uint64) Instr { return Instr{Op: OpAcc, A: n} }

// Rest builds a Rest(n) instruction.
func Rest(n uint64) Instr { return Instr{Op: OpRest, A: n} }

// Push builds a Push instruction.
func Push() Instr { return Instr{Op: OpPush} }

// Swap builds a Swap instruction.
func Swap() Instr { return Instr{Op: OpSwap} }

// Sys0 builds a Sys0 instruction invoking op.
func Sys0(op ir.NullOp) Instr { return Instr{Op: OpSys0, Op0: op} }

// Sys1 builds a Sys1 instruction invoking op.
func Sys1(op ir.UnOp) Instr { return Instr{Op: OpSys1, Op1: op} }

// Sys2 builds a Sys2 instruction invoking op.
func Sys2(op ir.BinOp) Instr { return Instr{Op: OpSys2, Op2: op} }

// Cur builds a Cur(L) instruction — make a closure over the current env
// at label L.
func Cur(l Label) Instr { return Instr{Op: OpCur, A: uint64(l)} }

// Return builds a Return instruction.
func Return() Instr { return Instr{Op: OpReturn} }

// Clear builds a Clear instruction.
func Clear() Instr { return Instr{Op: OpClear} }

// Cons builds a Cons instruction.
func Cons() Instr { return Instr{Op: OpCons} }

// App builds an App instruction.
func App() Instr { return Instr{Op: OpApp} }

// Pack builds a Pack(tag) instruction.
func Pack(tag ir.Tag) Instr { return Instr{Op: OpPack, A: uint64(tag)} }

// Skip builds a Skip instruction.
func Skip() Instr { return Instr{Op: OpSkip} }

// Stop builds a Stop instruction.
func Stop() Instr { return Instr{Op: OpStop} }

// Call builds a Call(L) instruction.
func Call(l Label) Instr { return Instr{Op: OpCall, A: uint64(l)} }

// GotoFalse builds a GotoFalse(L) instruction.
func GotoFalse(l Label) Instr { return Instr{Op: OpGotoFalse, A: uint64(l)} }

// Switch builds a Switch(tag, L) instruction.
func Switch(tag ir.Tag, l Label) Instr {
	return Instr{Op: OpSwitch, A: uint64(tag), B: uint64(l)}
}

// Goto builds a Goto(L) instruction.
func Goto(l Label) Instr { return Instr{Op: OpGoto, A: uint64(l)} }

// Code is a complete, linked bytecode buffer: every label referenced by
// any instruction in Instrs is a valid index into Instrs itself.
type Code struct {
	Instrs []Instr
}

// New returns an empty Code buffer.
func New() *Code {
	return &Code{Instrs: make([]Instr, 0, 64)}
}

// Len returns the number of instructions currently in the buffer, which
// is also the Label the next appended instruction will receive.
func (c *Code) Len() int { return len(c.Instrs) }

// Emit appends instr and returns the Label it was assigned.
func (c *Code) Emit(instr Instr) Label {
	l := Label(len(c.Instrs))
	c.Instrs = append(c.Instrs, instr)
	return l
}

// Patch overwrites the instruction at label l. Used by the compiler to
// backpatch a placeholder Goto/GotoFalse/Switch once its target is known.
func (c *Code) Patch(l Label, instr Instr) {
	c.Instrs[l] = instr
}

// At returns the instruction at label l.
func (c *Code) At(l Label) Instr { return c.Instrs[l] }

// String disassembles the whole buffer, one instruction per line,
// prefixed with its label. Used by gokartc's disassemble subcommand.
func (c *Code) String() string {
	var b []byte
	for i, instr := range c.Instrs {
		b = append(b, fmt.Sprintf("%4d: %s\n", i, instrString(instr))...)
	}
	return string(b)
}

func instrString(instr Instr) string {
	switch instr.Op {
	case OpAcc, OpRest, OpCur, OpCall, OpGotoFalse, OpGoto, OpPack:
		return fmt.Sprintf("%s %d", instr.Op, instr.A)
	case OpSwitch:
		return fmt.Sprintf("%s %d %d", instr.Op, instr.A, instr.B)
	case OpSys0:
		return fmt.Sprintf("%s %s", instr.Op, nullOpString(instr.Op0))
	case OpSys1:
		return fmt.Sprintf("%s %s", instr.Op, unOpString(instr.Op1))
	case OpSys2:
		return fmt.Sprintf("%s %s", instr.Op, binOpString(instr.Op2))
	default:
		return instr.Op.String()
	}
}

func nullOpString(op ir.NullOp) string {
	switch op.Kind {
	case ir.NullIntLit:
		return fmt.Sprintf("IntLit(%d)", op.Int)
	case ir.NullDoubleLit:
		return fmt.Sprintf("DoubleLit(%g)", op.Double)
	case ir.NullStrLit:
		return fmt.Sprintf("StrLit(%q)", op.Str)
	default:
		return "UnknownNullOp"
	}
}

func unOpString(op ir.UnOp) string {
	names := [...]string{
		"Print", "Read", "Int2Str", "Str2Int", "Double2Str", "Str2Double",
		"Double2Int", "Int2Double", "VectorIntLength", "VectorIntRandomFill",
	}
	if int(op.Kind) < len(names) {
		return names[op.Kind]
	}
	return "UnknownUnOp"
}

func binOpString(op ir.BinOp) string {
	names := [...]string{
		"IntPlus", "IntMinus", "IntMul", "IntDiv",
		"IntLt", "IntLe", "IntEq", "IntNe", "IntGt", "IntGe",
		"DoublePlus", "DoubleMinus", "DoubleMul", "DoubleDiv",
		"DoubleLt", "DoubleLe", "DoubleEq", "DoubleNe", "DoubleGt", "DoubleGe",
		"StrPlus", "StrEq", "StrNe",
		"VectorIntFill", "VectorIntGet", "VectorIntUpdate", "VectorIntUpdateMut",
	}
	if int(op.Kind) < len(names) {
		return names[op.Kind]
	}
	return "UnknownBinOp"
}
