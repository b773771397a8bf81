package vm

import (
	"strings"
	"testing"

	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/compiler"
	"github.com/kristofer/gokart/pkg/gc"
	"github.com/kristofer/gokart/pkg/heap"
	"github.com/kristofer/gokart/pkg/ir"
)

func pvar(v ir.Var) ir.Pat { return ir.PVar{V: v} }
func evar(v ir.Var) ir.Exp { return ir.Var_{V: v} }
func eint(n int64) ir.Exp  { return ir.Sys0{Op: ir.NullOp{Kind: ir.NullIntLit, Int: n}} }

// TestAddOneAndFour runs (\x -> 1 + x) 4 end to end: compile then
// execute, and check the Value left in env once Stop retires.
func TestAddOneAndFour(t *testing.T) {
	exp := ir.App{
		Fn: ir.Abs{
			Param: pvar(1),
			Body:  ir.Sys2{Op: ir.BinOp{Kind: ir.BinIntPlus}, Left: eint(1), Right: evar(1)},
		},
		Arg: eint(4),
	}

	code := compiler.Compile(exp)
	result, err := New().Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Int || result.Int != 5 {
		t.Fatalf("result = %+v, want Int(5)", result)
	}
}

// evenExp builds letrec even = \n -> if n == 0 then 1 else 1 -
// (even (n - 1)) in even <arg>, the same recursive-parity program
// ported from compiler_test.go's TestLocalRecDef, parameterized over
// the argument so it can be run for several n.
func evenExp(arg int64) ir.Exp {
	cond := ir.Sys2{Op: ir.BinOp{Kind: ir.BinIntEq}, Left: evar(1), Right: eint(0)}
	onElse := ir.Sys2{
		Op:   ir.BinOp{Kind: ir.BinIntMinus},
		Left: eint(1),
		Right: ir.App{
			Fn:  evar(2),
			Arg: ir.Sys2{Op: ir.BinOp{Kind: ir.BinIntMinus}, Left: evar(1), Right: eint(1)},
		},
	}
	recdef := ir.Abs{Param: pvar(1), Body: ir.Cond{Cond: cond, Then: eint(1), Else: onElse}}
	return ir.Letrec{Pat: pvar(2), Rhs: recdef, Body: ir.App{Fn: evar(2), Arg: eint(arg)}}
}

func TestEvenProgram(t *testing.T) {
	cases := []struct {
		n, want int64
	}{
		{0, 1},
		{56, 1},
		{1, 0},
		{55, 0},
	}
	for _, c := range cases {
		code := compiler.Compile(evenExp(c.n))
		result, err := New().Run(code)
		if err != nil {
			t.Fatalf("even(%d): Run() error = %v", c.n, err)
		}
		if result.Kind != heap.Int || result.Int != c.want {
			t.Fatalf("even(%d) = %+v, want Int(%d)", c.n, result, c.want)
		}
	}
}

// TestEvenProgramSurvivesAggressiveGC reruns the parity program with a
// GC threshold of zero, forcing a mark-and-sweep cycle after every
// single instruction. The result must still come out correct, and the
// heap must never be allowed to accumulate the garbage a normal run
// would leave behind (each recursive call allocates a fresh closure,
// call frame and several scratch Ints that become unreachable the
// moment the call returns).
func TestEvenProgramSurvivesAggressiveGC(t *testing.T) {
	code := compiler.Compile(evenExp(100))
	v := New(WithGCThreshold(0))
	result, err := v.Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Int || result.Int != 1 {
		t.Fatalf("even(100) = %+v, want Int(1)", result)
	}
	if got := v.HeapLen(); got > 8 {
		t.Fatalf("HeapLen() after run = %d, want a small live set (env + stack roots only)", got)
	}
}

// TestCaseOnConsCell builds Cons(7, Nil) directly (tags: Nil=0,
// Cons=1) and cases on it to extract the tail, exercising Pack, Switch
// and the pattern-bound Case branch end to end.
func TestCaseOnConsCell(t *testing.T) {
	nilValue := ir.Con{Tag: 0, Arg: ir.Empty{}}
	consCell := ir.Con{Tag: 1, Arg: ir.Pair{Left: eint(7), Right: nilValue}}

	exp := ir.Case{
		Scrutinee: consCell,
		Branches: []ir.CaseBranch{
			{Tag: 0, Pat: ir.PEmpty{}, Body: ir.Con{Tag: 0, Arg: ir.Empty{}}},
			{Tag: 1, Pat: ir.PPair{Left: pvar(1), Right: pvar(2)}, Body: evar(2)},
		},
	}

	code := compiler.Compile(exp)
	result, err := New().Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Tagged || result.Tag != 0 {
		t.Fatalf("result = %+v, want Tagged{Tag: 0} (Nil)", result)
	}
}

// TestStringConversionRoundTrip exercises Sys1's Int2Str/Str2Int pair.
func TestStringConversionRoundTrip(t *testing.T) {
	exp := ir.Sys1{
		Op:  ir.UnOp{Kind: ir.UnStr2Int},
		Arg: ir.Sys1{Op: ir.UnOp{Kind: ir.UnInt2Str}, Arg: eint(42)},
	}

	code := compiler.Compile(exp)
	result, err := New().Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Int || result.Int != 42 {
		t.Fatalf("result = %+v, want Int(42)", result)
	}
}

// TestPrintWritesToConfiguredStdout checks that UnPrint is wired
// through WithStdout rather than always touching os.Stdout, so a
// caller embedding the VM (e.g. a test harness or a REPL) can capture
// output.
func TestPrintWritesToConfiguredStdout(t *testing.T) {
	exp := ir.Sys1{Op: ir.UnOp{Kind: ir.UnPrint}, Arg: ir.Sys0{Op: ir.NullOp{Kind: ir.NullStrLit, Str: "hello"}}}

	var out strings.Builder
	code := compiler.Compile(exp)
	_, err := New(WithStdout(&out)).Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Fatalf("stdout = %q, want %q", got, "hello\n")
	}
}

// TestVectorFillGetUpdate exercises BinVectorIntFill, BinVectorIntGet
// and both update variants together, matching ir.BinOp's documented
// VectorInt semantics.
func TestVectorFillGetUpdate(t *testing.T) {
	// let v = fill(3, 9) in get(update(v, (1, 42)), 1)
	fill := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntFill}, Left: eint(3), Right: eint(9)}
	idxVal := ir.Pair{Left: eint(1), Right: eint(42)}
	updated := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntUpdate}, Left: evar(1), Right: idxVal}
	get := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntGet}, Left: updated, Right: eint(1)}
	exp := ir.Let{Pat: pvar(1), Rhs: fill, Body: get}

	code := compiler.Compile(exp)
	result, err := New().Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Int || result.Int != 42 {
		t.Fatalf("result = %+v, want Int(42)", result)
	}
}

// TestVectorUpdateMutIsVisibleThroughOriginalHandle checks that the
// in-place variant mutates the vector every existing handle observes,
// unlike BinVectorIntUpdate's copy-on-write.
func TestVectorUpdateMutIsVisibleThroughOriginalHandle(t *testing.T) {
	// let v = fill(2, 0) in let _ = updateMut(v, (0, 9)) in get(v, 0)
	fill := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntFill}, Left: eint(2), Right: eint(0)}
	idxVal := ir.Pair{Left: eint(0), Right: eint(9)}
	updateMut := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntUpdateMut}, Left: evar(1), Right: idxVal}
	get := ir.Sys2{Op: ir.BinOp{Kind: ir.BinVectorIntGet}, Left: evar(1), Right: eint(0)}
	exp := ir.Let{Pat: pvar(1), Rhs: fill, Body: ir.Let{Pat: pvar(2), Rhs: updateMut, Body: get}}

	code := compiler.Compile(exp)
	result, err := New().Run(code)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != heap.Int || result.Int != 9 {
		t.Fatalf("result = %+v, want Int(9)", result)
	}
}

// TestIntegerDivisionByZeroIsRuntimeError checks that a malformed
// program surfaces as a *RuntimeError rather than crashing the host
// process.
func TestIntegerDivisionByZeroIsRuntimeError(t *testing.T) {
	exp := ir.Sys2{Op: ir.BinOp{Kind: ir.BinIntDiv}, Left: eint(1), Right: eint(0)}

	code := compiler.Compile(exp)
	_, err := New().Run(code)
	if err == nil {
		t.Fatal("Run() error = nil, want a RuntimeError")
	}
	var rerr *RuntimeError
	if !asRuntimeError(err, &rerr) {
		t.Fatalf("Run() error type = %T, want *RuntimeError", err)
	}
	if len(rerr.StackTrace) == 0 {
		t.Fatal("RuntimeError.StackTrace is empty, want at least one frame")
	}
}

// TestStackUnderflowIsRuntimeError checks a hand-built, deliberately
// malformed Code (a Swap with nothing pushed) is reported the same way
// rather than panicking out of Run.
func TestStackUnderflowIsRuntimeError(t *testing.T) {
	code := bytecode.New()
	code.Emit(bytecode.Swap())
	code.Emit(bytecode.Stop())

	_, err := New().Run(code)
	if err == nil {
		t.Fatal("Run() error = nil, want a RuntimeError")
	}
}

// TestRunResetsBetweenCalls checks that a single long-lived VM can Run
// multiple programs, each starting from a fresh env and stack, while
// the underlying heap and collector persist across calls.
func TestRunResetsBetweenCalls(t *testing.T) {
	v := New(WithGCThreshold(gc.DefaultThreshold))

	first, err := v.Run(compiler.Compile(eint(1)))
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := v.Run(compiler.Compile(eint(2)))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.Int != 1 || second.Int != 2 {
		t.Fatalf("first, second = %+v, %+v, want Int(1), Int(2)", first, second)
	}
}

func asRuntimeError(err error, out **RuntimeError) bool {
	rerr, ok := err.(*RuntimeError)
	if ok {
		*out = rerr
	}
	return ok
}
