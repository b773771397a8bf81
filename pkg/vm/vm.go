// Package vm implements the categorical abstract machine that executes
// bytecode.Code.
//
// The VM is not stack-based in the usual sense: almost every
// instruction's result lives in a single "current value" register
// (env), and the operand stack exists only to hold values temporarily
// displaced while another subexpression is computed (see Push/Swap,
// and pkg/compiler's T-rule). This is the same execution discipline
// pkg/compiler targets, so the VM and the compiler must be read
// together — an instruction only makes sense in terms of what the
// compiler promises is true of env and stack when it runs.
//
// Execution Model:
//
//	Source (already compiled): (\n -> n + x) 4, run from the initial env
//	E0 = Pair(Empty, Int(1)) that binds x to 1 (see SetInitialEnv)
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
//
//	Execution trace (env is a heap.Ref, shown by its Value):
//	  IP=0 Push        stack=[E0]                    env=E0
//	  IP=1 Sys0(4)      stack=[E0]                    env=Int(4)
//	  IP=2 Swap        stack=[Int(4)]                env=E0
//	  IP=3 Cur(6)       stack=[Int(4)]                env=Closure(E0,6)
//	  IP=4 App         stack=[Label(5)]              env=Pair(E0,Int(4)), ip=6
//	  IP=6 Push        stack=[Label(5),env]          env=Pair(E0,Int(4))
//	  IP=7 Acc(0)       stack=[Label(5),env]          env=Int(4)
//	  IP=8 Swap        stack=[Label(5),Int(4)]       env=Pair(E0,Int(4))
//	  IP=9 Acc(1)       stack=[Label(5),Int(4)]       env=Int(1)  (one step left reaches E0, then its right field)
//	  IP=10 Sys2(+)     stack=[Label(5)]              env=Int(5)
//	  IP=11 Return      stack=[]                     env=Int(5), ip=5
//	  IP=5 Stop        running=false, result Int(5)
//
// Error Handling:
//
// A malformed program — one the compiler should never produce, but
// which the dispatch loop cannot rule out structurally (stack
// underflow, a Value of the wrong Kind, a failed string conversion) —
// panics internally and is converted to a *RuntimeError by Run's
// recover. See errors.go. A Switch whose tag does not match only
// advances ip, so a Case whose scrutinee matches none of its Switch
// instructions is not detected: execution continues at the instruction
// after the last Switch.
//
// Garbage Collection:
//
// After every instruction retires, Run asks its Collector whether the
// heap has grown past its threshold (pkg/gc.Collector.Necessary) and,
// if so, runs a mark-and-sweep cycle rooted at the current env and
// stack (pkg/gc.Collector.Cycle) before continuing.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/gc"
	"github.com/kristofer/gokart/pkg/heap"
	"github.com/kristofer/gokart/pkg/ir"
)

// VM is one execution of the categorical abstract machine. It owns its
// heap exclusively; a VM is not meant to be shared across goroutines.
type VM struct {
	heap      *heap.Heap
	collector *gc.Collector
	stack     []heap.Ref
	env       heap.Ref
	ip        bytecode.Label
	running   bool

	stdin  *bufio.Reader
	stdout io.Writer
	rand   *rand.Rand

	initEnv *heap.Ref
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithGCThreshold overrides the default object-count threshold
// (pkg/gc.DefaultThreshold) at which Run triggers a collection cycle.
func WithGCThreshold(threshold int) Option {
	return func(vm *VM) { vm.collector = gc.New(threshold) }
}

// WithStdin sets the source UnRead reads lines from. Defaults to
// os.Stdin.
func WithStdin(r io.Reader) Option {
	return func(vm *VM) { vm.stdin = bufio.NewReader(r) }
}

// WithStdout sets the sink UnPrint writes to. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

// WithRandSeed fixes UnVectorIntRandomFill's source of randomness,
// chiefly so tests can assert deterministic output. Defaults to a
// fixed seed (1), since this VM has no other source of entropy to draw
// a seed from and the spec does not require cryptographic randomness.
func WithRandSeed(seed int64) Option {
	return func(vm *VM) { vm.rand = rand.New(rand.NewSource(seed)) }
}

// New returns a VM ready to Run any number of programs. Each Run call
// resets the instruction pointer, stack and env but keeps the same
// heap and collector, so a long-lived VM accumulates garbage across
// runs exactly as it would within a single run.
func New(opts ...Option) *VM {
	vm := &VM{
		heap:      heap.New(),
		collector: gc.New(gc.DefaultThreshold),
		stdin:     bufio.NewReader(os.Stdin),
		stdout:    os.Stdout,
		rand:      rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Run executes code from instruction 0 until a Stop instruction
// retires, returning the final Value left in env.
//
// A RuntimeError is returned (never a bare panic) if the program
// violates one of the VM's invariants at runtime — see errors.go.
func (vm *VM) Run(code *bytecode.Code) (result heap.Value, err error) {
	vm.ip = 0
	vm.stack = vm.stack[:0]
	if vm.initEnv != nil {
		vm.env = *vm.initEnv
	} else {
		vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Empty})
	}
	vm.running = true

	defer func() {
		if r := recover(); r != nil {
			op := "?"
			if int(vm.ip) < len(code.Instrs) {
				op = code.At(vm.ip).Op.String()
			}
			err = newRuntimeError(fmt.Sprint(r), []StackFrame{{IP: int(vm.ip), Op: op}})
			result = heap.Value{}
		}
	}()

	for vm.running {
		vm.step(code)
		if vm.collector.Necessary(vm.heap) {
			vm.collector.Cycle(vm.heap, vm.env, vm.stack)
		}
	}

	return vm.heap.Get(vm.env), nil
}

// HeapLen reports the number of live heap objects. It exists for tests
// and diagnostics that need to observe the effect of a GC cycle; the
// dispatch loop itself never needs it.
func (vm *VM) HeapLen() int { return vm.heap.Len() }

// Heap exposes the VM's heap so a caller can allocate values into it
// before Run — chiefly so cmd/gokart can build a --env initial
// environment out of a ref that only the VM's own heap can mint.
func (vm *VM) Heap() *heap.Heap { return vm.heap }

// SetInitialEnv overrides the env Run starts from; without it, Run
// starts every program from Value{Kind: Empty}, matching a top-level
// expression with no free variables.
func (vm *VM) SetInitialEnv(ref heap.Ref) { vm.initEnv = &ref }

// step executes exactly one instruction, advancing ip (or jumping, or
// stopping) according to its semantics.
func (vm *VM) step(code *bytecode.Code) {
	instr := code.At(vm.ip)

	switch instr.Op {
	case bytecode.OpAcc:
		for i := uint64(0); i < instr.A; i++ {
			vm.env = asPairLeft(vm.heap.Get(vm.env))
		}
		vm.env = asPairRight(vm.heap.Get(vm.env))
		vm.ip++

	case bytecode.OpRest:
		for i := uint64(0); i < instr.A; i++ {
			vm.env = asPairLeft(vm.heap.Get(vm.env))
		}
		vm.ip++

	case bytecode.OpPush:
		vm.stack = append(vm.stack, vm.env)
		vm.ip++

	case bytecode.OpSwap:
		tmp := vm.pop()
		vm.stack = append(vm.stack, vm.env)
		vm.env = tmp
		vm.ip++

	case bytecode.OpSys0:
		vm.env = vm.heap.Alloc(evalNullOp(instr.Op0))
		vm.ip++

	case bytecode.OpSys1:
		vm.env = vm.heap.Alloc(vm.evalUnOp(instr.Op1, vm.heap.Get(vm.env)))
		vm.ip++

	case bytecode.OpSys2:
		a := vm.heap.Get(vm.pop())
		b := vm.heap.Get(vm.env)
		vm.env = vm.heap.Alloc(vm.evalBinOp(instr.Op2, a, b))
		vm.ip++

	case bytecode.OpCur:
		vm.env = vm.heap.Alloc(heap.Value{
			Kind:     heap.Closure,
			A:        vm.env,
			B:        heap.Ref(instr.A),
			LabelVal: instr.A,
		})
		vm.ip++

	case bytecode.OpReturn:
		r := asLabel(vm.heap.Get(vm.pop()))
		vm.ip = r

	case bytecode.OpClear:
		vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Empty})
		vm.ip++

	case bytecode.OpCons:
		a := vm.pop()
		vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Pair, A: a, B: vm.env})
		vm.ip++

	case bytecode.OpApp:
		arg := vm.pop()
		closureEnv, label := asClosure(vm.heap.Get(vm.env))
		vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Pair, A: closureEnv, B: arg})
		ret := vm.heap.Alloc(heap.Value{Kind: heap.Label, LabelVal: uint64(vm.ip) + 1})
		vm.stack = append(vm.stack, ret)
		vm.ip = label

	case bytecode.OpPack:
		vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Tagged, Tag: instr.A, A: vm.env})
		vm.ip++

	case bytecode.OpSkip:
		vm.ip++

	case bytecode.OpStop:
		vm.running = false

	case bytecode.OpCall:
		ret := vm.heap.Alloc(heap.Value{Kind: heap.Label, LabelVal: uint64(vm.ip) + 1})
		vm.stack = append(vm.stack, ret)
		vm.ip = bytecode.Label(instr.A)

	case bytecode.OpGotoFalse:
		newEnv := vm.pop()
		cond := asInt(vm.heap.Get(vm.env))
		vm.env = newEnv
		if cond == 0 {
			vm.ip = bytecode.Label(instr.A)
		} else {
			vm.ip++
		}

	case bytecode.OpSwitch:
		tag, payload := asTagged(vm.heap.Get(vm.env))
		if tag == instr.A {
			a := vm.pop()
			vm.env = vm.heap.Alloc(heap.Value{Kind: heap.Pair, A: a, B: payload})
			vm.ip = bytecode.Label(instr.B)
		} else {
			vm.ip++
		}

	case bytecode.OpGoto:
		vm.ip = bytecode.Label(instr.A)

	default:
		panic(fmt.Sprintf("vm: unknown opcode %v", instr.Op))
	}
}

func (vm *VM) pop() heap.Ref {
	n := len(vm.stack)
	if n == 0 {
		panic("vm: stack underflow")
	}
	r := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return r
}

func evalNullOp(op ir.NullOp) heap.Value {
	switch op.Kind {
	case ir.NullIntLit:
		return heap.Value{Kind: heap.Int, Int: op.Int}
	case ir.NullDoubleLit:
		return heap.Value{Kind: heap.Double, Double: op.Double}
	case ir.NullStrLit:
		return heap.Value{Kind: heap.Str, Str: op.Str}
	default:
		panic("vm: unknown NullOp")
	}
}

func (vm *VM) evalUnOp(op ir.UnOp, v heap.Value) heap.Value {
	switch op.Kind {
	case ir.UnPrint:
		fmt.Fprintln(vm.stdout, asStr(v))
		return heap.Value{Kind: heap.Empty}

	case ir.UnRead:
		line, err := vm.stdin.ReadString('\n')
		if err != nil && line == "" {
			return heap.Value{Kind: heap.Str, Str: ""}
		}
		return heap.Value{Kind: heap.Str, Str: strings.TrimRight(line, "\r\n")}

	case ir.UnInt2Str:
		return heap.Value{Kind: heap.Str, Str: strconv.FormatInt(asInt(v), 10)}

	case ir.UnStr2Int:
		n, err := strconv.ParseInt(asStr(v), 10, 64)
		if err != nil {
			panic(fmt.Sprintf("error converting Str(%q) to Int: %s", asStr(v), err))
		}
		return heap.Value{Kind: heap.Int, Int: n}

	case ir.UnDouble2Str:
		return heap.Value{Kind: heap.Str, Str: strconv.FormatFloat(asDouble(v), 'g', -1, 64)}

	case ir.UnStr2Double:
		f, err := strconv.ParseFloat(asStr(v), 64)
		if err != nil {
			panic(fmt.Sprintf("error converting Str(%q) to Double: %s", asStr(v), err))
		}
		return heap.Value{Kind: heap.Double, Double: f}

	case ir.UnDouble2Int:
		return heap.Value{Kind: heap.Int, Int: int64(asDouble(v))}

	case ir.UnInt2Double:
		return heap.Value{Kind: heap.Double, Double: float64(asInt(v))}

	case ir.UnVectorIntLength:
		return heap.Value{Kind: heap.Int, Int: asVector(v).Len()}

	case ir.UnVectorIntRandomFill:
		n := asInt(v)
		vec := heap.NewPersistentVector(n, 0)
		for i := int64(0); i < n; i++ {
			vec.UpdateMut(i, vm.rand.Int63())
		}
		return heap.Value{Kind: heap.VectorInt, Vector: vec}

	default:
		panic("vm: unknown UnOp")
	}
}

func (vm *VM) evalBinOp(op ir.BinOp, a, b heap.Value) heap.Value {
	switch op.Kind {
	case ir.BinIntPlus:
		return heap.Value{Kind: heap.Int, Int: asInt(a) + asInt(b)}
	case ir.BinIntMinus:
		return heap.Value{Kind: heap.Int, Int: asInt(a) - asInt(b)}
	case ir.BinIntMul:
		return heap.Value{Kind: heap.Int, Int: asInt(a) * asInt(b)}
	case ir.BinIntDiv:
		denom := asInt(b)
		if denom == 0 {
			panic("vm: integer division by zero")
		}
		return heap.Value{Kind: heap.Int, Int: asInt(a) / denom}
	case ir.BinIntLt:
		return boolValue(asInt(a) < asInt(b))
	case ir.BinIntLe:
		return boolValue(asInt(a) <= asInt(b))
	case ir.BinIntEq:
		return boolValue(asInt(a) == asInt(b))
	case ir.BinIntNe:
		return boolValue(asInt(a) != asInt(b))
	case ir.BinIntGt:
		return boolValue(asInt(a) > asInt(b))
	case ir.BinIntGe:
		return boolValue(asInt(a) >= asInt(b))

	case ir.BinDoublePlus:
		return heap.Value{Kind: heap.Double, Double: asDouble(a) + asDouble(b)}
	case ir.BinDoubleMinus:
		return heap.Value{Kind: heap.Double, Double: asDouble(a) - asDouble(b)}
	case ir.BinDoubleMul:
		return heap.Value{Kind: heap.Double, Double: asDouble(a) * asDouble(b)}
	case ir.BinDoubleDiv:
		denom := asDouble(b)
		if denom == 0 {
			panic("vm: floating-point division by zero")
		}
		return heap.Value{Kind: heap.Double, Double: asDouble(a) / denom}
	case ir.BinDoubleLt:
		return boolValue(asDouble(a) < asDouble(b))
	case ir.BinDoubleLe:
		return boolValue(asDouble(a) <= asDouble(b))
	case ir.BinDoubleEq:
		return boolValue(asDouble(a) == asDouble(b))
	case ir.BinDoubleNe:
		return boolValue(asDouble(a) != asDouble(b))
	case ir.BinDoubleGt:
		return boolValue(asDouble(a) > asDouble(b))
	case ir.BinDoubleGe:
		return boolValue(asDouble(a) >= asDouble(b))

	case ir.BinStrPlus:
		return heap.Value{Kind: heap.Str, Str: asStr(a) + asStr(b)}
	case ir.BinStrEq:
		return boolValue(asStr(a) == asStr(b))
	case ir.BinStrNe:
		return boolValue(asStr(a) != asStr(b))

	case ir.BinVectorIntFill:
		return heap.Value{Kind: heap.VectorInt, Vector: heap.NewPersistentVector(asInt(a), asInt(b))}
	case ir.BinVectorIntGet:
		return heap.Value{Kind: heap.Int, Int: asVector(a).Get(asInt(b))}
	case ir.BinVectorIntUpdate:
		idx, val := vm.asIndexValuePair(b)
		return heap.Value{Kind: heap.VectorInt, Vector: asVector(a).Update(idx, val)}
	case ir.BinVectorIntUpdateMut:
		idx, val := vm.asIndexValuePair(b)
		asVector(a).UpdateMut(idx, val)
		return heap.Value{Kind: heap.Empty}

	default:
		panic("vm: unknown BinOp")
	}
}

// asIndexValuePair dereferences b's Pair of (index, value) Refs through
// the heap — used by the two VectorIntUpdate variants, whose second
// operand packages both an index and a replacement value.
func (vm *VM) asIndexValuePair(b heap.Value) (idx, val int64) {
	idxRef, valRef := asPairLeft(b), asPairRight(b)
	return asInt(vm.heap.Get(idxRef)), asInt(vm.heap.Get(valRef))
}

func boolValue(b bool) heap.Value {
	if b {
		return heap.Value{Kind: heap.Int, Int: 1}
	}
	return heap.Value{Kind: heap.Int, Int: 0}
}

func asInt(v heap.Value) int64 {
	if v.Kind != heap.Int {
		panic(fmt.Sprintf("vm: expected Int, got %s", v.Kind))
	}
	return v.Int
}

func asDouble(v heap.Value) float64 {
	if v.Kind != heap.Double {
		panic(fmt.Sprintf("vm: expected Double, got %s", v.Kind))
	}
	return v.Double
}

func asStr(v heap.Value) string {
	if v.Kind != heap.Str {
		panic(fmt.Sprintf("vm: expected Str, got %s", v.Kind))
	}
	return v.Str
}

func asVector(v heap.Value) *heap.PersistentVector {
	if v.Kind != heap.VectorInt {
		panic(fmt.Sprintf("vm: expected VectorInt, got %s", v.Kind))
	}
	return v.Vector
}

func asPairLeft(v heap.Value) heap.Ref {
	if v.Kind != heap.Pair {
		panic(fmt.Sprintf("vm: expected Pair, got %s", v.Kind))
	}
	return v.A
}

func asPairRight(v heap.Value) heap.Ref {
	if v.Kind != heap.Pair {
		panic(fmt.Sprintf("vm: expected Pair, got %s", v.Kind))
	}
	return v.B
}

func asClosure(v heap.Value) (heap.Ref, bytecode.Label) {
	if v.Kind != heap.Closure {
		panic(fmt.Sprintf("vm: expected Closure, got %s", v.Kind))
	}
	return v.A, bytecode.Label(v.LabelVal)
}

func asLabel(v heap.Value) bytecode.Label {
	if v.Kind != heap.Label {
		panic(fmt.Sprintf("vm: expected Label, got %s", v.Kind))
	}
	return bytecode.Label(v.LabelVal)
}

func asTagged(v heap.Value) (uint64, heap.Ref) {
	if v.Kind != heap.Tagged {
		panic(fmt.Sprintf("vm: expected Tagged, got %s", v.Kind))
	}
	return v.Tag, v.A
}
