package ir

// NullOpKind identifies which nullary primitive a NullOp invokes. Nullary
// primitives take no input from env; they build a fresh literal value.
type NullOpKind uint8

const (
	// NullIntLit loads an integer literal; the value is in NullOp.Int.
	NullIntLit NullOpKind = iota
	// NullDoubleLit loads a floating-point literal; the value is in
	// NullOp.Double.
	NullDoubleLit
	// NullStrLit loads a string literal; the value is in NullOp.Str.
	NullStrLit
)

// NullOp is a nullary primitive invocation. Only the field matching Kind
// is meaningful.
type NullOp struct {
	Kind   NullOpKind
	Int    int64
	Double float64
	Str    string
}

// UnOpKind identifies which unary primitive a UnOp invokes. Unary
// primitives consume the value currently in env and produce its
// replacement.
type UnOpKind uint8

const (
	// UnPrint writes the string in env to standard output, followed by a
	// newline, and produces Empty.
	UnPrint UnOpKind = iota
	// UnRead reads one line from standard input and produces it as a Str,
	// with the trailing newline stripped.
	UnRead
	// UnInt2Str converts an Int to its decimal Str representation.
	UnInt2Str
	// UnStr2Int parses a Str as a base-10 Int. A malformed string is a
	// fatal runtime error (spec.md §4.4).
	UnStr2Int
	// UnDouble2Str converts a Double to its Str representation.
	UnDouble2Str
	// UnStr2Double parses a Str as a Double. A malformed string is fatal.
	UnStr2Double
	// UnDouble2Int truncates a Double to an Int.
	UnDouble2Int
	// UnInt2Double widens an Int to a Double.
	UnInt2Double
	// UnVectorIntLength produces the Int length of a VectorInt.
	UnVectorIntLength
	// UnVectorIntRandomFill reads an Int size from env and produces a
	// fresh VectorInt of that length filled with pseudo-random int64
	// values.
	UnVectorIntRandomFill
)

// UnOp is a unary primitive invocation.
type UnOp struct {
	Kind UnOpKind
}

// BinOpKind identifies which binary primitive a BinOp invokes. Binary
// primitives consume the left operand from the stack (pushed by the
// compiler's pair-compile sequence) and the right operand from env.
type BinOpKind uint8

const (
	// BinIntPlus computes left + right as Int.
	BinIntPlus BinOpKind = iota
	// BinIntMinus computes left - right as Int.
	BinIntMinus
	// BinIntMul computes left * right as Int.
	BinIntMul
	// BinIntDiv computes left / right as Int. Division by zero is fatal.
	BinIntDiv
	// BinIntLt computes left < right as Int(0|1).
	BinIntLt
	// BinIntLe computes left <= right as Int(0|1).
	BinIntLe
	// BinIntEq computes left == right as Int(0|1).
	BinIntEq
	// BinIntNe computes left != right as Int(0|1).
	BinIntNe
	// BinIntGt computes left > right as Int(0|1).
	BinIntGt
	// BinIntGe computes left >= right as Int(0|1).
	BinIntGe
	// BinDoublePlus computes left + right as Double.
	BinDoublePlus
	// BinDoubleMinus computes left - right as Double.
	BinDoubleMinus
	// BinDoubleMul computes left * right as Double.
	BinDoubleMul
	// BinDoubleDiv computes left / right as Double. Division by zero is
	// fatal.
	BinDoubleDiv
	// BinDoubleLt computes left < right as Int(0|1).
	BinDoubleLt
	// BinDoubleLe computes left <= right as Int(0|1).
	BinDoubleLe
	// BinDoubleEq computes left == right as Int(0|1).
	BinDoubleEq
	// BinDoubleNe computes left != right as Int(0|1).
	BinDoubleNe
	// BinDoubleGt computes left > right as Int(0|1).
	BinDoubleGt
	// BinDoubleGe computes left >= right as Int(0|1).
	BinDoubleGe
	// BinStrPlus concatenates two Str values.
	BinStrPlus
	// BinStrEq compares two Str values for equality, as Int(0|1).
	BinStrEq
	// BinStrNe compares two Str values for inequality, as Int(0|1).
	BinStrNe
	// BinVectorIntFill builds a VectorInt of length left filled with the
	// value right.
	BinVectorIntFill
	// BinVectorIntGet indexes a VectorInt (left) at position right,
	// producing an Int. Out-of-range is fatal.
	BinVectorIntGet
	// BinVectorIntUpdate produces a new VectorInt, a copy of left, with
	// the (index, value) pair held in right's Pair written at that index;
	// left is unchanged. Out-of-range is fatal.
	BinVectorIntUpdate
	// BinVectorIntUpdateMut mutates left's VectorInt in place at the
	// (index, value) pair held in right, visible through every existing
	// handle to that vector, and produces Empty. Out-of-range is fatal.
	BinVectorIntUpdateMut
)

// BinOp is a binary primitive invocation.
type BinOp struct {
	Kind BinOpKind
}
