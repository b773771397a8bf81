// Package ir defines the lambda-calculus intermediate representation that
// the gokart compiler consumes.
//
// The IR is the boundary between the non-core frontend (lexer, parser,
// name resolution, type inference — none of which live in this module) and
// the core compiler. By the time a tree reaches this package, every
// variable has been resolved to a non-negative integer index and every
// constructor has been resolved to an integer tag: there are no names left
// to look up, only positions.
//
// Architecture:
//
// Exp is a tree of expressions. Pat is a tree of patterns, used only as the
// parameter shape of Abs, Let, Letrec and Case branches. Both are Go
// interfaces implemented by small, unexported-method-gated struct types —
// one struct per variant — which is the idiomatic Go rendering of a closed
// sum type: a type switch over the interface is exhaustive by convention,
// the same way pkg/ast in the reference interpreter this package's design
// is modeled on closes its Statement/Expression interfaces.
//
// Example:
//
//	Source (after desugaring): \n -> 42 + n
//
//	Exp tree:
//	  Abs{
//	    Param: PVar{V: 1},
//	    Body:  Sys2{Op: BinOp{Kind: BinIntPlus},
//	                Left:  Sys0{Op: NullOp{Kind: NullIntLit, Int: 42}},
//	                Right: Var_{V: 1}},
//	  }
package ir

// Var is a de Bruijn-free variable index assigned by the desugarer. It is
// not a stack depth or slot number — the compiler (pkg/compiler) is what
// turns a Var into an Acc/Rest offset, by walking the pattern environment
// at compile time.
type Var uint64

// Tag identifies an algebraic data type constructor. All tags used in the
// branches of one Case share one algebraic type, and per the IR's
// invariants (established upstream, assumed here) the branches are
// exhaustive.
type Tag uint64

// Exp is a lambda-calculus expression node. The concrete variants are
// Empty, Var_, Sys0, Sys1, Sys2, Pair, Con, App, Abs, Cond, Case, Let, and
// Letrec.
type Exp interface {
	expNode()
}

// Empty is the unit expression; compiles to a Clear instruction.
type Empty struct{}

// Var_ references a previously bound variable. Named with a trailing
// underscore to avoid colliding with the Var index type.
type Var_ struct {
	V Var
}

// Sys0 invokes a nullary primitive — typically a literal.
type Sys0 struct {
	Op NullOp
}

// Sys1 invokes a unary primitive on the value of Arg.
type Sys1 struct {
	Op  UnOp
	Arg Exp
}

// Sys2 invokes a binary primitive on the values of Left and Right.
type Sys2 struct {
	Op    BinOp
	Left  Exp
	Right Exp
}

// Pair builds a two-component pair value from Left and Right.
type Pair struct {
	Left  Exp
	Right Exp
}

// Con applies a constructor tag to the value of Arg, producing a Tagged
// value at runtime.
type Con struct {
	Tag Tag
	Arg Exp
}

// App applies the closure produced by Fn to the value of Arg.
type App struct {
	Fn  Exp
	Arg Exp
}

// Abs is a lambda abstraction: a single-parameter function whose parameter
// is destructured by Param (which may bind more than one variable, via
// Pat's Pair/Layer forms) over Body.
type Abs struct {
	Param Pat
	Body  Exp
}

// Cond is a two-armed conditional. Cond is evaluated for truth (nonzero
// Int); Then or Else is evaluated accordingly.
type Cond struct {
	Cond Exp
	Then Exp
	Else Exp
}

// CaseBranch is one arm of a Case: when the scrutinee carries Tag, Pat
// destructures its payload and Body is evaluated in the extended
// environment.
type CaseBranch struct {
	Tag  Tag
	Pat  Pat
	Body Exp
}

// Case pattern-matches Scrutinee's runtime tag against Branches, which by
// the IR's invariants are exhaustive for Scrutinee's algebraic type.
type Case struct {
	Scrutinee Exp
	Branches  []CaseBranch
}

// Let binds the value of Rhs to Pat (non-recursively) for the evaluation
// of Body.
type Let struct {
	Pat  Pat
	Rhs  Exp
	Body Exp
}

// Letrec binds Pat to the value of Rhs *recursively* — Rhs may reference
// the variables Pat binds — for the evaluation of Body. The compiler
// realizes the recursion as a closure whose code label is revisited on
// each call, not as a cyclic heap value (see pkg/compiler's deferred
// labels).
type Letrec struct {
	Pat  Pat
	Rhs  Exp
	Body Exp
}

func (Empty) expNode()  {}
func (Var_) expNode()   {}
func (Sys0) expNode()   {}
func (Sys1) expNode()   {}
func (Sys2) expNode()   {}
func (Pair) expNode()   {}
func (Con) expNode()    {}
func (App) expNode()    {}
func (Abs) expNode()    {}
func (Cond) expNode()   {}
func (Case) expNode()   {}
func (Let) expNode()    {}
func (Letrec) expNode() {}

// Pat is a pattern appearing as a binding shape: the parameter of an Abs,
// the left-hand side of a Let/Letrec, or a Case branch's destructuring.
// The concrete variants are PEmpty, PVar, PPair, and PLayer.
type Pat interface {
	patNode()
}

// PEmpty matches (and binds nothing from) a unit value.
type PEmpty struct{}

// PVar binds V to the whole matched value.
type PVar struct {
	V Var
}

// PPair destructures a Pair value, recursively matching Left against its
// first component and Right against its second.
type PPair struct {
	Left  Pat
	Right Pat
}

// PLayer is an as-pattern: it binds V to the whole matched value *and*
// recurses into Inner, so both V and whatever Inner binds are in scope.
type PLayer struct {
	V     Var
	Inner Pat
}

func (PEmpty) patNode() {}
func (PVar) patNode()   {}
func (PPair) patNode()  {}
func (PLayer) patNode() {}
