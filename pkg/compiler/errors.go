package compiler

import "fmt"

// InvariantError reports that the IR handed to Compile violates one of
// the invariants the compiler assumes a desugaring/type-checking
// frontend already established — a free variable or an unrecognized
// Exp/Pat shape. Case exhaustiveness is not checked here. None of these
// are expected to occur for well-formed input; Compile panics with
// *InvariantError rather than threading an error return through every
// recursive call, and a caller (cmd/gokartc's compileSafely) recovers
// it and turns it into an ordinary error.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string { return "compiler: " + e.Message }

func invariant(format string, args ...any) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
}
