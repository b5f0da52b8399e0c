package autodiff

import (
	"errors"
	"fmt"
)

// Trace invariant violations. The engine panics with an error wrapping one of
// these; they indicate a broken trace, never a data problem, so callers are
// not expected to recover from them.
var (
	// ErrShapeMismatch: a value or gradient was assigned with a shape
	// different from the tensor's current value shape.
	ErrShapeMismatch = errors.New("autodiff: shape mismatch")

	// ErrCreatorAssigned: a tensor was registered as the output of a
	// second operation.
	ErrCreatorAssigned = errors.New("autodiff: creator already assigned")

	// ErrMissingNode: backward reached a creator the session does not know,
	// usually a tensor from a graph that has already been cleared.
	ErrMissingNode = errors.New("autodiff: missing graph node")

	// ErrArity: an operation received more outputs than it declared.
	ErrArity = errors.New("autodiff: output arity exceeded")

	// ErrConsumed: backward would add gradient to a tensor whose producer
	// has already run in this session, so the new part could not reach
	// the producer's inputs.
	ErrConsumed = errors.New("autodiff: node already consumed")
)

func failf(sentinel error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}
