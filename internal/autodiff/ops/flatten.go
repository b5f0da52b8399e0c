package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// FlattenOp represents a reshape of [N, ...] to [N, -1].
//
// Backward: the output gradient reshaped back to the input shape.
type FlattenOp struct{}

// Name returns "flatten".
func (FlattenOp) Name() string { return "flatten" }

// NumOutputs returns 1.
func (FlattenOp) NumOutputs() int { return 1 }

// Backward reshapes the gradient back.
func (FlattenOp) Backward(outputs, inputs []autodiff.Tensor) {
	accumulate(inputs[0], outputs[0].Grad().Clone().MustReshape(inputs[0].Shape()))
}

// Flatten keeps the leading dimension of x and collapses the rest. The result
// owns a copy of the data.
func Flatten(s *autodiff.Session, x autodiff.Tensor) autodiff.Tensor {
	return emit(s, FlattenOp{}, flatten2D("Flatten", x.Value().Clone()), x)
}
