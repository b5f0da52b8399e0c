package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// SumOp reduces a tensor to the scalar total of its elements.
//
// Backward pass: every input element receives the output gradient.
type SumOp struct{}

// Name returns "sum".
func (SumOp) Name() string { return "sum" }

// NumOutputs returns 1.
func (SumOp) NumOutputs() int { return 1 }

// Backward broadcasts the scalar gradient over the input shape.
func (SumOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad().Item()
	accumulate(inputs[0], tensor.Full(inputs[0].Shape(), g))
}

// Sum returns the sum of all elements of x as a scalar.
func Sum(s *autodiff.Session, x autodiff.Tensor) autodiff.Tensor {
	return emit(s, SumOp{}, tensor.ScalarArray(x.Value().Sum()), x)
}
