package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// AddOp represents element-wise addition: output = a + b.
//
// Backward pass:
//   - d(a+b)/da = 1
//   - d(a+b)/db = 1
type AddOp struct{}

// Name returns "add".
func (AddOp) Name() string { return "add" }

// NumOutputs returns 1.
func (AddOp) NumOutputs() int { return 1 }

// Backward routes the output gradient unchanged to both inputs.
func (AddOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad()
	accumulate(inputs[0], g)
	accumulate(inputs[1], g)
}

// Add returns a + b. Shapes must match.
func Add(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	mustSameShape("Add", a.Shape(), b.Shape())
	return emit(s, AddOp{}, a.Value().Add(b.Value()), a, b)
}
