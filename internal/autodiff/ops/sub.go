package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// SubOp represents element-wise subtraction: output = a - b.
//
// Backward pass:
//   - d(a-b)/da = 1
//   - d(a-b)/db = -1
type SubOp struct{}

// Name returns "sub".
func (SubOp) Name() string { return "sub" }

// NumOutputs returns 1.
func (SubOp) NumOutputs() int { return 1 }

// Backward routes the gradient to a and its negation to b.
func (SubOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad()
	accumulate(inputs[0], g)
	accumulate(inputs[1], g.Scale(-1))
}

// Sub returns a - b. Shapes must match.
func Sub(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	mustSameShape("Sub", a.Shape(), b.Shape())
	return emit(s, SubOp{}, a.Value().Sub(b.Value()), a, b)
}
