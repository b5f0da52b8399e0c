package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward pass:
//   - d(a*b)/da = b
//   - d(a*b)/db = a
type MulOp struct{}

// Name returns "mul".
func (MulOp) Name() string { return "mul" }

// NumOutputs returns 1.
func (MulOp) NumOutputs() int { return 1 }

// Backward computes grad*b and grad*a.
func (MulOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad()
	a, b := inputs[0], inputs[1]
	accumulate(a, g.Mul(b.Value()))
	accumulate(b, g.Mul(a.Value()))
}

// Mul returns a * b element-wise. Shapes must match.
func Mul(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	mustSameShape("Mul", a.Shape(), b.Shape())
	return emit(s, MulOp{}, a.Value().Mul(b.Value()), a, b)
}
