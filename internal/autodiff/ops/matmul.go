package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// MatMulOp represents a matrix multiplication: output = a @ b.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
type MatMulOp struct{}

// Name returns "matmul".
func (MatMulOp) Name() string { return "matmul" }

// NumOutputs returns 1.
func (MatMulOp) NumOutputs() int { return 1 }

// Backward computes input gradients for matrix multiplication.
func (MatMulOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad()
	a, b := inputs[0], inputs[1]
	if a.RequiresGrad() {
		a.AccumulateGrad(g.MatMul(b.Value().Transpose()))
	}
	if b.RequiresGrad() {
		b.AccumulateGrad(a.Value().Transpose().MatMul(g))
	}
}

// MatMul returns the 2-D matrix product a @ b.
func MatMul(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	mustRank("MatMul", a.Shape(), 2)
	mustRank("MatMul", b.Shape(), 2)
	return emit(s, MatMulOp{}, a.Value().MatMul(b.Value()), a, b)
}
