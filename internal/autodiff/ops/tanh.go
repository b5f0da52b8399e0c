package ops

import (
	"math"

	"github.com/born-ml/tracegrad/internal/autodiff"
)

// TanhOp represents the hyperbolic tangent activation.
//
// Since the output is already computed:
//
//	grad_input = grad_output * (1 - output²)
type TanhOp struct{}

// Name returns "tanh".
func (TanhOp) Name() string { return "tanh" }

// NumOutputs returns 1.
func (TanhOp) NumOutputs() int { return 1 }

// Backward computes the gradient for tanh.
func (TanhOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	dy := outputs[0].Value().Map(func(y float64) float64 { return 1 - y*y })
	x.AccumulateGrad(outputs[0].Grad().Mul(dy))
}

// Tanh returns tanh(x) element-wise.
func Tanh(s *autodiff.Session, x autodiff.Tensor) autodiff.Tensor {
	return emit(s, TanhOp{}, x.Value().Map(math.Tanh), x)
}
