package ops

import (
	"math"

	"github.com/born-ml/tracegrad/internal/autodiff"
)

// SigmoidOp represents the logistic function: output = 1 / (1 + exp(-x)).
//
// Backward pass uses the output value:
//   - d(sigmoid(x))/dx = y * (1 - y)
type SigmoidOp struct{}

// Name returns "sigmoid".
func (SigmoidOp) Name() string { return "sigmoid" }

// NumOutputs returns 1.
func (SigmoidOp) NumOutputs() int { return 1 }

// Backward computes grad * y * (1 - y).
func (SigmoidOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	dy := outputs[0].Value().Map(func(y float64) float64 { return y * (1 - y) })
	x.AccumulateGrad(outputs[0].Grad().Mul(dy))
}

// Sigmoid returns 1 / (1 + exp(-x)) element-wise.
func Sigmoid(s *autodiff.Session, x autodiff.Tensor) autodiff.Tensor {
	y := x.Value().Map(func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
	return emit(s, SigmoidOp{}, y, x)
}
