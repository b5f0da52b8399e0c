package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
)

// ReLUOp represents a ReLU (Rectified Linear Unit) activation: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
type ReLUOp struct{}

// Name returns "relu".
func (ReLUOp) Name() string { return "relu" }

// NumOutputs returns 1.
func (ReLUOp) NumOutputs() int { return 1 }

// Backward masks the output gradient where the input was not positive.
func (ReLUOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	mask := x.Value().Map(func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	})
	x.AccumulateGrad(outputs[0].Grad().Mul(mask))
}

// ReLU returns max(0, x) element-wise.
func ReLU(s *autodiff.Session, x autodiff.Tensor) autodiff.Tensor {
	y := x.Value().Map(func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
	return emit(s, ReLUOp{}, y, x)
}
