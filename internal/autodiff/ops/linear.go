package ops

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// LinearOp represents an affine map: output = x @ W + b.
//
// x is [n, in] (higher-rank inputs are flattened to [n, -1]), W is [in, out]
// and the optional b is [out].
//
// Backward pass:
//   - dx = outputGrad @ W^T (reshaped back to x's shape)
//   - dW = x^T @ outputGrad
//   - db = sum of outputGrad over the batch
type LinearOp struct{}

// Name returns "linear".
func (LinearOp) Name() string { return "linear" }

// NumOutputs returns 1.
func (LinearOp) NumOutputs() int { return 1 }

// Backward computes gradients for x, W and b.
func (LinearOp) Backward(outputs, inputs []autodiff.Tensor) {
	g := outputs[0].Grad()
	x, w, b := inputs[0], inputs[1], inputs[2]
	x2 := flatten2D("Linear", x.Value())

	if x.RequiresGrad() {
		x.AccumulateGrad(g.MatMul(w.Value().Transpose()).MustReshape(x.Shape()))
	}
	if w.RequiresGrad() {
		w.AccumulateGrad(x2.Transpose().MatMul(g))
	}
	if !b.IsEmpty() && b.RequiresGrad() {
		b.AccumulateGrad(g.SumAxis0())
	}
}

// Linear returns x @ w + b. b may be the empty tensor.
func Linear(s *autodiff.Session, x, w, b autodiff.Tensor) autodiff.Tensor {
	x2 := flatten2D("Linear", x.Value())
	mustRank("Linear", w.Shape(), 2)
	if x2.Shape()[1] != w.Shape()[0] {
		panic(fmt.Sprintf("Linear: input features %d do not match weight %v", x2.Shape()[1], w.Shape()))
	}

	y := x2.MatMul(w.Value())
	if !b.IsEmpty() {
		if !b.Shape().Equal(tensor.Shape{w.Shape()[1]}) {
			panic(fmt.Sprintf("Linear: bias shape %v, want (%d)", b.Shape(), w.Shape()[1]))
		}
		n, out := y.Shape()[0], y.Shape()[1]
		yd, bd := y.Data(), b.Value().Data()
		for i := 0; i < n; i++ {
			for j := 0; j < out; j++ {
				yd[i*out+j] += bd[j]
			}
		}
	}
	return emit(s, LinearOp{}, y, x, w, b)
}
