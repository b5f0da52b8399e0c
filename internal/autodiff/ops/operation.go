// Package ops implements the differentiable kernels of tracegrad.
//
// Each kernel computes its forward value eagerly and, when the session is
// tracing (recording, and at least one input requires a gradient), registers
// an *Op value implementing autodiff.Function. The Op's Backward adds the
// input gradients with AccumulateGrad, so a tensor consumed by several
// kernels receives the sum of their contributions.
//
// Supported kernels:
//   - Add, Sub, Mul: element-wise, same shape
//   - Sum: total of all elements (scalar)
//   - MatMul: 2-D matrix product (d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad)
//   - Linear: x@W + b
//   - ReLU, Sigmoid, Tanh: activations
//   - MeanSquaredError, SoftmaxCrossEntropy: losses
//   - Moments, Chunk: multi-output kernels
//   - BatchNorm1D, BatchNorm2D: batch normalisation with running statistics
//   - Conv2D, MaxPool2D: NCHW convolution (im2col) and max pooling
package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// emit wraps value in a new tensor and registers op as its creator when s is
// tracing inputs. The result requires a gradient exactly when it was traced.
func emit(s *autodiff.Session, op autodiff.Function, value *tensor.Array, inputs ...autodiff.Tensor) autodiff.Tensor {
	out := autodiff.FromArray(value, false)
	if s.Tracing(inputs...) {
		out.SetRequiresGrad(true)
		s.Register(inputs, out, op)
	}
	return out
}

// emitMulti is emit for kernels with several outputs.
func emitMulti(s *autodiff.Session, op autodiff.Function, values []*tensor.Array, inputs ...autodiff.Tensor) []autodiff.Tensor {
	outs := make([]autodiff.Tensor, len(values))
	for i, v := range values {
		outs[i] = autodiff.FromArray(v, false)
	}
	if s.Tracing(inputs...) {
		for _, out := range outs {
			out.SetRequiresGrad(true)
		}
		s.RegisterOutputs(inputs, outs, op)
	}
	return outs
}

// accumulate adds g into t's gradient when t takes part in differentiation.
func accumulate(t autodiff.Tensor, g *tensor.Array) {
	if t.RequiresGrad() {
		t.AccumulateGrad(g)
	}
}
