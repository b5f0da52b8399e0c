// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the differentiable kernels.
//
// Every kernel takes the session first. With a nil or stopped session, or
// when no input requires a gradient, kernels compute eagerly and return
// untraced tensors.
//
//	s := autodiff.NewSession()
//	h := ops.ReLU(s, ops.Linear(s, x, w, b))
//	loss := ops.SoftmaxCrossEntropy(s, h, labels, ops.ReductionMean)
//	loss.Backward(s)
package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
)

type (
	// Session records operations for the backward pass.
	Session = autodiff.Session
	// Tensor is a differentiable tensor handle.
	Tensor = autodiff.Tensor
)

// Reduction selects how per-sample losses are combined.
type Reduction = ops.Reduction

// Loss reductions.
const (
	ReductionMean = ops.ReductionMean
	ReductionSum  = ops.ReductionSum
)

// BatchNormConfig configures BatchNorm1D and BatchNorm2D.
type BatchNormConfig = ops.BatchNormConfig

// DefaultBatchNormConfig returns eps 1e-5 and momentum 0.1 in evaluation mode.
func DefaultBatchNormConfig() BatchNormConfig {
	return ops.DefaultBatchNormConfig()
}

// Add returns a + b.
func Add(s *Session, a, b Tensor) Tensor { return ops.Add(s, a, b) }

// Sub returns a - b.
func Sub(s *Session, a, b Tensor) Tensor { return ops.Sub(s, a, b) }

// Mul returns the element-wise product a * b.
func Mul(s *Session, a, b Tensor) Tensor { return ops.Mul(s, a, b) }

// Sum reduces x to a scalar.
func Sum(s *Session, x Tensor) Tensor { return ops.Sum(s, x) }

// MatMul returns the matrix product of two rank-2 tensors.
func MatMul(s *Session, a, b Tensor) Tensor { return ops.MatMul(s, a, b) }

// Linear returns x·w + b. b may be the empty Tensor.
func Linear(s *Session, x, w, b Tensor) Tensor { return ops.Linear(s, x, w, b) }

// ReLU returns max(x, 0).
func ReLU(s *Session, x Tensor) Tensor { return ops.ReLU(s, x) }

// Sigmoid returns 1 / (1 + exp(-x)).
func Sigmoid(s *Session, x Tensor) Tensor { return ops.Sigmoid(s, x) }

// Tanh returns tanh(x).
func Tanh(s *Session, x Tensor) Tensor { return ops.Tanh(s, x) }

// MeanSquaredError returns mean((x0 - x1)^2).
func MeanSquaredError(s *Session, x0, x1 Tensor) Tensor {
	return ops.MeanSquaredError(s, x0, x1)
}

// SoftmaxCrossEntropy returns the cross entropy between softmax(x) and t.
// t holds class indices of shape [N] or probabilities of shape [N, C].
func SoftmaxCrossEntropy(s *Session, x, t Tensor, reduction Reduction) Tensor {
	return ops.SoftmaxCrossEntropy(s, x, t, reduction)
}

// Moments returns the per-column mean and population variance of x.
func Moments(s *Session, x Tensor) (mean, variance Tensor) {
	return ops.Moments(s, x)
}

// Chunk splits x into n equal parts along the first axis.
func Chunk(s *Session, x Tensor, n int) []Tensor { return ops.Chunk(s, x, n) }

// BatchNorm1D normalizes x per feature. gamma and beta may be empty.
func BatchNorm1D(s *Session, x, gamma, beta, runningMean, runningVar Tensor, cfg BatchNormConfig) Tensor {
	return ops.BatchNorm1D(s, x, gamma, beta, runningMean, runningVar, cfg)
}

// BatchNorm2D normalizes an [N, C, H, W] input per channel.
func BatchNorm2D(s *Session, x, gamma, beta, runningMean, runningVar Tensor, cfg BatchNormConfig) Tensor {
	return ops.BatchNorm2D(s, x, gamma, beta, runningMean, runningVar, cfg)
}

// Conv2D convolves an [N, C, H, W] input with [F, C, KH, KW] filters. b may be
// empty.
func Conv2D(s *Session, x, w, b Tensor, stride, padding int) Tensor {
	return ops.Conv2D(s, x, w, b, stride, padding)
}

// MaxPool2D takes window maxima of an [N, C, H, W] input.
func MaxPool2D(s *Session, x Tensor, kernel, stride int) Tensor {
	return ops.MaxPool2D(s, x, kernel, stride)
}

// Flatten reshapes [N, ...] to [N, -1].
func Flatten(s *Session, x Tensor) Tensor { return ops.Flatten(s, x) }
