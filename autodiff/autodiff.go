// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation driven by
// an explicit trace session.
//
// Kernels in package ops register each forward call with a Session when at
// least one input requires a gradient. Tensor.Backward then replays the
// recorded graph from the root, summing gradients for tensors that feed
// several consumers and holding multi-output nodes until every output has
// reported.
//
// Example:
//
//	import (
//	    "github.com/born-ml/tracegrad/autodiff"
//	    "github.com/born-ml/tracegrad/ops"
//	    "github.com/born-ml/tracegrad/tensor"
//	)
//
//	func main() {
//	    s := autodiff.NewSession()
//	    x, _ := autodiff.FromSlice([]float64{2, 3}, tensor.Shape{2}, true)
//	    y, _ := autodiff.FromSlice([]float64{5, 6}, tensor.Shape{2}, false)
//
//	    loss := ops.MeanSquaredError(s, x, y)
//	    loss.Backward(s)
//	    fmt.Println(x.Grad()) // (2)[-3 -3]
//	}
package autodiff

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Tensor is a copyable handle to a value, its gradient and graph metadata.
type Tensor = autodiff.Tensor

// ID identifies a tensor or a graph node.
type ID = autodiff.ID

// Session records operations and runs the backward pass.
type Session = autodiff.Session

// Node is one recorded operation.
type Node = autodiff.Node

// Function is the backward half of an operation.
type Function = autodiff.Function

// BackwardFunc computes input gradients from output gradients.
type BackwardFunc = autodiff.BackwardFunc

// Errors carried by the panics raised on graph misuse.
var (
	ErrShapeMismatch   = autodiff.ErrShapeMismatch
	ErrCreatorAssigned = autodiff.ErrCreatorAssigned
	ErrMissingNode     = autodiff.ErrMissingNode
	ErrArity           = autodiff.ErrArity
	ErrConsumed        = autodiff.ErrConsumed
)

// NewSession creates an empty, recording session.
func NewSession() *Session {
	return autodiff.NewSession()
}

// New creates a zero-valued tensor of the given shape.
func New(shape tensor.Shape, requiresGrad bool) Tensor {
	return autodiff.New(shape, requiresGrad)
}

// FromArray wraps value in a new leaf tensor.
func FromArray(value *tensor.Array, requiresGrad bool) Tensor {
	return autodiff.FromArray(value, requiresGrad)
}

// FromSlice creates a leaf tensor from data with the given shape.
//
// Example:
//
//	w, err := autodiff.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, true)
func FromSlice(data []float64, shape tensor.Shape, requiresGrad bool) (Tensor, error) {
	return autodiff.FromSlice(data, shape, requiresGrad)
}

// Scalar creates a single-element leaf tensor.
func Scalar(v float64, requiresGrad bool) Tensor {
	return autodiff.Scalar(v, requiresGrad)
}

// FuncOf adapts a closure into a Function for custom operations.
func FuncOf(name string, nOutput int, backward BackwardFunc) Function {
	return autodiff.FuncOf(name, nOutput, backward)
}
