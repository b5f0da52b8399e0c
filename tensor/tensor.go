// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 arrays that back every
// differentiable tensor.
//
// # Overview
//
// An Array is a row-major buffer plus a Shape. Element-wise arithmetic,
// reductions and matrix products are eager; matrix products run on gonum.
// Dense and FromDense convert to and from gorgonia.org/tensor for interop.
//
// # Basic Usage
//
//	a := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	b := tensor.Ones(tensor.Shape{2, 2})
//	c := a.MatMul(b)
//	fmt.Println(c) // (2, 2)[3 3 7 7]
package tensor

import (
	"math/rand"

	gtensor "gorgonia.org/tensor"

	"github.com/born-ml/tracegrad/internal/tensor"
)

// Shape lists the extent of each dimension.
type Shape = tensor.Shape

// Array is a dense row-major float64 array.
type Array = tensor.Array

// New creates a zero-filled array, validating shape.
func New(shape Shape) (*Array, error) {
	return tensor.New(shape)
}

// Zeros creates a zero-filled array.
func Zeros(shape Shape) *Array {
	return tensor.Zeros(shape)
}

// Ones creates an array filled with ones.
func Ones(shape Shape) *Array {
	return tensor.Ones(shape)
}

// Full creates an array filled with value.
func Full(shape Shape, value float64) *Array {
	return tensor.Full(shape, value)
}

// ZerosLike creates a zero-filled array with a's shape.
func ZerosLike(a *Array) *Array {
	return tensor.ZerosLike(a)
}

// OnesLike creates a ones-filled array with a's shape.
func OnesLike(a *Array) *Array {
	return tensor.OnesLike(a)
}

// FromSlice copies data into an array of the given shape.
func FromSlice(data []float64, shape Shape) (*Array, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float64, shape Shape) *Array {
	return tensor.MustFromSlice(data, shape)
}

// Randn draws from the standard normal distribution.
func Randn(shape Shape, rng *rand.Rand) *Array {
	return tensor.Randn(shape, rng)
}

// Uniform draws uniformly from [lo, hi).
func Uniform(shape Shape, lo, hi float64, rng *rand.Rand) *Array {
	return tensor.Uniform(shape, lo, hi, rng)
}

// FromDense copies a float64 or float32 gorgonia dense tensor into an Array.
// Array.Dense converts the other way.
func FromDense(d *gtensor.Dense) (*Array, error) {
	return tensor.FromDense(d)
}
