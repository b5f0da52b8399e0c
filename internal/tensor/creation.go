package tensor

import (
	"fmt"
	"math/rand"
)

// New creates a zero-filled array with the given shape.
func New(shape Shape) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Array{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}, nil
}

// Zeros creates an array filled with zeros.
// Panics if the shape is invalid.
//
// Example:
//
//	a := tensor.Zeros(tensor.Shape{3, 4})
func Zeros(shape Shape) *Array {
	a, err := New(shape)
	if err != nil {
		panic(err)
	}
	return a
}

// Ones creates an array filled with ones.
func Ones(shape Shape) *Array {
	return Full(shape, 1)
}

// Full creates an array filled with value.
func Full(shape Shape, value float64) *Array {
	a := Zeros(shape)
	for i := range a.data {
		a.data[i] = value
	}
	return a
}

// ZerosLike returns a zero array with the same shape as a.
func ZerosLike(a *Array) *Array {
	return Zeros(a.shape)
}

// OnesLike returns an array of ones with the same shape as a.
func OnesLike(a *Array) *Array {
	return Ones(a.shape)
}

// ScalarArray creates a rank-0 array holding v.
func ScalarArray(v float64) *Array {
	return &Array{shape: Shape{}, data: []float64{v}}
}

// FromSlice creates an array from row-major data.
// The slice is copied.
//
// Example:
//
//	a, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(data []float64, shape Shape) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Array{
		shape: shape.Clone(),
		data:  append([]float64(nil), data...),
	}, nil
}

// MustFromSlice is FromSlice that panics on error.
// Intended for literals in tests and examples.
func MustFromSlice(data []float64, shape Shape) *Array {
	a, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return a
}

// Randn creates an array with values drawn from N(0, 1) using rng.
func Randn(shape Shape, rng *rand.Rand) *Array {
	a := Zeros(shape)
	for i := range a.data {
		a.data[i] = rng.NormFloat64()
	}
	return a
}

// Uniform creates an array with values drawn from U(lo, hi) using rng.
func Uniform(shape Shape, lo, hi float64, rng *rand.Rand) *Array {
	a := Zeros(shape)
	for i := range a.data {
		a.data[i] = lo + rng.Float64()*(hi-lo)
	}
	return a
}
