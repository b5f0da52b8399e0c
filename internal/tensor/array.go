// Package tensor provides the dense float64 arrays that hold tensor values
// and gradients.
//
// It is deliberately small: element-wise arithmetic on equal shapes,
// reductions, and 2-D matrix products. There is no broadcasting.
package tensor

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Array is a row-major n-dimensional float64 array.
type Array struct {
	shape Shape
	data  []float64
}

// Shape returns the array's shape. Callers must not modify it.
func (a *Array) Shape() Shape {
	return a.shape
}

// Data returns the underlying row-major storage.
// Writes through the returned slice modify the array.
func (a *Array) Data() []float64 {
	return a.data
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	return len(a.data)
}

// Dim returns the number of dimensions.
func (a *Array) Dim() int {
	return len(a.shape)
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	return &Array{
		shape: a.shape.Clone(),
		data:  append([]float64(nil), a.data...),
	}
}

// offset converts a multi-index into a flat offset.
func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("tensor: index %v has %d dims, array has %d", idx, len(idx), len(a.shape)))
	}
	strides := a.shape.ComputeStrides()
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, a.shape))
		}
		off += v * strides[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (a *Array) At(idx ...int) float64 {
	return a.data[a.offset(idx)]
}

// Set stores v at the given multi-index.
func (a *Array) Set(v float64, idx ...int) {
	a.data[a.offset(idx)] = v
}

// Item returns the single element of a one-element array.
func (a *Array) Item() float64 {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on array of shape %v", a.shape))
	}
	return a.data[0]
}

// Reshape returns an array viewing the same data with a new shape.
// One dimension may be -1 and is inferred.
func (a *Array) Reshape(shape Shape) (*Array, error) {
	resolved, err := shape.resolve(len(a.data))
	if err != nil {
		return nil, fmt.Errorf("reshape %v to %v: %w", a.shape, shape, err)
	}
	return &Array{shape: resolved, data: a.data}, nil
}

// MustReshape is Reshape that panics on error.
func (a *Array) MustReshape(shape Shape) *Array {
	r, err := a.Reshape(shape)
	if err != nil {
		panic(err)
	}
	return r
}

// Row returns a copy of the i-th slice along the first axis.
func (a *Array) Row(i int) *Array {
	if len(a.shape) == 0 {
		panic("tensor: Row on scalar array")
	}
	if i < 0 || i >= a.shape[0] {
		panic(fmt.Sprintf("tensor: row %d out of range for shape %v", i, a.shape))
	}
	sub := a.shape[1:].Clone()
	n := sub.NumElements()
	return &Array{
		shape: sub,
		data:  append([]float64(nil), a.data[i*n:(i+1)*n]...),
	}
}

// Equal reports whether a and b have the same shape and identical elements.
func (a *Array) Equal(b *Array) bool {
	return a.shape.Equal(b.shape) && floats.Equal(a.data, b.data)
}

// AllClose reports whether a and b have the same shape and every pair of
// elements differs by at most tol.
func (a *Array) AllClose(b *Array, tol float64) bool {
	return a.shape.Equal(b.shape) && floats.EqualApprox(a.data, b.data, tol)
}

// String renders the shape and values, e.g. "(2, 2)[1 2 3 4]".
func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteString(a.shape.String())
	sb.WriteString(fmt.Sprint(a.data))
	return sb.String()
}
