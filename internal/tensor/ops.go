package tensor

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// mapConfig is the parallel policy used by Map.
var mapConfig = parallel.DefaultConfig()

func mustSameShape(op string, a, b *Array) {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor.%s: shape mismatch %v vs %v", op, a.shape, b.shape))
	}
}

// Add returns a + b element-wise.
func (a *Array) Add(b *Array) *Array {
	mustSameShape("Add", a, b)
	out := a.Clone()
	floats.Add(out.data, b.data)
	return out
}

// Sub returns a - b element-wise.
func (a *Array) Sub(b *Array) *Array {
	mustSameShape("Sub", a, b)
	out := a.Clone()
	floats.Sub(out.data, b.data)
	return out
}

// Mul returns a * b element-wise.
func (a *Array) Mul(b *Array) *Array {
	mustSameShape("Mul", a, b)
	out := a.Clone()
	floats.Mul(out.data, b.data)
	return out
}

// Scale returns c * a.
func (a *Array) Scale(c float64) *Array {
	out := a.Clone()
	floats.Scale(c, out.data)
	return out
}

// AddInPlace adds b into a.
func (a *Array) AddInPlace(b *Array) {
	mustSameShape("AddInPlace", a, b)
	floats.Add(a.data, b.data)
}

// AddScaledInPlace computes a += alpha * b.
func (a *Array) AddScaledInPlace(alpha float64, b *Array) {
	mustSameShape("AddScaledInPlace", a, b)
	floats.AddScaled(a.data, alpha, b.data)
}

// Fill sets every element to v.
func (a *Array) Fill(v float64) {
	for i := range a.data {
		a.data[i] = v
	}
}

// Map returns f applied to every element.
// Large arrays are processed in parallel chunks.
func (a *Array) Map(f func(float64) float64) *Array {
	out := &Array{shape: a.shape.Clone(), data: make([]float64, len(a.data))}
	parallel.ForRange(len(a.data), mapConfig, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out.data[i] = f(a.data[i])
		}
	})
	return out
}

// Sum returns the sum of all elements.
func (a *Array) Sum() float64 {
	return floats.Sum(a.data)
}

// Mean returns the mean of all elements.
func (a *Array) Mean() float64 {
	return floats.Sum(a.data) / float64(len(a.data))
}

// SumAxis0 sums over the first axis: [n, d...] -> [d...].
func (a *Array) SumAxis0() *Array {
	if len(a.shape) == 0 {
		return a.Clone()
	}
	out := Zeros(a.shape[1:])
	n := len(out.data)
	for i := 0; i < a.shape[0]; i++ {
		floats.Add(out.data, a.data[i*n:(i+1)*n])
	}
	return out
}

// as2D views a 2-D array as a gonum matrix sharing storage.
func (a *Array) as2D(op string) *mat.Dense {
	if len(a.shape) != 2 {
		panic(fmt.Sprintf("tensor.%s: expected 2-D array, got shape %v", op, a.shape))
	}
	return mat.NewDense(a.shape[0], a.shape[1], a.data)
}

// MatMul returns the matrix product a @ b of two 2-D arrays.
func (a *Array) MatMul(b *Array) *Array {
	am, bm := a.as2D("MatMul"), b.as2D("MatMul")
	if a.shape[1] != b.shape[0] {
		panic(fmt.Sprintf("tensor.MatMul: inner dimensions differ %v @ %v", a.shape, b.shape))
	}
	out := Zeros(Shape{a.shape[0], b.shape[1]})
	out.as2D("MatMul").Mul(am, bm)
	return out
}

// Transpose returns the transpose of a 2-D array.
func (a *Array) Transpose() *Array {
	am := a.as2D("Transpose")
	out := Zeros(Shape{a.shape[1], a.shape[0]})
	out.as2D("Transpose").Copy(am.T())
	return out
}
