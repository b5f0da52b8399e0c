package tensor

import (
	"fmt"

	gtensor "gorgonia.org/tensor"
)

// Dense converts the array into a gorgonia dense tensor.
// The result owns a copy of the data.
func (a *Array) Dense() *gtensor.Dense {
	if len(a.shape) == 0 {
		return gtensor.New(gtensor.FromScalar(a.data[0]))
	}
	return gtensor.New(
		gtensor.WithShape(a.shape.Clone()...),
		gtensor.WithBacking(append([]float64(nil), a.data...)),
	)
}

// FromDense copies a float64 or float32 gorgonia dense tensor into an Array.
func FromDense(d *gtensor.Dense) (*Array, error) {
	shape := Shape(append([]int(nil), d.Shape()...))

	var data []float64
	switch v := d.Data().(type) {
	case []float64:
		data = append([]float64(nil), v...)
	case float64:
		data = []float64{v}
	case []float32:
		data = make([]float64, len(v))
		for i, x := range v {
			data[i] = float64(x)
		}
	case float32:
		data = []float64{float64(v)}
	default:
		return nil, fmt.Errorf("from dense: unsupported dtype %v", d.Dtype())
	}

	if len(data) == 1 && shape.NumElements() == 1 {
		// gorgonia reports scalars with an empty or all-ones shape
		return &Array{shape: shape, data: data}, nil
	}
	return FromSlice(data, shape)
}

// ArgmaxRows returns the column index of the largest element of each row of
// a 2-D array. The first maximum wins on ties.
func (a *Array) ArgmaxRows() []int {
	if len(a.shape) != 2 {
		panic(fmt.Sprintf("argmax rows: expected 2-D array, got shape %v", a.shape))
	}
	r, err := a.Dense().Argmax(1)
	if err != nil {
		panic(fmt.Sprintf("argmax rows: %v", err))
	}
	switch v := r.Data().(type) {
	case []int:
		return append([]int(nil), v...)
	case int:
		return []int{v}
	default:
		panic(fmt.Sprintf("argmax rows: unexpected result %T", v))
	}
}
