// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"fmt"

	"github.com/born-ml/tracegrad/autodiff"
	"github.com/born-ml/tracegrad/ops"
	"github.com/born-ml/tracegrad/tensor"
)

func Example() {
	s := autodiff.NewSession()
	x, _ := autodiff.FromSlice([]float64{2, 3}, tensor.Shape{2}, true)
	y, _ := autodiff.FromSlice([]float64{5, 6}, tensor.Shape{2}, false)

	loss := ops.MeanSquaredError(s, x, y)
	loss.Backward(s)

	fmt.Println(loss.Value().Item())
	fmt.Println(x.Grad())
	// Output:
	// 9
	// (2)[-3 -3]
}

func ExampleFuncOf() {
	s := autodiff.NewSession()
	x := autodiff.Scalar(4, true)

	// y = x^2 as a custom operation.
	square := autodiff.FuncOf("square", 1, func(outputs, inputs []autodiff.Tensor) {
		g := inputs[0].Value().Scale(2).Mul(outputs[0].Grad())
		inputs[0].AccumulateGrad(g)
	})
	y := autodiff.FromArray(x.Value().Mul(x.Value()), true)
	s.Register([]autodiff.Tensor{x}, y, square)

	y.Backward(s)
	fmt.Println(y.Value().Item(), x.Grad().Item())
	// Output: 16 8
}
