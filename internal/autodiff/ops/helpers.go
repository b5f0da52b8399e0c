package ops

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/tensor"
)

func mustSameShape(op string, a, b tensor.Shape) {
	if !a.Equal(b) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a, b))
	}
}

func mustRank(op string, s tensor.Shape, rank int) {
	if len(s) != rank {
		panic(fmt.Sprintf("%s: expected %d-D input, got shape %v", op, rank, s))
	}
}

// flatten2D views a as [n, rest], keeping the leading dimension.
func flatten2D(op string, a *tensor.Array) *tensor.Array {
	shape := a.Shape()
	if len(shape) == 2 {
		return a
	}
	if len(shape) < 2 {
		panic(fmt.Sprintf("%s: expected at least 2-D input, got shape %v", op, shape))
	}
	return a.MustReshape(tensor.Shape{shape[0], -1})
}
