package ops

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// ChunkOp represents a chunk operation that splits a tensor into n equal
// parts along its first axis.
//
// Backward:
//
//	Concatenate all output gradients back together along axis 0.
//
// Example:
//
//	input: [1,2,3,4,5,6], n=3
//	outputs: [1,2], [3,4], [5,6]
//	gradInput: [g1..., g2..., g3...]
type ChunkOp struct {
	N int
}

// Name returns "chunk".
func (ChunkOp) Name() string { return "chunk" }

// NumOutputs returns the number of chunks.
func (op ChunkOp) NumOutputs() int { return op.N }

// Backward concatenates the chunk gradients.
func (op ChunkOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	grad := tensor.Zeros(x.Shape())
	gd := grad.Data()
	size := len(gd) / op.N
	for i, out := range outputs {
		copy(gd[i*size:(i+1)*size], out.Grad().Data())
	}
	x.AccumulateGrad(grad)
}

// Chunk splits x into n equal parts along axis 0. x.Shape()[0] must be
// divisible by n.
func Chunk(s *autodiff.Session, x autodiff.Tensor, n int) []autodiff.Tensor {
	shape := x.Shape()
	if len(shape) == 0 || n < 1 || shape[0]%n != 0 {
		panic(fmt.Sprintf("Chunk: cannot split shape %v into %d parts", shape, n))
	}
	part := shape.Clone()
	part[0] /= n
	size := part.NumElements()

	xd := x.Value().Data()
	values := make([]*tensor.Array, n)
	for i := range values {
		values[i] = tensor.MustFromSlice(xd[i*size:(i+1)*size], part)
	}
	return emitMulti(s, ChunkOp{N: n}, values, x)
}
