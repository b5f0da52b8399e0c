package ops

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// MaxPool2DOp represents max pooling over square windows.
//
// Forward:
//
//	y[n,c,h,w] = max(x[n,c,h*stride+i,w*stride+j] for i,j < kernel)
//
// Backward: each output gradient flows to the input position that held the
// window maximum (the first one on ties); every other position gets zero.
//
// Example (2x2 pool, stride 2):
//
//	x: [[1, 2],  y: [4]  dx: [[0, 0],
//	    [3, 4]]               [0, gy]]
type MaxPool2DOp struct {
	argmax []int // flat input index per output element
}

// Name returns "maxpool2d".
func (*MaxPool2DOp) Name() string { return "maxpool2d" }

// NumOutputs returns 1.
func (*MaxPool2DOp) NumOutputs() int { return 1 }

// Backward routes gradients to the recorded maxima.
func (op *MaxPool2DOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	grad := tensor.Zeros(x.Shape())
	gd := grad.Data()
	for k, g := range outputs[0].Grad().Data() {
		gd[op.argmax[k]] += g
	}
	x.AccumulateGrad(grad)
}

// MaxPool2D pools x [N, C, H, W] with a kernel x kernel window moved by
// stride, giving [N, C, (H-kernel)/stride+1, (W-kernel)/stride+1].
func MaxPool2D(s *autodiff.Session, x autodiff.Tensor, kernel, stride int) autodiff.Tensor {
	mustRank("MaxPool2D", x.Shape(), 4)
	xs := x.Shape()
	n, c, h, w := xs[0], xs[1], xs[2], xs[3]
	if kernel <= 0 || stride <= 0 || kernel > h || kernel > w {
		panic(fmt.Sprintf("MaxPool2D: invalid kernel %d or stride %d for input %v", kernel, stride, xs))
	}
	hOut := (h-kernel)/stride + 1
	wOut := (w-kernel)/stride + 1

	y := tensor.Zeros(tensor.Shape{n, c, hOut, wOut})
	op := &MaxPool2DOp{argmax: make([]int, y.Size())}
	xd, yd := x.Value().Data(), y.Data()
	k := 0
	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				best := base + oh*stride*w + ow*stride
				for i := 0; i < kernel; i++ {
					for j := 0; j < kernel; j++ {
						idx := base + (oh*stride+i)*w + ow*stride + j
						if xd[idx] > xd[best] {
							best = idx
						}
					}
				}
				op.argmax[k] = best
				yd[k] = xd[best]
				k++
			}
		}
	}
	return emit(s, op, y, x)
}
