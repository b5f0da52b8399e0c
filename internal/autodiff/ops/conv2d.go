package ops

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Conv2DOp represents a 2-D convolution computed by im2col.
//
// x is [N, C, H, W], the kernel w is [F, C, KH, KW] and the optional bias b is
// [F]. The output is [N, F, HOut, WOut] with
//
//	HOut = (H + 2*padding - KH) / stride + 1
//	WOut = (W + 2*padding - KW) / stride + 1
//
// Forward: cols [N*HOut*WOut, C*KH*KW] holds every receptive field as a row,
// so y = cols @ w^T + b, transposed back to NCHW.
//
// Backward, with gy flattened to [N*HOut*WOut, F]:
//   - dw = (gy^T @ cols) reshaped to w's shape
//   - dx = col2im(gy @ w)
//   - db = Σ gy over rows
type Conv2DOp struct {
	geom conv2DGeometry
	cols *tensor.Array
}

// Name returns "conv2d".
func (*Conv2DOp) Name() string { return "conv2d" }

// NumOutputs returns 1.
func (*Conv2DOp) NumOutputs() int { return 1 }

// Backward computes gradients for x, w and b.
func (op *Conv2DOp) Backward(outputs, inputs []autodiff.Tensor) {
	x, w, b := inputs[0], inputs[1], inputs[2]
	g := op.geom
	gy := g.toRows(outputs[0].Grad())

	if !b.IsEmpty() && b.RequiresGrad() {
		b.AccumulateGrad(gy.SumAxis0())
	}
	if w.RequiresGrad() {
		w.AccumulateGrad(gy.Transpose().MatMul(op.cols).MustReshape(w.Shape()))
	}
	if x.RequiresGrad() {
		filter := w.Value().MustReshape(tensor.Shape{g.f, -1})
		x.AccumulateGrad(g.col2im(gy.MatMul(filter)))
	}
}

// Conv2D convolves x [N, C, H, W] with w [F, C, KH, KW] and adds the optional
// bias b [F]. stride must be positive and padding non-negative.
func Conv2D(s *autodiff.Session, x, w, b autodiff.Tensor, stride, padding int) autodiff.Tensor {
	mustRank("Conv2D", x.Shape(), 4)
	mustRank("Conv2D", w.Shape(), 4)
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("Conv2D: invalid stride %d or padding %d", stride, padding))
	}
	xs, ws := x.Shape(), w.Shape()
	if xs[1] != ws[1] {
		panic(fmt.Sprintf("Conv2D: input channels %d do not match kernel %v", xs[1], ws))
	}
	g := conv2DGeometry{
		n: xs[0], c: xs[1], h: xs[2], w: xs[3],
		f: ws[0], kh: ws[2], kw: ws[3],
		stride: stride, padding: padding,
	}
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	if g.h+2*padding < g.kh || g.w+2*padding < g.kw {
		panic(fmt.Sprintf("Conv2D: kernel %v larger than padded input %v", ws, xs))
	}
	if !b.IsEmpty() && !b.Shape().Equal(tensor.Shape{g.f}) {
		panic(fmt.Sprintf("Conv2D: bias shape %v, want (%d)", b.Shape(), g.f))
	}

	op := &Conv2DOp{geom: g, cols: g.im2col(x.Value())}
	filter := w.Value().MustReshape(tensor.Shape{g.f, -1})
	rows := op.cols.MatMul(filter.Transpose())
	if !b.IsEmpty() {
		rd, bd := rows.Data(), b.Value().Data()
		for k := range rd {
			rd[k] += bd[k%g.f]
		}
	}
	return emit(s, op, g.fromRows(rows), x, w, b)
}

type conv2DGeometry struct {
	n, c, h, w      int
	f, kh, kw       int
	hOut, wOut      int
	stride, padding int
}

// im2col lays out every receptive field of x as one row of
// [N*HOut*WOut, C*KH*KW]. Padding positions are zero.
func (g conv2DGeometry) im2col(x *tensor.Array) *tensor.Array {
	cols := tensor.Zeros(tensor.Shape{g.n * g.hOut * g.wOut, g.c * g.kh * g.kw})
	g.fields(func(row, col, src int) {
		if src >= 0 {
			cols.Data()[row*g.c*g.kh*g.kw+col] = x.Data()[src]
		}
	})
	return cols
}

// col2im scatters rows shaped like im2col's output back onto [N, C, H, W],
// summing overlapping fields.
func (g conv2DGeometry) col2im(cols *tensor.Array) *tensor.Array {
	out := tensor.Zeros(tensor.Shape{g.n, g.c, g.h, g.w})
	g.fields(func(row, col, src int) {
		if src >= 0 {
			out.Data()[src] += cols.Data()[row*g.c*g.kh*g.kw+col]
		}
	})
	return out
}

// fields visits every (row, column) cell of the im2col matrix together with
// the flat input index it reads, or -1 inside the padding.
func (g conv2DGeometry) fields(f func(row, col, src int)) {
	row := 0
	for i := 0; i < g.n; i++ {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				col := 0
				for ch := 0; ch < g.c; ch++ {
					for ki := 0; ki < g.kh; ki++ {
						ih := oh*g.stride + ki - g.padding
						for kj := 0; kj < g.kw; kj++ {
							iw := ow*g.stride + kj - g.padding
							src := -1
							if ih >= 0 && ih < g.h && iw >= 0 && iw < g.w {
								src = ((i*g.c+ch)*g.h+ih)*g.w + iw
							}
							f(row, col, src)
							col++
						}
					}
				}
				row++
			}
		}
	}
}

// fromRows turns [N*HOut*WOut, F] into [N, F, HOut, WOut].
func (g conv2DGeometry) fromRows(rows *tensor.Array) *tensor.Array {
	out := tensor.Zeros(tensor.Shape{g.n, g.f, g.hOut, g.wOut})
	od, rd := out.Data(), rows.Data()
	spatial := g.hOut * g.wOut
	for i := 0; i < g.n; i++ {
		for p := 0; p < spatial; p++ {
			for f := 0; f < g.f; f++ {
				od[(i*g.f+f)*spatial+p] = rd[(i*spatial+p)*g.f+f]
			}
		}
	}
	return out
}

// toRows is the inverse of fromRows.
func (g conv2DGeometry) toRows(y *tensor.Array) *tensor.Array {
	rows := tensor.Zeros(tensor.Shape{g.n * g.hOut * g.wOut, g.f})
	rd, yd := rows.Data(), y.Data()
	spatial := g.hOut * g.wOut
	for i := 0; i < g.n; i++ {
		for p := 0; p < spatial; p++ {
			for f := 0; f < g.f; f++ {
				rd[(i*spatial+p)*g.f+f] = yd[(i*g.f+f)*spatial+p]
			}
		}
	}
	return rows
}
