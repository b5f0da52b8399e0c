package ops

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// MomentsOp computes the per-column mean and population variance of a 2-D
// input. It has two outputs, (mean, variance), both of shape [D].
//
// Backward (N rows):
//
//	dx[i,d] = gmean[d] / N + gvar[d] * 2 * (x[i,d] - mean[d]) / N
type MomentsOp struct{}

// Name returns "moments".
func (MomentsOp) Name() string { return "moments" }

// NumOutputs returns 2.
func (MomentsOp) NumOutputs() int { return 2 }

// Backward combines the gradients of both outputs.
func (MomentsOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	mean, gm, gv := outputs[0].Value().Data(), outputs[0].Grad().Data(), outputs[1].Grad().Data()
	n, d := x.Shape()[0], x.Shape()[1]
	inv := 1 / float64(n)

	grad := tensor.Zeros(x.Shape())
	xd, gd := x.Value().Data(), grad.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			k := i*d + j
			gd[k] = gm[j]*inv + gv[j]*2*(xd[k]-mean[j])*inv
		}
	}
	x.AccumulateGrad(grad)
}

// Moments returns the mean and population variance of x [N, D] over its
// first axis.
func Moments(s *autodiff.Session, x autodiff.Tensor) (mean, variance autodiff.Tensor) {
	mustRank("Moments", x.Shape(), 2)
	m, v := columnMoments(x.Value())
	outs := emitMulti(s, MomentsOp{}, []*tensor.Array{m, v}, x)
	return outs[0], outs[1]
}

// columnMoments returns the per-column mean and population variance.
func columnMoments(x *tensor.Array) (mean, variance *tensor.Array) {
	n, d := x.Shape()[0], x.Shape()[1]
	mean = x.SumAxis0().Scale(1 / float64(n))
	variance = tensor.Zeros(tensor.Shape{d})
	xd, md, vd := x.Data(), mean.Data(), variance.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			diff := xd[i*d+j] - md[j]
			vd[j] += diff * diff
		}
	}
	for j := range vd {
		vd[j] /= float64(n)
	}
	return mean, variance
}
