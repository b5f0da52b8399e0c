package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// BatchNormConfig configures BatchNorm1D and BatchNorm2D.
type BatchNormConfig struct {
	Eps      float64 // Added to the variance (default: 1e-5)
	Momentum float64 // Running statistics update rate (default: 0.1)
	Training bool    // Use batch statistics and update the running ones
}

// DefaultBatchNormConfig returns the defaults for evaluation mode.
func DefaultBatchNormConfig() BatchNormConfig {
	return BatchNormConfig{Eps: 1e-5, Momentum: 0.1}
}

func (c BatchNormConfig) withDefaults() BatchNormConfig {
	d := DefaultBatchNormConfig()
	if c.Eps == 0 {
		c.Eps = d.Eps
	}
	if c.Momentum == 0 {
		c.Momentum = d.Momentum
	}
	return c
}

// BatchNormOp normalises each channel of an input laid out as [N, C, L...]:
//
//	xhat = (x - mean) / sqrt(var + eps)
//	y    = gamma * xhat + beta
//
// Statistics are taken per channel over the batch and every trailing
// position, M = N * L values each. In training mode mean and var are the
// batch statistics; in evaluation mode they are the running statistics.
//
// Backward (training, with gxhat = gy * gamma):
//
//	dx     = (M*gxhat - Σ gxhat - xhat * Σ(gxhat*xhat)) / (M * sqrt(var + eps))
//	dgamma = Σ gy * xhat
//	dbeta  = Σ gy
//
// In evaluation mode the statistics are constants and dx = gy * gamma / sqrt(var + eps).
type BatchNormOp struct {
	name    string
	cfg     BatchNormConfig
	n, c, l int
	xhat    *tensor.Array
	invStd  []float64
}

// Name returns "batchnorm_1d" or "batchnorm_2d".
func (op *BatchNormOp) Name() string { return op.name }

// NumOutputs returns 1.
func (*BatchNormOp) NumOutputs() int { return 1 }

// Backward computes gradients for x, gamma and beta. The running statistics
// (inputs 3 and 4) receive none.
func (op *BatchNormOp) Backward(outputs, inputs []autodiff.Tensor) {
	x, gamma, beta := inputs[0], inputs[1], inputs[2]
	gy, xh := outputs[0].Grad().Data(), op.xhat.Data()

	sumG := make([]float64, op.c)
	sumGX := make([]float64, op.c)
	op.each(func(k, j int) {
		sumG[j] += gy[k]
		sumGX[j] += gy[k] * xh[k]
	})

	if !beta.IsEmpty() && beta.RequiresGrad() {
		beta.AccumulateGrad(tensor.MustFromSlice(append([]float64(nil), sumG...), tensor.Shape{op.c}))
	}
	if !gamma.IsEmpty() && gamma.RequiresGrad() {
		gamma.AccumulateGrad(tensor.MustFromSlice(append([]float64(nil), sumGX...), tensor.Shape{op.c}))
	}
	if !x.RequiresGrad() {
		return
	}

	scale := make([]float64, op.c)
	for j := range scale {
		scale[j] = op.invStd[j]
		if !gamma.IsEmpty() {
			scale[j] *= gamma.Value().Data()[j]
		}
	}

	grad := tensor.Zeros(x.Shape())
	gd := grad.Data()
	if !op.cfg.Training {
		op.each(func(k, j int) { gd[k] = gy[k] * scale[j] })
		x.AccumulateGrad(grad)
		return
	}

	m := float64(op.n * op.l)
	op.each(func(k, j int) {
		gd[k] = (m*gy[k] - sumG[j] - xh[k]*sumGX[j]) * scale[j] / m
	})
	x.AccumulateGrad(grad)
}

// each calls f with the flat index and channel of every element.
func (op *BatchNormOp) each(f func(k, j int)) {
	for i := 0; i < op.n; i++ {
		for j := 0; j < op.c; j++ {
			base := (i*op.c + j) * op.l
			for p := 0; p < op.l; p++ {
				f(base+p, j)
			}
		}
	}
}

// BatchNorm1D normalises x [N, D] per column. gamma and beta ([D]) may be
// empty. In training mode the running statistics, when present, are updated
// in place as running = (1-momentum)*running + momentum*batch.
func BatchNorm1D(s *autodiff.Session, x, gamma, beta, runningMean, runningVar autodiff.Tensor, cfg BatchNormConfig) autodiff.Tensor {
	mustRank("BatchNorm1D", x.Shape(), 2)
	return batchNorm(s, "BatchNorm1D", "batchnorm_1d", x, gamma, beta, runningMean, runningVar, cfg)
}

// BatchNorm2D normalises x [N, C, H, W] per channel over the batch and both
// spatial axes. Parameters and running statistics are [C]; everything else
// is as in BatchNorm1D.
func BatchNorm2D(s *autodiff.Session, x, gamma, beta, runningMean, runningVar autodiff.Tensor, cfg BatchNormConfig) autodiff.Tensor {
	mustRank("BatchNorm2D", x.Shape(), 4)
	return batchNorm(s, "BatchNorm2D", "batchnorm_2d", x, gamma, beta, runningMean, runningVar, cfg)
}

func batchNorm(s *autodiff.Session, kernel, name string, x, gamma, beta, runningMean, runningVar autodiff.Tensor, cfg BatchNormConfig) autodiff.Tensor {
	cfg = cfg.withDefaults()
	shape := x.Shape()
	op := &BatchNormOp{name: name, cfg: cfg, n: shape[0], c: shape[1], l: shape[2:].NumElements()}
	for _, p := range []autodiff.Tensor{gamma, beta, runningMean, runningVar} {
		if !p.IsEmpty() && !p.Shape().Equal(tensor.Shape{op.c}) {
			panic(fmt.Sprintf("%s: parameter shape %v, want (%d)", kernel, p.Shape(), op.c))
		}
	}

	xd := x.Value().Data()
	var mean, variance []float64
	if cfg.Training {
		mean, variance = op.moments(xd)
		if !runningMean.IsEmpty() {
			updateRunning(runningMean.Value().Data(), mean, cfg.Momentum)
		}
		if !runningVar.IsEmpty() {
			updateRunning(runningVar.Value().Data(), variance, cfg.Momentum)
		}
	} else {
		if runningMean.IsEmpty() || runningVar.IsEmpty() {
			panic(kernel + ": evaluation mode needs running statistics")
		}
		mean, variance = runningMean.Value().Data(), runningVar.Value().Data()
	}

	op.invStd = make([]float64, op.c)
	for j, v := range variance {
		op.invStd[j] = 1 / math.Sqrt(v+cfg.Eps)
	}

	op.xhat = tensor.Zeros(shape)
	y := tensor.Zeros(shape)
	hd, yd := op.xhat.Data(), y.Data()
	op.each(func(k, j int) {
		hd[k] = (xd[k] - mean[j]) * op.invStd[j]
		yd[k] = hd[k]
		if !gamma.IsEmpty() {
			yd[k] *= gamma.Value().Data()[j]
		}
		if !beta.IsEmpty() {
			yd[k] += beta.Value().Data()[j]
		}
	})
	return emit(s, op, y, x, gamma, beta, runningMean, runningVar)
}

// moments returns the per-channel mean and population variance of xd.
func (op *BatchNormOp) moments(xd []float64) (mean, variance []float64) {
	mean = make([]float64, op.c)
	variance = make([]float64, op.c)
	m := float64(op.n * op.l)
	op.each(func(k, j int) { mean[j] += xd[k] })
	for j := range mean {
		mean[j] /= m
	}
	op.each(func(k, j int) {
		d := xd[k] - mean[j]
		variance[j] += d * d
	})
	for j := range variance {
		variance[j] /= m
	}
	return mean, variance
}

func updateRunning(running, batch []float64, momentum float64) {
	for j := range running {
		running[j] = (1-momentum)*running[j] + momentum*batch[j]
	}
}
