package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// MSEOp represents the mean squared error between two tensors:
//
//	Loss = mean((x0 - x1)^2)
//
// Backward:
//
//	dL/dx0 = 2 * (x0 - x1) / N * outputGrad
//	dL/dx1 = -dL/dx0
type MSEOp struct{}

// Name returns "mean_squared_error".
func (MSEOp) Name() string { return "mean_squared_error" }

// NumOutputs returns 1.
func (MSEOp) NumOutputs() int { return 1 }

// Backward computes gradients for whichever inputs require them.
func (MSEOp) Backward(outputs, inputs []autodiff.Tensor) {
	x0, x1 := inputs[0], inputs[1]
	diff := x0.Value().Sub(x1.Value())
	g := diff.Scale(2 * outputs[0].Grad().Item() / float64(diff.Size()))
	accumulate(x0, g)
	accumulate(x1, g.Scale(-1))
}

// MeanSquaredError returns mean((x0 - x1)^2) as a scalar.
func MeanSquaredError(s *autodiff.Session, x0, x1 autodiff.Tensor) autodiff.Tensor {
	mustSameShape("MeanSquaredError", x0.Shape(), x1.Shape())
	diff := x0.Value().Sub(x1.Value())
	loss := diff.Mul(diff).Mean()
	return emit(s, MSEOp{}, tensor.ScalarArray(loss), x0, x1)
}

// Reduction selects how per-sample losses are combined.
type Reduction int

const (
	// ReductionMean averages over the batch.
	ReductionMean Reduction = iota
	// ReductionSum adds over the batch.
	ReductionSum
)

// String implements fmt.Stringer.
func (r Reduction) String() string {
	switch r {
	case ReductionMean:
		return "mean"
	case ReductionSum:
		return "sum"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// SoftmaxCrossEntropyOp represents the fused softmax + cross-entropy loss.
//
// Forward:
//
//	Loss = reduce_b(-Σ_i t[b,i] * log_softmax(x[b])[i])
//
// Where log_softmax uses the log-sum-exp trick for numerical stability.
// Labels are either class indices of shape [N] or per-class weights of
// shape [N, C] (one-hot or soft).
//
// Backward:
//
//	dL/dx[b,i] = (softmax(x[b])[i] * Σ_j t[b,j] - t[b,i]) * outputGrad / scale
//
// where scale is N for ReductionMean and 1 for ReductionSum. Labels never
// receive a gradient.
type SoftmaxCrossEntropyOp struct {
	Reduction Reduction
}

// Name returns "softmax_cross_entropy".
func (SoftmaxCrossEntropyOp) Name() string { return "softmax_cross_entropy" }

// NumOutputs returns 1.
func (SoftmaxCrossEntropyOp) NumOutputs() int { return 1 }

// Backward computes the gradient with respect to the logits.
func (op SoftmaxCrossEntropyOp) Backward(outputs, inputs []autodiff.Tensor) {
	x := inputs[0]
	if !x.RequiresGrad() {
		return
	}
	labels := labelMatrix(x.Shape(), inputs[1].Value())
	probs := softmaxRows(x.Value())

	n, c := x.Shape()[0], x.Shape()[1]
	scale := outputs[0].Grad().Item() / op.Reduction.divisor(n)
	grad := tensor.Zeros(x.Shape())
	gd, pd, td := grad.Data(), probs.Data(), labels.Data()
	for b := 0; b < n; b++ {
		row := td[b*c : (b+1)*c]
		mass := 0.0
		for _, v := range row {
			mass += v
		}
		for i := 0; i < c; i++ {
			k := b*c + i
			gd[k] = (pd[k]*mass - td[k]) * scale
		}
	}
	x.AccumulateGrad(grad)
}

func (r Reduction) divisor(n int) float64 {
	if r == ReductionSum {
		return 1
	}
	return float64(n)
}

// SoftmaxCrossEntropy returns the cross-entropy between softmax(x) and the
// labels t. x is [N, C]; t is either [N] class indices or [N, C] weights.
func SoftmaxCrossEntropy(s *autodiff.Session, x, t autodiff.Tensor, reduction Reduction) autodiff.Tensor {
	mustRank("SoftmaxCrossEntropy", x.Shape(), 2)
	labels := labelMatrix(x.Shape(), t.Value())

	n, c := x.Shape()[0], x.Shape()[1]
	xd, td := x.Value().Data(), labels.Data()
	total := 0.0
	for b := 0; b < n; b++ {
		row := xd[b*c : (b+1)*c]
		lse := logSumExp(row)
		for i, v := range row {
			if w := td[b*c+i]; w != 0 {
				total -= w * (v - lse)
			}
		}
	}
	loss := total / reduction.divisor(n)
	return emit(s, SoftmaxCrossEntropyOp{Reduction: reduction}, tensor.ScalarArray(loss), x, t)
}

// labelMatrix turns class indices [N] into a one-hot [N, C] matrix. [N, C]
// labels are returned as is.
func labelMatrix(xShape tensor.Shape, t *tensor.Array) *tensor.Array {
	n, c := xShape[0], xShape[1]
	switch {
	case t.Shape().Equal(xShape):
		return t
	case t.Shape().Equal(tensor.Shape{n}):
		oneHot := tensor.Zeros(xShape)
		for b, v := range t.Data() {
			k := int(v)
			if float64(k) != v || k < 0 || k >= c {
				panic(fmt.Sprintf("SoftmaxCrossEntropy: label %v out of range for %d classes", v, c))
			}
			oneHot.Set(1, b, k)
		}
		return oneHot
	default:
		panic(fmt.Sprintf("SoftmaxCrossEntropy: labels %v do not fit logits %v", t.Shape(), xShape))
	}
}

func logSumExp(row []float64) float64 {
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}

// softmaxRows applies a numerically stable softmax to each row of a 2-D array.
func softmaxRows(x *tensor.Array) *tensor.Array {
	n, c := x.Shape()[0], x.Shape()[1]
	out := tensor.Zeros(x.Shape())
	xd, od := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		lse := logSumExp(xd[b*c : (b+1)*c])
		for i := 0; i < c; i++ {
			od[b*c+i] = math.Exp(xd[b*c+i] - lse)
		}
	}
	return out
}
