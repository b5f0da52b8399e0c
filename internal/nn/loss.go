package nn

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// Example:
//
//	mse := nn.NewMSELoss()
//	loss := mse.Forward(s, model.Forward(s, input), targets)
type MSELoss struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward computes the scalar MSE loss.
func (*MSELoss) Forward(s *autodiff.Session, predictions, targets autodiff.Tensor) autodiff.Tensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}
	return ops.MeanSquaredError(s, predictions, targets)
}

// CrossEntropyLoss computes softmax cross-entropy between logits
// [batch, classes] and class indices [batch] (or soft labels
// [batch, classes]).
type CrossEntropyLoss struct {
	Reduction ops.Reduction
}

// NewCrossEntropyLoss creates a cross-entropy loss averaged over the batch.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{Reduction: ops.ReductionMean}
}

// Forward computes the scalar loss.
func (c *CrossEntropyLoss) Forward(s *autodiff.Session, logits, targets autodiff.Tensor) autodiff.Tensor {
	return ops.SoftmaxCrossEntropy(s, logits, targets, c.Reduction)
}

// Accuracy computes the fraction of rows whose largest logit is at the
// target class. targets are class indices [batch] or soft labels
// [batch, classes], whose largest entry names the class.
func Accuracy(logits, targets autodiff.Tensor) float64 {
	shape, tshape := logits.Shape(), targets.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Accuracy: expected 2-D logits, got shape %v", shape))
	}
	batchSize := shape[0]

	var classes []int
	switch {
	case len(tshape) == 1 && tshape[0] == batchSize:
		classes = make([]int, batchSize)
		for b, v := range targets.Value().Data() {
			classes[b] = int(v)
		}
	case tshape.Equal(shape):
		classes = targets.Value().ArgmaxRows()
	default:
		panic(fmt.Sprintf("Accuracy: targets %v do not match logits %v", tshape, shape))
	}

	correct := 0
	for b, p := range logits.Value().ArgmaxRows() {
		if p == classes[b] {
			correct++
		}
	}
	return float64(correct) / float64(batchSize)
}
