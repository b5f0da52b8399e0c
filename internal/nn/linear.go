package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      autodiff.Tensor // [in_features, out_features]
	bias        autodiff.Tensor // [out_features], empty when disabled
}

// NewLinear creates a new Linear layer drawing its initial weights from rng.
func NewLinear(inFeatures, outFeatures int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight: newParameter("weight",
			Xavier(inFeatures, outFeatures, tensor.Shape{inFeatures, outFeatures}, rng)),
	}
	if bias {
		l.bias = newParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}))
	}
	return l
}

// Forward computes x @ W + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}
	return ops.Linear(s, input, l.weight, l.bias)
}

// Parameters returns [weight, bias], or [weight] without bias.
func (l *Linear) Parameters() []autodiff.Tensor {
	if l.bias.IsEmpty() {
		return []autodiff.Tensor{l.weight}
	}
	return []autodiff.Tensor{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() autodiff.Tensor {
	return l.weight
}

// Bias returns the bias parameter, which is empty when disabled.
func (l *Linear) Bias() autodiff.Tensor {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns copies of weight and bias.
func (l *Linear) StateDict() map[string]*tensor.Array {
	state := map[string]*tensor.Array{"weight": l.weight.Value().Clone()}
	if !l.bias.IsEmpty() {
		state["bias"] = l.bias.Value().Clone()
	}
	return state
}

// LoadStateDict loads weight and bias.
func (l *Linear) LoadStateDict(state map[string]*tensor.Array) error {
	if err := loadInto(state, "weight", l.weight); err != nil {
		return err
	}
	if l.bias.IsEmpty() {
		return nil
	}
	return loadInto(state, "bias", l.bias)
}
