// Package nn implements neural network modules on top of the autodiff
// engine.
//
// This package provides building blocks for constructing neural networks:
//   - Module interface: Base interface for all NN components
//   - Linear: Fully connected layer
//   - Conv2D, MaxPool2D, Flatten: Convolutional feature extraction
//   - BatchNorm1D, BatchNorm2D: Batch normalisation with running statistics
//   - Activations: ReLU, Sigmoid, Tanh
//   - Loss functions: MSELoss, CrossEntropyLoss
//   - Sequential: Container for stacking layers
//
// Parameters are plain autodiff leaves that require gradients; optimizers
// receive them through Module.Parameters.
package nn

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, true, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, true, rng),
//	)
//	out := model.Forward(s, input)
type Module interface {
	// Forward computes the output of the module, tracing into s.
	// s may be nil for inference.
	Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []autodiff.Tensor

	// StateDict returns copies of the module's parameter and buffer values
	// keyed by name.
	StateDict() map[string]*tensor.Array

	// LoadStateDict copies values from a state dictionary into the module.
	LoadStateDict(state map[string]*tensor.Array) error
}

// newParameter creates a named leaf that requires gradients.
func newParameter(name string, value *tensor.Array) autodiff.Tensor {
	p := autodiff.FromArray(value, true)
	p.SetName(name)
	return p
}

// loadInto copies state[name] into dst after checking its shape.
func loadInto(state map[string]*tensor.Array, name string, dst autodiff.Tensor) error {
	src, ok := state[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), src.Shape())
	}
	copy(dst.Value().Data(), src.Data())
	return nil
}
