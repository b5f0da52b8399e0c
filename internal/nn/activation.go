package nn

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// activation provides the parameter-free part of Module.
type activation struct{}

// Parameters returns nil.
func (activation) Parameters() []autodiff.Tensor { return nil }

// StateDict returns an empty map.
func (activation) StateDict() map[string]*tensor.Array { return map[string]*tensor.Array{} }

// LoadStateDict accepts any state.
func (activation) LoadStateDict(map[string]*tensor.Array) error { return nil }

// ReLU applies max(0, x) element-wise.
type ReLU struct{ activation }

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

// Forward applies ReLU.
func (*ReLU) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.ReLU(s, input)
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
type Sigmoid struct{ activation }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// Forward applies Sigmoid.
func (*Sigmoid) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.Sigmoid(s, input)
}

// Tanh applies tanh element-wise.
type Tanh struct{ activation }

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return &Tanh{} }

// Forward applies Tanh.
func (*Tanh) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.Tanh(s, input)
}
