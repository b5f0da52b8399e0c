package nn

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
)

// MaxPool2D takes the maximum over kernel x kernel windows of
// [batch, channels, height, width] inputs.
type MaxPool2D struct {
	activation
	kernel, stride int
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernel, stride int) *MaxPool2D {
	return &MaxPool2D{kernel: kernel, stride: stride}
}

// Forward pools input.
func (p *MaxPool2D) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.MaxPool2D(s, input, p.kernel, p.stride)
}

// Flatten reshapes [batch, ...] inputs to [batch, features] so convolutional
// features can feed a Linear layer.
type Flatten struct{ activation }

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

// Forward flattens input.
func (*Flatten) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	return ops.Flatten(s, input)
}
