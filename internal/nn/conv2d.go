package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Weights use He-normal initialization, biases start at zero.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight autodiff.Tensor
	bias   autodiff.Tensor // empty when disabled
}

// NewConv2D creates a 2D convolutional layer drawing its weights from rng.
func NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding int, bias bool, rng *rand.Rand) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	shape := tensor.Shape{outChannels, inChannels, kernelH, kernelW}
	c := &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      newParameter("weight", HeNormal(inChannels*kernelH*kernelW, shape, rng)),
	}
	if bias {
		c.bias = newParameter("bias", tensor.Zeros(tensor.Shape{outChannels}))
	}
	return c
}

// Forward convolves input.
func (c *Conv2D) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got shape %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}
	return ops.Conv2D(s, input, c.weight, c.bias, c.stride, c.padding)
}

// Parameters returns [weight, bias], or [weight] without bias.
func (c *Conv2D) Parameters() []autodiff.Tensor {
	if c.bias.IsEmpty() {
		return []autodiff.Tensor{c.weight}
	}
	return []autodiff.Tensor{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() autodiff.Tensor { return c.weight }

// Bias returns the bias parameter, which is empty when disabled.
func (c *Conv2D) Bias() autodiff.Tensor { return c.bias }

// OutputSize returns the spatial output size for an inputH x inputW input.
func (c *Conv2D) OutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}

// StateDict returns copies of weight and bias.
func (c *Conv2D) StateDict() map[string]*tensor.Array {
	state := map[string]*tensor.Array{"weight": c.weight.Value().Clone()}
	if !c.bias.IsEmpty() {
		state["bias"] = c.bias.Value().Clone()
	}
	return state
}

// LoadStateDict loads weight and bias.
func (c *Conv2D) LoadStateDict(state map[string]*tensor.Array) error {
	if err := loadInto(state, "weight", c.weight); err != nil {
		return err
	}
	if c.bias.IsEmpty() {
		return nil
	}
	return loadInto(state, "bias", c.bias)
}
