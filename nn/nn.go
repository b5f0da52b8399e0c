// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network modules built on the autodiff engine.
//
// # Overview
//
// This package contains:
//   - Module interface with Forward, Parameters and state dictionaries
//   - Linear, Conv2D, BatchNorm1D and BatchNorm2D layers
//   - MaxPool2D and Flatten
//   - ReLU, Sigmoid and Tanh activations
//   - Sequential container
//   - MSELoss and CrossEntropyLoss
//
// # Basic Usage
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.NewSequential(
//	    nn.NewLinear(2, 16, true, rng),
//	    nn.NewTanh(),
//	    nn.NewLinear(16, 1, true, rng),
//	)
//
//	s := autodiff.NewSession()
//	loss := nn.NewMSELoss().Forward(s, model.Forward(s, x), y)
//	loss.Backward(s)
package nn

import (
	"math/rand"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/autodiff/ops"
	"github.com/born-ml/tracegrad/internal/nn"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Module is the common interface for all neural network modules.
type Module = nn.Module

// Layers

// Linear is a fully connected layer computing x·W + b.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier-initialized weights and zero
// bias.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, true, rand.New(rand.NewSource(1)))
func NewLinear(inFeatures, outFeatures int, bias bool, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, bias, rng)
}

// BatchNorm1D normalizes each feature over the batch.
type BatchNorm1D = nn.BatchNorm1D

// NewBatchNorm1D creates a batch normalization layer in training mode.
func NewBatchNorm1D(features int, affine bool, cfg ops.BatchNormConfig) *BatchNorm1D {
	return nn.NewBatchNorm1D(features, affine, cfg)
}

// BatchNorm2D normalizes each channel of an [N, C, H, W] input.
type BatchNorm2D = nn.BatchNorm2D

// NewBatchNorm2D creates a 2D batch normalization layer in training mode.
func NewBatchNorm2D(channels int, affine bool, cfg ops.BatchNormConfig) *BatchNorm2D {
	return nn.NewBatchNorm2D(channels, affine, cfg)
}

// Conv2D is a 2D convolutional layer over NCHW inputs.
type Conv2D = nn.Conv2D

// NewConv2D creates a convolutional layer with He-initialized weights.
func NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding int, bias bool, rng *rand.Rand) *Conv2D {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, bias, rng)
}

// MaxPool2D is a max pooling layer.
type MaxPool2D = nn.MaxPool2D

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernel, stride int) *MaxPool2D { return nn.NewMaxPool2D(kernel, stride) }

// Flatten reshapes [N, ...] to [N, features].
type Flatten = nn.Flatten

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten { return nn.NewFlatten() }

// Activations

// ReLU applies max(x, 0).
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// Sigmoid applies the logistic function.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// Tanh applies the hyperbolic tangent.
type Tanh = nn.Tanh

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return nn.NewTanh() }

// Containers

// Sequential chains modules in order.
type Sequential = nn.Sequential

// NewSequential creates a Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Losses

// MSELoss is the mean squared error criterion.
type MSELoss = nn.MSELoss

// NewMSELoss creates an MSE criterion.
func NewMSELoss() *MSELoss { return nn.NewMSELoss() }

// CrossEntropyLoss combines softmax and negative log-likelihood.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a cross entropy criterion with mean reduction.
func NewCrossEntropyLoss() *CrossEntropyLoss { return nn.NewCrossEntropyLoss() }

// Accuracy returns the fraction of rows whose argmax matches the target class,
// given as indices [N] or soft labels [N, C].
func Accuracy(logits, targets autodiff.Tensor) float64 {
	return nn.Accuracy(logits, targets)
}

// Initialization

// Xavier draws weights uniformly from ±sqrt(6 / (fanIn + fanOut)).
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Array {
	return nn.Xavier(fanIn, fanOut, shape, rng)
}

// Normal draws weights from N(0, std²).
func Normal(shape tensor.Shape, std float64, rng *rand.Rand) *tensor.Array {
	return nn.Normal(shape, std, rng)
}

// HeNormal draws weights from N(0, 2/fanIn).
func HeNormal(fanIn int, shape tensor.Shape, rng *rand.Rand) *tensor.Array {
	return nn.HeNormal(fanIn, shape, rng)
}
