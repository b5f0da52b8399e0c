// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum, dampening, Nesterov
//     momentum and weight decay
//   - Adam: Adaptive Moment Estimation
//
// Example usage:
//
//	opt, err := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05, Momentum: 0.9})
//	if err != nil {
//	    return err
//	}
//
//	for step := range steps {
//	    s := autodiff.NewSession()
//	    loss := lossFn.Forward(s, model.Forward(s, input), targets)
//	    loss.Backward(s)
//
//	    opt.Step(s) // updates parameters and clears s
//	    opt.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters that require
	// gradients, then clears the session's graph. s may be nil.
	Step(s *autodiff.Session)

	// ZeroGrad resets all parameter gradients to zero.
	//
	// Gradients accumulate, so call this between steps.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate, e.g. for scheduling.
	SetLR(lr float64)

	// Steps returns the number of completed Step calls.
	Steps() int
}

// params is the parameter bookkeeping shared by the optimizers.
type params struct {
	list  []autodiff.Tensor
	steps int
}

// finish counts the step and drops the recorded graph.
func (p *params) finish(s *autodiff.Session) {
	p.steps++
	if s != nil {
		s.Clear()
	}
}

// ZeroGrad resets the gradient of every parameter.
func (p *params) ZeroGrad() {
	for _, param := range p.list {
		param.ZeroGrad()
	}
}

// Steps returns the number of completed steps.
func (p *params) Steps() int {
	return p.steps
}

// buffer returns the per-parameter state array for key, allocating zeros of
// the parameter's shape on first use.
func buffer(m map[autodiff.ID]*tensor.Array, param autodiff.Tensor) *tensor.Array {
	b, ok := m[param.ID()]
	if !ok {
		b = tensor.ZerosLike(param.Value())
		m[param.ID()] = b
	}
	return b
}
