package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule:
//
//	g = grad + weight_decay * param
//	velocity = g                                        (first step)
//	velocity = momentum * velocity + (1 - dampening) * g (later steps)
//	g = g + momentum * velocity                          (Nesterov)
//	g = velocity                                         (classic momentum)
//	param = param - lr * g
//
// Velocity buffers are keyed by the parameter's tensor ID.
type SGD struct {
	params
	cfg        SGDConfig
	velocities map[autodiff.ID]*tensor.Array
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	WeightDecay float64 // L2 penalty (default: 0)
	Momentum    float64 // Momentum factor (default: 0, range: [0, 1))
	Dampening   float64 // Dampening for momentum (default: 0)
	Nesterov    bool    // Use Nesterov momentum
}

// Validate checks the hyperparameters.
func (c SGDConfig) Validate() error {
	var errs []error
	if c.LR <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %v", c.LR))
	}
	if c.WeightDecay < 0 {
		errs = append(errs, fmt.Errorf("weight decay must be non-negative, got %v", c.WeightDecay))
	}
	if c.Momentum < 0 {
		errs = append(errs, fmt.Errorf("momentum must be non-negative, got %v", c.Momentum))
	}
	if c.Nesterov && (c.Momentum <= 0 || c.Dampening != 0) {
		errs = append(errs, errors.New("nesterov momentum requires momentum > 0 and zero dampening"))
	}
	return errors.Join(errs...)
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD(params []autodiff.Tensor, config SGDConfig) (*SGD, error) {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sgd: %w", err)
	}
	return &SGD{
		params:     newParams(params),
		cfg:        config,
		velocities: make(map[autodiff.ID]*tensor.Array),
	}, nil
}

func newParams(list []autodiff.Tensor) params {
	return params{list: append([]autodiff.Tensor(nil), list...)}
}

// Step applies one update to every parameter that requires a gradient and
// clears s.
func (o *SGD) Step(s *autodiff.Session) {
	for _, param := range o.list {
		if !param.RequiresGrad() {
			continue
		}
		o.apply(param)
	}
	o.finish(s)
}

func (o *SGD) apply(param autodiff.Tensor) {
	value := param.Value()
	grad := param.Grad().Clone()
	if o.cfg.WeightDecay != 0 {
		grad.AddScaledInPlace(o.cfg.WeightDecay, value)
	}

	if o.cfg.Momentum != 0 {
		v, ok := o.velocities[param.ID()]
		if !ok {
			v = grad.Clone()
			o.velocities[param.ID()] = v
		} else {
			vd, gd := v.Data(), grad.Data()
			for i := range vd {
				vd[i] = o.cfg.Momentum*vd[i] + (1-o.cfg.Dampening)*gd[i]
			}
		}
		if o.cfg.Nesterov {
			grad.AddScaledInPlace(o.cfg.Momentum, v)
		} else {
			grad = v
		}
	}
	value.AddScaledInPlace(-o.cfg.LR, grad)
}

// GetLR returns the current learning rate.
func (o *SGD) GetLR() float64 {
	return o.cfg.LR
}

// SetLR updates the learning rate.
func (o *SGD) SetLR(lr float64) {
	o.cfg.LR = lr
}

// StateDict returns copies of the velocity buffers.
//
// State keys: "velocity.{param_index}" -> velocity array.
func (o *SGD) StateDict() map[string]*tensor.Array {
	state := make(map[string]*tensor.Array)
	for i, param := range o.list {
		if v, ok := o.velocities[param.ID()]; ok {
			state[fmt.Sprintf("velocity.%d", i)] = v.Clone()
		}
	}
	return state
}

// LoadStateDict restores velocity buffers. Parameters without an entry start
// fresh on their next step.
func (o *SGD) LoadStateDict(state map[string]*tensor.Array) error {
	velocities := make(map[autodiff.ID]*tensor.Array)
	for i, param := range o.list {
		v, ok := state[fmt.Sprintf("velocity.%d", i)]
		if !ok {
			continue
		}
		if !v.Shape().Equal(param.Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Shape(), v.Shape())
		}
		velocities[param.ID()] = v.Clone()
	}
	o.velocities = velocities
	return nil
}
