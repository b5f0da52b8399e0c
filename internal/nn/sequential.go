package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input, creating a
// sequential pipeline of transformations.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, true, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, true, rng),
//	)
//
//	output := model.Forward(s, input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (q *Sequential) Forward(s *autodiff.Session, input autodiff.Tensor) autodiff.Tensor {
	output := input
	for _, module := range q.modules {
		output = module.Forward(s, output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (q *Sequential) Parameters() []autodiff.Tensor {
	var params []autodiff.Tensor
	for _, module := range q.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (q *Sequential) Add(module Module) {
	q.modules = append(q.modules, module)
}

// Len returns the number of modules in the sequence.
func (q *Sequential) Len() int {
	return len(q.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (q *Sequential) Module(index int) Module {
	if index < 0 || index >= len(q.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return q.modules[index]
}

// StateDict returns the state of every module, with keys prefixed by the
// module index (e.g. "0.weight", "0.bias", "2.weight").
func (q *Sequential) StateDict() map[string]*tensor.Array {
	state := make(map[string]*tensor.Array)
	for i, module := range q.modules {
		for name, value := range module.StateDict() {
			state[fmt.Sprintf("%d.%s", i, name)] = value
		}
	}
	return state
}

// LoadStateDict loads index-prefixed state into each module.
func (q *Sequential) LoadStateDict(state map[string]*tensor.Array) error {
	for i, module := range q.modules {
		prefix := fmt.Sprintf("%d.", i)
		sub := make(map[string]*tensor.Array)
		for key, value := range state {
			if name, ok := strings.CutPrefix(key, prefix); ok {
				sub[name] = value
			}
		}
		if len(sub) == 0 && len(module.StateDict()) == 0 {
			continue
		}
		if err := module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("failed to load module %d: %w", i, err)
		}
	}
	return nil
}
