package autodiff

// Function is the backward half of a differentiable operation.
//
// Backward receives the operation's outputs (with their gradients already
// final) in output order and its inputs in registration order. It reads
// outputs[i].Grad() and inputs[j].Value() and adds into inputs[j]'s gradient
// with AccumulateGrad. Inputs that do not require gradients may be skipped;
// extra non-differentiable inputs (running statistics, hyperparameters) may
// be mutated freely.
type Function interface {
	// Name is a display name for diagnostics.
	Name() string

	// NumOutputs is the number of tensors one forward call produces.
	NumOutputs() int

	// Backward propagates output gradients into input gradients.
	Backward(outputs, inputs []Tensor)
}

// BackwardFunc is the signature of a plain backward callback.
type BackwardFunc func(outputs, inputs []Tensor)

type funcOf struct {
	name     string
	nOutput  int
	backward BackwardFunc
}

func (f *funcOf) Name() string                      { return f.name }
func (f *funcOf) NumOutputs() int                   { return f.nOutput }
func (f *funcOf) Backward(outputs, inputs []Tensor) { f.backward(outputs, inputs) }

// FuncOf adapts a plain callback into a Function.
func FuncOf(name string, nOutput int, backward BackwardFunc) Function {
	if nOutput < 1 {
		panic("autodiff: FuncOf needs at least one output")
	}
	return &funcOf{name: name, nOutput: nOutput, backward: backward}
}

// Node is one recorded forward invocation.
type Node struct {
	id       ID
	fn       Function
	attached int // outputs stamped with this node's ID so far
}

// ID returns the node identity.
func (n *Node) ID() ID { return n.id }

// Name returns the function's display name.
func (n *Node) Name() string { return n.fn.Name() }

// NumOutputs returns the declared output arity.
func (n *Node) NumOutputs() int { return n.fn.NumOutputs() }

// Function returns the backward implementation.
func (n *Node) Function() Function { return n.fn }
