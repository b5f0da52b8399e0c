package autodiff

import (
	"fmt"

	"github.com/born-ml/tracegrad/internal/tensor"
)

// record is the state shared by every handle of one tensor.
type record struct {
	value        *tensor.Array
	grad         *tensor.Array
	shape        tensor.Shape // cached; equals value and grad shape
	requiresGrad bool
	creator      ID  // producing node, zero for leaves
	outputIndex  int // position among the creator's outputs
	name         string
	id           ID
}

// Tensor is a handle to a shared tensor record.
//
// Tensor is a small value: copying it (assignment, passing by value, Share)
// aliases the same record, so gradient and value writes through one copy are
// visible through all of them. Clone is the only way to get an independent
// record.
//
// The zero Tensor is empty. Kernels use it for optional inputs such as a
// missing bias.
type Tensor struct {
	r *record
}

// New creates a zero-valued leaf tensor of the given shape.
// Panics if the shape is invalid.
func New(shape tensor.Shape, requiresGrad bool) Tensor {
	return FromArray(tensor.Zeros(shape), requiresGrad)
}

// FromArray wraps value (without copying) in a new leaf tensor with a
// zero gradient of the same shape.
func FromArray(value *tensor.Array, requiresGrad bool) Tensor {
	if value == nil {
		panic("autodiff: FromArray with nil value")
	}
	return Tensor{r: &record{
		value:        value,
		grad:         tensor.ZerosLike(value),
		shape:        value.Shape().Clone(),
		requiresGrad: requiresGrad,
		id:           newID("tensor"),
	}}
}

// FromSlice builds a leaf tensor from row-major data.
func FromSlice(data []float64, shape tensor.Shape, requiresGrad bool) (Tensor, error) {
	a, err := tensor.FromSlice(data, shape)
	if err != nil {
		return Tensor{}, err
	}
	return FromArray(a, requiresGrad), nil
}

// Scalar creates a rank-0 leaf tensor.
func Scalar(v float64, requiresGrad bool) Tensor {
	return FromArray(tensor.ScalarArray(v), requiresGrad)
}

func (t Tensor) rec() *record {
	if t.r == nil {
		panic("autodiff: use of empty tensor")
	}
	return t.r
}

// IsEmpty reports whether t refers to no record.
func (t Tensor) IsEmpty() bool {
	return t.r == nil
}

// Share returns another handle to the same record.
func (t Tensor) Share() Tensor {
	return t
}

// SameRecord reports whether t and other alias the same record.
func (t Tensor) SameRecord(other Tensor) bool {
	return t.r != nil && t.r == other.r
}

// Clone deep-copies value and gradient into a new record.
// The clone is a fresh leaf: new ID, no creator. RequiresGrad and Name are
// preserved.
func (t Tensor) Clone() Tensor {
	r := t.rec()
	return Tensor{r: &record{
		value:        r.value.Clone(),
		grad:         r.grad.Clone(),
		shape:        r.shape.Clone(),
		requiresGrad: r.requiresGrad,
		name:         r.name,
		id:           newID("tensor"),
	}}
}

// Value returns the value array. Optimizers mutate it in place.
func (t Tensor) Value() *tensor.Array {
	return t.rec().value
}

// Grad returns the gradient array.
func (t Tensor) Grad() *tensor.Array {
	return t.rec().grad
}

// Shape returns the cached shape after checking that value and gradient
// still agree with it.
func (t Tensor) Shape() tensor.Shape {
	r := t.rec()
	if !r.value.Shape().Equal(r.shape) || !r.grad.Shape().Equal(r.shape) {
		failf(ErrShapeMismatch, "tensor %s: cached %v, value %v, grad %v",
			r.id, r.shape, r.value.Shape(), r.grad.Shape())
	}
	return r.shape
}

// Dim returns the number of dimensions.
func (t Tensor) Dim() int {
	return len(t.Shape())
}

// Size returns the number of elements.
func (t Tensor) Size() int {
	return t.Shape().NumElements()
}

// SetValue replaces the value array. Its shape must match.
func (t Tensor) SetValue(value *tensor.Array) {
	r := t.rec()
	if !value.Shape().Equal(r.shape) {
		failf(ErrShapeMismatch, "tensor %s: set value %v on shape %v", r.id, value.Shape(), r.shape)
	}
	r.value = value
}

// SetGrad replaces the gradient array. Its shape must match the value.
func (t Tensor) SetGrad(grad *tensor.Array) {
	r := t.rec()
	if !grad.Shape().Equal(r.value.Shape()) {
		failf(ErrShapeMismatch, "tensor %s: set grad %v on value %v", r.id, grad.Shape(), r.value.Shape())
	}
	r.grad = grad
}

// AccumulateGrad adds g into the gradient in place.
func (t Tensor) AccumulateGrad(g *tensor.Array) {
	r := t.rec()
	if !g.Shape().Equal(r.grad.Shape()) {
		failf(ErrShapeMismatch, "tensor %s: accumulate grad %v into %v", r.id, g.Shape(), r.grad.Shape())
	}
	r.grad.AddInPlace(g)
}

// ZeroGrad resets the gradient to zeros.
func (t Tensor) ZeroGrad() {
	r := t.rec()
	r.grad = tensor.ZerosLike(r.value)
}

// RequiresGrad reports whether gradients should flow into t.
func (t Tensor) RequiresGrad() bool {
	return t.r != nil && t.r.requiresGrad
}

// SetRequiresGrad sets the requires-gradient flag.
func (t Tensor) SetRequiresGrad(v bool) {
	t.rec().requiresGrad = v
}

// Name returns the diagnostic name.
func (t Tensor) Name() string {
	if t.r == nil {
		return ""
	}
	return t.r.name
}

// SetName sets the diagnostic name.
func (t Tensor) SetName(name string) {
	t.rec().name = name
}

// ID returns the record identity.
func (t Tensor) ID() ID {
	if t.r == nil {
		return ""
	}
	return t.r.id
}

// Creator returns the ID of the node that produced t, or the zero ID for
// leaves.
func (t Tensor) Creator() ID {
	if t.r == nil {
		return ""
	}
	return t.r.creator
}

// OutputIndex returns t's position among its creator's outputs.
func (t Tensor) OutputIndex() int {
	return t.rec().outputIndex
}

// IsLeaf reports whether t has no creator.
func (t Tensor) IsLeaf() bool {
	return t.Creator().IsZero()
}

// SetCreator marks t as output number index of node id.
// A tensor can be produced by at most one node.
func (t Tensor) SetCreator(id ID, index int) {
	r := t.rec()
	if !r.creator.IsZero() {
		failf(ErrCreatorAssigned, "tensor %s already created by %s, cannot assign %s", r.id, r.creator, id)
	}
	r.creator = id
	r.outputIndex = index
}

// Index returns an independent leaf holding row i of t's value and gradient.
func (t Tensor) Index(i int) Tensor {
	r := t.rec()
	return Tensor{r: &record{
		value:        r.value.Row(i),
		grad:         r.grad.Row(i),
		shape:        r.shape[1:].Clone(),
		requiresGrad: r.requiresGrad,
		name:         r.name,
		id:           newID("tensor"),
	}}
}

// Backward seeds t's gradient with ones and propagates it through s.
// s may be nil when t is a leaf.
func (t Tensor) Backward(s *Session) {
	t.SetGrad(tensor.OnesLike(t.Value()))
	if t.IsLeaf() {
		return
	}
	if s == nil {
		failf(ErrMissingNode, "tensor %s has creator %s but no session", t.ID(), t.Creator())
	}
	s.Backward(t)
}

// String implements fmt.Stringer.
func (t Tensor) String() string {
	if t.r == nil {
		return "Tensor(empty)"
	}
	name := t.r.name
	if name == "" {
		name = string(t.r.id)
	}
	return fmt.Sprintf("Tensor(%s, value=%v, requiresGrad=%t)", name, t.r.value, t.r.requiresGrad)
}
