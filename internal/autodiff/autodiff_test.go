package autodiff_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tracegrad/internal/autodiff"
	"github.com/born-ml/tracegrad/internal/tensor"
)

// requirePanicsWith runs fn and asserts it panics with an error wrapping want.
func requirePanicsWith(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic wrapping %v", want)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, want), "got %v, want %v", err, want)
	}()
	fn()
}

func vec(t *testing.T, data ...float64) autodiff.Tensor {
	t.Helper()
	x, err := autodiff.FromSlice(data, tensor.Shape{len(data)}, true)
	require.NoError(t, err)
	return x
}

// call records one backward invocation.
type call struct {
	outputs []autodiff.Tensor
	inputs  []autodiff.Tensor
}

// spy is a Function that records its invocations and passes output
// gradients straight through to every input.
type spy struct {
	name  string
	n     int
	calls []call
}

func (f *spy) Name() string    { return f.name }
func (f *spy) NumOutputs() int { return f.n }
func (f *spy) Backward(outputs, inputs []autodiff.Tensor) {
	f.calls = append(f.calls, call{outputs: outputs, inputs: inputs})
	for _, in := range inputs {
		in.AccumulateGrad(outputs[0].Grad())
	}
}

// scale returns c*x.
func scale(s *autodiff.Session, x autodiff.Tensor, c float64) autodiff.Tensor {
	out := autodiff.FromArray(x.Value().Scale(c), false)
	if s.Tracing(x) {
		out.SetRequiresGrad(true)
		s.Register([]autodiff.Tensor{x}, out, autodiff.FuncOf("scale", 1, func(outputs, inputs []autodiff.Tensor) {
			inputs[0].AccumulateGrad(outputs[0].Grad().Scale(c))
		}))
	}
	return out
}

// add returns a+b.
func add(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	out := autodiff.FromArray(a.Value().Add(b.Value()), false)
	if s.Tracing(a, b) {
		out.SetRequiresGrad(true)
		s.Register([]autodiff.Tensor{a, b}, out, autodiff.FuncOf("add", 1, func(outputs, inputs []autodiff.Tensor) {
			g := outputs[0].Grad()
			inputs[0].AccumulateGrad(g)
			inputs[1].AccumulateGrad(g)
		}))
	}
	return out
}

// mul returns a*b element-wise.
func mul(s *autodiff.Session, a, b autodiff.Tensor) autodiff.Tensor {
	out := autodiff.FromArray(a.Value().Mul(b.Value()), false)
	if s.Tracing(a, b) {
		out.SetRequiresGrad(true)
		s.Register([]autodiff.Tensor{a, b}, out, autodiff.FuncOf("mul", 1, func(outputs, inputs []autodiff.Tensor) {
			g := outputs[0].Grad()
			inputs[0].AccumulateGrad(g.Mul(inputs[1].Value()))
			inputs[1].AccumulateGrad(g.Mul(inputs[0].Value()))
		}))
	}
	return out
}

func TestSession_Recording(t *testing.T) {
	s := autodiff.NewSession()
	assert.True(t, s.IsRecording())

	s.StopRecording()
	assert.False(t, s.IsRecording())

	x := vec(t, 1, 2)
	y := scale(s, x, 2)
	assert.True(t, y.IsLeaf(), "nothing is traced while stopped")
	assert.Equal(t, 0, s.NumNodes())

	s.StartRecording()
	y = scale(s, x, 2)
	assert.False(t, y.IsLeaf())
	assert.Equal(t, 1, s.NumNodes())
}

func TestSession_Tracing(t *testing.T) {
	s := autodiff.NewSession()
	a := vec(t, 1)
	b, err := autodiff.FromSlice([]float64{1}, tensor.Shape{1}, false)
	require.NoError(t, err)

	assert.True(t, s.Tracing(a, b))
	assert.False(t, s.Tracing(b))
	assert.False(t, s.Tracing(b, autodiff.Tensor{}))
	assert.False(t, s.Tracing())

	var nilSession *autodiff.Session
	assert.False(t, nilSession.Tracing(a))
}

func TestRegister(t *testing.T) {
	s := autodiff.NewSession()
	a, b := vec(t, 1), vec(t, 2)
	out := vec(t, 3)
	fn := &spy{name: "pair", n: 1}

	id := s.Register([]autodiff.Tensor{a, b}, out, fn)
	assert.False(t, id.IsZero())
	assert.Equal(t, id, out.Creator())
	assert.Equal(t, 0, out.OutputIndex())
	assert.False(t, out.IsLeaf())
	assert.Equal(t, "pair", s.NodeName(id))

	node, ok := s.Node(id)
	require.True(t, ok)
	assert.Equal(t, id, node.ID())
	assert.Equal(t, 1, node.NumOutputs())
	assert.Same(t, fn, node.Function())

	inputs := s.Inputs(id)
	require.Len(t, inputs, 2)
	assert.True(t, inputs[0].SameRecord(a))
	assert.True(t, inputs[1].SameRecord(b))
}

func TestRegister_DistinctIDs(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	y1 := scale(s, x, 1)
	y2 := scale(s, x, 1)
	assert.NotEqual(t, y1.Creator(), y2.Creator())
	assert.NotEqual(t, y1.ID(), y2.ID())
	assert.Equal(t, 2, s.NumNodes())
}

func TestSetCreator_Unique(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	out := vec(t, 0)
	s.Register([]autodiff.Tensor{x}, out, &spy{name: "first", n: 1})

	requirePanicsWith(t, autodiff.ErrCreatorAssigned, func() {
		s.Register([]autodiff.Tensor{x}, out, &spy{name: "second", n: 1})
	})
	requirePanicsWith(t, autodiff.ErrCreatorAssigned, func() {
		out.SetCreator("node-other", 0)
	})
}

func TestBackward_Leaf(t *testing.T) {
	x := vec(t, 1, 2, 3)
	assert.NotPanics(t, func() { x.Backward(nil) })
	assert.Equal(t, []float64{1, 1, 1}, x.Grad().Data())

	s := autodiff.NewSession()
	assert.NotPanics(t, func() { s.Backward(x) })
}

func TestBackward_NilSessionWithCreator(t *testing.T) {
	s := autodiff.NewSession()
	y := scale(s, vec(t, 1), 2)
	requirePanicsWith(t, autodiff.ErrMissingNode, func() { y.Backward(nil) })
}

func TestBackward_SingleOutputDispatch(t *testing.T) {
	s := autodiff.NewSession()
	a, b := vec(t, 1, 2), vec(t, 3, 4)
	out := vec(t, 0, 0)
	fn := &spy{name: "pair", n: 1}
	s.Register([]autodiff.Tensor{a, b}, out, fn)

	out.Backward(s)

	require.Len(t, fn.calls, 1)
	c := fn.calls[0]
	require.Len(t, c.outputs, 1)
	assert.True(t, c.outputs[0].SameRecord(out))
	require.Len(t, c.inputs, 2)
	assert.True(t, c.inputs[0].SameRecord(a))
	assert.True(t, c.inputs[1].SameRecord(b))
	assert.Equal(t, []float64{1, 1}, a.Grad().Data())
	assert.Equal(t, []float64{1, 1}, b.Grad().Data())

	// The node is consumed; a second pass does not run it again.
	out.Backward(s)
	assert.Len(t, fn.calls, 1)
	assert.Empty(t, s.Inputs(out.Creator()))
}

func TestBackward_Chain(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1, 2)
	y := scale(s, scale(s, scale(s, x, 2), 3), 4)
	y.Backward(s)
	assert.Equal(t, []float64{24, 24}, x.Grad().Data())
	assert.Equal(t, 3, s.NumNodes())
}

func TestBackward_MultiOutputSynchronisation(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1, 2)
	o1, o2 := vec(t, 0, 0), vec(t, 0, 0)
	fn := &spy{name: "split", n: 2}
	id := s.RegisterOutputs([]autodiff.Tensor{x}, []autodiff.Tensor{o1, o2}, fn)

	assert.Equal(t, id, o1.Creator())
	assert.Equal(t, id, o2.Creator())
	assert.Equal(t, 0, o1.OutputIndex())
	assert.Equal(t, 1, o2.OutputIndex())

	o1.Backward(s)
	assert.Empty(t, fn.calls, "must wait for the second output")
	assert.Equal(t, 1, s.NumPending(id))
	assert.Equal(t, 1, s.NumStaged())

	o2.Backward(s)
	require.Len(t, fn.calls, 1)
	outs := fn.calls[0].outputs
	require.Len(t, outs, 2)
	assert.True(t, outs[0].SameRecord(o1))
	assert.True(t, outs[1].SameRecord(o2))
	assert.Equal(t, 0, s.NumPending(id))
	assert.Equal(t, 0, s.NumStaged())
}

func TestBackward_MultiOutputArrivalOrder(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	o1, o2, o3 := vec(t, 0), vec(t, 0), vec(t, 0)
	fn := &spy{name: "split3", n: 3}
	s.RegisterOutputs([]autodiff.Tensor{x}, []autodiff.Tensor{o1, o2, o3}, fn)

	o3.Backward(s)
	o3.Backward(s) // repeated arrival is ignored
	o1.Backward(s)
	assert.Empty(t, fn.calls)

	o2.Backward(s)
	require.Len(t, fn.calls, 1)
	outs := fn.calls[0].outputs
	assert.True(t, outs[0].SameRecord(o1))
	assert.True(t, outs[1].SameRecord(o2))
	assert.True(t, outs[2].SameRecord(o3))
}

func TestAttach(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	o1, o2, o3 := vec(t, 0), vec(t, 0), vec(t, 0)
	id := s.Register([]autodiff.Tensor{x}, o1, &spy{name: "split", n: 2})
	s.Attach(id, o2)
	assert.Equal(t, 1, o2.OutputIndex())

	requirePanicsWith(t, autodiff.ErrArity, func() { s.Attach(id, o3) })
	requirePanicsWith(t, autodiff.ErrMissingNode, func() { s.Attach("node-unknown", o3) })
	assert.True(t, o3.IsLeaf())
}

func TestRegisterOutputs_Arity(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	requirePanicsWith(t, autodiff.ErrArity, func() {
		s.RegisterOutputs([]autodiff.Tensor{x}, []autodiff.Tensor{vec(t, 0)}, &spy{name: "split", n: 2})
	})
}

func TestFuncOf_NeedsOutput(t *testing.T) {
	assert.Panics(t, func() { autodiff.FuncOf("bad", 0, nil) })
}

func TestClear(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	y := scale(s, x, 2)
	o1, o2 := vec(t, 0), vec(t, 0)
	id := s.RegisterOutputs([]autodiff.Tensor{y}, []autodiff.Tensor{o1, o2}, &spy{name: "split", n: 2})
	o1.Backward(s)
	require.Equal(t, 1, s.NumPending(id))

	s.Clear()
	assert.Equal(t, 0, s.NumNodes())
	assert.Equal(t, 0, s.NumStaged())
	assert.Empty(t, s.Inputs(id))

	// Tensors keep their creator; the session no longer knows it.
	assert.False(t, y.IsLeaf())
	requirePanicsWith(t, autodiff.ErrMissingNode, func() { y.Backward(s) })
}

func TestShapeInvariant(t *testing.T) {
	x, err := autodiff.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, 2, x.Dim())
	assert.Equal(t, 6, x.Size())

	x.SetGrad(tensor.Ones(tensor.Shape{2, 3}))
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())

	requirePanicsWith(t, autodiff.ErrShapeMismatch, func() { x.SetGrad(tensor.Ones(tensor.Shape{3, 2})) })
	requirePanicsWith(t, autodiff.ErrShapeMismatch, func() { x.SetValue(tensor.Ones(tensor.Shape{6})) })
	requirePanicsWith(t, autodiff.ErrShapeMismatch, func() { x.AccumulateGrad(tensor.Ones(tensor.Shape{2})) })

	v, err := x.Value().Reshape(tensor.Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, v.Shape())
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
}

func TestAccumulateAndZeroGrad(t *testing.T) {
	x := vec(t, 1, 2)
	x.AccumulateGrad(tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{2}))
	x.AccumulateGrad(tensor.MustFromSlice([]float64{3, 4}, tensor.Shape{2}))
	assert.Equal(t, []float64{4, 6}, x.Grad().Data())

	x.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, x.Grad().Data())
}

func TestShareAndClone(t *testing.T) {
	x := vec(t, 1, 2)
	x.SetName("x")

	shared := x.Share()
	assert.True(t, shared.SameRecord(x))
	shared.AccumulateGrad(tensor.Ones(tensor.Shape{2}))
	assert.Equal(t, []float64{1, 1}, x.Grad().Data())

	s := autodiff.NewSession()
	y := scale(s, x, 2)
	c := y.Clone()
	assert.False(t, c.SameRecord(y))
	assert.NotEqual(t, y.ID(), c.ID())
	assert.True(t, c.IsLeaf())
	assert.True(t, c.RequiresGrad())
	assert.Equal(t, y.Value().Data(), c.Value().Data())

	c.Value().Set(100, 0)
	assert.Equal(t, 2.0, y.Value().At(0))

	xc := x.Clone()
	assert.Equal(t, "x", xc.Name())
	assert.Equal(t, []float64{1, 1}, xc.Grad().Data())
}

func TestIndex(t *testing.T) {
	x, err := autodiff.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}, true)
	require.NoError(t, err)
	x.SetGrad(tensor.MustFromSlice([]float64{10, 20, 30, 40, 50, 60}, tensor.Shape{3, 2}))

	row := x.Index(1)
	assert.Equal(t, tensor.Shape{2}, row.Shape())
	assert.Equal(t, []float64{3, 4}, row.Value().Data())
	assert.Equal(t, []float64{30, 40}, row.Grad().Data())
	assert.True(t, row.IsLeaf())
	assert.False(t, row.SameRecord(x))

	row.Value().Set(0, 0)
	assert.Equal(t, 3.0, x.Value().At(1, 0))
}

func TestEmptyTensor(t *testing.T) {
	var e autodiff.Tensor
	assert.True(t, e.IsEmpty())
	assert.False(t, e.RequiresGrad())
	assert.True(t, e.IsLeaf())
	assert.Equal(t, "Tensor(empty)", e.String())
	assert.Panics(t, func() { e.Value() })
}

func TestBackward_FanOutSums(t *testing.T) {
	// y = 2x is consumed by two branches: z = 3y + 5y.
	s := autodiff.NewSession()
	x := vec(t, 1, 2)

	runs := 0
	y := autodiff.FromArray(x.Value().Scale(2), true)
	s.Register([]autodiff.Tensor{x}, y, autodiff.FuncOf("double", 1, func(outputs, inputs []autodiff.Tensor) {
		runs++
		inputs[0].AccumulateGrad(outputs[0].Grad().Scale(2))
	}))

	z := add(s, scale(s, y, 3), scale(s, y, 5))
	z.Backward(s)

	assert.Equal(t, 1, runs)
	assert.Equal(t, []float64{8, 8}, y.Grad().Data())
	assert.Equal(t, []float64{16, 16}, x.Grad().Data())
}

func TestBackward_SameTensorTwice(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 3)
	y := mul(s, x, x)
	y.Backward(s)
	assert.Equal(t, []float64{6}, x.Grad().Data())
}

func TestBackward_Diamond(t *testing.T) {
	// x -> a=2x -> b=a*a, c=3a -> d=b+c
	s := autodiff.NewSession()
	x := vec(t, 1)
	a := scale(s, x, 2)
	d := add(s, mul(s, a, a), scale(s, a, 3))
	d.Backward(s)
	// d = 4x^2 + 6x, d' = 8x + 6
	assert.Equal(t, []float64{14}, x.Grad().Data())
}

func TestSession_WriteTo(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	scale(s, scale(s, x, 2), 3)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "nodes: 2")
	assert.Contains(t, out, "scale outputs=1 inputs=1 pending=0")
}

func TestString(t *testing.T) {
	x := vec(t, 1, 2)
	x.SetName("w")
	assert.Equal(t, "Tensor(w, value=(2)[1 2], requiresGrad=true)", x.String())
}

func TestSession_Dot(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1, 2)
	x.SetName("x")
	y := mul(s, x, x)
	z := add(s, y, x)

	out, err := s.Dot()
	require.NoError(t, err)
	assert.Contains(t, out, "digraph trace")
	assert.Contains(t, out, `"x (2)"`)
	assert.Contains(t, out, `"mul"`)
	assert.Contains(t, out, `"add"`)
	assert.Equal(t, 4, strings.Count(out, "->"), "x->mul twice, mul->add, x->add")
	assert.Equal(t, 1, strings.Count(out, "ellipse"), "x is drawn once")

	z.Backward(s)
	out, err = s.Dot()
	require.NoError(t, err)
	assert.NotContains(t, out, "->", "consumed nodes keep no inputs")
}

func TestRegisterOutputs_RejectsBeforeRegistering(t *testing.T) {
	s := autodiff.NewSession()
	x := vec(t, 1)
	o1 := vec(t, 0)
	o2 := scale(s, x, 2)
	require.Equal(t, 1, s.NumNodes())

	requirePanicsWith(t, autodiff.ErrCreatorAssigned, func() {
		s.RegisterOutputs([]autodiff.Tensor{x}, []autodiff.Tensor{o1, o2}, &spy{name: "split", n: 2})
	})
	assert.True(t, o1.IsLeaf())
	assert.Equal(t, 1, s.NumNodes())

	requirePanicsWith(t, autodiff.ErrCreatorAssigned, func() {
		s.RegisterOutputs([]autodiff.Tensor{x}, []autodiff.Tensor{o1, o1}, &spy{name: "split", n: 2})
	})
	assert.True(t, o1.IsLeaf())
	assert.Equal(t, 1, s.NumNodes())
}

func TestBackward_UnusedSiblingDoesNotStarveAncestors(t *testing.T) {
	// h = w*w feeds the loss directly and through a two-output node whose
	// second output is never used.
	s := autodiff.NewSession()
	w := vec(t, 1, 2)
	h := mul(s, w, w)
	o1, o2 := vec(t, 0, 0), vec(t, 0, 0)
	fn := &spy{name: "split", n: 2}
	id := s.RegisterOutputs([]autodiff.Tensor{h}, []autodiff.Tensor{o1, o2}, fn)

	add(s, h, o1).Backward(s)

	assert.Empty(t, fn.calls, "split waits for its second output")
	assert.Equal(t, 1, s.NumPending(id))
	assert.Equal(t, []float64{1, 1}, h.Grad().Data())
	assert.Equal(t, []float64{2, 4}, w.Grad().Data())

	// Completing split now would add gradient to h after mul has run.
	requirePanicsWith(t, autodiff.ErrConsumed, func() { o2.Backward(s) })
	assert.Empty(t, fn.calls)
	assert.Equal(t, []float64{2, 4}, w.Grad().Data())
}

func TestBackward_SecondRootIntoConsumedNode(t *testing.T) {
	s := autodiff.NewSession()
	w := vec(t, 1, 2)
	h := mul(s, w, w)
	r1, r2 := scale(s, h, 1), scale(s, h, 2)

	r1.Backward(s)
	assert.Equal(t, []float64{2, 4}, w.Grad().Data())

	requirePanicsWith(t, autodiff.ErrConsumed, func() { r2.Backward(s) })
	assert.Equal(t, []float64{1, 1}, h.Grad().Data(), "scale by 2 never ran")
	assert.Equal(t, []float64{2, 4}, w.Grad().Data())

	// Both contributions arrive when the roots are joined first.
	s = autodiff.NewSession()
	w = vec(t, 1, 2)
	h = mul(s, w, w)
	add(s, scale(s, h, 1), scale(s, h, 2)).Backward(s)
	assert.Equal(t, []float64{6, 12}, w.Grad().Data())
}
