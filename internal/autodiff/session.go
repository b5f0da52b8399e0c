// Package autodiff implements a reverse-mode automatic differentiation engine
// driven by an explicit trace session.
//
// Architecture:
//   - Tensor: a copyable handle to a shared record (value, gradient, flags,
//     identity, creator).
//   - Function: the backward half of an operation (name, arity, Backward).
//   - Session: the graph registry. Kernels register each forward call with
//     it; Backward replays the recorded graph from a root tensor.
//
// Usage:
//
//	s := autodiff.NewSession()
//	x, _ := autodiff.FromSlice([]float64{2, 3, 4}, tensor.Shape{3}, true)
//	y, _ := autodiff.FromSlice([]float64{5, 6, 7}, tensor.Shape{3}, true)
//	loss := ops.MeanSquaredError(s, x, y)
//	loss.Backward(s)
//	fmt.Println(x.Grad()) // (3)[-2 -2 -2]
//	s.Clear()
//
// A Session is not safe for concurrent use: one forward/backward cycle at a
// time.
package autodiff

import (
	"fmt"
	"io"
	"strings"
)

// Session records operations during the forward pass and replays them
// backward.
type Session struct {
	nodes     map[ID]*Node
	inputs    map[ID][]Tensor // ordered inputs per node; emptied once consumed
	pending   map[ID][]Tensor // output slots of multi-output nodes awaiting siblings
	order     []ID            // registration order, for listing
	recording bool
}

// NewSession creates an empty session that is recording.
func NewSession() *Session {
	return &Session{
		nodes:     make(map[ID]*Node),
		inputs:    make(map[ID][]Tensor),
		pending:   make(map[ID][]Tensor),
		recording: true,
	}
}

// StartRecording enables tracing.
func (s *Session) StartRecording() {
	s.recording = true
}

// StopRecording disables tracing; kernels then produce untraced leaves.
func (s *Session) StopRecording() {
	s.recording = false
}

// IsRecording returns true if the session is currently recording.
func (s *Session) IsRecording() bool {
	return s != nil && s.recording
}

// Tracing reports whether a kernel called with inputs should register
// itself: s is non-nil, recording, and at least one input requires a
// gradient.
func (s *Session) Tracing(inputs ...Tensor) bool {
	if !s.IsRecording() {
		return false
	}
	for _, in := range inputs {
		if in.RequiresGrad() {
			return true
		}
	}
	return false
}

// Register records one forward invocation of fn that produced output from
// inputs. It allocates a node with a fresh ID, stamps output with it and
// keeps a copy of inputs in the given order.
//
// For functions with more than one output, stamp the remaining outputs with
// Attach, or use RegisterOutputs.
func (s *Session) Register(inputs []Tensor, output Tensor, fn Function) ID {
	if fn == nil {
		panic("autodiff: Register with nil function")
	}
	node := &Node{id: newID("node"), fn: fn, attached: 1}
	output.SetCreator(node.id, 0)

	s.nodes[node.id] = node
	s.order = append(s.order, node.id)
	s.inputs[node.id] = append([]Tensor(nil), inputs...)
	return node.id
}

// Attach stamps output as the next output of node id.
func (s *Session) Attach(id ID, output Tensor) {
	node, ok := s.nodes[id]
	if !ok {
		failf(ErrMissingNode, "attach to unknown node %s", id)
	}
	if node.attached >= node.NumOutputs() {
		failf(ErrArity, "node %s (%s) declares %d outputs", id, node.Name(), node.NumOutputs())
	}
	output.SetCreator(id, node.attached)
	node.attached++
}

// RegisterOutputs records fn as producing every tensor in outputs, in order.
// len(outputs) must equal fn.NumOutputs(). The outputs are checked before
// anything is registered, so a rejected call leaves the session unchanged.
func (s *Session) RegisterOutputs(inputs, outputs []Tensor, fn Function) ID {
	if len(outputs) != fn.NumOutputs() {
		failf(ErrArity, "%s: got %d outputs, declared %d", fn.Name(), len(outputs), fn.NumOutputs())
	}
	for i, out := range outputs {
		if !out.IsLeaf() {
			failf(ErrCreatorAssigned, "%s: output %d already created by %s", fn.Name(), i, out.Creator())
		}
		for _, prev := range outputs[:i] {
			if prev.SameRecord(out) {
				failf(ErrCreatorAssigned, "%s: output %d repeats an earlier output", fn.Name(), i)
			}
		}
	}
	id := s.Register(inputs, outputs[0], fn)
	for _, out := range outputs[1:] {
		s.Attach(id, out)
	}
	return id
}

// Clear drops every node, input list and staging buffer. Tensors keep their
// creator IDs, but running backward through them afterwards panics with
// ErrMissingNode.
func (s *Session) Clear() {
	clear(s.nodes)
	clear(s.inputs)
	clear(s.pending)
	s.order = s.order[:0]
}

// NumNodes returns the number of registered nodes.
func (s *Session) NumNodes() int {
	return len(s.nodes)
}

// Node looks up a node by ID.
func (s *Session) Node(id ID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeName returns the display name of node id, or "" if unknown.
func (s *Session) NodeName(id ID) string {
	if n, ok := s.nodes[id]; ok {
		return n.Name()
	}
	return ""
}

// Inputs returns a copy of the inputs recorded for node id. It is empty once
// the node has been consumed by Backward.
func (s *Session) Inputs(id ID) []Tensor {
	return append([]Tensor(nil), s.inputs[id]...)
}

// NumPending returns how many outputs of node id are staged and waiting for
// their siblings.
func (s *Session) NumPending(id ID) int {
	n := 0
	for _, t := range s.pending[id] {
		if !t.IsEmpty() {
			n++
		}
	}
	return n
}

// NumStaged returns the number of nodes with a non-empty staging buffer.
func (s *Session) NumStaged() int {
	return len(s.pending)
}

// WriteTo writes one line per node in registration order.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "nodes: %d\n", len(s.nodes))
	for _, id := range s.order {
		node := s.nodes[id]
		fmt.Fprintf(&sb, "%s %s outputs=%d inputs=%d pending=%d\n",
			id, node.Name(), node.NumOutputs(), len(s.inputs[id]), s.NumPending(id))
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
