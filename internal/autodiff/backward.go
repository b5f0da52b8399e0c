package autodiff

// Backward propagates root's gradient through the recorded graph. root's
// gradient must already be set; Tensor.Backward seeds it with ones.
//
// Every node runs its Function at most once per session. A tensor consumed by
// several reachable nodes (fan-out) is only propagated further after all of
// them have added their contribution to its gradient, so gradients are summed
// across consumers.
//
// Multi-output nodes are held back until every one of their outputs has
// arrived. Arrivals are kept in the session, so the outputs may come from
// separate Backward calls. A node that cannot complete in this call does not
// hold back shared ancestors reached through other paths.
//
// Backward panics with ErrConsumed, before running any node, if the walk
// would feed new gradient into a tensor whose producer already ran. A root
// whose producer already ran is left alone.
func (s *Session) Backward(root Tensor) {
	if root.IsLeaf() {
		return
	}
	refs := s.plan(root)
	s.run(root, refs)
}

// pass holds what one walk over the graph above root found.
type pass struct {
	refs    map[*record]int // consumer edges from expanded nodes
	arrived map[ID][]bool   // outputs of multi-output nodes reached by the pass
	stale   []Tensor        // non-root tensors whose producer is consumed
}

// plan counts consumers per record, leaving out every multi-output node that
// cannot fire in this call and everything only reachable through one.
func (s *Session) plan(root Tensor) map[*record]int {
	blocked := make(map[ID]bool)
	for {
		w := s.walk(root, blocked)
		changed := false
		for id, arrived := range w.arrived {
			if blocked[id] || s.complete(id, arrived) {
				continue
			}
			blocked[id] = true
			changed = true
		}
		if changed {
			continue
		}
		if len(w.stale) > 0 {
			t := w.stale[0]
			failf(ErrConsumed, "tensor %s: producer %s (%s) already ran", t.ID(), t.Creator(), s.NodeName(t.Creator()))
		}
		return w.refs
	}
}

func (s *Session) walk(root Tensor, blocked map[ID]bool) pass {
	w := pass{
		refs:    make(map[*record]int),
		arrived: make(map[ID][]bool),
	}
	seen := make(map[ID]bool)
	stack := []Tensor{root}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := t.Creator()
		if id.IsZero() {
			continue
		}
		node, ok := s.nodes[id]
		if !ok {
			failf(ErrMissingNode, "tensor %s has creator %s", t.ID(), id)
		}
		if len(s.inputs[id]) == 0 {
			if !t.SameRecord(root) {
				w.stale = append(w.stale, t)
			}
			continue
		}
		if n := node.NumOutputs(); n > 1 {
			if w.arrived[id] == nil {
				w.arrived[id] = make([]bool, n)
			}
			if idx := t.OutputIndex(); idx >= 0 && idx < n {
				w.arrived[id][idx] = true
			}
		}
		if seen[id] || blocked[id] {
			continue
		}
		seen[id] = true
		for _, in := range s.inputs[id] {
			if in.IsEmpty() {
				continue
			}
			w.refs[in.r]++
			stack = append(stack, in)
		}
	}
	return w
}

// complete reports whether every output of node id has either arrived in
// this pass or is already staged.
func (s *Session) complete(id ID, arrived []bool) bool {
	staged := s.pending[id]
	for i, ok := range arrived {
		if !ok && (i >= len(staged) || staged[i].IsEmpty()) {
			return false
		}
	}
	return true
}

func (s *Session) run(t Tensor, refs map[*record]int) {
	id := t.Creator()
	if id.IsZero() {
		return
	}
	node, ok := s.nodes[id]
	if !ok {
		failf(ErrMissingNode, "tensor %s has creator %s", t.ID(), id)
	}
	inputs := s.inputs[id]
	if len(inputs) == 0 {
		return
	}

	var outputs []Tensor
	if node.NumOutputs() == 1 {
		outputs = []Tensor{t}
	} else if outputs = s.stage(node, t); outputs == nil {
		return
	}

	s.inputs[id] = nil
	node.fn.Backward(outputs, inputs)

	for _, in := range inputs {
		if in.IsEmpty() {
			continue
		}
		refs[in.r]--
		if refs[in.r] == 0 {
			s.run(in, refs)
		}
	}
}

// stage puts t into its slot of node's staging buffer. It returns the full
// output list once every slot is filled, nil otherwise.
func (s *Session) stage(node *Node, t Tensor) []Tensor {
	n := node.NumOutputs()
	slots, ok := s.pending[node.id]
	if !ok {
		slots = make([]Tensor, n)
		s.pending[node.id] = slots
	}

	idx := t.OutputIndex()
	if idx < 0 || idx >= n {
		failf(ErrArity, "node %s (%s): output index %d of %d", node.id, node.Name(), idx, n)
	}
	switch {
	case slots[idx].IsEmpty():
		slots[idx] = t
	case slots[idx].SameRecord(t):
		return nil
	default:
		failf(ErrArity, "node %s (%s): two tensors for output %d", node.id, node.Name(), idx)
	}

	for _, out := range slots {
		if out.IsEmpty() {
			return nil
		}
	}
	delete(s.pending, node.id)
	return slots
}
