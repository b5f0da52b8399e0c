package autodiff

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

const dotGraphName = "trace"

// Dot renders the recorded graph in Graphviz DOT format. Operations are
// boxes, tensors without a recorded creator are ellipses, and each edge runs
// from producer to consumer labelled with the input position. Nodes already
// consumed by Backward have no inputs left and appear unconnected.
func (s *Session) Dot() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotGraphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	for _, id := range s.order {
		node := s.nodes[id]
		attrs := map[string]string{
			"shape": "box",
			"label": strconv.Quote(node.Name()),
		}
		if err := g.AddNode(dotGraphName, strconv.Quote(string(id)), attrs); err != nil {
			return "", fmt.Errorf("dot: node %s: %w", id, err)
		}
	}

	for _, id := range s.order {
		for i, in := range s.inputs[id] {
			if in.IsEmpty() {
				continue
			}
			src := strconv.Quote(string(in.Creator()))
			if in.IsLeaf() || !g.IsNode(src) {
				src = strconv.Quote(string(in.ID()))
				if !g.IsNode(src) {
					attrs := map[string]string{
						"shape": "ellipse",
						"label": strconv.Quote(leafLabel(in)),
					}
					if err := g.AddNode(dotGraphName, src, attrs); err != nil {
						return "", fmt.Errorf("dot: tensor %s: %w", in.ID(), err)
					}
				}
			}
			attrs := map[string]string{"label": strconv.Quote(strconv.Itoa(i))}
			if err := g.AddEdge(src, strconv.Quote(string(id)), true, attrs); err != nil {
				return "", fmt.Errorf("dot: edge into %s: %w", id, err)
			}
		}
	}
	return g.String(), nil
}

func leafLabel(t Tensor) string {
	name := t.Name()
	if name == "" {
		name = "tensor"
	}
	return name + " " + t.Shape().String()
}
