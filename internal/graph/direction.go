package graph

import "grimm.is/nftgraph/internal/metrics"

// propagateDirection pins wildcard port directions after a new connection
// commits. If the sending output carries a fixed direction and the receiving
// input is still wildcard, the input adopts the output's direction, every
// output of the receiving node is pinned to the same direction, and the pin
// flows onward through those outputs' connections. Already-pinned inputs
// stop the walk, which also makes the pass idempotent.
//
// The walk uses an explicit edge stack; no recursion.
func (g *Graph) propagateDirection(from OutputID, to InputID) {
	type edge struct {
		from OutputID
		to   InputID
	}
	stack := []edge{{from, to}}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out, ok := g.outputs.Get(ID(e.from))
		if !ok || out.Type.Direction == DirEither {
			continue
		}
		in, ok := g.inputs.Get(ID(e.to))
		if !ok || in.Type.Direction != DirEither {
			continue
		}

		dir := out.Type.Direction
		in.Type.Direction = dir
		metrics.Get().DirectionRewrites.Inc()

		node, ok := g.nodes.Get(ID(in.Node))
		if !ok {
			continue
		}
		for _, outID := range node.Outputs {
			port, ok := g.outputs.Get(ID(outID))
			if !ok {
				continue
			}
			if port.Type.Direction != dir {
				port.Type.Direction = dir
				metrics.Get().DirectionRewrites.Inc()
			}
			if next, connected := g.connections[outID]; connected {
				stack = append(stack, edge{outID, next})
			}
		}
	}
}
