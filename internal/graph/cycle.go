package graph

// WouldCycle reports whether adding the edge from -> to would close a cycle.
// It walks forward from the candidate edge's target node over the existing
// connections; the edge is a cycle iff the walk can reach the candidate
// edge's source node. The graph is not modified.
//
// The walk is iterative with an explicit stack and a visited set, so deep or
// diamond-shaped graphs cost linear time and cannot exhaust goroutine stack.
func (g *Graph) WouldCycle(from OutputID, to InputID) bool {
	out, ok := g.outputs.Get(ID(from))
	if !ok {
		return false
	}
	in, ok := g.inputs.Get(ID(to))
	if !ok {
		return false
	}

	origin := out.Node

	// A self-loop is the degenerate cycle.
	if in.Node == origin {
		return true
	}

	stack := []NodeID{in.Node}
	visited := map[NodeID]bool{in.Node: true}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := g.nodes.Get(ID(id))
		if !ok {
			continue
		}
		for _, outPort := range node.Outputs {
			nextIn, connected := g.connections[outPort]
			if !connected {
				continue
			}
			inPort, ok := g.inputs.Get(ID(nextIn))
			if !ok {
				continue
			}
			next := inPort.Node
			if next == origin {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
