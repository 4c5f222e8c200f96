package graph

import "fmt"

// Problem is one finding from a whole-graph check.
type Problem struct {
	Severity string // "error" or "warning"
	Node     string // node UID, empty for graph-wide findings
	Message  string
}

func (p Problem) String() string {
	if p.Node == "" {
		return fmt.Sprintf("%s: %s", p.Severity, p.Message)
	}
	return fmt.Sprintf("%s: node %s: %s", p.Severity, p.Node, p.Message)
}

// Problems re-checks invariants the edit operations normally uphold and
// flags configuration gaps an export would trip over. Loaded project files
// bypass the edit path, so check runs this before trusting a graph.
func (g *Graph) Problems() []Problem {
	var problems []Problem

	errorf := func(uid, format string, args ...any) {
		problems = append(problems, Problem{Severity: "error", Node: uid, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(uid, format string, args ...any) {
		problems = append(problems, Problem{Severity: "warning", Node: uid, Message: fmt.Sprintf(format, args...)})
	}

	if ID(g.source).IsZero() {
		errorf("", "graph has no source node")
	}
	if ID(g.localhost).IsZero() {
		errorf("", "graph has no localhost node")
	}

	// Dangling or type-inconsistent connection endpoints. Restored
	// connections commit without the compatibility guard, so a hand-edited
	// project file can wire ports Connect would have refused.
	for from, to := range g.connections {
		out, ok := g.outputs.Get(ID(from))
		if !ok {
			errorf("", "connection leaves a missing output port")
			continue
		}
		in, ok := g.inputs.Get(ID(to))
		if !ok {
			errorf(g.uidOf(out.Node), "connection from output %q enters a missing input port", out.Name)
			continue
		}
		if !out.Type.CompatibleWith(in.Type) {
			errorf(g.uidOf(out.Node), "output %q (%s/%s) is wired to an incompatible input %q (%s/%s)",
				out.Name, out.Type.Family, out.Type.Direction,
				in.Name, in.Type.Family, in.Type.Direction)
		}
	}

	// Per-node configuration.
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		if n.Kind.IsCustom() {
			if _, _, ok := n.Kind.PluginRef(); !ok {
				errorf(n.UID, "bad custom kind tag %q", n.Kind.Tag)
			}
		} else if n.Kind.HasValue() && n.Kind.Value == "" {
			errorf(n.UID, "%s has no configured value", n.Kind.Tag)
		}

		connected := false
		for _, in := range n.Inputs {
			if len(g.ConnectionsTo(in)) > 0 {
				connected = true
			}
		}
		for _, o := range n.Outputs {
			if _, ok := g.connections[o]; ok {
				connected = true
			}
		}
		if !connected && n.ID != g.source && n.ID != g.localhost {
			warnf(n.UID, "%s is not connected to anything", n.Kind.Tag)
		}
		return true
	})

	// Whole-graph acyclicity by Kahn's algorithm. Connect should make this
	// unreachable, but loaders feed the graph too.
	if cycle := g.findCycle(); len(cycle) > 0 {
		errorf("", "graph contains a cycle through %d node(s)", len(cycle))
	}

	return problems
}

// findCycle returns the node ids left over after peeling nodes with no
// unprocessed incoming connections; non-empty means those nodes sit on or
// behind a cycle.
func (g *Graph) findCycle() []NodeID {
	indegree := make(map[NodeID]int)
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		indegree[n.ID] = 0
		return true
	})
	for _, to := range g.connections {
		if in, ok := g.inputs.Get(ID(to)); ok {
			indegree[in.Node]++
		}
	}

	var queue []NodeID
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
		return true
	})

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		node, ok := g.nodes.Get(ID(id))
		if !ok {
			continue
		}
		for _, o := range node.Outputs {
			to, connected := g.connections[o]
			if !connected {
				continue
			}
			in, ok := g.inputs.Get(ID(to))
			if !ok {
				continue
			}
			indegree[in.Node]--
			if indegree[in.Node] == 0 {
				queue = append(queue, in.Node)
			}
		}
	}

	if processed == len(indegree) {
		return nil
	}
	var stuck []NodeID
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		if indegree[n.ID] > 0 {
			stuck = append(stuck, n.ID)
		}
		return true
	})
	return stuck
}
