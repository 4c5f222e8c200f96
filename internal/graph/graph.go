package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/metrics"
)

// Sentinel errors for edit operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrWouldCycle        = errors.New("connection would close a cycle")
	ErrProtectedNode     = errors.New("node cannot be deleted")
	ErrIncompatibleTypes = errors.New("port types are incompatible")
)

// Graph is the mutable node-graph model. Edits are serialized by the caller;
// the compiler only reads it. Every mutating operation keeps two invariants:
// the graph stays acyclic (checked before commit) and at most one connection
// leaves any output.
type Graph struct {
	nodes   Arena[Node]
	inputs  Arena[InputPort]
	outputs Arena[OutputPort]

	// connections maps each output to the input it feeds. One entry per
	// output enforces the fan-out prohibition structurally.
	connections map[OutputID]InputID

	positions map[NodeID]Position
	byUID     map[string]NodeID

	source    NodeID
	localhost NodeID

	hub *events.Hub
	log *logging.Logger
}

// New returns an empty graph. Most callers want NewSeeded.
func New() *Graph {
	return &Graph{
		connections: make(map[OutputID]InputID),
		positions:   make(map[NodeID]Position),
		byUID:       make(map[string]NodeID),
		log:         logging.WithComponent("graph"),
	}
}

// NewSeeded returns a graph pre-populated with the one Source and one
// Localhost node every project starts from. Both are protected from deletion.
func NewSeeded() *Graph {
	g := New()
	g.mustAdd(KindSource, Position{X: 40, Y: 120})
	g.mustAdd(KindLocalhost, Position{X: 40, Y: 320})
	return g
}

func (g *Graph) mustAdd(tag string, pos Position) {
	t, err := TemplateFor(tag)
	if err != nil {
		panic(err)
	}
	n, err := g.AddNode(t)
	if err != nil {
		panic(err)
	}
	g.SetPosition(n.ID, pos)
}

// SetEventHub attaches an event hub; nil disables publishing.
func (g *Graph) SetEventHub(hub *events.Hub) {
	g.hub = hub
}

// AddNode instantiates a template as a new node with a fresh UID.
func (g *Graph) AddNode(t Template) (*Node, error) {
	return g.RestoreNode(t, uuid.NewString())
}

// RestoreNode instantiates a template under a caller-provided UID. Loaders
// use it to rebuild persisted nodes; the UID must be unique in this graph.
func (g *Graph) RestoreNode(t Template, uid string) (*Node, error) {
	if uid == "" {
		return nil, fmt.Errorf("node uid cannot be empty")
	}
	if _, exists := g.byUID[uid]; exists {
		return nil, fmt.Errorf("duplicate node uid %s", uid)
	}

	id := NodeID(g.nodes.Insert(Node{
		UID:   uid,
		Label: t.Label,
		Kind:  Kind{Tag: t.Tag},
	}))
	node, _ := g.nodes.Get(ID(id))
	node.ID = id

	for _, pd := range t.Inputs {
		pid := InputID(g.inputs.Insert(InputPort{Node: id, Name: pd.Name, Type: pd.Type}))
		port, _ := g.inputs.Get(ID(pid))
		port.ID = pid
		node.Inputs = append(node.Inputs, pid)
	}
	for _, pd := range t.Outputs {
		pid := OutputID(g.outputs.Insert(OutputPort{Node: id, Name: pd.Name, Type: pd.Type}))
		port, _ := g.outputs.Get(ID(pid))
		port.ID = pid
		node.Outputs = append(node.Outputs, pid)
	}

	g.byUID[uid] = id

	// Track the protected singletons when they arrive via a loader.
	switch t.Tag {
	case KindSource:
		if ID(g.source).IsZero() {
			g.source = id
		}
	case KindLocalhost:
		if ID(g.localhost).IsZero() {
			g.localhost = id
		}
	}

	metrics.Get().NodesTotal.Set(float64(g.nodes.Len()))
	if g.hub != nil {
		g.hub.EmitNode(events.EventNodeAdded, uid, t.Tag, t.Label)
	}
	g.log.Debug("node added", "uid", uid, "kind", t.Tag)
	return node, nil
}

// RemoveNode deletes a node, its ports, and every connection touching them.
// The seeded Source and Localhost nodes refuse deletion.
func (g *Graph) RemoveNode(id NodeID) error {
	node, ok := g.nodes.Get(ID(id))
	if !ok {
		return fmt.Errorf("node: %w", ErrNotFound)
	}
	if id == g.source || id == g.localhost {
		return fmt.Errorf("%s: %w", node.Kind.Tag, ErrProtectedNode)
	}

	for _, out := range node.Outputs {
		delete(g.connections, out)
		g.outputs.Remove(ID(out))
	}
	inputSet := make(map[InputID]bool, len(node.Inputs))
	for _, in := range node.Inputs {
		inputSet[in] = true
		g.inputs.Remove(ID(in))
	}
	// Drop inbound connections from other nodes.
	for out, in := range g.connections {
		if inputSet[in] {
			delete(g.connections, out)
		}
	}

	uid, tag, label := node.UID, node.Kind.Tag, node.Label
	delete(g.byUID, uid)
	delete(g.positions, id)
	g.nodes.Remove(ID(id))

	metrics.Get().NodesTotal.Set(float64(g.nodes.Len()))
	metrics.Get().ConnectionsTotal.Set(float64(len(g.connections)))
	if g.hub != nil {
		g.hub.EmitNode(events.EventNodeRemoved, uid, tag, label)
	}
	g.log.Debug("node removed", "uid", uid, "kind", tag)
	return nil
}

// Connect wires an output to an input. The candidate edge is validated before
// commit: both ports must exist, their types must be compatible, and the edge
// must not close a cycle. An output that is already connected is re-pointed
// (its old edge is removed first). Direction inference runs after commit.
func (g *Graph) Connect(from OutputID, to InputID) error {
	out, ok := g.outputs.Get(ID(from))
	if !ok {
		return fmt.Errorf("output port: %w", ErrNotFound)
	}
	in, ok := g.inputs.Get(ID(to))
	if !ok {
		return fmt.Errorf("input port: %w", ErrNotFound)
	}
	if !out.Type.CompatibleWith(in.Type) {
		return fmt.Errorf("%s -> %s: %w", out.Name, in.Name, ErrIncompatibleTypes)
	}
	if g.WouldCycle(from, to) {
		metrics.Get().CycleRejections.Inc()
		if g.hub != nil {
			g.hub.EmitConnection(events.EventCycleReject,
				g.uidOf(out.Node), out.Name, g.uidOf(in.Node), in.Name)
		}
		g.log.Warn("connection rejected: cycle",
			"from", g.uidOf(out.Node), "output", out.Name,
			"to", g.uidOf(in.Node), "input", in.Name)
		return ErrWouldCycle
	}

	if _, connected := g.connections[from]; connected {
		g.Disconnect(from)
	}
	g.connections[from] = to

	g.propagateDirection(from, to)

	metrics.Get().ConnectionsTotal.Set(float64(len(g.connections)))
	if g.hub != nil {
		g.hub.EmitConnection(events.EventConnected,
			g.uidOf(out.Node), out.Name, g.uidOf(in.Node), in.Name)
	}
	g.log.Debug("connected",
		"from", g.uidOf(out.Node), "output", out.Name,
		"to", g.uidOf(in.Node), "input", in.Name)
	return nil
}

// RestoreConnection commits a persisted edge without the interactive
// guards. Loaders trust the saved file; the fan-out prohibition still holds
// structurally and direction inference still runs, so a loaded graph ends up
// pinned the same way an interactively built one does. Anything a hand edit
// broke surfaces through Problems or the resolver instead.
func (g *Graph) RestoreConnection(from OutputID, to InputID) error {
	if _, ok := g.outputs.Get(ID(from)); !ok {
		return fmt.Errorf("output port: %w", ErrNotFound)
	}
	if _, ok := g.inputs.Get(ID(to)); !ok {
		return fmt.Errorf("input port: %w", ErrNotFound)
	}
	g.connections[from] = to
	g.propagateDirection(from, to)
	metrics.Get().ConnectionsTotal.Set(float64(len(g.connections)))
	return nil
}

// Disconnect removes the connection leaving an output, if any.
func (g *Graph) Disconnect(from OutputID) bool {
	to, ok := g.connections[from]
	if !ok {
		return false
	}
	delete(g.connections, from)

	metrics.Get().ConnectionsTotal.Set(float64(len(g.connections)))
	if g.hub != nil {
		out, _ := g.outputs.Get(ID(from))
		in, _ := g.inputs.Get(ID(to))
		if out != nil && in != nil {
			g.hub.EmitConnection(events.EventDisconnected,
				g.uidOf(out.Node), out.Name, g.uidOf(in.Node), in.Name)
		}
	}
	return true
}

// Node returns the node for id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	return g.nodes.Get(ID(id))
}

// NodeByUID returns the node with the given persistent identity.
func (g *Graph) NodeByUID(uid string) (*Node, bool) {
	id, ok := g.byUID[uid]
	if !ok {
		return nil, false
	}
	return g.nodes.Get(ID(id))
}

// Input returns the input port for id.
func (g *Graph) Input(id InputID) (*InputPort, bool) {
	return g.inputs.Get(ID(id))
}

// Output returns the output port for id.
func (g *Graph) Output(id OutputID) (*OutputPort, bool) {
	return g.outputs.Get(ID(id))
}

// ConnectionFrom returns the input fed by an output, if connected.
func (g *Graph) ConnectionFrom(out OutputID) (InputID, bool) {
	in, ok := g.connections[out]
	return in, ok
}

// ConnectionsTo returns every output feeding the given input, in node and
// port declaration order. The backward walk over all nodes' outputs keeps
// the answer deterministic for a fixed graph.
func (g *Graph) ConnectionsTo(in InputID) []OutputID {
	var senders []OutputID
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		for _, out := range n.Outputs {
			if to, ok := g.connections[out]; ok && to == in {
				senders = append(senders, out)
			}
		}
		return true
	})
	return senders
}

// ForEachNode visits nodes in arena order.
func (g *Graph) ForEachNode(fn func(*Node) bool) {
	g.nodes.ForEach(func(_ ID, n *Node) bool {
		return fn(n)
	})
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return g.nodes.Len()
}

// ConnectionCount returns the number of connections.
func (g *Graph) ConnectionCount() int {
	return len(g.connections)
}

// SourceNode returns the seeded Source node id.
func (g *Graph) SourceNode() NodeID {
	return g.source
}

// LocalhostNode returns the seeded Localhost node id.
func (g *Graph) LocalhostNode() NodeID {
	return g.localhost
}

// Position returns a node's canvas placement.
func (g *Graph) Position(id NodeID) (Position, bool) {
	p, ok := g.positions[id]
	return p, ok
}

// SetPosition moves a node on the canvas.
func (g *Graph) SetPosition(id NodeID, p Position) {
	if !g.nodes.Contains(ID(id)) {
		return
	}
	g.positions[id] = p
	if g.hub != nil {
		g.hub.Publish(events.Event{
			Type:   events.EventNodeMoved,
			Source: "graph",
			Data:   events.NodeData{Node: g.uidOf(id), X: p.X, Y: p.Y},
		})
	}
}

// SetValue sets a built-in node's configured value.
func (g *Graph) SetValue(id NodeID, value string) error {
	node, ok := g.nodes.Get(ID(id))
	if !ok {
		return fmt.Errorf("node: %w", ErrNotFound)
	}
	node.Kind.Value = value
	return nil
}

// SetParams replaces a node's params map (custom kinds).
func (g *Graph) SetParams(id NodeID, params map[string]string) error {
	node, ok := g.nodes.Get(ID(id))
	if !ok {
		return fmt.Errorf("node: %w", ErrNotFound)
	}
	node.Kind.Params = params
	return nil
}

func (g *Graph) uidOf(id NodeID) string {
	if n, ok := g.nodes.Get(ID(id)); ok {
		return n.UID
	}
	return ""
}
