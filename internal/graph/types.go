// Package graph holds the node-graph model the compiler reads: nodes, ports,
// connections, and the edit operations that keep the graph acyclic and
// direction-consistent. Nodes and ports are addressed by generation-checked
// arena handles; positions and persistence identity live in secondary maps so
// the structure itself stays free of pointer cycles.
package graph

// NodeID is a handle to a node.
type NodeID ID

// InputID is a handle to an input port.
type InputID ID

// OutputID is a handle to an output port.
type OutputID ID

// Family is the network-layer family carried by a port.
type Family string

const (
	FamilyInet Family = "inet"
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Direction tags which side of the host boundary traffic on a port flows.
// Either is the wildcard; inference pins it as fixed tags propagate.
type Direction string

const (
	DirEither   Direction = "either"
	DirIncoming Direction = "incoming"
	DirOutgoing Direction = "outgoing"
)

// PortType combines family and direction.
type PortType struct {
	Family    Family
	Direction Direction
}

// CompatibleWith reports whether two port types may be connected.
// inet matches any family and either matches any direction, so only two
// pinned, conflicting tags refuse each other.
func (t PortType) CompatibleWith(other PortType) bool {
	familyOK := t.Family == FamilyInet || other.Family == FamilyInet || t.Family == other.Family
	directionOK := t.Direction == DirEither || other.Direction == DirEither || t.Direction == other.Direction
	return familyOK && directionOK
}

// Node is one vertex of the graph. Ports are ordered; evaluation reads the
// first input port only.
type Node struct {
	ID      NodeID
	UID     string // stable identity for persistence and events
	Label   string
	Kind    Kind
	Inputs  []InputID
	Outputs []OutputID
}

// InputPort receives connections from outputs. Fan-in is allowed.
type InputPort struct {
	ID   InputID
	Node NodeID
	Name string
	Type PortType
}

// OutputPort feeds at most one connection.
type OutputPort struct {
	ID   OutputID
	Node NodeID
	Name string
	Type PortType
}

// Position is a node's canvas placement. The engine persists it for the
// editing frontend and otherwise treats it as opaque.
type Position struct {
	X float64
	Y float64
}
