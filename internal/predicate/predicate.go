// Package predicate defines the conditions accumulated along a graph walk.
//
// A Predicate records one thing a packet must satisfy or undergo (a filter
// match, a NAT rewrite, a boundary crossing). A Path is the ordered sequence
// of predicates from a source node to the current point; rule lowering
// consumes complete paths. Equality and hashing are order-independent over
// each predicate's params so that semantically identical nodes produce
// identical fingerprints regardless of construction order.
package predicate

import "maps"

// Predicate is one condition or action on a path.
type Predicate struct {
	Variant string            `json:"variant"`
	Params  map[string]string `json:"params"`
}

// New returns a Predicate with a defensive copy of params.
// A nil params map becomes an empty one so JSON encodes {} rather than null.
func New(variant string, params map[string]string) Predicate {
	p := make(map[string]string, len(params))
	maps.Copy(p, params)
	return Predicate{Variant: variant, Params: p}
}

// Param returns the named parameter and whether it is present.
func (p Predicate) Param(key string) (string, bool) {
	v, ok := p.Params[key]
	return v, ok
}

// Equal reports whether two predicates have the same variant and params.
// Param comparison ignores map ordering.
func (p Predicate) Equal(other Predicate) bool {
	if p.Variant != other.Variant {
		return false
	}
	return maps.Equal(p.Params, other.Params)
}

// Path is an append-only ordered sequence of predicates.
type Path []Predicate

// Append returns a new Path consisting of p followed by pr.
// The receiver is never modified; callers holding p see no change.
func (p Path) Append(pr Predicate) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, pr)
}

// Clone returns a copy of the path. Predicate params are shared; predicates
// are treated as immutable after construction.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether two paths contain equal predicates in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !p[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// NodeOutputs maps an output branch name to the condition paths leaving it,
// one per incoming path that reached the node.
type NodeOutputs map[string][]Path
