// Package nft lowers condition paths into a libnftables JSON ruleset
// document, the same shape `nft -j list ruleset` emits and `nft -j -f`
// accepts. The document model here is write-only; nothing in this package
// talks to the kernel.
package nft

import "encoding/json"

// Chain types, hooks, policies, and match operators as they appear on the
// wire.
const (
	TypeFilter = "filter"
	TypeNAT    = "nat"

	HookInput  = "input"
	HookOutput = "output"

	PolicyAccept = "accept"
	PolicyDrop   = "drop"

	OpEq  = "=="
	OpNeq = "!="
	OpIn  = "in"
)

// Standard chain priorities.
const (
	PrioFilter = 0
	PrioSNAT   = 100
	PrioDNAT   = -100
)

// Document is a full ruleset document: {"nftables": [...]}.
type Document struct {
	Objects []Object
}

func (d Document) MarshalJSON() ([]byte, error) {
	objs := d.Objects
	if objs == nil {
		objs = []Object{}
	}
	return json.Marshal(map[string][]Object{"nftables": objs})
}

// Render serializes the document with two-space indentation.
func (d Document) Render() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Append adds objects to the document.
func (d *Document) Append(objs ...Object) {
	d.Objects = append(d.Objects, objs...)
}

// Object is one element of the nftables array. Exactly one field is set.
// Tables, chains, and rules are wrapped in an "add" command envelope;
// metainfo stands alone.
type Object struct {
	Metainfo *Metainfo
	Table    *Table
	Chain    *Chain
	Rule     *Rule
}

func (o Object) MarshalJSON() ([]byte, error) {
	switch {
	case o.Metainfo != nil:
		return json.Marshal(map[string]any{"metainfo": o.Metainfo})
	case o.Table != nil:
		return json.Marshal(map[string]any{"add": map[string]any{"table": o.Table}})
	case o.Chain != nil:
		return json.Marshal(map[string]any{"add": map[string]any{"chain": o.Chain}})
	case o.Rule != nil:
		return json.Marshal(map[string]any{"add": map[string]any{"rule": o.Rule}})
	}
	return []byte("{}"), nil
}

// Metainfo identifies the generator and the schema revision.
type Metainfo struct {
	Version           string `json:"version"`
	JSONSchemaVersion int    `json:"json_schema_version"`
}

// Table declares an nftables table.
type Table struct {
	Family string `json:"family"`
	Name   string `json:"name"`
}

// Chain declares a base chain attached to a hook.
type Chain struct {
	Family string `json:"family"`
	Table  string `json:"table"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Hook   string `json:"hook"`
	Prio   int    `json:"prio"`
	Policy string `json:"policy"`
}

// Rule is one rule in a chain; Expr holds its statements in order.
type Rule struct {
	Family  string      `json:"family"`
	Table   string      `json:"table"`
	Chain   string      `json:"chain"`
	Expr    []Statement `json:"expr"`
	Comment string      `json:"comment,omitempty"`
}

// Statement is one rule statement. Exactly one field is set; verdicts
// serialize as {"accept": null} / {"drop": null}.
type Statement struct {
	Match  *Match
	SNAT   *NATSpec
	DNAT   *NATSpec
	Accept bool
	Drop   bool
}

func (s Statement) MarshalJSON() ([]byte, error) {
	switch {
	case s.Match != nil:
		return json.Marshal(map[string]any{"match": s.Match})
	case s.SNAT != nil:
		return json.Marshal(map[string]any{"snat": s.SNAT})
	case s.DNAT != nil:
		return json.Marshal(map[string]any{"dnat": s.DNAT})
	case s.Accept:
		return json.Marshal(map[string]any{"accept": nil})
	case s.Drop:
		return json.Marshal(map[string]any{"drop": nil})
	}
	return []byte("{}"), nil
}

// Match compares a packet expression against a value.
type Match struct {
	Op    string     `json:"op"`
	Left  Expression `json:"left"`
	Right Expression `json:"right"`
}

// NATSpec rewrites the packet's address, and optionally its port. Family is
// required in inet tables to pick the header being rewritten.
type NATSpec struct {
	Addr   string `json:"addr"`
	Family string `json:"family,omitempty"`
	Port   int    `json:"port,omitempty"`
}

// Expression is one operand of a match: a packet field selector, an
// immediate value, a CIDR prefix, or an anonymous set.
type Expression struct {
	Payload *Payload
	Meta    *Meta
	Prefix  *Prefix
	Set     []Expression
	Str     string
	Num     int
	isNum   bool
}

func (e Expression) MarshalJSON() ([]byte, error) {
	switch {
	case e.Payload != nil:
		return json.Marshal(map[string]any{"payload": e.Payload})
	case e.Meta != nil:
		return json.Marshal(map[string]any{"meta": e.Meta})
	case e.Prefix != nil:
		return json.Marshal(map[string]any{"prefix": e.Prefix})
	case e.Set != nil:
		return json.Marshal(map[string]any{"set": e.Set})
	case e.isNum:
		return json.Marshal(e.Num)
	}
	return json.Marshal(e.Str)
}

// Payload selects a header field, e.g. {"protocol": "ip", "field": "saddr"}.
type Payload struct {
	Protocol string `json:"protocol"`
	Field    string `json:"field"`
}

// Meta selects packet metadata, e.g. {"key": "iifname"}.
type Meta struct {
	Key string `json:"key"`
}

// Prefix is a CIDR operand.
type Prefix struct {
	Addr string `json:"addr"`
	Len  int    `json:"len"`
}

// Expression constructors.

func Str(s string) Expression { return Expression{Str: s} }

func Num(n int) Expression { return Expression{Num: n, isNum: true} }

func PayloadField(proto, field string) Expression {
	return Expression{Payload: &Payload{Protocol: proto, Field: field}}
}

func MetaKey(key string) Expression { return Expression{Meta: &Meta{Key: key}} }

func CIDR(addr string, length int) Expression {
	return Expression{Prefix: &Prefix{Addr: addr, Len: length}}
}

func SetOf(items ...Expression) Expression { return Expression{Set: items} }

// Statement constructors.

func MatchStmt(op string, left, right Expression) Statement {
	return Statement{Match: &Match{Op: op, Left: left, Right: right}}
}

func AcceptStmt() Statement { return Statement{Accept: true} }

func DropStmt() Statement { return Statement{Drop: true} }
