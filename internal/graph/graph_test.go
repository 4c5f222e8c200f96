package graph

import (
	"errors"
	"strings"
	"testing"
)

func mustTemplate(t *testing.T, tag string) Template {
	t.Helper()
	tmpl, err := TemplateFor(tag)
	if err != nil {
		t.Fatalf("TemplateFor(%s): %v", tag, err)
	}
	return tmpl
}

func mustAddNode(t *testing.T, g *Graph, tag string) *Node {
	t.Helper()
	n, err := g.AddNode(mustTemplate(t, tag))
	if err != nil {
		t.Fatalf("AddNode(%s): %v", tag, err)
	}
	return n
}

func mustConnect(t *testing.T, g *Graph, from OutputID, to InputID) {
	t.Helper()
	if err := g.Connect(from, to); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestNewSeeded(t *testing.T) {
	g := NewSeeded()

	if g.NodeCount() != 2 {
		t.Fatalf("expected 2 seeded nodes, got %d", g.NodeCount())
	}

	src, ok := g.Node(g.SourceNode())
	if !ok || src.Kind.Tag != KindSource {
		t.Fatal("seeded graph missing source node")
	}
	lo, ok := g.Node(g.LocalhostNode())
	if !ok || lo.Kind.Tag != KindLocalhost {
		t.Fatal("seeded graph missing localhost node")
	}

	if len(src.Outputs) != 1 || len(src.Inputs) != 0 {
		t.Errorf("source ports: got %d in %d out", len(src.Inputs), len(src.Outputs))
	}
	if len(lo.Inputs) != 1 || len(lo.Outputs) != 1 {
		t.Errorf("localhost ports: got %d in %d out", len(lo.Inputs), len(lo.Outputs))
	}

	out, _ := g.Output(src.Outputs[0])
	if out.Type.Direction != DirIncoming {
		t.Errorf("source output should be incoming, got %s", out.Type.Direction)
	}
}

func TestRemoveNode_ProtectsSeeded(t *testing.T) {
	g := NewSeeded()

	if err := g.RemoveNode(g.SourceNode()); !errors.Is(err, ErrProtectedNode) {
		t.Errorf("removing source: expected ErrProtectedNode, got %v", err)
	}
	if err := g.RemoveNode(g.LocalhostNode()); !errors.Is(err, ErrProtectedNode) {
		t.Errorf("removing localhost: expected ErrProtectedNode, got %v", err)
	}
	if g.NodeCount() != 2 {
		t.Errorf("seeded nodes must survive, got %d", g.NodeCount())
	}
}

func TestRemoveNode_CleansUpConnections(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	filter := mustAddNode(t, g, KindSourceAddrFilter)
	drop := mustAddNode(t, g, KindDrop)

	mustConnect(t, g, src.Outputs[0], filter.Inputs[0])
	mustConnect(t, g, filter.Outputs[0], drop.Inputs[0])

	if g.ConnectionCount() != 2 {
		t.Fatalf("expected 2 connections, got %d", g.ConnectionCount())
	}

	if err := g.RemoveNode(filter.ID); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}

	if g.ConnectionCount() != 0 {
		t.Errorf("connections touching removed node must go, got %d", g.ConnectionCount())
	}
	if _, ok := g.Node(filter.ID); ok {
		t.Error("removed node still resolves")
	}
	if _, ok := g.NodeByUID(filter.UID); ok {
		t.Error("removed node still resolves by UID")
	}
	if _, ok := g.Input(filter.Inputs[0]); ok {
		t.Error("removed node's input port still resolves")
	}
}

func TestRestoreNode_DuplicateUID(t *testing.T) {
	g := New()
	if _, err := g.RestoreNode(mustTemplate(t, KindDrop), "n1"); err != nil {
		t.Fatalf("first restore: %v", err)
	}
	if _, err := g.RestoreNode(mustTemplate(t, KindAccept), "n1"); err == nil {
		t.Error("duplicate uid should be rejected")
	}
	if _, err := g.RestoreNode(mustTemplate(t, KindAccept), ""); err == nil {
		t.Error("empty uid should be rejected")
	}
}

func TestConnect_Basic(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	filter := mustAddNode(t, g, KindSourceAddrFilter)

	mustConnect(t, g, src.Outputs[0], filter.Inputs[0])

	in, ok := g.ConnectionFrom(src.Outputs[0])
	if !ok || in != filter.Inputs[0] {
		t.Error("ConnectionFrom should return the filter input")
	}
	senders := g.ConnectionsTo(filter.Inputs[0])
	if len(senders) != 1 || senders[0] != src.Outputs[0] {
		t.Errorf("ConnectionsTo should return the source output, got %v", senders)
	}
}

func TestConnect_MissingPorts(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())

	err := g.Connect(src.Outputs[0], InputID{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	lo, _ := g.Node(g.LocalhostNode())
	err = g.Connect(OutputID{}, lo.Inputs[0])
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConnect_FamilyCompatibility(t *testing.T) {
	g := New()
	splitter := mustAddNode(t, g, KindFamilySplitter)

	v6sink, err := g.AddNode(Template{
		Tag:   "test:v6_sink",
		Label: "v6 sink",
		Inputs: []PortDef{
			{Name: "in", Type: PortType{Family: FamilyIPv6, Direction: DirEither}},
		},
	})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	// splitter outputs are [ipv4, ipv6]
	err = g.Connect(splitter.Outputs[0], v6sink.Inputs[0])
	if !errors.Is(err, ErrIncompatibleTypes) {
		t.Errorf("ipv4 -> ipv6 should be incompatible, got %v", err)
	}
	if err := g.Connect(splitter.Outputs[1], v6sink.Inputs[0]); err != nil {
		t.Errorf("ipv6 -> ipv6 should connect: %v", err)
	}
}

func TestConnect_WildcardFamilyMatchesAnything(t *testing.T) {
	g := New()
	splitter := mustAddNode(t, g, KindFamilySplitter)
	drop := mustAddNode(t, g, KindDrop)

	// drop's input is inet, the wildcard family.
	if err := g.Connect(splitter.Outputs[0], drop.Inputs[0]); err != nil {
		t.Errorf("ipv4 -> inet should connect: %v", err)
	}
}

func TestConnect_ReplacesExistingEdge(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)

	mustConnect(t, g, src.Outputs[0], a.Inputs[0])
	mustConnect(t, g, src.Outputs[0], b.Inputs[0])

	if g.ConnectionCount() != 1 {
		t.Fatalf("output fan-out must stay 1, got %d connections", g.ConnectionCount())
	}
	in, _ := g.ConnectionFrom(src.Outputs[0])
	if in != b.Inputs[0] {
		t.Error("reconnect should point at the new input")
	}
	if senders := g.ConnectionsTo(a.Inputs[0]); len(senders) != 0 {
		t.Errorf("old input should be free, got %v", senders)
	}
}

func TestConnect_RejectsSelfLoop(t *testing.T) {
	g := New()
	filter := mustAddNode(t, g, KindSourceAddrFilter)

	err := g.Connect(filter.Outputs[0], filter.Inputs[0])
	if !errors.Is(err, ErrWouldCycle) {
		t.Errorf("expected ErrWouldCycle, got %v", err)
	}
	if g.ConnectionCount() != 0 {
		t.Error("rejected connection must not be committed")
	}
}

func TestConnect_RejectsCycle(t *testing.T) {
	g := New()
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)
	c := mustAddNode(t, g, KindProtocolFilter)

	mustConnect(t, g, a.Outputs[0], b.Inputs[0])
	mustConnect(t, g, b.Outputs[0], c.Inputs[0])

	err := g.Connect(c.Outputs[0], a.Inputs[0])
	if !errors.Is(err, ErrWouldCycle) {
		t.Errorf("closing a -> b -> c -> a: expected ErrWouldCycle, got %v", err)
	}
	if g.ConnectionCount() != 2 {
		t.Errorf("graph must be untouched after rejection, got %d connections", g.ConnectionCount())
	}

	// The second branch of a is still free and acyclic.
	if err := g.Connect(c.Outputs[0], mustAddNode(t, g, KindDrop).Inputs[0]); err != nil {
		t.Errorf("acyclic edge after rejection should connect: %v", err)
	}
}

func TestConnect_DiamondIsNotCycle(t *testing.T) {
	g := New()
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)
	c := mustAddNode(t, g, KindProtocolFilter)
	d := mustAddNode(t, g, KindInterfaceFilter)

	// a fans its two branches to b and c, which both feed d.
	mustConnect(t, g, a.Outputs[0], b.Inputs[0])
	mustConnect(t, g, a.Outputs[1], c.Inputs[0])
	mustConnect(t, g, b.Outputs[0], d.Inputs[0])

	if err := g.Connect(c.Outputs[0], d.Inputs[0]); err != nil {
		t.Errorf("diamond join should connect: %v", err)
	}
}

func TestDirectionPropagation(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)

	// Pre-wire a -> b, then pin the chain from source.
	mustConnect(t, g, a.Outputs[0], b.Inputs[0])
	mustConnect(t, g, src.Outputs[0], a.Inputs[0])

	wantIncoming := func(label string, dir Direction) {
		t.Helper()
		if dir != DirIncoming {
			t.Errorf("%s: expected incoming, got %s", label, dir)
		}
	}

	aIn, _ := g.Input(a.Inputs[0])
	wantIncoming("a.in", aIn.Type.Direction)
	for _, outID := range a.Outputs {
		out, _ := g.Output(outID)
		wantIncoming(out.Name, out.Type.Direction)
	}
	bIn, _ := g.Input(b.Inputs[0])
	wantIncoming("b.in", bIn.Type.Direction)
	bOut, _ := g.Output(b.Outputs[0])
	wantIncoming("b.match", bOut.Type.Direction)
}

func TestDirectionPropagation_Idempotent(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)

	mustConnect(t, g, src.Outputs[0], a.Inputs[0])
	mustConnect(t, g, a.Outputs[0], b.Inputs[0])

	snapshot := func() map[string]Direction {
		dirs := make(map[string]Direction)
		g.ForEachNode(func(n *Node) bool {
			for _, id := range n.Inputs {
				p, _ := g.Input(id)
				dirs[n.UID+"/in/"+p.Name] = p.Type.Direction
			}
			for _, id := range n.Outputs {
				p, _ := g.Output(id)
				dirs[n.UID+"/out/"+p.Name] = p.Type.Direction
			}
			return true
		})
		return dirs
	}

	before := snapshot()
	g.propagateDirection(src.Outputs[0], a.Inputs[0])
	after := snapshot()

	if len(before) != len(after) {
		t.Fatal("snapshot size changed")
	}
	for k, v := range before {
		if after[k] != v {
			t.Errorf("%s: direction changed from %s to %s on second pass", k, v, after[k])
		}
	}
}

func TestDirectionPropagation_StopsAtPinnedInput(t *testing.T) {
	g := NewSeeded()
	src, _ := g.Node(g.SourceNode())
	lo, _ := g.Node(g.LocalhostNode())
	a := mustAddNode(t, g, KindSourceAddrFilter)

	// Localhost's input is pinned incoming; wiring source through a filter
	// into it must not rewrite anything on the localhost side.
	mustConnect(t, g, src.Outputs[0], a.Inputs[0])
	mustConnect(t, g, a.Outputs[0], lo.Inputs[0])

	loOut, _ := g.Output(lo.Outputs[0])
	if loOut.Type.Direction != DirOutgoing {
		t.Errorf("localhost outgoing port must stay outgoing, got %s", loOut.Type.Direction)
	}
}

func TestSetValueAndParams(t *testing.T) {
	g := New()
	filter := mustAddNode(t, g, KindSourceAddrFilter)

	if err := g.SetValue(filter.ID, "10.0.0.1"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	n, _ := g.Node(filter.ID)
	if n.Kind.Value != "10.0.0.1" {
		t.Errorf("value not stored, got %q", n.Kind.Value)
	}

	if err := g.SetParams(filter.ID, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	n, _ = g.Node(filter.ID)
	if n.Kind.Params["k"] != "v" {
		t.Error("params not stored")
	}

	if err := g.SetValue(NodeID{}, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPositions(t *testing.T) {
	g := NewSeeded()
	src := g.SourceNode()

	g.SetPosition(src, Position{X: 10, Y: 20})
	p, ok := g.Position(src)
	if !ok || p.X != 10 || p.Y != 20 {
		t.Errorf("expected {10 20}, got %v ok=%v", p, ok)
	}

	// Unknown nodes are ignored.
	g.SetPosition(NodeID{}, Position{X: 1, Y: 1})
	if _, ok := g.Position(NodeID{}); ok {
		t.Error("unknown node should have no position")
	}
}

func TestPalette(t *testing.T) {
	seen := make(map[string]bool)
	for _, tmpl := range Palette() {
		seen[tmpl.Tag] = true
	}

	if seen[KindSource] || seen[KindLocalhost] {
		t.Error("palette must not offer seeded kinds")
	}
	for _, want := range []string{
		KindDrop, KindAccept, KindFamilySplitter,
		KindSourceAddrFilter, KindDestAddrFilter,
		KindSourcePortFilter, KindDestPortFilter,
		KindProtocolFilter, KindInterfaceFilter,
		KindSourceNAT, KindDestNAT, KindFileIPList,
	} {
		if !seen[want] {
			t.Errorf("palette missing %s", want)
		}
	}

	if _, err := TemplateFor("core:bogus"); err == nil {
		t.Error("TemplateFor should reject unknown tags")
	}
}

func TestKindHelpers(t *testing.T) {
	if (Kind{Tag: KindDrop}).IsCustom() {
		t.Error("core kinds are not custom")
	}
	k := Kind{Tag: "geoip:country_filter"}
	if !k.IsCustom() {
		t.Error("plugin kinds are custom")
	}
	plugin, node, ok := k.PluginRef()
	if !ok || plugin != "geoip" || node != "country_filter" {
		t.Errorf("PluginRef: got %q %q ok=%v", plugin, node, ok)
	}
	if _, _, ok := (Kind{Tag: "core:drop"}).PluginRef(); ok {
		t.Error("core kinds have no plugin ref")
	}
	if !(Kind{Tag: KindSourceNAT}).HasValue() {
		t.Error("NAT kinds take a value")
	}
	if (Kind{Tag: KindAccept}).HasValue() {
		t.Error("accept takes no value")
	}
}

func TestProblems(t *testing.T) {
	g := NewSeeded()
	if p := g.Problems(); len(p) != 0 {
		t.Fatalf("seeded graph should be clean, got %v", p)
	}

	// Unconfigured filter: one error (no value) and one warning (dangling).
	filter := mustAddNode(t, g, KindSourceAddrFilter)
	probs := g.Problems()
	var errs, warns int
	for _, p := range probs {
		switch p.Severity {
		case "error":
			errs++
		case "warning":
			warns++
		}
	}
	if errs != 1 || warns != 1 {
		t.Errorf("expected 1 error and 1 warning, got %v", probs)
	}

	if err := g.SetValue(filter.ID, "10.0.0.0/8"); err != nil {
		t.Fatal(err)
	}
	src, _ := g.Node(g.SourceNode())
	mustConnect(t, g, src.Outputs[0], filter.Inputs[0])
	if p := g.Problems(); len(p) != 0 {
		t.Errorf("configured connected filter should be clean, got %v", p)
	}
}

func TestProblems_RestoredCycle(t *testing.T) {
	g := New()
	a := mustAddNode(t, g, KindSourceAddrFilter)
	b := mustAddNode(t, g, KindDestAddrFilter)

	mustConnect(t, g, a.Outputs[0], b.Inputs[0])
	// A loader can smuggle in the closing edge Connect refuses.
	if err := g.RestoreConnection(b.Outputs[0], a.Inputs[0]); err != nil {
		t.Fatalf("RestoreConnection: %v", err)
	}

	found := false
	for _, p := range g.Problems() {
		if p.Severity == "error" && strings.Contains(p.Message, "cycle") {
			found = true
		}
	}
	if !found {
		t.Error("restored cycle should be reported")
	}
}

func TestProblems_IncompatibleRestoredConnection(t *testing.T) {
	g := New()
	splitter := mustAddNode(t, g, KindFamilySplitter)
	v6sink, err := g.AddNode(Template{
		Tag:   "test:v6_sink",
		Label: "v6 sink",
		Inputs: []PortDef{
			{Name: "in", Type: PortType{Family: FamilyIPv6, Direction: DirEither}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Restore bypasses the compatibility guard the way a loader does.
	if err := g.RestoreConnection(splitter.Outputs[0], v6sink.Inputs[0]); err != nil {
		t.Fatalf("RestoreConnection: %v", err)
	}

	found := false
	for _, p := range g.Problems() {
		if p.Severity == "error" && p.Node == splitter.UID {
			found = true
		}
	}
	if !found {
		t.Error("ipv4 output wired into an ipv6 input should be reported")
	}
}

func TestProblems_CustomKindTag(t *testing.T) {
	g := New()
	n := mustAddNode(t, g, KindDrop)
	// Corrupt the tag the way a broken project file could.
	node, _ := g.Node(n.ID)
	node.Kind.Tag = "nocolon"

	found := false
	for _, p := range g.Problems() {
		if p.Severity == "error" && p.Node == node.UID {
			found = true
		}
	}
	if !found {
		t.Error("malformed custom tag should be reported")
	}
}
