package nft

import (
	"context"
	"testing"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/graph"
)

func addNode(t *testing.T, g *graph.Graph, tag, value string) *graph.Node {
	t.Helper()
	tmpl, err := graph.TemplateFor(tag)
	if err != nil {
		t.Fatalf("TemplateFor(%s): %v", tag, err)
	}
	n, err := g.AddNode(tmpl)
	if err != nil {
		t.Fatalf("AddNode(%s): %v", tag, err)
	}
	if value != "" {
		if err := g.SetValue(n.ID, value); err != nil {
			t.Fatal(err)
		}
	}
	return n
}

func wire(t *testing.T, g *graph.Graph, from graph.OutputID, to graph.InputID) {
	t.Helper()
	if err := g.Connect(from, to); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestExport_FilterFork(t *testing.T) {
	g := graph.NewSeeded()
	src, _ := g.Node(g.SourceNode())
	filter := addNode(t, g, graph.KindSourceAddrFilter, "10.0.0.1")
	drop := addNode(t, g, graph.KindDrop, "")
	accept := addNode(t, g, graph.KindAccept, "")
	// The fork is wired first: Accept's input is pinned outgoing and would
	// refuse a filter output already pinned incoming by the source edge.
	wire(t, g, filter.Outputs[0], drop.Inputs[0])
	wire(t, g, filter.Outputs[1], accept.Inputs[0])
	wire(t, g, src.Outputs[0], filter.Inputs[0])

	res, err := Export(context.Background(), g, eval.NewEvaluator(nil), Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if res.Paths != 2 || res.Lowered != 2 {
		t.Errorf("paths=%d lowered=%d, want 2/2", res.Paths, res.Lowered)
	}
	if len(res.Skipped) != 0 || len(res.Failures) != 0 {
		t.Errorf("unexpected skips %v or failures %v", res.Skipped, res.Failures)
	}
	if res.Table != brand.DefaultTable || res.Family != brand.DefaultFamily {
		t.Errorf("defaults not applied: table=%s family=%s", res.Table, res.Family)
	}

	objs := res.Doc.Objects
	if len(objs) != 6 {
		t.Fatalf("expected metainfo+table+2 chain/rule pairs, got %d objects", len(objs))
	}
	if objs[0].Metainfo == nil || objs[0].Metainfo.Version != brand.Version {
		t.Errorf("document must open with metainfo, got %+v", objs[0])
	}
	if objs[1].Table == nil || objs[1].Table.Name != brand.DefaultTable {
		t.Errorf("table declaration must precede chains, got %+v", objs[1])
	}

	// Terminal nodes surface in insertion order: drop then accept.
	if objs[2].Chain.Hook != HookInput || objs[4].Chain.Hook != HookOutput {
		t.Errorf("hooks: drop on %s, accept on %s", objs[2].Chain.Hook, objs[4].Chain.Hook)
	}
	if got := stmtJSON(t, objs[3].Rule.Expr[1]); got != `{"drop":null}` {
		t.Errorf("first rule verdict: %s", got)
	}
	if got := stmtJSON(t, objs[5].Rule.Expr[1]); got != `{"accept":null}` {
		t.Errorf("second rule verdict: %s", got)
	}
}

func TestExport_LoweringFailureIsPathIsolated(t *testing.T) {
	g := graph.NewSeeded()
	src, _ := g.Node(g.SourceNode())
	filter := addNode(t, g, graph.KindSourceAddrFilter, "10.0.0.1")
	list := addNode(t, g, graph.KindFileIPList, "/etc/blocklist.txt")
	drop := addNode(t, g, graph.KindDrop, "")
	accept := addNode(t, g, graph.KindAccept, "")
	wire(t, g, filter.Outputs[0], list.Inputs[0])
	wire(t, g, list.Outputs[0], drop.Inputs[0])
	wire(t, g, filter.Outputs[1], accept.Inputs[0])
	wire(t, g, src.Outputs[0], filter.Inputs[0])

	res, err := Export(context.Background(), g, eval.NewEvaluator(nil), Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if res.Paths != 2 || res.Lowered != 1 {
		t.Errorf("paths=%d lowered=%d, want 2/1", res.Paths, res.Lowered)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %v", res.Skipped)
	}
	skip := res.Skipped[0]
	if skip.Node != drop.UID || skip.Kind != graph.KindDrop {
		t.Errorf("skip should name the terminal node: %+v", skip)
	}
	if skip.Err == nil || skip.Err.Code != eval.CodeUnsupportedLowering {
		t.Errorf("skip code: %+v", skip.Err)
	}

	// The accept path still made it into the document.
	objs := res.Doc.Objects
	if len(objs) != 4 {
		t.Fatalf("expected metainfo+table+1 chain/rule pair, got %d", len(objs))
	}
	if got := stmtJSON(t, objs[3].Rule.Expr[1]); got != `{"accept":null}` {
		t.Errorf("surviving verdict: %s", got)
	}
}

func TestExport_ResolutionFailureSurfaces(t *testing.T) {
	g := graph.NewSeeded()
	src, _ := g.Node(g.SourceNode())
	filter := addNode(t, g, graph.KindSourceAddrFilter, "10.0.0.1")
	broken := addNode(t, g, graph.KindProtocolFilter, "") // never configured
	drop := addNode(t, g, graph.KindDrop, "")
	accept := addNode(t, g, graph.KindAccept, "")
	wire(t, g, filter.Outputs[0], broken.Inputs[0])
	wire(t, g, broken.Outputs[0], drop.Inputs[0])
	wire(t, g, filter.Outputs[1], accept.Inputs[0])
	wire(t, g, src.Outputs[0], filter.Inputs[0])

	res, err := Export(context.Background(), g, eval.NewEvaluator(nil), Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(res.Failures) != 1 {
		t.Fatalf("expected 1 resolution failure, got %v", res.Failures)
	}
	if res.Failures[0].Err.Code != eval.CodeConfiguration {
		t.Errorf("failure code: %v", res.Failures[0].Err)
	}
	// The route through the broken filter never became a path; the accept
	// route is unaffected.
	if res.Paths != 1 || res.Lowered != 1 {
		t.Errorf("paths=%d lowered=%d, want 1/1", res.Paths, res.Lowered)
	}
}

func TestExport_Options(t *testing.T) {
	g := graph.NewSeeded()
	res, err := Export(context.Background(), g, eval.NewEvaluator(nil), Options{
		Table:  "edge",
		Family: "ip",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Table != "edge" || res.Family != "ip" {
		t.Errorf("options not honored: %s/%s", res.Table, res.Family)
	}
	if res.Doc.Objects[1].Table.Family != "ip" || res.Doc.Objects[1].Table.Name != "edge" {
		t.Errorf("table object: %+v", res.Doc.Objects[1].Table)
	}
}

func TestExport_EmptyGraph(t *testing.T) {
	g := graph.NewSeeded()
	res, err := Export(context.Background(), g, eval.NewEvaluator(nil), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Paths != 0 {
		t.Errorf("seeded graph has no terminal nodes, got %d paths", res.Paths)
	}
	if len(res.Doc.Objects) != 2 {
		t.Errorf("expected metainfo+table preamble only, got %d objects", len(res.Doc.Objects))
	}
}
