package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/project"
)

// buildFirewallProject creates a saved project whose graph compiles to a
// non-empty ruleset: source -> addr filter -> localhost -> accept, with the
// filter's non-match branch dropped.
func buildFirewallProject(t *testing.T) (string, *project.Project) {
	t.Helper()
	dir := t.TempDir()
	p, err := project.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g := p.Graph
	src, _ := g.Node(g.SourceNode())
	lo, _ := g.Node(g.LocalhostNode())

	mustAdd := func(tag string) *graph.Node {
		tmpl, err := graph.TemplateFor(tag)
		if err != nil {
			t.Fatalf("TemplateFor(%s): %v", tag, err)
		}
		n, err := g.AddNode(tmpl)
		if err != nil {
			t.Fatalf("AddNode(%s): %v", tag, err)
		}
		return n
	}
	mustConnect := func(from graph.OutputID, to graph.InputID) {
		if err := g.Connect(from, to); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}

	filter := mustAdd(graph.KindSourceAddrFilter)
	if err := g.SetValue(filter.ID, "192.0.2.0/24"); err != nil {
		t.Fatal(err)
	}
	drop := mustAdd(graph.KindDrop)
	accept := mustAdd(graph.KindAccept)

	mustConnect(src.Outputs[0], filter.Inputs[0])
	mustConnect(filter.Outputs[0], lo.Inputs[0])
	mustConnect(filter.Outputs[1], drop.Inputs[0])
	mustConnect(lo.Outputs[0], accept.Inputs[0])

	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return dir, p
}

func TestResolveProjectPath(t *testing.T) {
	if got := resolveProjectPath(""); got != brand.ProjectFileName {
		t.Errorf("empty arg: got %q", got)
	}

	dir := t.TempDir()
	want := filepath.Join(dir, brand.ProjectFileName)
	if got := resolveProjectPath(dir); got != want {
		t.Errorf("dir arg: got %q, want %q", got, want)
	}

	if got := resolveProjectPath("some/file.hcl"); got != "some/file.hcl" {
		t.Errorf("file arg: got %q", got)
	}
}

func TestRunNewAndCheck(t *testing.T) {
	dir := t.TempDir()
	if err := RunNew(dir); err != nil {
		t.Fatalf("RunNew: %v", err)
	}
	if err := RunNew(dir); err == nil {
		t.Error("second RunNew on the same dir should refuse")
	}

	// A freshly seeded project has nothing to complain about.
	if err := RunCheck(dir, false); err != nil {
		t.Errorf("RunCheck on a new project: %v", err)
	}
}

func TestRunCheckReportsErrors(t *testing.T) {
	dir := t.TempDir()
	p, err := project.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	tmpl, _ := graph.TemplateFor(graph.KindSourceAddrFilter)
	if _, err := p.Graph.AddNode(tmpl); err != nil {
		t.Fatal(err)
	}
	// Filter with no value: an export would fail on it, check must flag it.
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}

	err = RunCheck(dir, false)
	if err == nil {
		t.Fatal("expected check to fail")
	}
	if !strings.Contains(err.Error(), "error") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunShow(t *testing.T) {
	dir, _ := buildFirewallProject(t)

	if err := RunShow(dir, false); err != nil {
		t.Errorf("RunShow: %v", err)
	}
	if err := RunShow(dir, true); err != nil {
		t.Errorf("RunShow -templates: %v", err)
	}
}

func TestRunPaths(t *testing.T) {
	dir, _ := buildFirewallProject(t)

	if err := RunPaths(dir, false); err != nil {
		t.Errorf("RunPaths: %v", err)
	}
	if err := RunPaths(dir, true); err != nil {
		t.Errorf("RunPaths -json: %v", err)
	}
}

func TestExportThenDiff(t *testing.T) {
	dir, p := buildFirewallProject(t)
	out := filepath.Join(t.TempDir(), "ruleset.json")

	if err := RunExport(dir, out, "", ""); err != nil {
		t.Fatalf("RunExport: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("exported file: %v", err)
	}
	if !strings.Contains(string(data), `"nftables"`) {
		t.Error("exported file should hold an nftables document")
	}
	if !strings.Contains(string(data), `"chain"`) {
		t.Error("exported document should contain chains")
	}

	// Unchanged project: no drift.
	if err := RunDiff(dir, out); err != nil {
		t.Errorf("RunDiff on identical ruleset: %v", err)
	}

	// Change the filter value; the compiled ruleset must now differ.
	var filter *graph.Node
	p.Graph.ForEachNode(func(n *graph.Node) bool {
		if n.Kind.Tag == graph.KindSourceAddrFilter {
			filter = n
			return false
		}
		return true
	})
	if filter == nil {
		t.Fatal("filter node missing")
	}
	if err := p.Graph.SetValue(filter.ID, "198.51.100.0/24"); err != nil {
		t.Fatal(err)
	}
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}

	if err := RunDiff(dir, out); err == nil {
		t.Error("RunDiff should report drift after the graph changed")
	}
}

func TestRunExportStdout(t *testing.T) {
	dir, _ := buildFirewallProject(t)

	// Table/family overrides reach the document.
	out := filepath.Join(t.TempDir(), "ruleset.json")
	if err := RunExport(dir, out, "edgefw", "ip"); err != nil {
		t.Fatalf("RunExport: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"edgefw"`) {
		t.Error("table override should land in the document")
	}
}
