package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/project"
)

// RunCheck validates a project: the graph invariants the editor normally
// upholds, node configuration an export would trip over, and plugin script
// availability. Verbose additionally dry-runs the compile and reports what
// it would produce.
func RunCheck(projectPath string, verbose bool) error {
	p, err := openProject(projectPath)
	if err != nil {
		return fmt.Errorf("project invalid: %w", err)
	}

	problems := p.Graph.Problems()
	problems = append(problems, pluginProblems(p)...)

	errors := 0
	for _, pr := range problems {
		if pr.Severity == "error" {
			errors++
		}
	}

	fmt.Printf("Project: %s\n", p.Path)
	fmt.Printf("Nodes: %d\n", p.Graph.NodeCount())
	fmt.Printf("Connections: %d\n", p.Graph.ConnectionCount())
	fmt.Printf("Plugins: %d\n", len(p.Plugins.Plugins()))

	if len(problems) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SEVERITY\tNODE\tPROBLEM")
		for _, pr := range problems {
			node := "-"
			if pr.Node != "" {
				node = shortUID(pr.Node)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", pr.Severity, node, pr.Message)
		}
		w.Flush()
	}

	if verbose {
		fmt.Println()
		printNodes(p.Graph)
		printConnections(p.Graph)

		fmt.Println("\n[DRY RUN] Compile:")
		res, err := compile(context.Background(), p, "", "")
		if err != nil {
			fmt.Printf("  compile failed: %v\n", err)
			errors++
		} else {
			fmt.Printf("  Terminal paths: %d\n", res.Paths)
			fmt.Printf("  Lowered: %d\n", res.Lowered)
			fmt.Printf("  Objects: %d\n", len(res.Doc.Objects))
			for _, f := range res.Failures {
				fmt.Printf("  unresolved: node %s (%s): %v\n", shortUID(f.Node), f.Kind, f.Err)
			}
			for _, s := range res.Skipped {
				fmt.Printf("  skipped: node %s (%s): %v\n", shortUID(s.Node), s.Kind, s.Err)
			}
		}
	}

	if errors > 0 {
		return fmt.Errorf("%d error(s) found", errors)
	}
	if len(problems) > 0 {
		fmt.Printf("\nOK with %d warning(s)\n", len(problems))
	} else {
		fmt.Println("\nOK")
	}
	return nil
}

// pluginProblems verifies that every custom node's script actually exists
// under the project's plugin directory. The graph cannot know this; the
// registry can.
func pluginProblems(p *project.Project) []graph.Problem {
	var problems []graph.Problem
	p.Graph.ForEachNode(func(n *graph.Node) bool {
		if !n.Kind.IsCustom() {
			return true
		}
		pluginID, nodeID, ok := n.Kind.PluginRef()
		if !ok {
			return true // already reported by Problems
		}
		script, err := p.Plugins.ScriptPath(pluginID, nodeID)
		if err != nil {
			problems = append(problems, graph.Problem{
				Severity: "error",
				Node:     n.UID,
				Message:  fmt.Sprintf("kind %s: %v", n.Kind.Tag, err),
			})
			return true
		}
		if _, err := os.Stat(script); err != nil {
			problems = append(problems, graph.Problem{
				Severity: "error",
				Node:     n.UID,
				Message:  fmt.Sprintf("plugin script missing: %s", script),
			})
		}
		return true
	})
	return problems
}
