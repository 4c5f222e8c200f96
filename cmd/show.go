package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/project"
)

// RunShow prints a summary of the project: settings, nodes, and connections.
// With templates set it instead lists every node kind available to this
// project, built-ins and plugin nodes alike.
func RunShow(projectPath string, templates bool) error {
	p, err := openProject(projectPath)
	if err != nil {
		return err
	}

	if templates {
		printTemplates(p)
		return nil
	}

	fmt.Printf("Project: %s\n", p.Path)
	fmt.Printf("Table: %s (family %s)\n", p.Settings.Table, p.Settings.Family)
	fmt.Printf("Nodes: %d  Connections: %d  Plugins: %d\n\n",
		p.Graph.NodeCount(), p.Graph.ConnectionCount(), len(p.Plugins.Plugins()))

	printNodes(p.Graph)
	printConnections(p.Graph)
	return nil
}

func printNodes(g *graph.Graph) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "NODE\tKIND\tLABEL\tCONFIG\tPOSITION")
	g.ForEachNode(func(n *graph.Node) bool {
		config := "-"
		if n.Kind.Value != "" {
			config = n.Kind.Value
		} else if len(n.Kind.Params) > 0 {
			config = formatParams(n.Kind.Params)
		}
		pos := "-"
		if p, ok := g.Position(n.ID); ok {
			pos = fmt.Sprintf("%.0f,%.0f", p.X, p.Y)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortUID(n.UID), n.Kind.Tag, n.Label, config, pos)
		return true
	})
	fmt.Fprintln(w)
	w.Flush()
}

func printConnections(g *graph.Graph) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "FROM\tOUTPUT\tTO\tINPUT")
	g.ForEachNode(func(n *graph.Node) bool {
		for _, outID := range n.Outputs {
			inID, ok := g.ConnectionFrom(outID)
			if !ok {
				continue
			}
			out, _ := g.Output(outID)
			in, _ := g.Input(inID)
			if out == nil || in == nil {
				continue
			}
			peer, _ := g.Node(in.Node)
			if peer == nil {
				continue
			}
			fmt.Fprintf(w, "%s (%s)\t%s\t%s (%s)\t%s\n",
				shortUID(n.UID), n.Kind.Tag, out.Name,
				shortUID(peer.UID), peer.Kind.Tag, in.Name)
		}
		return true
	})
	w.Flush()
}

func printTemplates(p *project.Project) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "KIND\tLABEL\tINPUTS\tOUTPUTS")
	for _, t := range graph.Palette() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Tag, t.Label, portNames(t.Inputs), portNames(t.Outputs))
	}
	for _, t := range p.Plugins.Templates() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Tag, t.Label, portNames(t.Inputs), portNames(t.Outputs))
	}
	w.Flush()
}

func portNames(defs []graph.PortDef) string {
	if len(defs) == 0 {
		return "-"
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return strings.Join(names, ",")
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, " ")
}
