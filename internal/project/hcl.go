package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/plugin"
)

// Document is the on-disk shape of a project file.
type Document struct {
	SchemaVersion string            `hcl:"schema_version,optional"`
	SourceNode    string            `hcl:"source_node,optional"`
	Settings      *Settings         `hcl:"settings,block"`
	Nodes         []NodeBlock       `hcl:"node,block"`
	Connections   []ConnectionBlock `hcl:"connection,block"`
	Plugins       []PluginBlock     `hcl:"plugin,block"`
}

// NodeBlock persists one node. The block label is the node's UID so edges
// and plugin data can refer to it across sessions.
type NodeBlock struct {
	UID    string            `hcl:"uid,label"`
	Kind   string            `hcl:"kind"`
	Label  string            `hcl:"label,optional"`
	Value  string            `hcl:"value,optional"`
	Params map[string]string `hcl:"params,optional"`
	X      float64           `hcl:"x,optional"`
	Y      float64           `hcl:"y,optional"`
}

// ConnectionBlock persists one edge by node UID and port name.
type ConnectionBlock struct {
	From   string `hcl:"from"`
	Output string `hcl:"output"`
	To     string `hcl:"to"`
	Input  string `hcl:"input"`
}

// PluginBlock records that a plugin was imported into the project. The
// manifest itself lives under plugins.d and is reloaded on open.
type PluginBlock struct {
	ID string `hcl:"id,label"`
}

// Load opens a project file, reloads the plugin registry next to it, and
// rebuilds the graph. Saved files are trusted: edges are restored without
// the interactive guards, and check reports whatever a hand edit broke.
func Load(path string) (*Project, error) {
	var doc Document
	if err := hclsimple.DecodeFile(path, nil, &doc); err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	switch doc.SchemaVersion {
	case "", CurrentSchemaVersion:
	default:
		return nil, fmt.Errorf("project schema version %q is not supported (want %s)",
			doc.SchemaVersion, CurrentSchemaVersion)
	}

	settings := DefaultSettings()
	if doc.Settings != nil {
		settings = *doc.Settings
		if settings.Table == "" {
			settings.Table = brand.DefaultTable
		}
		if settings.Family == "" {
			settings.Family = brand.DefaultFamily
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("project settings: %w", err)
	}

	dir := filepath.Dir(path)
	reg := plugin.NewRegistry(filepath.Join(dir, brand.PluginDirName))
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("loading plugins: %w", err)
	}
	log := logging.WithComponent("project")
	for _, pb := range doc.Plugins {
		if _, ok := reg.Plugin(pb.ID); !ok {
			log.Warn("project references a plugin with no manifest on disk", "plugin", pb.ID)
		}
	}

	g := graph.New()
	if err := restoreNodes(g, reg, doc.Nodes); err != nil {
		return nil, err
	}
	if err := restoreConnections(g, doc.Connections); err != nil {
		return nil, err
	}
	if doc.SourceNode != "" {
		node, ok := g.NodeByUID(doc.SourceNode)
		if !ok {
			return nil, fmt.Errorf("source_node %q does not name a node", doc.SourceNode)
		}
		if node.Kind.Tag != graph.KindSource {
			return nil, fmt.Errorf("source_node %q is a %s node, not %s",
				doc.SourceNode, node.Kind.Tag, graph.KindSource)
		}
	}

	p := &Project{
		Path:     path,
		Dir:      dir,
		Settings: settings,
		Graph:    g,
		Plugins:  reg,
		log:      log,
	}
	p.log.Debug("project loaded",
		"path", path,
		"nodes", g.NodeCount(),
		"connections", g.ConnectionCount(),
		"plugins", len(reg.Plugins()))
	return p, nil
}

func restoreNodes(g *graph.Graph, reg *plugin.Registry, blocks []NodeBlock) error {
	for _, nb := range blocks {
		tmpl, err := templateFor(reg, nb.Kind)
		if err != nil {
			return fmt.Errorf("node %s: %w", nb.UID, err)
		}
		node, err := g.RestoreNode(tmpl, nb.UID)
		if err != nil {
			return fmt.Errorf("node %s: %w", nb.UID, err)
		}
		if nb.Label != "" {
			node.Label = nb.Label
		}
		if nb.Value != "" {
			node.Kind.Value = nb.Value
		}
		if len(nb.Params) > 0 {
			node.Kind.Params = nb.Params
		}
		g.SetPosition(node.ID, graph.Position{X: nb.X, Y: nb.Y})
	}
	return nil
}

func templateFor(reg *plugin.Registry, kind string) (graph.Template, error) {
	if tmpl, err := graph.TemplateFor(kind); err == nil {
		return tmpl, nil
	}
	if strings.HasPrefix(kind, "core:") {
		return graph.Template{}, fmt.Errorf("unknown node kind %q", kind)
	}
	pluginID, nodeID, ok := strings.Cut(kind, ":")
	if !ok {
		return graph.Template{}, fmt.Errorf("unknown node kind %q", kind)
	}
	tmpl, err := reg.Template(pluginID, nodeID)
	if err != nil {
		return graph.Template{}, fmt.Errorf("unknown node kind %q: %w", kind, err)
	}
	return tmpl, nil
}

func restoreConnections(g *graph.Graph, blocks []ConnectionBlock) error {
	for _, cb := range blocks {
		from, ok := g.NodeByUID(cb.From)
		if !ok {
			return fmt.Errorf("connection from %s: unknown node", cb.From)
		}
		to, ok := g.NodeByUID(cb.To)
		if !ok {
			return fmt.Errorf("connection to %s: unknown node", cb.To)
		}
		out, ok := outputByName(g, from, cb.Output)
		if !ok {
			return fmt.Errorf("connection from %s: no output port %q", cb.From, cb.Output)
		}
		in, ok := inputByName(g, to, cb.Input)
		if !ok {
			return fmt.Errorf("connection to %s: no input port %q", cb.To, cb.Input)
		}
		if err := g.RestoreConnection(out, in); err != nil {
			return fmt.Errorf("connection %s/%s -> %s/%s: %w",
				cb.From, cb.Output, cb.To, cb.Input, err)
		}
	}
	return nil
}

func outputByName(g *graph.Graph, node *graph.Node, name string) (graph.OutputID, bool) {
	for _, id := range node.Outputs {
		if port, ok := g.Output(id); ok && port.Name == name {
			return id, true
		}
	}
	return graph.OutputID{}, false
}

func inputByName(g *graph.Graph, node *graph.Node, name string) (graph.InputID, bool) {
	for _, id := range node.Inputs {
		if port, ok := g.Input(id); ok && port.Name == name {
			return id, true
		}
	}
	return graph.InputID{}, false
}
