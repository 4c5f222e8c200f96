package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/nftgraph/internal/graph"
)

// Save writes the project back to its own path.
func (p *Project) Save() error {
	return p.SaveTo(p.Path)
}

// SaveTo serializes the project to path. An existing file is backed up to
// path.bak first so a failed write never eats the only copy.
func (p *Project) SaveTo(path string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal(CurrentSchemaVersion))
	if src, ok := p.Graph.Node(p.Graph.SourceNode()); ok {
		body.SetAttributeValue("source_node", cty.StringVal(src.UID))
	}
	body.AppendNewline()

	writeSettings(body, p.Settings)
	p.writeNodes(body)
	p.writeConnections(body)
	p.writePlugins(body)

	if _, err := os.Stat(path); err == nil {
		backup := path + ".bak"
		if data, err := os.ReadFile(path); err == nil {
			_ = os.WriteFile(backup, data, 0o644)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	if p.log != nil {
		p.log.Debug("project saved", "path", path)
	}
	return nil
}

func writeSettings(body *hclwrite.Body, s Settings) {
	block := body.AppendNewBlock("settings", nil)
	b := block.Body()
	b.SetAttributeValue("table", cty.StringVal(s.Table))
	b.SetAttributeValue("family", cty.StringVal(s.Family))
	if s.PluginTimeout != "" {
		b.SetAttributeValue("plugin_timeout", cty.StringVal(s.PluginTimeout))
	}
	body.AppendNewline()
}

// writeNodes emits one block per node in arena order, which is stable for a
// given edit history, so repeated saves of an unchanged graph are identical.
func (p *Project) writeNodes(body *hclwrite.Body) {
	p.Graph.ForEachNode(func(n *graph.Node) bool {
		block := body.AppendNewBlock("node", []string{n.UID})
		b := block.Body()
		b.SetAttributeValue("kind", cty.StringVal(n.Kind.Tag))
		if n.Label != "" {
			b.SetAttributeValue("label", cty.StringVal(n.Label))
		}
		if n.Kind.Value != "" {
			b.SetAttributeValue("value", cty.StringVal(n.Kind.Value))
		}
		if len(n.Kind.Params) > 0 {
			vals := make(map[string]cty.Value, len(n.Kind.Params))
			for k, v := range n.Kind.Params {
				vals[k] = cty.StringVal(v)
			}
			b.SetAttributeValue("params", cty.MapVal(vals))
		}
		if pos, ok := p.Graph.Position(n.ID); ok {
			b.SetAttributeValue("x", cty.NumberFloatVal(pos.X))
			b.SetAttributeValue("y", cty.NumberFloatVal(pos.Y))
		}
		body.AppendNewline()
		return true
	})
}

func (p *Project) writeConnections(body *hclwrite.Body) {
	p.Graph.ForEachNode(func(n *graph.Node) bool {
		for _, outID := range n.Outputs {
			inID, ok := p.Graph.ConnectionFrom(outID)
			if !ok {
				continue
			}
			out, okOut := p.Graph.Output(outID)
			in, okIn := p.Graph.Input(inID)
			if !okOut || !okIn {
				continue
			}
			peer, okPeer := p.Graph.Node(in.Node)
			if !okPeer {
				continue
			}
			block := body.AppendNewBlock("connection", nil)
			b := block.Body()
			b.SetAttributeValue("from", cty.StringVal(n.UID))
			b.SetAttributeValue("output", cty.StringVal(out.Name))
			b.SetAttributeValue("to", cty.StringVal(peer.UID))
			b.SetAttributeValue("input", cty.StringVal(in.Name))
			body.AppendNewline()
		}
		return true
	})
}

func (p *Project) writePlugins(body *hclwrite.Body) {
	for _, m := range p.Plugins.Plugins() {
		body.AppendNewBlock("plugin", []string{m.ID})
		body.AppendNewline()
	}
}
