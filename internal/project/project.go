// Package project persists a graph, its settings, and its plugin registry as
// an HCL document next to a plugins.d directory of imported scripts. The
// engine only ever needs the deserialized form; everything here exists so an
// editing session can be closed and reopened.
package project

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/plugin"
	"grimm.is/nftgraph/internal/validation"
)

// CurrentSchemaVersion is written into every saved project file. Loads
// accept this version or an empty one (the earliest files carried none).
const CurrentSchemaVersion = "1"

// Settings are the per-project compile options.
type Settings struct {
	Table         string `hcl:"table,optional"`
	Family        string `hcl:"family,optional"`
	PluginTimeout string `hcl:"plugin_timeout,optional"`
}

// DefaultSettings returns the branded defaults a new project starts from.
func DefaultSettings() Settings {
	return Settings{
		Table:         brand.DefaultTable,
		Family:        brand.DefaultFamily,
		PluginTimeout: plugin.DefaultTimeout.String(),
	}
}

// Validate checks the settings a load or edit produced.
func (s Settings) Validate() error {
	if s.Table != "" {
		if err := validation.ValidateIdentifier(s.Table); err != nil {
			return fmt.Errorf("table: %w", err)
		}
	}
	switch s.Family {
	case "", "inet", "ip", "ip6":
	default:
		return fmt.Errorf("unknown table family %q", s.Family)
	}
	if s.PluginTimeout != "" {
		if _, err := time.ParseDuration(s.PluginTimeout); err != nil {
			return fmt.Errorf("plugin_timeout: %w", err)
		}
	}
	return nil
}

// Timeout returns the configured plugin timeout. Empty or unparseable
// values fall back to the bridge default rather than failing an export.
func (s Settings) Timeout() time.Duration {
	if s.PluginTimeout == "" {
		return plugin.DefaultTimeout
	}
	d, err := time.ParseDuration(s.PluginTimeout)
	if err != nil || d <= 0 {
		logging.Warn("ignoring bad plugin_timeout setting", "value", s.PluginTimeout)
		return plugin.DefaultTimeout
	}
	return d
}

// Project is one open project: the graph being edited, its settings, and the
// plugins imported next to it.
type Project struct {
	Path     string // project file
	Dir      string // project directory
	Settings Settings
	Graph    *graph.Graph
	Plugins  *plugin.Registry

	log *logging.Logger
}

// New creates a project directory with a seeded graph, an empty plugin
// directory, and a saved project file. It refuses to overwrite an existing
// project.
func New(dir string) (*Project, error) {
	path := filepath.Join(dir, brand.ProjectFileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("project already exists at %s", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project dir: %w", err)
	}
	pluginDir := filepath.Join(dir, brand.PluginDirName)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating plugin dir: %w", err)
	}

	p := &Project{
		Path:     path,
		Dir:      dir,
		Settings: DefaultSettings(),
		Graph:    graph.NewSeeded(),
		Plugins:  plugin.NewRegistry(pluginDir),
		log:      logging.WithComponent("project"),
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	p.log.Info("project created", "path", path)
	return p, nil
}

// PluginDir returns the directory imported plugin scripts live in.
func (p *Project) PluginDir() string {
	return filepath.Join(p.Dir, brand.PluginDirName)
}

// ApplyCustomData folds plugin-reported custom data back into the owning
// nodes' params so the next editing session sees what the scripts computed.
// Returns the number of nodes whose params actually changed.
func (p *Project) ApplyCustomData(data map[string]map[string]string) int {
	updated := 0
	for uid, params := range data {
		node, ok := p.Graph.NodeByUID(uid)
		if !ok {
			continue
		}
		if maps.Equal(node.Kind.Params, params) {
			continue
		}
		if err := p.Graph.SetParams(node.ID, params); err != nil {
			continue
		}
		updated++
	}
	if updated > 0 {
		p.log.Debug("custom data folded into node params", "nodes", updated)
	}
	return updated
}
