package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
)

// Registry tracks the plugins available to a project and hands out graph
// templates for the node kinds they declare. Scripts live under
// <dir>/<plugin-id>/.
type Registry struct {
	dir string

	mu      sync.RWMutex
	plugins map[string]Manifest

	hub *events.Hub
	log *logging.Logger
}

// NewRegistry returns an empty registry rooted at the given plugin
// directory. The directory need not exist until a plugin is imported.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:     dir,
		plugins: make(map[string]Manifest),
		log:     logging.WithComponent("plugin"),
	}
}

// SetEventHub wires the registry to an event bus. May be nil.
func (r *Registry) SetEventHub(hub *events.Hub) {
	r.hub = hub
}

// Dir returns the plugin directory root.
func (r *Registry) Dir() string {
	return r.dir
}

// Load reads every plugin under the registry's directory. A missing
// directory is an empty registry, not an error; a broken manifest fails the
// load so a damaged project surfaces instead of silently losing kinds.
func (r *Registry) Load() error {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name(), ManifestFileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		m, err := ReadManifest(path)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", entry.Name(), err)
		}
		if m.ID != entry.Name() {
			return fmt.Errorf("plugin dir %s holds manifest for %q", entry.Name(), m.ID)
		}
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a validated manifest. Re-registering a plugin replaces it,
// so re-importing an updated plugin just works.
func (r *Registry) Register(m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	_, replaced := r.plugins[m.ID]
	r.plugins[m.ID] = m
	r.mu.Unlock()

	if replaced {
		r.log.Info("plugin replaced", "plugin", m.ID, "nodes", len(m.Nodes))
	} else {
		r.log.Info("plugin registered", "plugin", m.ID, "nodes", len(m.Nodes))
	}
	return nil
}

// Plugin returns a registered manifest.
func (r *Registry) Plugin(id string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.plugins[id]
	return m, ok
}

// Plugins returns all registered manifests sorted by id.
func (r *Registry) Plugins() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Manifest, 0, len(r.plugins))
	for _, m := range r.plugins {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Node returns the spec for one plugin node.
func (r *Registry) Node(pluginID, nodeID string) (NodeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.plugins[pluginID]
	if !ok {
		return NodeSpec{}, false
	}
	spec, ok := m.Nodes[nodeID]
	return spec, ok
}

// Template synthesizes the graph template for one plugin node: a single
// input port named "in" plus one output per declared branch, sorted by name
// for deterministic port order.
func (r *Registry) Template(pluginID, nodeID string) (graph.Template, error) {
	r.mu.RLock()
	m, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return graph.Template{}, fmt.Errorf("unknown plugin %q", pluginID)
	}
	spec, ok := m.Nodes[nodeID]
	if !ok {
		return graph.Template{}, fmt.Errorf("plugin %s has no node %q", pluginID, nodeID)
	}

	inType, err := spec.Input.portType()
	if err != nil {
		return graph.Template{}, err
	}
	t := graph.Template{
		Tag:    m.Tag(nodeID),
		Label:  spec.DisplayName,
		Inputs: []graph.PortDef{{Name: "in", Type: inType}},
	}

	names := make([]string, 0, len(spec.Outputs))
	for name := range spec.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		outType, err := spec.Outputs[name].portType()
		if err != nil {
			return graph.Template{}, err
		}
		t.Outputs = append(t.Outputs, graph.PortDef{Name: name, Type: outType})
	}
	return t, nil
}

// Templates returns templates for every registered plugin node, sorted by
// tag. Used alongside graph.Palette for the template listing.
func (r *Registry) Templates() []graph.Template {
	var out []graph.Template
	for _, m := range r.Plugins() {
		ids := make([]string, 0, len(m.Nodes))
		for nodeID := range m.Nodes {
			ids = append(ids, nodeID)
		}
		sort.Strings(ids)
		for _, nodeID := range ids {
			t, err := r.Template(m.ID, nodeID)
			if err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// ScriptPath resolves the executable for one plugin node under the
// registry's directory.
func (r *Registry) ScriptPath(pluginID, nodeID string) (string, error) {
	r.mu.RLock()
	m, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown plugin %q", pluginID)
	}
	script, ok := m.scriptFor(nodeID)
	if !ok {
		return "", fmt.Errorf("plugin %s has no node %q", pluginID, nodeID)
	}
	return filepath.Join(r.dir, pluginID, script), nil
}
