package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"grimm.is/nftgraph/internal/events"
)

// Import copies a plugin from srcDir into the registry's directory and
// registers it: the manifest, the main script, and every node script land
// under <dir>/<plugin-id>/. Importing an already-known plugin id replaces
// its files and registration.
func (r *Registry) Import(srcDir string) (Manifest, error) {
	m, err := ReadManifest(filepath.Join(srcDir, ManifestFileName))
	if err != nil {
		return Manifest{}, err
	}

	destDir := filepath.Join(r.dir, m.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("creating plugin dir: %w", err)
	}

	if err := copyFile(
		filepath.Join(srcDir, ManifestFileName),
		filepath.Join(destDir, ManifestFileName),
		0o644,
	); err != nil {
		return Manifest{}, fmt.Errorf("copying manifest: %w", err)
	}

	for _, script := range m.scripts() {
		dst := filepath.Join(destDir, script)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return Manifest{}, fmt.Errorf("creating script dir: %w", err)
		}
		if err := copyFile(filepath.Join(srcDir, script), dst, 0o755); err != nil {
			return Manifest{}, fmt.Errorf("copying script %s: %w", script, err)
		}
	}

	if err := r.Register(m); err != nil {
		return Manifest{}, err
	}

	if r.hub != nil {
		r.hub.Publish(events.Event{
			Type:   events.EventPluginImported,
			Source: "plugin",
			Data:   events.PluginData{Plugin: m.ID},
		})
	}
	r.log.Info("plugin imported", "plugin", m.ID, "from", srcDir, "scripts", len(m.scripts()))
	return m, nil
}

// scripts returns every script the manifest references, deduplicated and
// sorted.
func (m Manifest) scripts() []string {
	seen := make(map[string]bool)
	if m.Script != "" {
		seen[m.Script] = true
	}
	for _, spec := range m.Nodes {
		if spec.Script != "" {
			seen[spec.Script] = true
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func copyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, perm)
}
