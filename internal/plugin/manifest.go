// Package plugin loads plugin manifests, synthesizes graph templates for
// the node kinds they declare, and runs their scripts as subprocesses when
// the evaluator reaches a custom node.
package plugin

import (
	"encoding/json"
	"fmt"
	"os"

	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/validation"
)

// ManifestFileName is looked for in a plugin's directory on load and import.
const ManifestFileName = "manifest.json"

// PortSpec declares one port of a plugin node. Empty fields take the
// wildcard values (inet / either).
type PortSpec struct {
	Family    string `json:"family,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// NodeSpec declares one node kind a plugin contributes. Params maps
// parameter ids to the labels the editing frontend shows for them; values
// live per node instance. Script overrides the plugin's main script for
// this node when set.
type NodeSpec struct {
	DisplayName string              `json:"display_name"`
	Params      map[string]string   `json:"params,omitempty"`
	Input       PortSpec            `json:"input"`
	Outputs     map[string]PortSpec `json:"outputs,omitempty"`
	Script      string              `json:"script,omitempty"`
}

// Manifest is a plugin's manifest.json. Node kinds instantiate under the
// tag "<id>:<node-id>". Each node runs Script unless its spec names its
// own.
type Manifest struct {
	ID     string              `json:"id"`
	Script string              `json:"script,omitempty"`
	Nodes  map[string]NodeSpec `json:"nodes"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ReadManifest loads and validates a manifest file.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks ids, scripts, and port declarations. The manifest format
// allows exactly one input per node, which keeps evaluation's
// first-input-port rule an invariant rather than a silent truncation.
func (m Manifest) Validate() error {
	if err := validation.ValidatePluginID(m.ID); err != nil {
		return err
	}
	if len(m.Nodes) == 0 {
		return fmt.Errorf("plugin %s declares no nodes", m.ID)
	}
	if m.Script != "" {
		if err := validateScriptRef(m.Script); err != nil {
			return fmt.Errorf("plugin %s: %w", m.ID, err)
		}
	}

	for nodeID, spec := range m.Nodes {
		if err := validation.ValidatePluginID(nodeID); err != nil {
			return fmt.Errorf("plugin %s: %w", m.ID, err)
		}
		if spec.DisplayName == "" {
			return fmt.Errorf("plugin %s node %s has no display name", m.ID, nodeID)
		}
		if spec.Script == "" && m.Script == "" {
			return fmt.Errorf("plugin %s node %s has no script", m.ID, nodeID)
		}
		if spec.Script != "" {
			if err := validateScriptRef(spec.Script); err != nil {
				return fmt.Errorf("plugin %s node %s: %w", m.ID, nodeID, err)
			}
		}
		if _, err := spec.Input.portType(); err != nil {
			return fmt.Errorf("plugin %s node %s input: %w", m.ID, nodeID, err)
		}
		for name, out := range spec.Outputs {
			if name == "" {
				return fmt.Errorf("plugin %s node %s has an unnamed output", m.ID, nodeID)
			}
			if _, err := out.portType(); err != nil {
				return fmt.Errorf("plugin %s node %s output %s: %w", m.ID, nodeID, name, err)
			}
		}
	}
	return nil
}

// Tag returns the kind tag a node of this plugin instantiates under.
func (m Manifest) Tag(nodeID string) string {
	return m.ID + ":" + nodeID
}

// scriptFor resolves the script a node runs, relative to the plugin dir.
func (m Manifest) scriptFor(nodeID string) (string, bool) {
	spec, ok := m.Nodes[nodeID]
	if !ok {
		return "", false
	}
	if spec.Script != "" {
		return spec.Script, true
	}
	if m.Script != "" {
		return m.Script, true
	}
	return "", false
}

// validateScriptRef rejects script references that would escape the plugin
// directory.
func validateScriptRef(script string) error {
	if err := validation.ValidatePath(script, nil); err != nil {
		return fmt.Errorf("script %q: %w", script, err)
	}
	return nil
}

func (p PortSpec) portType() (graph.PortType, error) {
	family := graph.Family(p.Family)
	switch family {
	case "":
		family = graph.FamilyInet
	case graph.FamilyInet, graph.FamilyIPv4, graph.FamilyIPv6:
	default:
		return graph.PortType{}, fmt.Errorf("unknown family %q", p.Family)
	}

	direction := graph.Direction(p.Direction)
	switch direction {
	case "":
		direction = graph.DirEither
	case graph.DirEither, graph.DirIncoming, graph.DirOutgoing:
	default:
		return graph.PortType{}, fmt.Errorf("unknown direction %q", p.Direction)
	}

	return graph.PortType{Family: family, Direction: direction}, nil
}
