package cmd

import (
	"fmt"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/project"
)

// RunNew creates a project directory with a seeded graph.
func RunNew(dir string) error {
	if dir == "" {
		dir = "."
	}
	p, err := project.New(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", p.Path)
	fmt.Printf("Plugin directory: %s\n", p.PluginDir())
	fmt.Printf("Seeded nodes: %d (source, localhost)\n", p.Graph.NodeCount())
	fmt.Printf("\nNext: add nodes and connections, then run `%s export`.\n", brand.BinaryName)
	return nil
}
