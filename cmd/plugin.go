package cmd

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"grimm.is/nftgraph/internal/brand"
)

// RunPlugin handles the plugin subcommands: import and list.
func RunPlugin(args []string) error {
	if len(args) < 1 {
		printPluginUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "import":
		return runPluginImport(args[1:])
	case "list":
		return runPluginList(args[1:])
	case "help":
		printPluginUsage()
		return nil
	default:
		fmt.Printf("Unknown plugin command: %s\n\n", args[0])
		printPluginUsage()
		os.Exit(1)
	}
	return nil
}

func runPluginImport(args []string) error {
	flags := flag.NewFlagSet("plugin import", flag.ExitOnError)
	projectArg := flags.String("project", "", "Project file or directory")
	flags.StringVar(projectArg, "p", "", "Project file or directory (short)")
	flags.Parse(args)

	if flags.NArg() < 1 {
		return fmt.Errorf("usage: %s plugin import [-project <path>] <plugin-dir>", brand.BinaryName)
	}
	srcDir := flags.Arg(0)

	p, err := openProject(*projectArg)
	if err != nil {
		return err
	}

	m, err := p.Plugins.Import(srcDir)
	if err != nil {
		return fmt.Errorf("importing %s: %w", srcDir, err)
	}
	// Record the plugin in the project document.
	if err := p.Save(); err != nil {
		return err
	}

	fmt.Printf("Imported plugin %s (%d node kind(s)):\n", m.ID, len(m.Nodes))
	ids := make([]string, 0, len(m.Nodes))
	for nodeID := range m.Nodes {
		ids = append(ids, nodeID)
	}
	sort.Strings(ids)
	for _, nodeID := range ids {
		fmt.Printf("  %s\t%s\n", m.Tag(nodeID), m.Nodes[nodeID].DisplayName)
	}
	return nil
}

func runPluginList(args []string) error {
	flags := flag.NewFlagSet("plugin list", flag.ExitOnError)
	projectArg := flags.String("project", "", "Project file or directory")
	flags.StringVar(projectArg, "p", "", "Project file or directory (short)")
	flags.Parse(args)

	p, err := openProject(*projectArg)
	if err != nil {
		return err
	}

	plugins := p.Plugins.Plugins()
	if len(plugins) == 0 {
		fmt.Println("No plugins imported")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PLUGIN\tNODE\tDISPLAY NAME\tSCRIPT")
	for _, m := range plugins {
		ids := make([]string, 0, len(m.Nodes))
		for nodeID := range m.Nodes {
			ids = append(ids, nodeID)
		}
		sort.Strings(ids)
		for _, nodeID := range ids {
			script, err := p.Plugins.ScriptPath(m.ID, nodeID)
			if err != nil {
				script = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, nodeID, m.Nodes[nodeID].DisplayName, script)
		}
	}
	w.Flush()
	return nil
}

func printPluginUsage() {
	fmt.Printf(`Usage: %s plugin <command> [options]

Commands:
  import <dir>   Copy a plugin (manifest.json + scripts) into the project
                 Options: --project (-p) <path>
  list           List imported plugins and their node kinds
                 Options: --project (-p) <path>
`, brand.BinaryName)
}
