package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/nftgraph/cmd"
	"grimm.is/nftgraph/internal/brand"
)

func main() {
	cmd.SetupLogging()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "new":
		newFlags := flag.NewFlagSet("new", flag.ExitOnError)
		newFlags.Parse(os.Args[2:])

		dir := "."
		if len(newFlags.Args()) > 0 {
			dir = newFlags.Arg(0)
		}
		if err := cmd.RunNew(dir); err != nil {
			fmt.Fprintf(os.Stderr, "New failed: %v\n", err)
			os.Exit(1)
		}

	case "show":
		showFlags := flag.NewFlagSet("show", flag.ExitOnError)
		templates := showFlags.Bool("templates", false, "List available node kinds instead of the graph")
		showFlags.BoolVar(templates, "t", false, "List available node kinds (short)")
		showFlags.Parse(os.Args[2:])

		var projectArg string
		if len(showFlags.Args()) > 0 {
			projectArg = showFlags.Arg(0)
		}
		if err := cmd.RunShow(projectArg, *templates); err != nil {
			fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Also dry-run the compile and print summaries")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		var projectArg string
		if len(checkFlags.Args()) > 0 {
			projectArg = checkFlags.Arg(0)
		}
		if err := cmd.RunCheck(projectArg, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "paths":
		pathsFlags := flag.NewFlagSet("paths", flag.ExitOnError)
		jsonOut := pathsFlags.Bool("json", false, "Print paths as JSON")
		pathsFlags.BoolVar(jsonOut, "j", false, "Print paths as JSON (short)")
		pathsFlags.Parse(os.Args[2:])

		var projectArg string
		if len(pathsFlags.Args()) > 0 {
			projectArg = pathsFlags.Arg(0)
		}
		if err := cmd.RunPaths(projectArg, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "Paths failed: %v\n", err)
			os.Exit(1)
		}

	case "export":
		exportFlags := flag.NewFlagSet("export", flag.ExitOnError)
		outFile := exportFlags.String("output", "", "Write the ruleset to a file instead of stdout")
		exportFlags.StringVar(outFile, "o", "", "Output file (short)")

		table := exportFlags.String("table", "", "Override the table name from project settings")
		family := exportFlags.String("family", "", "Override the table family from project settings")

		exportFlags.Parse(os.Args[2:])

		var projectArg string
		if len(exportFlags.Args()) > 0 {
			projectArg = exportFlags.Arg(0)
		}
		if err := cmd.RunExport(projectArg, *outFile, *table, *family); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}

	case "diff":
		diffFlags := flag.NewFlagSet("diff", flag.ExitOnError)
		projectArg := diffFlags.String("project", "", "Project file or directory")
		diffFlags.StringVar(projectArg, "p", "", "Project file or directory (short)")
		diffFlags.Parse(os.Args[2:])

		if diffFlags.NArg() < 1 {
			fmt.Println("Usage: " + brand.BinaryName + " diff [-project <path>] <ruleset.json>")
			os.Exit(1)
		}
		if err := cmd.RunDiff(*projectArg, diffFlags.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "plugin":
		if err := cmd.RunPlugin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Plugin failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)
		fmt.Printf("Build: %s\n", brand.BuildTime)

	case "help", "-h", "--help":
		if len(os.Args) > 2 && os.Args[2] == "plugin" {
			cmd.RunPlugin([]string{"help"})
		} else {
			printUsage()
		}

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options] [project]

The project argument is a %s file or a directory containing one;
it defaults to the current directory.

Commands:
  new       Create a project with the seeded source and localhost nodes
  show      Print the graph: nodes, connections, settings
            Options: --templates (-t) lists available node kinds
  check     Validate the project (cycles, dangling edges, missing values,
            plugin scripts)
            Options: --verbose (-v) also dry-runs the compile
  paths     Print the terminal condition paths the graph produces
            Options: --json (-j)
  export    Compile the graph into an nftables JSON ruleset
            Options: --output (-o) <file>, --table <name>, --family <name>
  diff      Compare the compiled ruleset against an exported file
            Options: --project (-p) <path>
  plugin    Manage plugins
            Subcommands: import <dir>, list
  version   Print version information

Environment:
  %s_LOG_LEVEL    debug, info, warn, error (default info)
  %s_LOG_FORMAT   json for structured output
  %s_PLUGIN_TIMEOUT  per-script timeout override (e.g. 30s)

Examples:
  %s new firewall/
  %s show firewall/
  %s check -v firewall/
  %s export -o ruleset.json firewall/
  %s diff -p firewall/ ruleset.json
  %s plugin import -p firewall/ ./geoip-plugin/
`,
		brand.Name, brand.Description,
		brand.BinaryName,
		brand.ProjectFileName,
		brand.ConfigEnvPrefix, brand.ConfigEnvPrefix, brand.ConfigEnvPrefix,
		brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName,
		brand.BinaryName, brand.BinaryName)
}
