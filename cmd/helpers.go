// Package cmd implements the CLI verbs. Each RunX function is the body of
// one verb; main parses flags and dispatches.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/nft"
	"grimm.is/nftgraph/internal/plugin"
	"grimm.is/nftgraph/internal/project"
)

// SetupLogging configures the default logger from the environment:
// <PREFIX>_LOG_LEVEL selects the level, <PREFIX>_LOG_FORMAT=json switches to
// JSON output. Unset means info-level console logging on stderr.
func SetupLogging() {
	cfg := logging.DefaultConfig()

	raw := strings.ToLower(os.Getenv(brand.ConfigEnvPrefix + "_LOG_LEVEL"))
	badLevel := ""
	switch raw {
	case "debug":
		cfg.Level = logging.LevelDebug
	case "warn":
		cfg.Level = logging.LevelWarn
	case "error":
		cfg.Level = logging.LevelError
	case "", "info":
	default:
		badLevel = raw
	}
	if strings.EqualFold(os.Getenv(brand.ConfigEnvPrefix+"_LOG_FORMAT"), "json") {
		cfg.JSON = true
	}

	logging.SetDefault(logging.New(cfg))
	if badLevel != "" {
		logging.Warn("unknown log level in environment", "value", badLevel)
	}
}

// resolveProjectPath turns the verb's positional argument into a project
// file path. Empty means the project in the current directory; a directory
// means the project file inside it.
func resolveProjectPath(arg string) string {
	if arg == "" {
		return brand.ProjectFileName
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return arg + string(os.PathSeparator) + brand.ProjectFileName
	}
	return arg
}

func openProject(arg string) (*project.Project, error) {
	path := resolveProjectPath(arg)
	p, err := project.Load(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return p, nil
}

// newCompileHub wires an event hub whose traffic lands in the debug log, so
// -v runs and NFTGRAPH_LOG_LEVEL=debug show the engine's progress.
func newCompileHub() *events.Hub {
	hub := events.NewHub()
	ch := hub.Subscribe(64)
	go func() {
		log := logging.WithComponent("cli")
		for e := range ch {
			log.Debug("event", "type", string(e.Type), "source", e.Source)
		}
	}()
	return hub
}

// compile runs the full pipeline over a loaded project: plugin bridge,
// evaluator, resolver, lowering, document assembly. Table and family
// override the project settings when non-empty.
func compile(ctx context.Context, p *project.Project, table, family string) (*nft.Result, error) {
	if table == "" {
		table = p.Settings.Table
	}
	if family == "" {
		family = p.Settings.Family
	}

	hub := newCompileHub()
	bridge := plugin.NewBridge(p.Plugins, plugin.Timeout(p.Settings.Timeout()))
	bridge.SetEventHub(hub)
	evaluator := eval.NewEvaluator(bridge)

	return nft.Export(ctx, p.Graph, evaluator, nft.Options{
		Table:  table,
		Family: family,
		Hub:    hub,
	})
}

// shortUID trims a node UID for table output; full UIDs live in the
// project file.
func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}
