package nft

import (
	"context"
	"errors"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/metrics"
)

// Options configures one export run. Zero values fall back to the branded
// defaults.
type Options struct {
	Table  string
	Family string
	Hub    *events.Hub
}

func (o *Options) withDefaults() {
	if o.Table == "" {
		o.Table = brand.DefaultTable
	}
	if o.Family == "" {
		o.Family = brand.DefaultFamily
	}
}

// Skip records one terminal path whose lowering failed.
type Skip struct {
	Node string // UID of the terminal node
	Kind string
	Err  *eval.Error
}

// Result is the outcome of an export: the document plus everything that did
// not make it in.
type Result struct {
	Doc     Document
	Table   string
	Family  string
	Paths   int    // terminal paths collected
	Lowered int    // paths that produced objects
	Skipped []Skip // lowering failures, path-isolated

	// Failures are nodes that never resolved; their paths were dropped
	// before lowering started.
	Failures []eval.Failure

	// CustomData is per-node plugin state gathered during resolution,
	// keyed by node UID, for the caller to persist.
	CustomData map[string]map[string]string
}

// Export compiles the whole graph into a ruleset document. Every terminal
// path lowers independently: one path failing, whether during resolution or
// lowering, never suppresses the others. Only context cancellation aborts.
func Export(ctx context.Context, g *graph.Graph, ev *eval.Evaluator, opts Options) (*Result, error) {
	opts.withDefaults()
	log := logging.WithComponent("nft")

	resolver := eval.NewResolver(g, ev)
	resolver.SetEventHub(opts.Hub)

	paths, err := resolver.CollectTerminalPaths(ctx)
	if err != nil {
		metrics.Get().RecordExport(0, err)
		return nil, err
	}

	res := &Result{
		Table:      opts.Table,
		Family:     opts.Family,
		Paths:      len(paths),
		Failures:   resolver.Failures(),
		CustomData: resolver.CustomData(),
	}

	res.Doc.Append(
		Object{Metainfo: &Metainfo{Version: brand.Version, JSONSchemaVersion: 1}},
		Object{Table: &Table{Family: opts.Family, Name: opts.Table}},
	)

	lowerer := NewLowerer(opts.Table, opts.Family)
	for _, tp := range paths {
		objs, err := lowerer.LowerPath(tp.Path)
		if err != nil {
			var e *eval.Error
			errors.As(err, &e)
			res.Skipped = append(res.Skipped, Skip{Node: tp.UID, Kind: tp.Kind, Err: e})
			if opts.Hub != nil {
				opts.Hub.Publish(events.Event{
					Type:   events.EventPathSkipped,
					Source: "nft",
					Data:   events.PathSkipData{Node: tp.UID, Reason: eval.CodeOf(err)},
				})
			}
			log.Warn("path lowering failed", "node", tp.UID, "code", eval.CodeOf(err), "error", err.Error())
			continue
		}
		res.Doc.Append(objs...)
		res.Lowered++
	}

	metrics.Get().RecordExport(len(res.Skipped), nil)
	if opts.Hub != nil {
		opts.Hub.EmitExportDone(opts.Table, len(res.Doc.Objects), len(res.Skipped))
	}
	log.Info("export complete",
		"table", opts.Table,
		"paths", res.Paths,
		"lowered", res.Lowered,
		"skipped", len(res.Skipped),
		"objects", len(res.Doc.Objects))
	return res, nil
}
