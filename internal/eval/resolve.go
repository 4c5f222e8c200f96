package eval

import (
	"context"
	"errors"

	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/metrics"
	"grimm.is/nftgraph/internal/predicate"
)

// TerminalPath is one finished condition path, attributed to the terminal
// node that produced it.
type TerminalPath struct {
	Node graph.NodeID
	UID  string
	Kind string
	Path predicate.Path
}

// Failure records a node whose resolution failed. Paths flowing through a
// failed node are dropped; the rest of the graph still resolves.
type Failure struct {
	Node string // UID
	Kind string
	Err  *Error
}

// Resolver walks the graph backward from each node and computes its
// per-branch condition paths, memoized per node. A resolver is built for one
// collection run against a graph that does not change underneath it; build a
// fresh one per export.
type Resolver struct {
	g  *graph.Graph
	ev *Evaluator

	memo   map[graph.NodeID]predicate.NodeOutputs
	failed map[graph.NodeID]*Error

	failures []Failure
	custom   map[string]map[string]string

	hub *events.Hub
	log *logging.Logger
}

// NewResolver returns a resolver over g using ev for node evaluation.
func NewResolver(g *graph.Graph, ev *Evaluator) *Resolver {
	return &Resolver{
		g:      g,
		ev:     ev,
		memo:   make(map[graph.NodeID]predicate.NodeOutputs),
		failed: make(map[graph.NodeID]*Error),
		custom: make(map[string]map[string]string),
		log:    logging.WithComponent("eval"),
	}
}

// SetEventHub attaches an event hub; nil disables publishing.
func (r *Resolver) SetEventHub(hub *events.Hub) {
	r.hub = hub
}

// frame is one entry of the resolution work stack. A node is pushed
// unexpanded, its senders are pushed on top, and when it surfaces again
// (expanded) every dependency has been resolved or failed.
type frame struct {
	id       graph.NodeID
	expanded bool
}

// Resolve computes (or returns the memoized) per-branch outputs of one node.
// Dependencies resolve before the node itself, iteratively with an explicit
// work stack. A failed sender contributes no paths; the failure itself is
// recorded once, when the failing node is computed. Context cancellation
// aborts the whole walk.
func (r *Resolver) Resolve(ctx context.Context, id graph.NodeID) (predicate.NodeOutputs, error) {
	if out, ok := r.memo[id]; ok {
		return out, nil
	}
	if err, ok := r.failed[id]; ok {
		return nil, err
	}

	visiting := make(map[graph.NodeID]bool)
	stack := []frame{{id: id}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := &stack[len(stack)-1]

		if _, done := r.memo[f.id]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		if _, done := r.failed[f.id]; done {
			stack = stack[:len(stack)-1]
			continue
		}

		if !f.expanded {
			f.expanded = true
			visiting[f.id] = true
			for _, sender := range r.senders(f.id) {
				if _, ok := r.memo[sender]; ok {
					continue
				}
				if _, ok := r.failed[sender]; ok {
					continue
				}
				if visiting[sender] {
					// The cycle guard should make this unreachable, but a
					// hand-edited project file could smuggle a loop in.
					r.fail(sender, NewError(CodeCycle, "node depends on itself"))
					continue
				}
				stack = append(stack, frame{id: sender})
			}
			continue
		}

		r.compute(ctx, f.id)
		delete(visiting, f.id)
		stack = stack[:len(stack)-1]
	}

	if out, ok := r.memo[id]; ok {
		return out, nil
	}
	if e, ok := r.failed[id]; ok {
		return nil, e
	}
	return nil, NewError(CodeNotFound, "node not resolved")
}

// senders returns the nodes wired into id's first input port, in
// deterministic order. Extra input ports do not drive resolution.
func (r *Resolver) senders(id graph.NodeID) []graph.NodeID {
	node, ok := r.g.Node(id)
	if !ok || len(node.Inputs) == 0 {
		return nil
	}
	var out []graph.NodeID
	seen := make(map[graph.NodeID]bool)
	for _, outID := range r.g.ConnectionsTo(node.Inputs[0]) {
		port, ok := r.g.Output(outID)
		if !ok {
			continue
		}
		if !seen[port.Node] {
			seen[port.Node] = true
			out = append(out, port.Node)
		}
	}
	return out
}

// compute evaluates one node whose dependencies are all settled and stores
// the result in the success or failure memo.
func (r *Resolver) compute(ctx context.Context, id graph.NodeID) {
	node, ok := r.g.Node(id)
	if !ok {
		r.fail(id, NewError(CodeNotFound, "node vanished during resolution"))
		return
	}

	var incoming []predicate.Path
	if len(node.Inputs) == 0 {
		// Path root: one empty path to extend.
		incoming = []predicate.Path{{}}
	} else {
		for _, outID := range r.g.ConnectionsTo(node.Inputs[0]) {
			port, ok := r.g.Output(outID)
			if !ok {
				continue
			}
			senderOut, ok := r.memo[port.Node]
			if !ok {
				// Failed sender: its paths are gone, the rest continue.
				continue
			}
			incoming = append(incoming, senderOut[port.Name]...)
		}
	}

	var branches []string
	for _, outID := range node.Outputs {
		if port, ok := r.g.Output(outID); ok {
			branches = append(branches, port.Name)
		}
	}

	outputs, customData, err := r.ev.NodeOutputs(ctx, incoming, node, branches)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			e = NewErrorf(CodeConfiguration, "%v", err).WithNode(node.UID).WithCause(err)
		}
		r.failWithNode(id, node, e)
		return
	}

	if customData != nil {
		r.custom[node.UID] = customData
	}
	r.memo[id] = outputs
	metrics.Get().NodesResolved.WithLabelValues(node.Kind.Tag).Inc()
}

func (r *Resolver) fail(id graph.NodeID, e *Error) {
	node, ok := r.g.Node(id)
	if !ok {
		r.failed[id] = e
		r.failures = append(r.failures, Failure{Err: e})
		return
	}
	r.failWithNode(id, node, e)
}

func (r *Resolver) failWithNode(id graph.NodeID, node *graph.Node, e *Error) {
	if e.Node == "" {
		e.Node = node.UID
	}
	r.failed[id] = e
	r.failures = append(r.failures, Failure{Node: node.UID, Kind: node.Kind.Tag, Err: e})
	metrics.Get().ResolveFailures.WithLabelValues(e.Code).Inc()
	if r.hub != nil {
		r.hub.Publish(events.Event{
			Type:   events.EventPathSkipped,
			Source: "eval",
			Data:   events.PathSkipData{Node: node.UID, Reason: e.Code},
		})
	}
	r.log.Warn("node resolution failed", "node", node.UID, "kind", node.Kind.Tag, "code", e.Code, "error", e.Message)
}

// CollectTerminalPaths resolves every node in the graph, disconnected ones
// included, then flattens the memoized "terminal" groups of all terminal
// nodes in graph order. Per-node failures are recorded and skipped; only
// context cancellation aborts.
func (r *Resolver) CollectTerminalPaths(ctx context.Context) ([]TerminalPath, error) {
	var walkErr error
	r.g.ForEachNode(func(n *graph.Node) bool {
		if _, err := r.Resolve(ctx, n.ID); err != nil {
			if ctx.Err() != nil {
				walkErr = err
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	var paths []TerminalPath
	r.g.ForEachNode(func(n *graph.Node) bool {
		if len(n.Outputs) != 0 {
			return true
		}
		outputs, ok := r.memo[n.ID]
		if !ok {
			return true
		}
		for _, p := range outputs[TerminalBranch] {
			paths = append(paths, TerminalPath{Node: n.ID, UID: n.UID, Kind: n.Kind.Tag, Path: p})
		}
		return true
	})

	metrics.Get().TerminalPaths.Add(float64(len(paths)))
	if r.hub != nil {
		r.hub.Publish(events.Event{
			Type:   events.EventPathsCollected,
			Source: "eval",
			Data:   events.CollectData{Paths: len(paths), Skipped: len(r.failures)},
		})
	}
	r.log.Debug("terminal paths collected", "paths", len(paths), "failed_nodes", len(r.failures))
	return paths, nil
}

// Failures lists the nodes that failed during resolution, in the order the
// failures were recorded.
func (r *Resolver) Failures() []Failure {
	return r.failures
}

// CustomData returns the per-node custom data plugins reported during
// resolution, keyed by node UID. Callers persist it as node params.
func (r *Resolver) CustomData() map[string]map[string]string {
	return r.custom
}
