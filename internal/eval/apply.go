package eval

import (
	"context"

	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/predicate"
)

// TerminalBranch is the synthetic branch name used for nodes with no output
// ports. Their single output group holds the finished condition paths.
const TerminalBranch = "terminal"

// CustomEvaluator evaluates a custom node by running its plugin script.
// The returned path replaces the input path outright; custom data is the
// script's opaque state, persisted as the node's editable params.
type CustomEvaluator interface {
	EvaluateCustom(ctx context.Context, pluginID, nodeID string, path predicate.Path, branch string) (predicate.Path, map[string]string, error)
}

// Evaluator appends predicates to condition paths, one node at a time.
// Built-in kinds are handled inline; custom kinds delegate to the plugin
// bridge. A nil bridge makes every custom node fail with a plugin error.
type Evaluator struct {
	custom CustomEvaluator
	log    *logging.Logger
}

// NewEvaluator returns an evaluator. custom may be nil when the caller has
// no plugin support.
func NewEvaluator(custom CustomEvaluator) *Evaluator {
	return &Evaluator{
		custom: custom,
		log:    logging.WithComponent("eval"),
	}
}

// Apply extends a copy of path with the predicate node contributes on the
// given branch. The input path is never mutated; shared prefixes between
// sibling branches stay intact. Custom kinds return the plugin's path
// verbatim together with its custom data; built-ins return a nil map.
func (e *Evaluator) Apply(ctx context.Context, path predicate.Path, node *graph.Node, branch string) (predicate.Path, map[string]string, error) {
	kind := node.Kind

	if kind.IsCustom() {
		pluginID, nodeType, ok := kind.PluginRef()
		if !ok {
			return nil, nil, NewErrorf(CodeUnknownNodeKind, "malformed custom kind tag %q", kind.Tag).WithNode(node.UID)
		}
		if e.custom == nil {
			return nil, nil, NewErrorf(CodePlugin, "no plugin bridge configured for kind %q", kind.Tag).WithNode(node.UID)
		}
		out, data, err := e.custom.EvaluateCustom(ctx, pluginID, nodeType, path, branch)
		if err != nil {
			if IsCode(err, CodePlugin) {
				return nil, nil, err
			}
			return nil, nil, NewErrorf(CodePlugin, "plugin %s failed: %v", pluginID, err).WithNode(node.UID).WithCause(err)
		}
		return out, data, nil
	}

	switch kind.Tag {
	case graph.KindSource:
		// The path root: whatever came in is discarded.
		return predicate.Path{predicate.New(kind.Tag, nil)}, nil, nil

	case graph.KindLocalhost, graph.KindDrop, graph.KindAccept:
		return path.Append(predicate.New(kind.Tag, nil)), nil, nil

	case graph.KindFamilySplitter:
		if branch != graph.BranchIPv4 && branch != graph.BranchIPv6 {
			return nil, nil, NewErrorf(CodeUnknownBranch, "splitter has no branch %q", branch).WithNode(node.UID)
		}
		return path.Append(predicate.New(kind.Tag, map[string]string{"family": branch})), nil, nil

	case graph.KindSourceNAT, graph.KindDestNAT:
		if kind.Value == "" {
			return nil, nil, NewErrorf(CodeConfiguration, "%s has no target address", kind.Tag).WithNode(node.UID)
		}
		return path.Append(predicate.New(kind.Tag, map[string]string{"addr": kind.Value})), nil, nil

	case graph.KindSourceAddrFilter, graph.KindDestAddrFilter,
		graph.KindSourcePortFilter, graph.KindDestPortFilter,
		graph.KindProtocolFilter, graph.KindInterfaceFilter,
		graph.KindFileIPList:
		if kind.Value == "" {
			return nil, nil, NewErrorf(CodeConfiguration, "%s has no configured value", kind.Tag).WithNode(node.UID)
		}
		if branch != graph.BranchMatch && branch != graph.BranchNonMatch {
			return nil, nil, NewErrorf(CodeUnknownBranch, "%s has no branch %q", kind.Tag, branch).WithNode(node.UID)
		}
		return path.Append(predicate.New(kind.Tag, map[string]string{
			"value": kind.Value,
			"rule":  branch,
		})), nil, nil
	}

	return nil, nil, NewErrorf(CodeUnknownNodeKind, "unknown node kind %q", kind.Tag).WithNode(node.UID)
}

// NodeOutputs evaluates every (branch, incoming path) pair and groups the
// results by branch: K branches over N incoming paths yield K groups of N
// paths each. An empty branch list means the node is terminal and the
// synthetic "terminal" branch is used. The second return value carries the
// last custom data a plugin reported for this node, nil for built-ins.
func (e *Evaluator) NodeOutputs(ctx context.Context, incoming []predicate.Path, node *graph.Node, branches []string) (predicate.NodeOutputs, map[string]string, error) {
	if len(branches) == 0 {
		branches = []string{TerminalBranch}
	}

	out := make(predicate.NodeOutputs, len(branches))
	var custom map[string]string
	for _, branch := range branches {
		group := make([]predicate.Path, 0, len(incoming))
		for _, in := range incoming {
			p, data, err := e.Apply(ctx, in, node, branch)
			if err != nil {
				return nil, nil, err
			}
			if data != nil {
				custom = data
			}
			group = append(group, p)
		}
		out[branch] = group
	}
	return out, custom, nil
}
