package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/plugin"
	"grimm.is/nftgraph/internal/predicate"
)

// RunPaths prints every terminal condition path the graph produces, one
// predicate per line, plus the nodes that failed to resolve. This is the
// debugging view between the graph and the ruleset.
func RunPaths(projectPath string, jsonOut bool) error {
	p, err := openProject(projectPath)
	if err != nil {
		return err
	}

	bridge := plugin.NewBridge(p.Plugins, plugin.Timeout(p.Settings.Timeout()))
	resolver := eval.NewResolver(p.Graph, eval.NewEvaluator(bridge))

	paths, err := resolver.CollectTerminalPaths(context.Background())
	if err != nil {
		return err
	}
	failures := resolver.Failures()

	if jsonOut {
		return printPathsJSON(paths, failures)
	}

	fmt.Printf("Terminal paths: %d\n", len(paths))
	for i, tp := range paths {
		fmt.Printf("\n[%d] %s (node %s, path %s), %d predicate(s):\n",
			i+1, tp.Kind, shortUID(tp.UID), predicate.ShortHash(tp.Path), len(tp.Path))
		for _, pr := range tp.Path {
			if len(pr.Params) == 0 {
				fmt.Printf("    %s\n", pr.Variant)
				continue
			}
			fmt.Printf("    %s %s\n", pr.Variant, formatParams(pr.Params))
		}
	}

	if len(failures) > 0 {
		fmt.Printf("\nUnresolved nodes: %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s (%s): %v\n", shortUID(f.Node), f.Kind, f.Err)
		}
	}
	return nil
}

func printPathsJSON(paths []eval.TerminalPath, failures []eval.Failure) error {
	type pathDoc struct {
		Node string         `json:"node"`
		Kind string         `json:"kind"`
		Path predicate.Path `json:"path"`
	}
	type failureDoc struct {
		Node  string `json:"node"`
		Kind  string `json:"kind"`
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	doc := struct {
		Paths    []pathDoc    `json:"paths"`
		Failures []failureDoc `json:"failures,omitempty"`
	}{Paths: make([]pathDoc, 0, len(paths))}

	for _, tp := range paths {
		doc.Paths = append(doc.Paths, pathDoc{Node: tp.UID, Kind: tp.Kind, Path: tp.Path})
	}
	for _, f := range failures {
		doc.Failures = append(doc.Failures, failureDoc{
			Node:  f.Node,
			Kind:  f.Kind,
			Code:  f.Err.Code,
			Error: f.Err.Error(),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
