package cmd

import (
	"context"
	"fmt"
	"os"
)

// RunExport compiles the project into a ruleset document. The JSON goes to
// stdout (or outFile); skip and failure reporting goes to stderr so piping
// the document stays clean. Plugin-reported custom data is folded back into
// the project file after a successful compile.
func RunExport(projectPath, outFile, table, family string) error {
	p, err := openProject(projectPath)
	if err != nil {
		return err
	}

	res, err := compile(context.Background(), p, table, family)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	rendered, err := res.Doc.Render()
	if err != nil {
		return fmt.Errorf("rendering ruleset: %w", err)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, append(rendered, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outFile, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s: table %s, %d object(s) from %d path(s)\n",
			outFile, res.Table, len(res.Doc.Objects), res.Lowered)
	} else {
		fmt.Println(string(rendered))
	}

	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "unresolved: node %s (%s): %v\n", shortUID(f.Node), f.Kind, f.Err)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(os.Stderr, "skipped: node %s (%s): %v\n", shortUID(s.Node), s.Kind, s.Err)
	}

	// Scripts may have computed fresh per-node state during this compile;
	// persist it so the next editing session starts from it.
	if updated := p.ApplyCustomData(res.CustomData); updated > 0 {
		if err := p.Save(); err != nil {
			return fmt.Errorf("saving plugin data: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Updated plugin data on %d node(s)\n", updated)
	}

	return nil
}
