package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
)

// RunDiff compiles the project and compares the result against a previously
// exported ruleset file. A non-empty diff is reported and returned as an
// error so scripts can use the exit code to detect drift.
func RunDiff(projectPath, rulesetFile string) error {
	p, err := openProject(projectPath)
	if err != nil {
		return err
	}

	res, err := compile(context.Background(), p, "", "")
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}
	rendered, err := res.Doc.Render()
	if err != nil {
		return fmt.Errorf("rendering ruleset: %w", err)
	}
	current := string(rendered) + "\n"

	saved, err := os.ReadFile(rulesetFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rulesetFile, err)
	}

	if string(saved) == current {
		fmt.Println("No changes detected.")
		return nil
	}

	fmt.Printf("Compiled ruleset differs from %s:\n", rulesetFile)

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(saved)),
		B:        difflib.SplitLines(current),
		FromFile: rulesetFile,
		ToFile:   "compiled",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	fmt.Print(text)

	return fmt.Errorf("ruleset differs")
}
