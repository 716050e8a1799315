package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var batchFlags struct {
	workers int
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Assess every fixture in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchFlags.workers, "workers", 4, "Fixtures assessed concurrently")
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := fixturePaths(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no fixtures found in %s", args[0])
	}

	results := make([]Assessment, len(paths))
	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, batchFlags.workers))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			fixture, err := loadFixture(path)
			if err != nil {
				return err
			}
			result, err := assess(fixture, pipelineConfig)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Outcome]++
		fmt.Fprintln(out, summaryLine(r))
	}
	fmt.Fprintf(out, "total=%d accepted=%d rejected=%d blocked=%d no_answer=%d\n",
		len(results), counts[outcomeAccepted], counts[outcomeRejected], counts[outcomeBlocked], counts[outcomeNoAnswer])
	return nil
}

func fixturePaths(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

func summaryLine(r Assessment) string {
	fields := []string{r.Name, r.Outcome}
	if r.Input != nil {
		fields = append(fields, "mode="+string(r.Input.Mode))
	}
	switch r.Outcome {
	case outcomeBlocked:
		fields = append(fields, fmt.Sprintf("blockers=%d", len(r.Readiness.Blockers)))
	case outcomeRejected:
		fields = append(fields, fmt.Sprintf("errors=%d", len(r.Validation.Errors)))
	case outcomeAccepted:
		fields = append(fields,
			"grade="+string(r.Validation.Data.OverallGrade),
			fmt.Sprintf("confidence=%.2f", r.Confidence.FinalConfidence),
		)
		if caps := r.Confidence.CapNames(); len(caps) > 0 {
			fields = append(fields, "caps="+strings.Join(caps, ","))
		}
	}
	return strings.Join(fields, " ")
}
