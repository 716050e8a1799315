package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

var readinessFlags struct {
	fixture string
}

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Run the extraction readiness gate on a fixture",
	RunE:  runReadiness,
}

func init() {
	f := readinessCmd.Flags()
	f.StringVarP(&readinessFlags.fixture, "fixture", "f", "", "Fixture YAML path (required)")
	_ = readinessCmd.MarkFlagRequired("fixture")
}

func runReadiness(cmd *cobra.Command, _ []string) error {
	fixture, err := loadFixture(readinessFlags.fixture)
	if err != nil {
		return err
	}
	report := grading.EvaluateReadiness(fixture.metrics(), fixture.SubmissionStatus, pipelineConfig.Readiness)
	return writeJSON(cmd.OutOrStdout(), report)
}
