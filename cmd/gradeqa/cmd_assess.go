package main

import (
	"github.com/spf13/cobra"
)

var assessFlags struct {
	fixture string
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run the full offline pipeline on a fixture",
	Long:  "assess runs the readiness gate, the input selector, the decision validator\nand the confidence synthesizer on one fixture and prints every record.",
	RunE:  runAssess,
}

func init() {
	f := assessCmd.Flags()
	f.StringVarP(&assessFlags.fixture, "fixture", "f", "", "Fixture YAML path (required)")
	_ = assessCmd.MarkFlagRequired("fixture")
}

func runAssess(cmd *cobra.Command, _ []string) error {
	fixture, err := loadFixture(assessFlags.fixture)
	if err != nil {
		return err
	}
	result, err := assess(fixture, pipelineConfig)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
