// gradeqa runs the grading quality-assurance pipeline offline against YAML
// fixtures so thresholds can be tuned without calling a model.
//
// Usage:
//
//	gradeqa readiness -f <fixture.yaml>
//	gradeqa validate -a <answer.json> -c P1,P2,M1
//	gradeqa assess -f <fixture.yaml>
//	gradeqa batch <dir> [--workers=4]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grading-go/internal/config"
	"github.com/noah-isme/gema-grading-go/internal/grading"
)

// version is set at build time via -ldflags.
var version = "dev"

// pipelineConfig is loaded once per invocation from the same GEMA_GRADING_*
// settings the API uses.
var pipelineConfig grading.Config

var rootCmd = &cobra.Command{
	Use:           "gradeqa",
	Short:         "Offline grading quality-assurance runner",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadGrading()
		if err != nil {
			return err
		}
		pipelineConfig = cfg
		return nil
	},
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(readinessCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
