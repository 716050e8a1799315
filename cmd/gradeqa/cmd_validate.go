package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

var validateFlags struct {
	answer string
	codes  string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a model answer against a criteria set",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVarP(&validateFlags.answer, "answer", "a", "", "Model answer JSON path (required)")
	f.StringVarP(&validateFlags.codes, "codes", "c", "", "Comma separated criteria codes, e.g. P1,P2,M1 (required)")
	_ = validateCmd.MarkFlagRequired("answer")
	_ = validateCmd.MarkFlagRequired("codes")
}

// errDecisionRejected makes the exit status non-zero after the errors are printed.
var errDecisionRejected = errors.New("decision rejected")

func runValidate(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(validateFlags.answer)
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}

	result := grading.ParseDecision(raw, splitCodes(validateFlags.codes))
	if result.OK {
		if err := grading.CheckDecisionContract(*result.Data); err != nil {
			result = grading.DecisionResult{Errors: []string{err.Error()}}
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.OK {
		return errDecisionRejected
	}
	return nil
}

func splitCodes(input string) []string {
	parts := strings.Split(input, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			codes = append(codes, trimmed)
		}
	}
	return codes
}
