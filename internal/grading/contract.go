package grading

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const gradeDecisionSchemaURL = "https://gema.dev/schemas/grade_decision.schema.json"

//go:embed grade_decision.schema.json
var gradeDecisionSchema []byte

var (
	contractOnce   sync.Once
	contractSchema *jsonschema.Schema
	contractErr    error
)

func decisionContract() (*jsonschema.Schema, error) {
	contractOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(gradeDecisionSchemaURL, bytes.NewReader(gradeDecisionSchema)); err != nil {
			contractErr = fmt.Errorf("load grade decision schema: %w", err)
			return
		}
		contractSchema, contractErr = compiler.Compile(gradeDecisionSchemaURL)
		if contractErr != nil {
			contractErr = fmt.Errorf("compile grade decision schema: %w", contractErr)
		}
	})
	return contractSchema, contractErr
}

// CheckDecisionContract verifies that a normalized decision matches the
// published audit record contract before it is persisted.
func CheckDecisionContract(decision GradeDecision) error {
	schema, err := decisionContract()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("encode grade decision: %w", err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("decode grade decision: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("grade decision does not match contract: %w", err)
	}
	return nil
}
