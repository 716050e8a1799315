package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

const healthyFixture = `name: star-topology
submission_status: extracted
criteria: [P1, P2]
brief_criteria: [P1, P2]
extraction:
  status: COMPLETED
  mode: FULL_TEXT
  extracted_chars: 5400
  page_count: 12
  confidence: 0.93
answer_file: answer.json
`

const acceptedAnswer = `{
	"overallGrade": "PASS",
	"feedbackSummary": "Meets the pass criteria.",
	"feedbackBullets": ["Label the core switch"],
	"criterionChecks": [
		{"code": "P1", "decision": "ACHIEVED", "rationale": "Topology", "evidence": [{"page": 1, "quote": "star"}, {"page": 2, "quote": "switch"}], "confidence": 0.9},
		{"code": "P2", "decision": "ACHIEVED", "rationale": "Costs", "evidence": [{"page": 3, "quote": "total"}, {"page": 4, "quote": "budget"}], "confidence": 0.9}
	],
	"confidence": 0.9
}`

const blockedFixture = `name: empty-scan
submission_status: needs_ocr
criteria: [P1]
extraction:
  status: NEEDS_OCR
  extracted_chars: 40
  page_count: 3
  confidence: 0.2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadinessCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blocked.yaml", blockedFixture)

	out, err := execute(t, "readiness", "-f", path)
	require.NoError(t, err)

	var report grading.ReadinessReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.False(t, report.OK)
	require.NotEmpty(t, report.Blockers)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", acceptedAnswer)
	bad := writeFile(t, dir, "bad.json", `{"overallGrade": "GREAT"}`)

	out, err := execute(t, "validate", "-a", good, "-c", "P1, P2")
	require.NoError(t, err)
	var result grading.DecisionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.True(t, result.OK)
	require.Equal(t, grading.GradePass, result.Data.OverallGrade)

	out, err = execute(t, "validate", "-a", bad, "-c", "P1")
	require.ErrorIs(t, err, errDecisionRejected)
	result = grading.DecisionResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.False(t, result.OK)
	require.NotEmpty(t, result.Errors)
}

func TestAssessCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "answer.json", acceptedAnswer)
	path := writeFile(t, dir, "healthy.yaml", healthyFixture)

	out, err := execute(t, "assess", "-f", path)
	require.NoError(t, err)

	var result Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, "star-topology", result.Name)
	require.Equal(t, outcomeAccepted, result.Outcome)
	require.Equal(t, grading.InputModeExtractedText, result.Input.Mode)
	require.NotNil(t, result.Confidence)
	require.GreaterOrEqual(t, result.Confidence.FinalConfidence, 0.20)
	require.LessOrEqual(t, result.Confidence.FinalConfidence, 1.0)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "answer.json", acceptedAnswer)
	writeFile(t, dir, "a-healthy.yaml", healthyFixture)
	writeFile(t, dir, "b-blocked.yml", blockedFixture)
	writeFile(t, dir, "c-unanswered.yaml", strings.Replace(healthyFixture, "answer_file: answer.json\n", "", 1))

	out, err := execute(t, "batch", dir, "--workers", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "star-topology accepted mode=EXTRACTED_TEXT grade=PASS"))
	require.True(t, strings.HasPrefix(lines[1], "empty-scan blocked"))
	require.True(t, strings.HasPrefix(lines[2], "star-topology no_answer"))
	require.Equal(t, "total=3 accepted=1 rejected=0 blocked=1 no_answer=1", lines[3])
}

func TestBatchCommandEmptyDir(t *testing.T) {
	_, err := execute(t, "batch", t.TempDir())
	require.Error(t, err)
}
