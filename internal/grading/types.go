// Package grading implements the deterministic quality-assurance pipeline that
// surrounds a generative grading model: the extraction readiness gate, the
// grading input strategy selector, the grade decision validator and the
// confidence synthesizer.
//
// Every function in this package is pure. Inputs are value objects produced
// once per grading attempt and the outputs are plain serialisable records
// meant to be stored verbatim as an audit trail.
package grading

import (
	"regexp"
	"strings"
)

// Extraction run statuses reported by the extraction collaborator.
const (
	RunStatusCompleted = "COMPLETED"
	RunStatusNeedsOCR  = "NEEDS_OCR"
	RunStatusFailed    = "FAILED"
	RunStatusRunning   = "RUNNING"
	RunStatusPending   = "PENDING"
)

// ExtractionModeCoverOnly marks extractions that only reliably captured the
// cover/identity page.
const ExtractionModeCoverOnly = "COVER_ONLY"

// ExtractionMetrics describes one extraction attempt. Nil pointer fields mean
// the collaborator did not report that signal.
type ExtractionMetrics struct {
	ExtractedCharCount *int     `json:"extractedCharCount"`
	PageCount          *int     `json:"pageCount"`
	OverallConfidence  *float64 `json:"overallConfidence"`
	RunStatus          string   `json:"runStatus"`
	Warnings           []string `json:"warnings"`
	ExtractionMode     string   `json:"extractionMode"`
	CoverMetadataReady bool     `json:"coverMetadataReady"`
}

// IsCoverOnly reports whether the extraction ran in cover-only mode.
func (m ExtractionMetrics) IsCoverOnly() bool {
	return NormalizeToken(m.ExtractionMode) == ExtractionModeCoverOnly
}

// ReadinessReport is the outcome of the readiness gate. OK holds iff Blockers
// is empty.
type ReadinessReport struct {
	OK       bool               `json:"ok"`
	Blockers []string           `json:"blockers"`
	Warnings []string           `json:"warnings"`
	Metrics  *ExtractionMetrics `json:"metrics"`
}

// InputMode is the representation of the submission handed to the model.
type InputMode string

const (
	InputModeExtractedText InputMode = "EXTRACTED_TEXT"
	InputModeRawPageImages InputMode = "RAW_PAGE_IMAGES"
)

// RequestedMode is the caller's input mode preference.
type RequestedMode string

const (
	RequestedModeAuto      RequestedMode = "AUTO"
	RequestedModeExtracted RequestedMode = "EXTRACTED"
	RequestedModeRaw       RequestedMode = "RAW"
)

// GradingInputDecision records which representation was selected and why.
type GradingInputDecision struct {
	Mode           InputMode           `json:"mode"`
	RequestedMode  RequestedMode       `json:"requestedMode"`
	Reason         string              `json:"reason"`
	ThresholdsUsed InputStrategyConfig `json:"thresholdsUsed"`
}

// OverallGrade is the closed set of grade words.
type OverallGrade string

const (
	GradeRefer              OverallGrade = "REFER"
	GradePass               OverallGrade = "PASS"
	GradePassOnResubmission OverallGrade = "PASS_ON_RESUBMISSION"
	GradeMerit              OverallGrade = "MERIT"
	GradeDistinction        OverallGrade = "DISTINCTION"
)

// CriterionDecision is the closed set of per-criterion outcomes.
type CriterionDecision string

const (
	DecisionAchieved    CriterionDecision = "ACHIEVED"
	DecisionNotAchieved CriterionDecision = "NOT_ACHIEVED"
	DecisionUnclear     CriterionDecision = "UNCLEAR"
)

// CriterionCode identifies one gradable requirement, e.g. "P1" or "M2".
type CriterionCode string

var (
	criterionCodePattern = regexp.MustCompile(`^[PMD][0-9]{1,2}$`)
	briefCodePattern     = regexp.MustCompile(`\b[PMD][0-9]{1,2}\b`)
)

// NormalizeCriterionCode upper-cases and trims a code candidate.
func NormalizeCriterionCode(raw string) CriterionCode {
	return CriterionCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsCriterionCode reports whether code is a band letter followed by a small integer.
func IsCriterionCode(code CriterionCode) bool {
	return criterionCodePattern.MatchString(string(code))
}

// ReferencedCriterionCodes lists the criterion codes mentioned in free text,
// such as an assignment brief, in order of first appearance.
func ReferencedCriterionCodes(text string) []string {
	matches := briefCodePattern.FindAllString(text, -1)
	codes := make([]string, 0, len(matches))
	seen := make(map[CriterionCode]struct{}, len(matches))
	for _, match := range matches {
		code := NormalizeCriterionCode(match)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, string(code))
	}
	return codes
}

// EvidenceCitation points at the part of the submission supporting a decision.
type EvidenceCitation struct {
	Page              int    `json:"page"`
	Quote             string `json:"quote,omitempty"`
	VisualDescription string `json:"visualDescription,omitempty"`
}

// CriterionCheck is the validated outcome for one criterion.
type CriterionCheck struct {
	Code       CriterionCode      `json:"code"`
	Decision   CriterionDecision  `json:"decision"`
	Rationale  string             `json:"rationale"`
	Evidence   []EvidenceCitation `json:"evidence"`
	Confidence float64            `json:"confidence"`
}

// GradeDecision is a fully validated model answer.
type GradeDecision struct {
	OverallGrade         OverallGrade     `json:"overallGrade"`
	ResubmissionRequired bool             `json:"resubmissionRequired"`
	FeedbackSummary      string           `json:"feedbackSummary"`
	FeedbackBullets      []string         `json:"feedbackBullets"`
	CriterionChecks      []CriterionCheck `json:"criterionChecks"`
	Confidence           float64          `json:"confidence"`
}

// DecisionResult is either a validated decision or the complete list of
// schema violations. Data is nil whenever OK is false.
type DecisionResult struct {
	OK     bool           `json:"ok"`
	Data   *GradeDecision `json:"data,omitempty"`
	Errors []string       `json:"errors,omitempty"`
}

// NormalizeToken upper-cases a token and folds spaces and hyphens to underscores.
func NormalizeToken(raw string) string {
	fields := strings.FieldsFunc(strings.ToUpper(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}
