package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MaxFeedbackBullets bounds the feedback bullets kept from a model answer.
const MaxFeedbackBullets = 24

var gradeTokens = map[string]OverallGrade{
	string(GradeRefer):              GradeRefer,
	string(GradePass):               GradePass,
	string(GradePassOnResubmission): GradePassOnResubmission,
	string(GradeMerit):              GradeMerit,
	string(GradeDistinction):        GradeDistinction,
	// deprecated
	"FAIL": GradeRefer,
}

var decisionTokens = map[string]CriterionDecision{
	string(DecisionAchieved):    DecisionAchieved,
	string(DecisionNotAchieved): DecisionNotAchieved,
	string(DecisionUnclear):     DecisionUnclear,
}

// ParseDecision decodes a raw model answer and validates it. Undecodable
// input is reported as a validation error, never as a Go error.
func ParseDecision(raw []byte, codes []string) DecisionResult {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return rejected([]string{"model returned an empty answer"})
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rejected([]string{fmt.Sprintf("model answer is not valid JSON: %v", err)})
	}
	return ValidateDecision(doc, codes)
}

// ValidateDecision projects an untrusted, loosely typed model answer onto a
// GradeDecision. Every violation is collected; when any is found no decision
// is returned.
func ValidateDecision(raw any, codes []string) DecisionResult {
	doc, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return rejected([]string{"model returned no usable answer"})
		}
		return rejected([]string{"model answer must be a JSON object"})
	}

	v := &decisionValidator{}
	authoritative := v.authoritativeCodes(codes)

	decision := GradeDecision{}
	decision.OverallGrade = v.overallGrade(doc)
	decision.FeedbackSummary = v.feedbackSummary(doc)
	decision.FeedbackBullets = v.feedbackBullets(doc)
	decision.ResubmissionRequired = v.resubmissionRequired(doc, decision.OverallGrade)
	decision.CriterionChecks = v.criterionChecks(doc, authoritative)
	decision.Confidence = v.decisionConfidence(doc)

	if len(v.errors) > 0 {
		return rejected(v.errors)
	}
	return DecisionResult{OK: true, Data: &decision}
}

func rejected(errors []string) DecisionResult {
	return DecisionResult{OK: false, Errors: errors}
}

type decisionValidator struct {
	errors []string
}

func (v *decisionValidator) fail(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *decisionValidator) authoritativeCodes(codes []string) []CriterionCode {
	seen := make(map[CriterionCode]struct{}, len(codes))
	ordered := make([]CriterionCode, 0, len(codes))
	for _, raw := range codes {
		code := NormalizeCriterionCode(raw)
		if !IsCriterionCode(code) {
			v.fail("authoritative criterion code %q is invalid", raw)
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		ordered = append(ordered, code)
	}
	if len(ordered) == 0 {
		v.fail("no authoritative criteria codes supplied")
	}
	return ordered
}

func (v *decisionValidator) overallGrade(doc map[string]any) OverallGrade {
	value, present := doc["overallGrade"]
	if !present || value == nil {
		value, present = doc["overallGradeWord"]
	}
	if !present || value == nil {
		v.fail("overallGrade is required")
		return ""
	}
	token, ok := value.(string)
	if !ok {
		v.fail("overallGrade must be a string")
		return ""
	}
	grade, known := gradeTokens[NormalizeToken(token)]
	if !known {
		v.fail("overallGrade %q is not a recognised grade", token)
		return ""
	}
	return grade
}

func (v *decisionValidator) feedbackSummary(doc map[string]any) string {
	summary, _ := doc["feedbackSummary"].(string)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		v.fail("feedbackSummary must be a non-empty string")
	}
	return summary
}

func (v *decisionValidator) feedbackBullets(doc map[string]any) []string {
	items, ok := doc["feedbackBullets"].([]any)
	if !ok {
		v.fail("feedbackBullets must be an array of strings")
		return nil
	}
	bullets := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			continue
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		bullets = append(bullets, text)
		if len(bullets) == MaxFeedbackBullets {
			break
		}
	}
	if len(bullets) == 0 {
		v.fail("feedbackBullets must contain at least one non-empty bullet")
	}
	return bullets
}

func (v *decisionValidator) resubmissionRequired(doc map[string]any, grade OverallGrade) bool {
	value, present := doc["resubmissionRequired"]
	if !present || value == nil {
		return grade == GradeRefer
	}
	flag, ok := value.(bool)
	if !ok {
		v.fail("resubmissionRequired must be a boolean")
		return false
	}
	return flag
}

func (v *decisionValidator) criterionChecks(doc map[string]any, authoritative []CriterionCode) []CriterionCheck {
	allowed := make(map[CriterionCode]struct{}, len(authoritative))
	for _, code := range authoritative {
		allowed[code] = struct{}{}
	}

	valid := make(map[CriterionCode]CriterionCheck, len(authoritative))
	seen := make(map[CriterionCode]struct{}, len(authoritative))

	rows, ok := doc["criterionChecks"].([]any)
	if !ok {
		v.fail("criterionChecks must be an array")
	}
	for i, item := range rows {
		row, ok := item.(map[string]any)
		if !ok {
			v.fail("criterionChecks[%d] must be an object", i)
			continue
		}
		before := len(v.errors)
		label := fmt.Sprintf("criterionChecks[%d]", i)

		check := CriterionCheck{}
		codeOK := false
		rawCode, _ := row["code"].(string)
		check.Code = NormalizeCriterionCode(rawCode)
		switch _, member := allowed[check.Code]; {
		case check.Code == "":
			v.fail("%s: code is required", label)
		case !IsCriterionCode(check.Code):
			v.fail("%s: invalid criterion code %q", label, rawCode)
		case !member:
			v.fail("%s: unknown criterion code %s", label, check.Code)
		default:
			if _, dup := seen[check.Code]; dup {
				v.fail("%s: duplicate criterion code %s", label, check.Code)
			} else {
				seen[check.Code] = struct{}{}
				codeOK = true
			}
		}
		if check.Code != "" {
			label = fmt.Sprintf("%s (%s)", label, check.Code)
		}

		check.Decision = v.criterionDecision(row, label)
		check.Rationale = v.rationale(row, label)
		check.Confidence = v.criterionConfidence(row, label)
		check.Evidence = parseEvidence(row["evidence"])
		if check.Decision == DecisionAchieved && len(check.Evidence) == 0 {
			v.fail("%s: ACHIEVED requires at least one valid evidence citation", label)
		}

		if codeOK && len(v.errors) == before {
			valid[check.Code] = check
		}
	}

	checks := make([]CriterionCheck, 0, len(authoritative))
	for _, code := range authoritative {
		if _, ok := seen[code]; !ok {
			v.fail("missing criterion check for %s", code)
			continue
		}
		if check, ok := valid[code]; ok {
			checks = append(checks, check)
		}
	}
	return checks
}

func (v *decisionValidator) criterionDecision(row map[string]any, label string) CriterionDecision {
	if value, present := row["decision"]; present && value != nil {
		token, ok := value.(string)
		if !ok {
			v.fail("%s: decision must be a string", label)
			return ""
		}
		decision, known := decisionTokens[NormalizeToken(token)]
		if !known {
			v.fail("%s: decision %q is not recognised", label, token)
			return ""
		}
		return decision
	}
	// legacy shape: boolean met flag
	if value, present := row["met"]; present && value != nil {
		met, ok := value.(bool)
		if !ok {
			v.fail("%s: met must be a boolean", label)
			return ""
		}
		if met {
			return DecisionAchieved
		}
		return DecisionNotAchieved
	}
	v.fail("%s: decision is required", label)
	return ""
}

func (v *decisionValidator) rationale(row map[string]any, label string) string {
	rationale, _ := row["rationale"].(string)
	rationale = strings.TrimSpace(rationale)
	if rationale == "" {
		legacy, _ := row["comment"].(string)
		rationale = strings.TrimSpace(legacy)
	}
	if rationale == "" {
		v.fail("%s: rationale must be a non-empty string", label)
	}
	return rationale
}

func (v *decisionValidator) criterionConfidence(row map[string]any, label string) float64 {
	value, ok := toFloat(row["confidence"])
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		v.fail("%s: confidence must be a finite number", label)
		return 0
	}
	return clamp01(value)
}

func (v *decisionValidator) decisionConfidence(doc map[string]any) float64 {
	value, ok := toFloat(doc["confidence"])
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > 1 {
		v.fail("confidence must be a finite number between 0 and 1")
		return 0
	}
	return value
}

// parseEvidence keeps well-formed citations and silently drops the rest.
func parseEvidence(raw any) []EvidenceCitation {
	items, _ := raw.([]any)
	citations := make([]EvidenceCitation, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		page, ok := toFloat(entry["page"])
		if !ok || math.IsNaN(page) || math.IsInf(page, 0) || page < 1 || page != math.Trunc(page) || page > math.MaxInt32 {
			continue
		}
		quote, _ := entry["quote"].(string)
		visual, _ := entry["visualDescription"].(string)
		citation := EvidenceCitation{
			Page:              int(page),
			Quote:             strings.TrimSpace(quote),
			VisualDescription: strings.TrimSpace(visual),
		}
		if citation.Quote == "" && citation.VisualDescription == "" {
			continue
		}
		citations = append(citations, citation)
	}
	return citations
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
