package grading

// Readiness checklist entries derived from a ReadinessReport.
const (
	CheckExtractionReady    = "extraction_ready"
	CheckExtractionWarnings = "extraction_warnings_clear"
	CheckCoverMetadataReady = "cover_metadata_ready"
)

// BuildReadinessChecklist turns a gate report into named checks and appends
// any caller supplied checks.
func BuildReadinessChecklist(report ReadinessReport, extra ...ReadinessCheck) []ReadinessCheck {
	checks := []ReadinessCheck{
		{Name: CheckExtractionReady, Passed: report.OK},
		{Name: CheckExtractionWarnings, Passed: len(report.Warnings) == 0},
	}
	if report.Metrics != nil && report.Metrics.IsCoverOnly() {
		checks = append(checks, ReadinessCheck{Name: CheckCoverMetadataReady, Passed: report.Metrics.CoverMetadataReady})
	}
	return append(checks, extra...)
}

// ConclusionSignals are the auxiliary inputs of the synthesizer that do not
// come from the model answer.
type ConclusionSignals struct {
	ExtractionConfidence *float64
	ExtractionMode       string
	Readiness            []ReadinessCheck
	MissingModalities    int
	Alignment            CriteriaAlignment
}

// Conclusion is the outcome of validating a model answer and scoring it.
// Confidence is only set when the decision validated.
type Conclusion struct {
	Validation DecisionResult    `json:"validation"`
	Confidence *ConfidenceResult `json:"confidence,omitempty"`
}

// Accepted reports whether the model answer produced a decision.
func (c Conclusion) Accepted() bool {
	return c.Validation.OK && c.Validation.Data != nil
}

// Conclude validates the raw model answer against the authoritative codes and,
// when it is valid, synthesizes its confidence.
func Conclude(raw any, codes []string, signals ConclusionSignals, cfg Config) Conclusion {
	return conclude(ValidateDecision(raw, codes), signals, cfg)
}

// ConcludeJSON is Conclude for an undecoded model answer.
func ConcludeJSON(raw []byte, codes []string, signals ConclusionSignals, cfg Config) Conclusion {
	return conclude(ParseDecision(raw, codes), signals, cfg)
}

func conclude(validation DecisionResult, signals ConclusionSignals, cfg Config) Conclusion {
	conclusion := Conclusion{Validation: validation}
	if !conclusion.Accepted() {
		return conclusion
	}

	decision := validation.Data
	result := SynthesizeConfidence(ConfidenceInput{
		Checks:               decision.CriterionChecks,
		ModelConfidence:      decision.Confidence,
		ExtractionConfidence: signals.ExtractionConfidence,
		ExtractionMode:       signals.ExtractionMode,
		Evidence:             SummarizeEvidence(decision.CriterionChecks),
		Readiness:            signals.Readiness,
		MissingModalities:    signals.MissingModalities,
		Alignment:            signals.Alignment,
	}, cfg.Confidence)
	conclusion.Confidence = &result
	return conclusion
}

// CapNames lists the names of the caps recorded in a result.
func (r ConfidenceResult) CapNames() []string {
	names := make([]string, 0, len(r.CapsApplied))
	for _, c := range r.CapsApplied {
		names = append(names, c.Name)
	}
	return names
}
