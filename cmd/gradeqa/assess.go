package main

import (
	"github.com/noah-isme/gema-grading-go/internal/grading"
)

// Assessment outcomes.
const (
	outcomeBlocked  = "blocked"
	outcomeNoAnswer = "no_answer"
	outcomeRejected = "rejected"
	outcomeAccepted = "accepted"
)

// Assessment is the offline equivalent of one grading attempt.
type Assessment struct {
	Name       string                        `json:"name"`
	Outcome    string                        `json:"outcome"`
	Readiness  grading.ReadinessReport       `json:"readiness"`
	Input      *grading.GradingInputDecision `json:"input,omitempty"`
	Validation *grading.DecisionResult       `json:"validation,omitempty"`
	Confidence *grading.ConfidenceResult     `json:"confidence,omitempty"`
}

func assess(f Fixture, cfg grading.Config) (Assessment, error) {
	metrics := f.metrics()
	result := Assessment{
		Name:      f.Name,
		Readiness: grading.EvaluateReadiness(metrics, f.SubmissionStatus, cfg.Readiness),
	}
	if !result.Readiness.OK {
		result.Outcome = outcomeBlocked
		return result, nil
	}

	requested, err := grading.ParseInputMode(f.RequestedMode)
	if err != nil {
		return Assessment{}, err
	}
	req := grading.InputRequest{
		RequestedMode:      requested,
		PageImageCapable:   f.PageImageCapable,
		ReadinessOK:        true,
		CoverOnly:          metrics.IsCoverOnly(),
		CoverMetadataReady: metrics.CoverMetadataReady,
	}
	if metrics.ExtractedCharCount != nil {
		req.ExtractedChars = *metrics.ExtractedCharCount
	}
	if metrics.OverallConfidence != nil {
		req.ExtractionConfidence = *metrics.OverallConfidence
		req.HasExtractionConfidence = true
	}
	input := grading.SelectInput(req, cfg.InputStrategy)
	result.Input = &input

	raw, err := f.answer()
	if err != nil {
		return Assessment{}, err
	}
	if raw == nil {
		result.Outcome = outcomeNoAnswer
		return result, nil
	}

	conclusion := grading.ConcludeJSON(raw, f.Criteria, grading.ConclusionSignals{
		ExtractionConfidence: metrics.OverallConfidence,
		ExtractionMode:       metrics.ExtractionMode,
		Readiness: grading.BuildReadinessChecklist(result.Readiness, grading.ReadinessCheck{
			Name:   "criteria_locked",
			Passed: f.locked(),
		}),
		MissingModalities: f.Extraction.MissingModalities,
		Alignment:         grading.AlignCriteria(f.Criteria, f.BriefCriteria),
	}, cfg)
	if conclusion.Accepted() {
		if err := grading.CheckDecisionContract(*conclusion.Validation.Data); err != nil {
			conclusion = grading.Conclusion{Validation: grading.DecisionResult{Errors: []string{err.Error()}}}
		}
	}

	result.Validation = &conclusion.Validation
	result.Confidence = conclusion.Confidence
	result.Outcome = outcomeRejected
	if conclusion.Accepted() {
		result.Outcome = outcomeAccepted
	}
	return result, nil
}
