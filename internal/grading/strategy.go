package grading

import (
	"fmt"
	"strings"
)

// InputRequest carries the signals the input strategy selector needs.
// ExtractionConfidence is only read when HasExtractionConfidence is set; an
// unknown confidence never earns text mode.
type InputRequest struct {
	RequestedMode           RequestedMode
	PageImageCapable        bool
	ReadinessOK             bool
	ExtractedChars          int
	ExtractionConfidence    float64
	HasExtractionConfidence bool
	CoverOnly               bool
	CoverMetadataReady      bool
}

// ParseInputMode parses a caller supplied mode. An empty value means AUTO.
func ParseInputMode(raw string) (RequestedMode, error) {
	switch NormalizeToken(raw) {
	case "", string(RequestedModeAuto):
		return RequestedModeAuto, nil
	case string(RequestedModeExtracted), "EXTRACTED_TEXT", "TEXT":
		return RequestedModeExtracted, nil
	case string(RequestedModeRaw), "RAW_PAGE_IMAGES", "IMAGES":
		return RequestedModeRaw, nil
	default:
		return "", fmt.Errorf("unknown grading input mode %q", raw)
	}
}

// SelectInput decides which representation of the submission is sent to the
// grading model.
func SelectInput(req InputRequest, cfg InputStrategyConfig) GradingInputDecision {
	requested := req.RequestedMode
	if requested == "" {
		requested = RequestedModeAuto
	}
	decision := GradingInputDecision{
		RequestedMode:  requested,
		ThresholdsUsed: cfg,
	}

	switch requested {
	case RequestedModeExtracted:
		decision.Mode = InputModeExtractedText
		decision.Reason = "extracted text requested explicitly"
		return decision
	case RequestedModeRaw:
		if !req.PageImageCapable {
			decision.Mode = InputModeExtractedText
			decision.Reason = "raw page images requested but source is not page-image capable; using extracted text"
			return decision
		}
		decision.Mode = InputModeRawPageImages
		decision.Reason = "raw page images requested explicitly"
		return decision
	}

	if !req.PageImageCapable {
		decision.Mode = InputModeExtractedText
		decision.Reason = "source is not page-image capable; using extracted text"
		return decision
	}

	var failed []string
	if !req.ReadinessOK {
		failed = append(failed, "readiness gate not passed")
	}
	if req.ExtractedChars < cfg.MinExtractedChars {
		failed = append(failed, fmt.Sprintf("chars %d < %d", req.ExtractedChars, cfg.MinExtractedChars))
	}
	if !req.HasExtractionConfidence {
		failed = append(failed, fmt.Sprintf("confidence unavailable (need >= %.2f)", cfg.MinExtractionConfidence))
	} else if req.ExtractionConfidence < cfg.MinExtractionConfidence {
		failed = append(failed, fmt.Sprintf("confidence %.2f < %.2f", req.ExtractionConfidence, cfg.MinExtractionConfidence))
	}
	if req.CoverOnly && !req.CoverMetadataReady {
		failed = append(failed, "cover-only extraction without ready cover metadata")
	}

	if len(failed) > 0 {
		decision.Mode = InputModeRawPageImages
		decision.Reason = "extracted text not trusted: " + strings.Join(failed, "; ")
		return decision
	}

	decision.Mode = InputModeExtractedText
	decision.Reason = fmt.Sprintf("extracted text passed quality gates (chars %d >= %d, confidence %.2f >= %.2f)",
		req.ExtractedChars, cfg.MinExtractedChars, req.ExtractionConfidence, cfg.MinExtractionConfidence)
	return decision
}
