package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func healthyMetrics() *ExtractionMetrics {
	return &ExtractionMetrics{
		ExtractedCharCount: intPtr(5400),
		PageCount:          intPtr(12),
		OverallConfidence:  floatPtr(0.93),
		RunStatus:          "COMPLETED",
		ExtractionMode:     "FULL_TEXT",
	}
}

func containsSubstring(items []string, needle string) bool {
	for _, item := range items {
		if strings.Contains(item, needle) {
			return true
		}
	}
	return false
}

func TestEvaluateReadinessHealthyRun(t *testing.T) {
	report := EvaluateReadiness(healthyMetrics(), "extracted", DefaultReadinessConfig())

	require.True(t, report.OK)
	require.Empty(t, report.Blockers)
	require.Empty(t, report.Warnings)
	require.NotNil(t, report.Metrics)
	require.Equal(t, 5400, *report.Metrics.ExtractedCharCount)
}

func TestEvaluateReadinessMissingRun(t *testing.T) {
	report := EvaluateReadiness(nil, "submitted", DefaultReadinessConfig())

	require.False(t, report.OK)
	require.Len(t, report.Blockers, 1)
	require.Contains(t, report.Blockers[0], "no extraction run")
	require.Nil(t, report.Metrics)
}

func TestEvaluateReadinessFailedRunAlwaysBlocks(t *testing.T) {
	variants := []*ExtractionMetrics{
		{RunStatus: "FAILED"},
		{RunStatus: "failed", ExtractionMode: "COVER_ONLY", CoverMetadataReady: true},
		{RunStatus: " Failed ", ExtractedCharCount: intPtr(90000), OverallConfidence: floatPtr(1), PageCount: intPtr(30)},
	}

	for _, metrics := range variants {
		report := EvaluateReadiness(metrics, "extracted", DefaultReadinessConfig())
		require.False(t, report.OK)
		require.True(t, containsSubstring(report.Blockers, "failed"), "blockers: %v", report.Blockers)
	}
}

func TestEvaluateReadinessCoverOnlyShortBody(t *testing.T) {
	metrics := &ExtractionMetrics{
		ExtractedCharCount: intPtr(120),
		PageCount:          intPtr(1),
		OverallConfidence:  floatPtr(0.9),
		RunStatus:          "COMPLETED",
		ExtractionMode:     "COVER_ONLY",
		CoverMetadataReady: true,
	}

	report := EvaluateReadiness(metrics, "extracted", DefaultReadinessConfig())

	require.True(t, report.OK)
	require.Empty(t, report.Blockers)
	require.True(t, containsSubstring(report.Warnings, "short body text"), "warnings: %v", report.Warnings)
}

func TestEvaluateReadinessShortBodyTolerance(t *testing.T) {
	cfg := DefaultReadinessConfig()

	withCover := healthyMetrics()
	withCover.ExtractedCharCount = intPtr(300)
	withCover.CoverMetadataReady = true
	report := EvaluateReadiness(withCover, "", cfg)
	require.True(t, report.OK)
	require.True(t, containsSubstring(report.Warnings, "cover metadata is ready"))

	unknown := healthyMetrics()
	unknown.ExtractedCharCount = nil
	report = EvaluateReadiness(unknown, "", cfg)
	require.True(t, report.OK)
	require.True(t, containsSubstring(report.Warnings, "character count unavailable"))

	short := healthyMetrics()
	short.ExtractedCharCount = intPtr(300)
	report = EvaluateReadiness(short, "", cfg)
	require.False(t, report.OK)
	require.Equal(t, []string{"extracted text too short (300 < 700 chars)"}, report.Blockers)
}

func TestEvaluateReadinessNeedsOCR(t *testing.T) {
	cfg := DefaultReadinessConfig()

	metrics := healthyMetrics()
	metrics.RunStatus = "NEEDS_OCR"
	report := EvaluateReadiness(metrics, "", cfg)
	require.False(t, report.OK)
	require.True(t, containsSubstring(report.Blockers, "needs OCR"))

	coverOnly := healthyMetrics()
	coverOnly.RunStatus = "needs-ocr"
	coverOnly.ExtractionMode = "cover-only"
	report = EvaluateReadiness(coverOnly, "", cfg)
	require.True(t, report.OK)
	require.True(t, containsSubstring(report.Warnings, "cover-only"))

	report = EvaluateReadiness(healthyMetrics(), "needs_ocr", cfg)
	require.False(t, report.OK)
	require.True(t, containsSubstring(report.Blockers, "submission is flagged as needing OCR"))

	report = EvaluateReadiness(coverOnly, "NEEDS_OCR", cfg)
	require.True(t, report.OK)
}

func TestEvaluateReadinessRunningAndUnknownStatus(t *testing.T) {
	cfg := DefaultReadinessConfig()

	for _, status := range []string{"RUNNING", "pending"} {
		metrics := healthyMetrics()
		metrics.RunStatus = status
		report := EvaluateReadiness(metrics, "", cfg)
		require.False(t, report.OK, status)
		require.True(t, containsSubstring(report.Blockers, "not ready"), status)
	}

	metrics := healthyMetrics()
	metrics.RunStatus = "ARCHIVED"
	report := EvaluateReadiness(metrics, "", cfg)
	require.True(t, report.OK)
	require.True(t, containsSubstring(report.Warnings, `unrecognized extraction run status "ARCHIVED"`))
}

func TestEvaluateReadinessConfidenceAndPages(t *testing.T) {
	cfg := DefaultReadinessConfig()

	lowConfidence := healthyMetrics()
	lowConfidence.OverallConfidence = floatPtr(0.5)
	report := EvaluateReadiness(lowConfidence, "", cfg)
	require.False(t, report.OK)
	require.Equal(t, []string{"extraction confidence 0.50 below minimum 0.68"}, report.Blockers)

	unknownConfidence := healthyMetrics()
	unknownConfidence.OverallConfidence = nil
	require.True(t, EvaluateReadiness(unknownConfidence, "", cfg).OK)

	zeroPages := healthyMetrics()
	zeroPages.PageCount = intPtr(0)
	report = EvaluateReadiness(zeroPages, "", cfg)
	require.True(t, report.OK)
	require.Equal(t, []string{"extraction reported zero pages"}, report.Warnings)

	cfg.MinPages = 3
	fewPages := healthyMetrics()
	fewPages.PageCount = intPtr(2)
	report = EvaluateReadiness(fewPages, "", cfg)
	require.False(t, report.OK)
	require.Equal(t, []string{"page count 2 below minimum 3"}, report.Blockers)
}

func TestEvaluateReadinessWarningOverflow(t *testing.T) {
	cfg := DefaultReadinessConfig()
	cfg.MaxWarnings = 3

	metrics := healthyMetrics()
	metrics.Warnings = []string{"table skipped", " ", "image without alt text"}
	report := EvaluateReadiness(metrics, "", cfg)
	require.True(t, report.OK)
	require.Equal(t, []string{"extraction: table skipped", "extraction: image without alt text"}, report.Warnings)

	metrics.Warnings = append(metrics.Warnings, "font fallback")
	report = EvaluateReadiness(metrics, "", cfg)
	require.False(t, report.OK)
	require.Equal(t, []string{"too many extraction warnings (3 >= 3)"}, report.Blockers)
}

func TestEvaluateReadinessDoesNotAliasInput(t *testing.T) {
	metrics := healthyMetrics()
	metrics.Warnings = []string{"first"}

	report := EvaluateReadiness(metrics, "", DefaultReadinessConfig())
	metrics.Warnings[0] = "mutated"

	require.Equal(t, []string{"first"}, report.Metrics.Warnings)
}
