package grading

import (
	"fmt"
	"strings"
)

type readinessFinding struct {
	blocking bool
	message  string
}

func blocker(format string, args ...any) readinessFinding {
	return readinessFinding{blocking: true, message: fmt.Sprintf(format, args...)}
}

func warning(format string, args ...any) readinessFinding {
	return readinessFinding{message: fmt.Sprintf(format, args...)}
}

type readinessInput struct {
	metrics          *ExtractionMetrics
	submissionStatus string
	cfg              ReadinessConfig
	// warnings collected by the rules evaluated so far
	warnings int
}

func (in readinessInput) coverOnly() bool {
	return in.metrics != nil && in.metrics.IsCoverOnly()
}

type readinessRule struct {
	name string
	eval func(in readinessInput) []readinessFinding
}

// Evaluated in order. warning_overflow must stay last so it sees every warning.
var readinessRules = []readinessRule{
	{name: "extraction_run_present", eval: checkRunPresent},
	{name: "run_status", eval: checkRunStatus},
	{name: "char_count", eval: checkCharCount},
	{name: "extraction_confidence", eval: checkExtractionConfidence},
	{name: "page_count", eval: checkPageCount},
	{name: "run_warnings", eval: copyRunWarnings},
	{name: "submission_status", eval: checkSubmissionStatus},
	{name: "warning_overflow", eval: checkWarningOverflow},
}

// EvaluateReadiness decides whether a submission's extraction is fit to grade.
// A nil metrics value means no extraction run exists.
func EvaluateReadiness(metrics *ExtractionMetrics, submissionStatus string, cfg ReadinessConfig) ReadinessReport {
	report := ReadinessReport{
		Blockers: []string{},
		Warnings: []string{},
	}
	if metrics != nil {
		snapshot := *metrics
		snapshot.Warnings = append([]string(nil), metrics.Warnings...)
		report.Metrics = &snapshot
	}

	in := readinessInput{
		metrics:          metrics,
		submissionStatus: submissionStatus,
		cfg:              cfg,
	}
	for _, rule := range readinessRules {
		in.warnings = len(report.Warnings)
		for _, finding := range rule.eval(in) {
			if finding.blocking {
				report.Blockers = append(report.Blockers, finding.message)
			} else {
				report.Warnings = append(report.Warnings, finding.message)
			}
		}
	}

	report.OK = len(report.Blockers) == 0
	return report
}

func checkRunPresent(in readinessInput) []readinessFinding {
	if in.metrics == nil {
		return []readinessFinding{blocker("no extraction run available for this submission")}
	}
	return nil
}

func checkRunStatus(in readinessInput) []readinessFinding {
	if in.metrics == nil {
		return nil
	}
	status := NormalizeToken(in.metrics.RunStatus)
	switch status {
	case RunStatusCompleted, "COMPLETE", "SUCCEEDED", "DONE":
		return nil
	case RunStatusNeedsOCR:
		if in.coverOnly() {
			return []readinessFinding{warning("extraction run needs OCR; proceeding on cover-only extraction")}
		}
		return []readinessFinding{blocker("extraction run needs OCR before grading")}
	case RunStatusFailed:
		return []readinessFinding{blocker("extraction run failed")}
	case RunStatusRunning, RunStatusPending:
		return []readinessFinding{blocker("extraction run is %s; not ready for grading", strings.ToLower(status))}
	case "":
		return []readinessFinding{warning("extraction run status not reported")}
	default:
		return []readinessFinding{warning("unrecognized extraction run status %q", in.metrics.RunStatus)}
	}
}

func checkCharCount(in readinessInput) []readinessFinding {
	if in.metrics == nil {
		return nil
	}
	chars := in.metrics.ExtractedCharCount
	if chars == nil {
		return []readinessFinding{warning("extracted character count unavailable")}
	}
	if *chars >= in.cfg.MinChars {
		return nil
	}
	switch {
	case in.coverOnly():
		return []readinessFinding{warning("short body text (%d < %d chars) tolerated for cover-only extraction", *chars, in.cfg.MinChars)}
	case in.metrics.CoverMetadataReady:
		return []readinessFinding{warning("short body text (%d < %d chars) tolerated because cover metadata is ready", *chars, in.cfg.MinChars)}
	default:
		return []readinessFinding{blocker("extracted text too short (%d < %d chars)", *chars, in.cfg.MinChars)}
	}
}

func checkExtractionConfidence(in readinessInput) []readinessFinding {
	if in.metrics == nil || in.metrics.OverallConfidence == nil {
		return nil
	}
	confidence := *in.metrics.OverallConfidence
	if confidence < in.cfg.MinConfidence {
		return []readinessFinding{blocker("extraction confidence %.2f below minimum %.2f", confidence, in.cfg.MinConfidence)}
	}
	return nil
}

func checkPageCount(in readinessInput) []readinessFinding {
	if in.metrics == nil || in.metrics.PageCount == nil {
		return nil
	}
	pages := *in.metrics.PageCount
	switch {
	case pages == 0:
		return []readinessFinding{warning("extraction reported zero pages")}
	case pages < in.cfg.MinPages:
		return []readinessFinding{blocker("page count %d below minimum %d", pages, in.cfg.MinPages)}
	}
	return nil
}

func copyRunWarnings(in readinessInput) []readinessFinding {
	if in.metrics == nil {
		return nil
	}
	findings := make([]readinessFinding, 0, len(in.metrics.Warnings))
	for _, w := range in.metrics.Warnings {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		findings = append(findings, warning("extraction: %s", w))
	}
	return findings
}

func checkSubmissionStatus(in readinessInput) []readinessFinding {
	if NormalizeToken(in.submissionStatus) != RunStatusNeedsOCR {
		return nil
	}
	if in.coverOnly() {
		return []readinessFinding{warning("submission flagged as needing OCR; proceeding on cover-only extraction")}
	}
	return []readinessFinding{blocker("submission is flagged as needing OCR")}
}

func checkWarningOverflow(in readinessInput) []readinessFinding {
	if in.warnings >= in.cfg.MaxWarnings {
		return []readinessFinding{blocker("too many extraction warnings (%d >= %d)", in.warnings, in.cfg.MaxWarnings)}
	}
	return nil
}
