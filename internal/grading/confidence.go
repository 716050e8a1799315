package grading

import (
	"fmt"
	"math"
)

// Cap names recorded in ConfidenceResult.CapsApplied.
const (
	CapModality                = "modality_cap"
	CapEvidenceGap             = "evidence_gap_cap"
	CapReadiness               = "readiness_cap"
	CapAchievedWithoutEvidence = "achieved_without_evidence_cap"
)

// EvidenceSummary is the evidence-density summary of a decision.
type EvidenceSummary struct {
	TotalCitations          int `json:"totalCitations"`
	CriteriaWithoutEvidence int `json:"criteriaWithoutEvidence"`
}

// ReadinessCheck is one named boolean check of the readiness checklist.
type ReadinessCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// CriteriaAlignment describes how well the locked criteria set matches the
// codes referenced by the assignment brief. Known is false when nothing could
// be compared.
type CriteriaAlignment struct {
	Known         bool    `json:"known"`
	OverlapRatio  float64 `json:"overlapRatio"`
	MismatchCount int     `json:"mismatchCount"`
}

// ConfidenceInput gathers everything the synthesizer reads.
type ConfidenceInput struct {
	Checks               []CriterionCheck
	ModelConfidence      float64
	ExtractionConfidence *float64
	ExtractionMode       string
	Evidence             EvidenceSummary
	Readiness            []ReadinessCheck
	MissingModalities    int
	Alignment            CriteriaAlignment
}

// ConfidenceSignals are the derived, read-only signals behind a score.
type ConfidenceSignals struct {
	ModelConfidence            float64  `json:"modelConfidence"`
	CriterionAverageConfidence float64  `json:"criterionAverageConfidence"`
	TotalCriteria              int      `json:"totalCriteria"`
	UnclearRatio               float64  `json:"unclearRatio"`
	LowConfidenceRatio         float64  `json:"lowConfidenceRatio"`
	NoEvidenceRatio            float64  `json:"noEvidenceRatio"`
	TotalCitations             int      `json:"totalCitations"`
	CitationsPerCriterion      float64  `json:"citationsPerCriterion"`
	EvidenceScore              float64  `json:"evidenceScore"`
	AchievedWithoutEvidence    int      `json:"achievedWithoutEvidence"`
	ExtractionConfidence       *float64 `json:"extractionConfidence"`
	ExtractionMode             string   `json:"extractionMode"`
	MissingModalities          int      `json:"missingModalities"`
	ReadinessFailures          []string `json:"readinessFailures"`
	AlignmentKnown             bool     `json:"alignmentKnown"`
	AlignmentOverlapRatio      float64  `json:"alignmentOverlapRatio"`
	AlignmentMismatchCount     int      `json:"alignmentMismatchCount"`
}

// ConfidenceBonuses lists additive adjustments.
type ConfidenceBonuses struct {
	ExtractionQuality float64 `json:"extractionQuality"`
	Total             float64 `json:"total"`
}

// ConfidencePenalties lists subtractive adjustments.
type ConfidencePenalties struct {
	UnclearRatio            float64 `json:"unclearRatio"`
	LowConfidenceRatio      float64 `json:"lowConfidenceRatio"`
	MissingEvidence         float64 `json:"missingEvidence"`
	AchievedWithoutEvidence float64 `json:"achievedWithoutEvidence"`
	ModalityGap             float64 `json:"modalityGap"`
	Readiness               float64 `json:"readiness"`
	CriteriaAlignment       float64 `json:"criteriaAlignment"`
	Total                   float64 `json:"total"`
}

// ConfidenceCap is a named ceiling the final score may not exceed.
type ConfidenceCap struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// ConfidenceResult is the calibrated trust score of one grading attempt.
type ConfidenceResult struct {
	FinalConfidence         float64             `json:"finalConfidence"`
	WeightedBaseConfidence  float64             `json:"weightedBaseConfidence"`
	RawConfidenceBeforeCaps float64             `json:"rawConfidenceBeforeCaps"`
	Bonuses                 ConfidenceBonuses   `json:"bonuses"`
	Penalties               ConfidencePenalties `json:"penalties"`
	CapsApplied             []ConfidenceCap     `json:"capsApplied"`
	Signals                 ConfidenceSignals   `json:"signals"`
	WasCapped               bool                `json:"wasCapped"`
}

// SummarizeEvidence counts citations and criteria without any citation.
func SummarizeEvidence(checks []CriterionCheck) EvidenceSummary {
	summary := EvidenceSummary{}
	for _, check := range checks {
		summary.TotalCitations += len(check.Evidence)
		if len(check.Evidence) == 0 {
			summary.CriteriaWithoutEvidence++
		}
	}
	return summary
}

// AlignCriteria compares the locked criteria set with the codes referenced by
// the brief. The overlap ratio is measured against the locked set and the
// mismatch count is the size of the symmetric difference.
func AlignCriteria(authoritative, referenced []string) CriteriaAlignment {
	locked := codeSet(authoritative)
	brief := codeSet(referenced)
	if len(locked) == 0 || len(brief) == 0 {
		return CriteriaAlignment{OverlapRatio: 1}
	}
	overlap := 0
	for code := range locked {
		if _, ok := brief[code]; ok {
			overlap++
		}
	}
	mismatch := (len(locked) - overlap) + (len(brief) - overlap)
	return CriteriaAlignment{
		Known:         true,
		OverlapRatio:  float64(overlap) / float64(len(locked)),
		MismatchCount: mismatch,
	}
}

func codeSet(codes []string) map[CriterionCode]struct{} {
	set := make(map[CriterionCode]struct{}, len(codes))
	for _, raw := range codes {
		code := NormalizeCriterionCode(raw)
		if IsCriterionCode(code) {
			set[code] = struct{}{}
		}
	}
	return set
}

// SynthesizeConfidence computes one calibrated confidence score in [Floor, 1].
// Caps only ever lower the running value.
func SynthesizeConfidence(in ConfidenceInput, cfg ConfidenceConfig) ConfidenceResult {
	signals := deriveSignals(in, cfg)

	base := clamp01(cfg.ModelWeight*signals.ModelConfidence +
		cfg.CriterionWeight*signals.CriterionAverageConfidence +
		cfg.EvidenceWeight*signals.EvidenceScore)

	bonuses := ConfidenceBonuses{ExtractionQuality: extractionBonus(signals, cfg)}
	bonuses.Total = bonuses.ExtractionQuality

	penalties := derivePenalties(signals, cfg)

	raw := clamp01(base + bonuses.Total - penalties.Total)

	result := ConfidenceResult{
		WeightedBaseConfidence:  base,
		RawConfidenceBeforeCaps: raw,
		Bonuses:                 bonuses,
		Penalties:               penalties,
		CapsApplied:             []ConfidenceCap{},
		Signals:                 signals,
	}

	value := raw
	for _, limit := range deriveCaps(signals, cfg) {
		result.CapsApplied = append(result.CapsApplied, limit)
		if value > limit.Value {
			value = limit.Value
			result.WasCapped = true
		}
	}

	result.FinalConfidence = math.Max(cfg.Floor, value)
	return result
}

func deriveSignals(in ConfidenceInput, cfg ConfidenceConfig) ConfidenceSignals {
	signals := ConfidenceSignals{
		ModelConfidence:        clamp01(finiteOr(in.ModelConfidence, 0)),
		TotalCriteria:          len(in.Checks),
		ExtractionMode:         in.ExtractionMode,
		MissingModalities:      max(in.MissingModalities, 0),
		ReadinessFailures:      []string{},
		AlignmentKnown:         in.Alignment.Known,
		AlignmentOverlapRatio:  1,
		AlignmentMismatchCount: 0,
	}
	if in.ExtractionConfidence != nil {
		ec := clamp01(finiteOr(*in.ExtractionConfidence, 0))
		signals.ExtractionConfidence = &ec
	}
	if in.Alignment.Known {
		signals.AlignmentOverlapRatio = clamp01(finiteOr(in.Alignment.OverlapRatio, 0))
		signals.AlignmentMismatchCount = max(in.Alignment.MismatchCount, 0)
	}
	for _, check := range in.Readiness {
		if !check.Passed {
			signals.ReadinessFailures = append(signals.ReadinessFailures, check.Name)
		}
	}

	total := len(in.Checks)
	if total == 0 {
		signals.CriterionAverageConfidence = signals.ModelConfidence
		return signals
	}

	sum := 0.0
	unclear, low := 0, 0
	for _, check := range in.Checks {
		confidence := clamp01(finiteOr(check.Confidence, 0))
		sum += confidence
		if check.Decision == DecisionUnclear {
			unclear++
		}
		if confidence < cfg.LowConfidenceThreshold {
			low++
		}
		if check.Decision == DecisionAchieved && len(check.Evidence) == 0 {
			signals.AchievedWithoutEvidence++
		}
	}

	citations := max(in.Evidence.TotalCitations, 0)
	withoutEvidence := min(max(in.Evidence.CriteriaWithoutEvidence, 0), total)

	signals.CriterionAverageConfidence = sum / float64(total)
	signals.UnclearRatio = float64(unclear) / float64(total)
	signals.LowConfidenceRatio = float64(low) / float64(total)
	signals.NoEvidenceRatio = float64(withoutEvidence) / float64(total)
	signals.TotalCitations = citations
	signals.CitationsPerCriterion = float64(citations) / float64(total)

	density := math.Min(1, signals.CitationsPerCriterion/cfg.TargetCitationsPerCriterion)
	signals.EvidenceScore = clamp01(density - cfg.NoEvidenceScorePenalty*signals.NoEvidenceRatio)
	return signals
}

func extractionBonus(signals ConfidenceSignals, cfg ConfidenceConfig) float64 {
	if signals.ExtractionConfidence == nil || NormalizeToken(signals.ExtractionMode) == ExtractionModeCoverOnly {
		return 0
	}
	ec := *signals.ExtractionConfidence
	if ec <= cfg.ExtractionBonusThreshold {
		return 0
	}
	span := 1 - cfg.ExtractionBonusThreshold
	return math.Min(cfg.ExtractionBonusMax, cfg.ExtractionBonusMax*(ec-cfg.ExtractionBonusThreshold)/span)
}

func derivePenalties(signals ConfidenceSignals, cfg ConfidenceConfig) ConfidencePenalties {
	p := ConfidencePenalties{
		UnclearRatio:       cfg.UnclearPenaltyWeight * signals.UnclearRatio,
		LowConfidenceRatio: cfg.LowConfidencePenaltyWeight * signals.LowConfidenceRatio,
		MissingEvidence:    cfg.MissingEvidencePenaltyWeight * signals.NoEvidenceRatio,
		ModalityGap:        math.Min(cfg.ModalityPenaltyMax, cfg.ModalityPenaltyStep*float64(signals.MissingModalities)),
		Readiness:          math.Min(cfg.ReadinessPenaltyMax, cfg.ReadinessPenaltyStep*float64(len(signals.ReadinessFailures))),
	}
	if signals.AchievedWithoutEvidence > 0 {
		p.AchievedWithoutEvidence = cfg.AchievedWithoutEvidencePenalty
	}
	if signals.AlignmentKnown {
		shortfall := 1 - signals.AlignmentOverlapRatio
		p.CriteriaAlignment = math.Min(cfg.AlignmentPenaltyMax,
			cfg.AlignmentOverlapWeight*shortfall+cfg.AlignmentMismatchStep*float64(signals.AlignmentMismatchCount))
	}
	p.Total = p.UnclearRatio + p.LowConfidenceRatio + p.MissingEvidence + p.AchievedWithoutEvidence +
		p.ModalityGap + p.Readiness + p.CriteriaAlignment
	return p
}

func deriveCaps(signals ConfidenceSignals, cfg ConfidenceConfig) []ConfidenceCap {
	var caps []ConfidenceCap

	if signals.MissingModalities > 0 {
		caps = append(caps, ConfidenceCap{
			Name:   CapModality,
			Value:  cfg.ModalityCap,
			Reason: fmt.Sprintf("%d required evidence modality(ies) missing", signals.MissingModalities),
		})
	}

	if signals.NoEvidenceRatio > 0 {
		value := cfg.EvidenceGapMinorCap
		switch {
		case signals.NoEvidenceRatio >= cfg.EvidenceGapSevereRatio:
			value = cfg.EvidenceGapSevereCap
		case signals.NoEvidenceRatio >= cfg.EvidenceGapModerateRatio:
			value = cfg.EvidenceGapModerateCap
		}
		caps = append(caps, ConfidenceCap{
			Name:   CapEvidenceGap,
			Value:  value,
			Reason: fmt.Sprintf("%.0f%% of criteria lack evidence", signals.NoEvidenceRatio*100),
		})
	}

	if failed := len(signals.ReadinessFailures); failed > 0 {
		value := math.Max(cfg.ReadinessCapFloor, cfg.ReadinessCapBase-cfg.ReadinessCapStep*float64(failed))
		caps = append(caps, ConfidenceCap{
			Name:   CapReadiness,
			Value:  value,
			Reason: fmt.Sprintf("%d readiness check(s) failed", failed),
		})
	}

	if signals.AchievedWithoutEvidence > 0 {
		caps = append(caps, ConfidenceCap{
			Name:   CapAchievedWithoutEvidence,
			Value:  cfg.AchievedWithoutEvidenceCap,
			Reason: fmt.Sprintf("%d criterion(s) marked ACHIEVED without evidence", signals.AchievedWithoutEvidence),
		})
	}

	return caps
}

func finiteOr(value, fallback float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	return value
}
