package grading

import "github.com/go-playground/validator/v10"

// ReadinessConfig holds the thresholds used by the extraction readiness gate.
type ReadinessConfig struct {
	MinChars      int     `json:"minChars" validate:"gte=0"`
	MinConfidence float64 `json:"minConfidence" validate:"gte=0,lte=1"`
	MinPages      int     `json:"minPages" validate:"gte=0"`
	MaxWarnings   int     `json:"maxWarnings" validate:"gte=1"`
}

// InputStrategyConfig holds the thresholds deciding whether extracted text is
// good enough to hand to the grading model instead of page images. They are
// intentionally stricter than the readiness thresholds.
type InputStrategyConfig struct {
	MinExtractedChars       int     `json:"minExtractedChars" validate:"gte=0"`
	MinExtractionConfidence float64 `json:"minExtractionConfidence" validate:"gte=0,lte=1"`
}

// ConfidenceConfig holds the calibration policy of the confidence synthesizer.
// The values are empirically tuned; override them per cohort rather than
// editing the defaults.
type ConfidenceConfig struct {
	ModelWeight     float64 `json:"modelWeight" validate:"gte=0,lte=1"`
	CriterionWeight float64 `json:"criterionWeight" validate:"gte=0,lte=1"`
	EvidenceWeight  float64 `json:"evidenceWeight" validate:"gte=0,lte=1"`

	LowConfidenceThreshold float64 `json:"lowConfidenceThreshold" validate:"gte=0,lte=1"`
	// TargetCitationsPerCriterion is the citation density that earns a full
	// density score.
	TargetCitationsPerCriterion float64 `json:"targetCitationsPerCriterion" validate:"gt=0"`
	NoEvidenceScorePenalty      float64 `json:"noEvidenceScorePenalty" validate:"gte=0,lte=1"`

	ExtractionBonusThreshold float64 `json:"extractionBonusThreshold" validate:"gte=0,lt=1"`
	ExtractionBonusMax       float64 `json:"extractionBonusMax" validate:"gte=0,lte=1"`

	UnclearPenaltyWeight           float64 `json:"unclearPenaltyWeight" validate:"gte=0,lte=1"`
	LowConfidencePenaltyWeight     float64 `json:"lowConfidencePenaltyWeight" validate:"gte=0,lte=1"`
	MissingEvidencePenaltyWeight   float64 `json:"missingEvidencePenaltyWeight" validate:"gte=0,lte=1"`
	AchievedWithoutEvidencePenalty float64 `json:"achievedWithoutEvidencePenalty" validate:"gte=0,lte=1"`
	ModalityPenaltyStep            float64 `json:"modalityPenaltyStep" validate:"gte=0,lte=1"`
	ModalityPenaltyMax             float64 `json:"modalityPenaltyMax" validate:"gte=0,lte=1"`
	ReadinessPenaltyStep           float64 `json:"readinessPenaltyStep" validate:"gte=0,lte=1"`
	ReadinessPenaltyMax            float64 `json:"readinessPenaltyMax" validate:"gte=0,lte=1"`
	AlignmentOverlapWeight         float64 `json:"alignmentOverlapWeight" validate:"gte=0,lte=1"`
	AlignmentMismatchStep          float64 `json:"alignmentMismatchStep" validate:"gte=0,lte=1"`
	AlignmentPenaltyMax            float64 `json:"alignmentPenaltyMax" validate:"gte=0,lte=1"`

	// Caps must stay above Floor so a binding cap is never overridden by it.
	ModalityCap                float64 `json:"modalityCap" validate:"gtefield=Floor,lte=1"`
	EvidenceGapSevereRatio     float64 `json:"evidenceGapSevereRatio" validate:"gte=0,lte=1"`
	EvidenceGapSevereCap       float64 `json:"evidenceGapSevereCap" validate:"gtefield=Floor,lte=1"`
	EvidenceGapModerateRatio   float64 `json:"evidenceGapModerateRatio" validate:"gte=0,lte=1"`
	EvidenceGapModerateCap     float64 `json:"evidenceGapModerateCap" validate:"gtefield=Floor,lte=1"`
	EvidenceGapMinorCap        float64 `json:"evidenceGapMinorCap" validate:"gtefield=Floor,lte=1"`
	ReadinessCapBase           float64 `json:"readinessCapBase" validate:"gtefield=Floor,lte=1"`
	ReadinessCapStep           float64 `json:"readinessCapStep" validate:"gte=0,lte=1"`
	ReadinessCapFloor          float64 `json:"readinessCapFloor" validate:"gtefield=Floor,lte=1"`
	AchievedWithoutEvidenceCap float64 `json:"achievedWithoutEvidenceCap" validate:"gtefield=Floor,lte=1"`

	Floor float64 `json:"floor" validate:"gt=0,lte=1"`
}

// Config bundles every tunable of the grading pipeline. Build it once per
// deployment and pass it by value.
type Config struct {
	Readiness     ReadinessConfig     `json:"readiness"`
	InputStrategy InputStrategyConfig `json:"inputStrategy"`
	Confidence    ConfidenceConfig    `json:"confidence"`
}

// DefaultReadinessConfig returns the production readiness thresholds.
func DefaultReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		MinChars:      700,
		MinConfidence: 0.68,
		MinPages:      1,
		MaxWarnings:   8,
	}
}

// DefaultInputStrategyConfig returns the production input strategy thresholds.
func DefaultInputStrategyConfig() InputStrategyConfig {
	return InputStrategyConfig{
		MinExtractedChars:       2200,
		MinExtractionConfidence: 0.84,
	}
}

// DefaultConfidenceConfig returns the calibrated confidence policy.
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		ModelWeight:     0.40,
		CriterionWeight: 0.35,
		EvidenceWeight:  0.25,

		LowConfidenceThreshold:      0.55,
		TargetCitationsPerCriterion: 2,
		NoEvidenceScorePenalty:      0.5,

		ExtractionBonusThreshold: 0.97,
		ExtractionBonusMax:       0.04,

		UnclearPenaltyWeight:           0.18,
		LowConfidencePenaltyWeight:     0.12,
		MissingEvidencePenaltyWeight:   0.20,
		AchievedWithoutEvidencePenalty: 0.20,
		ModalityPenaltyStep:            0.08,
		ModalityPenaltyMax:             0.25,
		ReadinessPenaltyStep:           0.05,
		ReadinessPenaltyMax:            0.20,
		AlignmentOverlapWeight:         0.08,
		AlignmentMismatchStep:          0.02,
		AlignmentPenaltyMax:            0.12,

		ModalityCap:                0.65,
		EvidenceGapSevereRatio:     0.5,
		EvidenceGapSevereCap:       0.72,
		EvidenceGapModerateRatio:   0.25,
		EvidenceGapModerateCap:     0.80,
		EvidenceGapMinorCap:        0.86,
		ReadinessCapBase:           0.90,
		ReadinessCapStep:           0.04,
		ReadinessCapFloor:          0.68,
		AchievedWithoutEvidenceCap: 0.40,

		Floor: 0.20,
	}
}

// DefaultConfig returns the full default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Readiness:     DefaultReadinessConfig(),
		InputStrategy: DefaultInputStrategyConfig(),
		Confidence:    DefaultConfidenceConfig(),
	}
}

// Validate checks the configuration against its struct constraints.
func (c Config) Validate(validate *validator.Validate) error {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return validate.Struct(c)
}
