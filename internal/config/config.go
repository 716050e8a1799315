package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventChannel     string
	JWTSecret        string
	JWTRefreshSecret string
	AIProvider       string
	AIModel          string
	AIMaxRetries     int
	AITimeout        time.Duration
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	ReviewThreshold  float64
	GradeRateLimit   int
	Grading          grading.Config
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	v := newViper()

	timeout, err := time.ParseDuration(v.GetString("ai.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	gradingCfg, err := gradingFrom(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventChannel:     v.GetString("events.channel"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		AIModel:          v.GetString("ai.model"),
		AIMaxRetries:     v.GetInt("ai.max_retries"),
		AITimeout:        timeout,
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),
		ReviewThreshold:  v.GetFloat64("grading.review_threshold"),
		GradeRateLimit:   v.GetInt("grading.rate_limit"),
		Grading:          gradingCfg,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.AIMaxRetries < 0 {
		cfg.AIMaxRetries = 0
	}

	if cfg.ReviewThreshold < 0 || cfg.ReviewThreshold > 1 {
		return Config{}, fmt.Errorf("grading review threshold must be within [0,1], got %v", cfg.ReviewThreshold)
	}

	return cfg, nil
}

// LoadGrading reads only the grading pipeline thresholds. Offline tools use it
// so they score exactly like the API without needing service secrets.
func LoadGrading() (grading.Config, error) {
	return gradingFrom(newViper())
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grading")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "gema:grading")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.timeout", "90s")
	v.SetDefault("grading.review_threshold", 0.60)
	v.SetDefault("grading.rate_limit", 10)

	defaults := grading.DefaultConfig()
	v.SetDefault("grading.readiness.min_chars", defaults.Readiness.MinChars)
	v.SetDefault("grading.readiness.min_confidence", defaults.Readiness.MinConfidence)
	v.SetDefault("grading.readiness.min_pages", defaults.Readiness.MinPages)
	v.SetDefault("grading.readiness.max_warnings", defaults.Readiness.MaxWarnings)
	v.SetDefault("grading.input.min_extracted_chars", defaults.InputStrategy.MinExtractedChars)
	v.SetDefault("grading.input.min_extraction_confidence", defaults.InputStrategy.MinExtractionConfidence)
	for key, field := range confidenceKeys(&defaults.Confidence) {
		v.SetDefault(confidencePrefix+key, *field)
	}

	return v
}

func gradingFrom(v *viper.Viper) (grading.Config, error) {
	cfg := grading.DefaultConfig()
	cfg.Readiness.MinChars = v.GetInt("grading.readiness.min_chars")
	cfg.Readiness.MinConfidence = v.GetFloat64("grading.readiness.min_confidence")
	cfg.Readiness.MinPages = v.GetInt("grading.readiness.min_pages")
	cfg.Readiness.MaxWarnings = v.GetInt("grading.readiness.max_warnings")
	cfg.InputStrategy.MinExtractedChars = v.GetInt("grading.input.min_extracted_chars")
	cfg.InputStrategy.MinExtractionConfidence = v.GetFloat64("grading.input.min_extraction_confidence")
	for key, field := range confidenceKeys(&cfg.Confidence) {
		*field = v.GetFloat64(confidencePrefix + key)
	}

	if err := cfg.Validate(validator.New(validator.WithRequiredStructEnabled())); err != nil {
		return grading.Config{}, fmt.Errorf("invalid grading configuration: %w", err)
	}

	return cfg, nil
}

const confidencePrefix = "grading.confidence."

// confidenceKeys maps every grading.confidence.* key onto its calibration field.
func confidenceKeys(c *grading.ConfidenceConfig) map[string]*float64 {
	return map[string]*float64{
		"model_weight":                      &c.ModelWeight,
		"criterion_weight":                  &c.CriterionWeight,
		"evidence_weight":                   &c.EvidenceWeight,
		"low_confidence_threshold":          &c.LowConfidenceThreshold,
		"target_citations_per_criterion":    &c.TargetCitationsPerCriterion,
		"no_evidence_score_penalty":         &c.NoEvidenceScorePenalty,
		"extraction_bonus_threshold":        &c.ExtractionBonusThreshold,
		"extraction_bonus_max":              &c.ExtractionBonusMax,
		"unclear_penalty_weight":            &c.UnclearPenaltyWeight,
		"low_confidence_penalty_weight":     &c.LowConfidencePenaltyWeight,
		"missing_evidence_penalty_weight":   &c.MissingEvidencePenaltyWeight,
		"achieved_without_evidence_penalty": &c.AchievedWithoutEvidencePenalty,
		"modality_penalty_step":             &c.ModalityPenaltyStep,
		"modality_penalty_max":              &c.ModalityPenaltyMax,
		"readiness_penalty_step":            &c.ReadinessPenaltyStep,
		"readiness_penalty_max":             &c.ReadinessPenaltyMax,
		"alignment_overlap_weight":          &c.AlignmentOverlapWeight,
		"alignment_mismatch_step":           &c.AlignmentMismatchStep,
		"alignment_penalty_max":             &c.AlignmentPenaltyMax,
		"modality_cap":                      &c.ModalityCap,
		"evidence_gap_severe_ratio":         &c.EvidenceGapSevereRatio,
		"evidence_gap_severe_cap":           &c.EvidenceGapSevereCap,
		"evidence_gap_moderate_ratio":       &c.EvidenceGapModerateRatio,
		"evidence_gap_moderate_cap":         &c.EvidenceGapModerateCap,
		"evidence_gap_minor_cap":            &c.EvidenceGapMinorCap,
		"readiness_cap_base":                &c.ReadinessCapBase,
		"readiness_cap_step":                &c.ReadinessCapStep,
		"readiness_cap_floor":               &c.ReadinessCapFloor,
		"achieved_without_evidence_cap":     &c.AchievedWithoutEvidenceCap,
		"floor":                             &c.Floor,
	}
}
