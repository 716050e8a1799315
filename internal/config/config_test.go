package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_JWT_REFRESH_SECRET", "refresh")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, 2, cfg.AIMaxRetries)
	require.Equal(t, 90*time.Second, cfg.AITimeout)
	require.Equal(t, "gema:grading", cfg.EventChannel)
	require.InDelta(t, 0.60, cfg.ReviewThreshold, 1e-9)
	require.Equal(t, grading.DefaultConfig(), cfg.Grading)
}

func TestLoadRequiresJWTSecrets(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")
	t.Setenv("GEMA_JWT_REFRESH_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadGradingReadsOverrides(t *testing.T) {
	t.Setenv("GEMA_GRADING_READINESS_MIN_CHARS", "900")
	t.Setenv("GEMA_GRADING_INPUT_MIN_EXTRACTION_CONFIDENCE", "0.9")
	t.Setenv("GEMA_GRADING_CONFIDENCE_MODALITY_CAP", "0.6")

	cfg, err := LoadGrading()
	require.NoError(t, err)

	require.Equal(t, 900, cfg.Readiness.MinChars)
	require.InDelta(t, 0.9, cfg.InputStrategy.MinExtractionConfidence, 1e-9)
	require.InDelta(t, 0.6, cfg.Confidence.ModalityCap, 1e-9)
	require.Equal(t, grading.DefaultConfig().Confidence.Floor, cfg.Confidence.Floor)
}

func TestLoadGradingReadsCalibrationPolicy(t *testing.T) {
	t.Setenv("GEMA_GRADING_CONFIDENCE_ACHIEVED_WITHOUT_EVIDENCE_CAP", "0.35")
	t.Setenv("GEMA_GRADING_CONFIDENCE_UNCLEAR_PENALTY_WEIGHT", "0.25")
	t.Setenv("GEMA_GRADING_CONFIDENCE_FLOOR", "0.1")

	cfg, err := LoadGrading()
	require.NoError(t, err)

	require.InDelta(t, 0.35, cfg.Confidence.AchievedWithoutEvidenceCap, 1e-9)
	require.InDelta(t, 0.25, cfg.Confidence.UnclearPenaltyWeight, 1e-9)
	require.InDelta(t, 0.1, cfg.Confidence.Floor, 1e-9)
	require.Equal(t, grading.DefaultConfig().Confidence.ModelWeight, cfg.Confidence.ModelWeight)
}

func TestConfidenceKeysCoverEveryField(t *testing.T) {
	var policy grading.ConfidenceConfig
	keys := confidenceKeys(&policy)
	require.Len(t, keys, reflect.TypeOf(policy).NumField())

	seen := make(map[*float64]struct{}, len(keys))
	for key, field := range keys {
		_, dup := seen[field]
		require.False(t, dup, key)
		seen[field] = struct{}{}
	}
}

func TestLoadGradingRejectsInvalidThresholds(t *testing.T) {
	t.Setenv("GEMA_GRADING_CONFIDENCE_MODALITY_CAP", "0.05")

	_, err := LoadGrading()
	require.Error(t, err)
}

func TestHTTPAddressKeepsColonPrefix(t *testing.T) {
	require.Equal(t, ":9090", Config{AppPort: ":9090"}.HTTPAddress())
}
