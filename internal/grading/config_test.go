package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate(nil))
}

func TestConfigValidateRejectsCapBelowFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Confidence.ModalityCap = 0.1

	require.Error(t, cfg.Validate(nil))
}

func TestConfigValidateRejectsOutOfRangeThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputStrategy.MinExtractionConfidence = 1.5
	require.Error(t, cfg.Validate(nil))

	cfg = DefaultConfig()
	cfg.Readiness.MaxWarnings = 0
	require.Error(t, cfg.Validate(nil))
}
