package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifi/simguard/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		KgramLength:         25,
		WindowSize:          40,
		MinFilesPerHash:     2,
		MaxFilesPerHash:     0,
		SimilarityThreshold: 0.5,
		MaxPairsReturned:    0,
		Language:            "java",
		PrefilterMinFiles:   500,
		AnalysisTimeoutMS:   300000,
		Auto: config.AutoConfig{
			Enabled:              true,
			DebounceMS:           30000,
			ReconcileIntervalMS:  60000,
			MinLatestSubmissions: 2,
		},
	}
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_ZeroKgramLength_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.KgramLength = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidKgramLength)
}

func TestValidate_ZeroWindowSize_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.WindowSize = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidWindowSize)
}

func TestValidate_MinFilesPerHashBelowTwo_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MinFilesPerHash = 1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMinFilesPerHash)
}

func TestValidate_NegativeMaxFilesPerHash_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxFilesPerHash = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMaxFilesPerHash)
}

func TestValidate_ThresholdOutOfRange_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SimilarityThreshold = 1.5
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidSimilarityThreshold)
}

func TestValidate_NegativeMaxPairsReturned_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxPairsReturned = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMaxPairsReturned)
}

func TestValidate_UnknownLanguage_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Language = "rust"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLanguage)
}

func TestValidate_ZeroPrefilterMinFiles_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PrefilterMinFiles = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidPrefilterMinFiles)
}

func TestValidate_ZeroAnalysisTimeout_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.AnalysisTimeoutMS = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidAnalysisTimeoutMS)
}

func TestValidate_NegativeDebounce_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Auto.DebounceMS = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidDebounceMS)
}

func TestValidate_ZeroReconcileInterval_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Auto.ReconcileIntervalMS = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidReconcileIntervalMS)
}

func TestValidate_MinLatestSubmissionsBelowTwo_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Auto.MinLatestSubmissions = 1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMinLatestSubs)
}

func TestToOptions_MapsFieldsAndConvertsTimeout(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	opts := cfg.ToOptions()

	assert.EqualValues(t, "java", opts.Language)
	assert.Equal(t, 25, opts.KgramLength)
	assert.Equal(t, 40, opts.WindowSize)
	assert.Equal(t, 300000*1e6, float64(opts.AnalysisTimeout))
}

func TestToCoordinatorConfig_ConvertsMillisecondsToDurations(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cc := cfg.ToCoordinatorConfig()

	assert.True(t, cc.Enabled)
	assert.Equal(t, 30000*1e6, float64(cc.DebounceInterval))
	assert.Equal(t, 60000*1e6, float64(cc.ReconcileInterval))
	assert.Equal(t, 2, cc.MinLatestSubmissions)
}
