// Package config is simguard's top-level configuration: the Config struct
// mirrors spec.md §6.1's option table, with viper-based loading (loader.go)
// and package defaults (pkg/config) kept separate, the way the teacher
// splits its own internal/config/{config,loader}.go and pkg/config's
// defaults.go.
package config

import (
	"errors"
	"time"

	"github.com/classifi/simguard/internal/coordinator"
	"github.com/classifi/simguard/pkg/similarity"
)

// Config is the top-level configuration struct. Field tags use
// mapstructure for viper unmarshalling.
type Config struct {
	KgramLength         int        `mapstructure:"kgram_length"`
	WindowSize          int        `mapstructure:"window_size"`
	MinFilesPerHash     int        `mapstructure:"min_files_per_hash"`
	MaxFilesPerHash     int        `mapstructure:"max_files_per_hash"`
	SimilarityThreshold float64    `mapstructure:"similarity_threshold"`
	MaxPairsReturned    int        `mapstructure:"max_pairs_returned"`
	Language            string     `mapstructure:"language"`
	PrefilterMinFiles   int        `mapstructure:"prefilter_min_files"`
	AnalysisTimeoutMS   int        `mapstructure:"analysis_timeout_ms"`
	Auto                AutoConfig `mapstructure:"auto"`
}

// AutoConfig holds the auto-analysis coordinator's cadence knobs.
type AutoConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	DebounceMS           int  `mapstructure:"debounce_ms"`
	ReconcileIntervalMS  int  `mapstructure:"reconcile_interval_ms"`
	MinLatestSubmissions int  `mapstructure:"min_latest_submissions"`
}

// Sentinel errors for configuration validation.
var (
	ErrInvalidKgramLength         = errors.New("kgram_length must be positive")
	ErrInvalidWindowSize          = errors.New("window_size must be positive")
	ErrInvalidMinFilesPerHash     = errors.New("min_files_per_hash must be at least 2")
	ErrInvalidMaxFilesPerHash     = errors.New("max_files_per_hash must be non-negative")
	ErrInvalidSimilarityThreshold = errors.New("similarity_threshold must be between 0 and 1")
	ErrInvalidMaxPairsReturned    = errors.New("max_pairs_returned must be non-negative")
	ErrInvalidLanguage            = errors.New("language must be one of java, python, c")
	ErrInvalidPrefilterMinFiles   = errors.New("prefilter_min_files must be positive")
	ErrInvalidAnalysisTimeoutMS   = errors.New("analysis_timeout_ms must be positive")
	ErrInvalidDebounceMS          = errors.New("auto.debounce_ms must be non-negative")
	ErrInvalidReconcileIntervalMS = errors.New("auto.reconcile_interval_ms must be positive")
	ErrInvalidMinLatestSubs       = errors.New("auto.min_latest_submissions must be at least 2")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.KgramLength <= 0 {
		return ErrInvalidKgramLength
	}

	if c.WindowSize <= 0 {
		return ErrInvalidWindowSize
	}

	if c.MinFilesPerHash < 2 { //nolint:gomnd // a hash shared by fewer than two files can never be "shared".
		return ErrInvalidMinFilesPerHash
	}

	if c.MaxFilesPerHash < 0 {
		return ErrInvalidMaxFilesPerHash
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return ErrInvalidSimilarityThreshold
	}

	if c.MaxPairsReturned < 0 {
		return ErrInvalidMaxPairsReturned
	}

	switch similarity.LangTag(c.Language) {
	case similarity.LangJava, similarity.LangPython, similarity.LangC:
	default:
		return ErrInvalidLanguage
	}

	if c.PrefilterMinFiles <= 0 {
		return ErrInvalidPrefilterMinFiles
	}

	if c.AnalysisTimeoutMS <= 0 {
		return ErrInvalidAnalysisTimeoutMS
	}

	return c.Auto.validate()
}

func (a *AutoConfig) validate() error {
	if a.DebounceMS < 0 {
		return ErrInvalidDebounceMS
	}

	if a.ReconcileIntervalMS <= 0 {
		return ErrInvalidReconcileIntervalMS
	}

	if a.MinLatestSubmissions < 2 { //nolint:gomnd // pairwise comparison needs at least two submissions.
		return ErrInvalidMinLatestSubs
	}

	return nil
}

// ToOptions converts a validated Config into similarity.Options.
func (c *Config) ToOptions() similarity.Options {
	return similarity.Options{
		Language:            similarity.LangTag(c.Language),
		KgramLength:         c.KgramLength,
		WindowSize:          c.WindowSize,
		MinFilesPerHash:     c.MinFilesPerHash,
		MaxFilesPerHash:     c.MaxFilesPerHash,
		SimilarityThreshold: c.SimilarityThreshold,
		MaxPairsReturned:    c.MaxPairsReturned,
		AnalysisTimeout:     time.Duration(c.AnalysisTimeoutMS) * time.Millisecond,
		PrefilterMinFiles:   c.PrefilterMinFiles,
	}
}

// ToCoordinatorConfig converts the Auto section into coordinator.Config.
func (c *Config) ToCoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Enabled:              c.Auto.Enabled,
		DebounceInterval:     time.Duration(c.Auto.DebounceMS) * time.Millisecond,
		ReconcileInterval:    time.Duration(c.Auto.ReconcileIntervalMS) * time.Millisecond,
		MinLatestSubmissions: c.Auto.MinLatestSubmissions,
	}
}
