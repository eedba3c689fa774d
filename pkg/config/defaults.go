// Package config holds the default values fed to viper before any config
// file or environment override is applied (spec.md §6.1).
package config

// Fingerprinter and index defaults.
const (
	DefaultKgramLength     = 25
	DefaultWindowSize      = 40
	DefaultMinFilesPerHash = 2
)

// Pair builder and report defaults.
const (
	DefaultSimilarityThreshold = 0.5
	DefaultMaxPairsReturned    = 0 // 0 means unbounded.
	DefaultPrefilterMinFiles   = 500
)

// Language and timeout defaults.
const (
	DefaultLanguage         = "java"
	DefaultAnalysisTimeoutMS = 300000
)

// Auto-analysis coordinator defaults.
const (
	DefaultAutoEnabled              = true
	DefaultAutoDebounceMS           = 30000
	DefaultAutoReconcileIntervalMS  = 60000
	DefaultAutoMinLatestSubmissions = 2
)
