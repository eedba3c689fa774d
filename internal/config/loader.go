package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	defaults "github.com/classifi/simguard/pkg/config"
)

// configName is the config file name without extension.
const configName = ".simguard"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for simguard settings.
const envPrefix = "SIMGUARD"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME. A missing config
// file is not an error; defaults and env overrides still apply.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("kgram_length", defaults.DefaultKgramLength)
	viperCfg.SetDefault("window_size", defaults.DefaultWindowSize)
	viperCfg.SetDefault("min_files_per_hash", defaults.DefaultMinFilesPerHash)
	viperCfg.SetDefault("max_files_per_hash", 0)

	viperCfg.SetDefault("similarity_threshold", defaults.DefaultSimilarityThreshold)
	viperCfg.SetDefault("max_pairs_returned", defaults.DefaultMaxPairsReturned)
	viperCfg.SetDefault("prefilter_min_files", defaults.DefaultPrefilterMinFiles)

	viperCfg.SetDefault("language", defaults.DefaultLanguage)
	viperCfg.SetDefault("analysis_timeout_ms", defaults.DefaultAnalysisTimeoutMS)

	viperCfg.SetDefault("auto.enabled", defaults.DefaultAutoEnabled)
	viperCfg.SetDefault("auto.debounce_ms", defaults.DefaultAutoDebounceMS)
	viperCfg.SetDefault("auto.reconcile_interval_ms", defaults.DefaultAutoReconcileIntervalMS)
	viperCfg.SetDefault("auto.min_latest_submissions", defaults.DefaultAutoMinLatestSubmissions)
}
