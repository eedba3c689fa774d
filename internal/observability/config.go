package observability

import "log/slog"

// AppMode distinguishes CLI invocations from long-running service mode for
// log and trace attribution.
type AppMode string

const (
	ModeCLI     AppMode = "cli"
	ModeService AppMode = "service"
)

// Config controls logger and tracer construction. The zero value is usable:
// DefaultConfig fills in a sane baseline for local development.
type Config struct {
	ServiceName string
	Environment string
	Mode        AppMode
	LogLevel    slog.Level
	LogJSON     bool
	SampleRatio float64
}

// DefaultConfig returns the baseline configuration: info-level text logs,
// always-on tracing, tagged as running in CLI mode.
func DefaultConfig() Config {
	return Config{
		ServiceName: "simguard",
		Mode:        ModeCLI,
		LogLevel:    slog.LevelInfo,
		LogJSON:     false,
		SampleRatio: 1.0,
	}
}
