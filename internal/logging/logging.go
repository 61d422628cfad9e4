// Package logging builds the zerolog logger gda reports progress and
// warnings through. User-facing results are printed by the CLI; the logger
// carries diagnostics such as skipped assets, downloads and timings.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "GDA_LOG_LEVEL"
	EnvLogNoColor = "GDA_LOG_NOCOLOR"
	EnvLogJSON    = "GDA_LOG_JSON"
)

// Config controls logger construction.
type Config struct {
	Level   zerolog.Level
	NoColor bool

	// JSON writes raw zerolog JSON lines instead of the console format.
	JSON bool
}

// DefaultConfig shows warnings and errors only.
func DefaultConfig() Config {
	return Config{Level: zerolog.WarnLevel}
}

// FromEnv applies GDA_LOG_* overrides to cfg.
func FromEnv(cfg Config) Config {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
	return cfg
}

// New returns a logger writing to w.
func New(w io.Writer, cfg Config) zerolog.Logger {
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}
	return zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names report false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.WarnLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
