package cmd

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/formctl/cmd/formctl/internal/config"
)

// Environment variables overriding the log section of formctl.yaml.
const (
	EnvLogLevel  = "FORMCTL_LOG_LEVEL"
	EnvLogFormat = "FORMCTL_LOG_FORMAT"
)

// newLogger builds the command logger. Logs go to w so reports on stdout
// stay machine readable.
func newLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	levelStr := os.Getenv(EnvLogLevel)
	if levelStr == "" {
		levelStr = cfg.Level
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || levelStr == "" {
		level = zerolog.WarnLevel
	}

	format := os.Getenv(EnvLogFormat)
	if format == "" {
		format = cfg.Format
	}
	if format == "console" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
