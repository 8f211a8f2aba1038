package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the optional per-directory CLI configuration file.
const FileName = "formctl.yaml"

// Config represents the optional formctl.yaml configuration.
type Config struct {
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	// Color is "auto" (the default), "always" or "never".
	Color  string `yaml:"color,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// LogConfig sets the log level and format. FORMCTL_LOG_LEVEL and
// FORMCTL_LOG_FORMAT take precedence.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LoadOptional reads formctl.yaml from dir if present and fills defaults.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return withDefaults(&Config{})
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return withDefaults(&cfg)
}

func withDefaults(cfg *Config) (*Config, error) {
	cfg.Output.Color = strings.ToLower(strings.TrimSpace(cfg.Output.Color))
	switch cfg.Output.Color {
	case "":
		cfg.Output.Color = "auto"
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("output.color must be auto, always or never (got %q)", cfg.Output.Color)
	}

	switch cfg.Output.Format {
	case "":
		cfg.Output.Format = FormatText
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("output.format must be text or json (got %q)", cfg.Output.Format)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	return cfg, nil
}
