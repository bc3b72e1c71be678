// Package config loads heapctl settings from an optional YAML file and the
// environment. Environment variables win over the file; command-line flags
// win over both (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/fixheap/internal/format"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. FIXHEAP_LOG_LEVEL.
	EnvPrefix = "FIXHEAP"

	// ConfigFileEnv names the variable pointing at an optional YAML file.
	ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"
)

// Config holds the tunables shared by the CLI and library helpers.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL"  yaml:"logLevel"`
	LogFormat string `envconfig:"LOG_FORMAT" yaml:"logFormat"`
	// LogAlloc enables debug records for failed allocations and swallowed
	// deallocation errors.
	LogAlloc bool   `envconfig:"LOG_ALLOC" yaml:"logAlloc"`
	Capacity int    `envconfig:"CAPACITY"  yaml:"capacity"`
	Codec    string `envconfig:"CODEC"     yaml:"codec"`
}

// Default returns the built-in settings. Defaults are applied before the
// file and the environment rather than through envconfig's default tags,
// which would clobber values read from the file.
func Default() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Capacity:  64 * 1024,
		Codec:     "zstd",
	}
}

// Load reads the file named by FIXHEAP_CONFIG_FILE, if any, then applies the
// environment and validates the result.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every field and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}
	if err := format.CheckCapacity(c.Capacity, format.MinCapacity); err != nil {
		errs = append(errs, fmt.Errorf("capacity: %w", err))
	}
	switch strings.ToLower(c.Codec) {
	case "zstd", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("codec %q: want zstd, lz4 or none", c.Codec))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
