// Package config holds dockerfs settings. Defaults are overridden by
// DOCKERFS_* environment variables, which command-line flags override in turn.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/namespace"
	"go.uber.org/zap/zapcore"
)

// DefaultMountpoint is used when no mountpoint is given. A leading "~" is
// replaced by the user's home directory.
const DefaultMountpoint = "~/mnt/docker-images"

// Config holds all dockerfs settings.
type Config struct {
	// Runtime queries
	Runtime        string   // container runtime binary, e.g. docker or podman
	Sources        []string // listing sources in merge order
	OnQueryFailure string   // empty, stale or unavailable
	QueryTimeout   time.Duration
	NoTrunc        bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string // empty for stderr

	// Mount
	Mountpoint      string
	Foreground      bool
	AutoUnmount     bool
	RefreshInterval time.Duration
	AttrTimeout     time.Duration
	MetricsFile     string
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Runtime:        "docker",
		Sources:        []string{string(inventory.Images), string(inventory.Containers)},
		OnQueryFailure: string(namespace.PolicyEmpty),
		LogLevel:       "info",
		LogFormat:      "console",
		Mountpoint:     DefaultMountpoint,
		AutoUnmount:    true,
		AttrTimeout:    time.Second,
	}
}

// Load returns the defaults with environment overrides applied. The config
// is returned even on error and holds every override that parsed.
func Load() (*Config, error) {
	cfg := Default()
	return cfg, cfg.LoadEnv()
}

// LoadEnv applies DOCKERFS_* environment overrides. Unset or empty
// variables leave the current value alone.
func (c *Config) LoadEnv() error {
	c.Runtime = envOr("DOCKERFS_RUNTIME", c.Runtime)
	if v := os.Getenv("DOCKERFS_SOURCES"); v != "" {
		c.Sources = splitList(v)
	}
	c.OnQueryFailure = envOr("DOCKERFS_ON_QUERY_FAILURE", c.OnQueryFailure)
	c.LogLevel = envOr("DOCKERFS_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("DOCKERFS_LOG_FORMAT", c.LogFormat)
	c.LogFile = envOr("DOCKERFS_LOG_FILE", c.LogFile)
	c.Mountpoint = envOr("DOCKERFS_MOUNTPOINT", c.Mountpoint)
	c.MetricsFile = envOr("DOCKERFS_METRICS_FILE", c.MetricsFile)

	var errs []error
	var err error
	if c.QueryTimeout, err = envDuration("DOCKERFS_QUERY_TIMEOUT", c.QueryTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.RefreshInterval, err = envDuration("DOCKERFS_REFRESH_INTERVAL", c.RefreshInterval); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Runtime) == "" {
		errs = append(errs, errors.New("runtime must not be empty"))
	}
	if _, err := c.Kinds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format %q must be console or json", c.LogFormat))
	}
	for name, d := range map[string]time.Duration{
		"query timeout":    c.QueryTimeout,
		"refresh interval": c.RefreshInterval,
		"attr timeout":     c.AttrTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", name, d))
		}
	}

	return errors.Join(errs...)
}

// Kinds parses Sources. At least one source is required and none may repeat.
func (c *Config) Kinds() ([]inventory.Kind, error) {
	if len(c.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	kinds := make([]inventory.Kind, 0, len(c.Sources))
	for _, s := range c.Sources {
		k, err := inventory.ParseKind(s)
		if err != nil {
			return nil, err
		}
		if slices.Contains(kinds, k) {
			return nil, fmt.Errorf("source %q listed twice", s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Policy parses OnQueryFailure.
func (c *Config) Policy() (namespace.FailurePolicy, error) {
	return namespace.ParseFailurePolicy(c.OnQueryFailure)
}

// MountpointPath returns the mountpoint with a leading "~" expanded.
func (c *Config) MountpointPath() (string, error) {
	return ExpandHome(c.Mountpoint)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
