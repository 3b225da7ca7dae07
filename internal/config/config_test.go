package config

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/namespace"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	kinds, _ := cfg.Kinds()
	if !slices.Equal(kinds, []inventory.Kind{inventory.Images, inventory.Containers}) {
		t.Errorf("Kinds = %v", kinds)
	}
	if p, _ := cfg.Policy(); p != namespace.PolicyEmpty {
		t.Errorf("Policy = %q, want empty", p)
	}
	if cfg.AttrTimeout != time.Second || cfg.RefreshInterval != 0 || cfg.QueryTimeout != 0 {
		t.Errorf("timings = %v/%v/%v", cfg.AttrTimeout, cfg.RefreshInterval, cfg.QueryTimeout)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DOCKERFS_RUNTIME", "podman")
	t.Setenv("DOCKERFS_SOURCES", " containers , ,images")
	t.Setenv("DOCKERFS_ON_QUERY_FAILURE", "stale")
	t.Setenv("DOCKERFS_LOG_LEVEL", "debug")
	t.Setenv("DOCKERFS_LOG_FORMAT", "json")
	t.Setenv("DOCKERFS_QUERY_TIMEOUT", "5s")
	t.Setenv("DOCKERFS_REFRESH_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Runtime != "podman" || cfg.OnQueryFailure != "stale" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.Sources, []string{"containers", "images"}) {
		t.Errorf("Sources = %q", cfg.Sources)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("logging = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.QueryTimeout != 5*time.Second || cfg.RefreshInterval != 250*time.Millisecond {
		t.Errorf("durations = %v/%v", cfg.QueryTimeout, cfg.RefreshInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadEnv_EmptyKeepsDefault(t *testing.T) {
	t.Setenv("DOCKERFS_RUNTIME", "")
	t.Setenv("DOCKERFS_SOURCES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Runtime != "docker" || len(cfg.Sources) != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadEnv_BadDuration(t *testing.T) {
	t.Setenv("DOCKERFS_QUERY_TIMEOUT", "soon")

	t.Setenv("DOCKERFS_RUNTIME", "podman")

	cfg, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DOCKERFS_QUERY_TIMEOUT") {
		t.Errorf("Load error = %v, want one naming the variable", err)
	}
	if cfg == nil || cfg.Runtime != "podman" {
		t.Errorf("cfg = %+v, want the overrides that parsed", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty runtime", func(c *Config) { c.Runtime = " " }, "runtime"},
		{"no sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"unknown source", func(c *Config) { c.Sources = []string{"volumes"} }, "volumes"},
		{"repeated source", func(c *Config) { c.Sources = []string{"images", "Images"} }, "twice"},
		{"bad policy", func(c *Config) { c.OnQueryFailure = "retry" }, "retry"},
		{"bad level", func(c *Config) { c.LogLevel = "chatty" }, "log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"negative interval", func(c *Config) { c.RefreshInterval = -time.Second }, "refresh interval"},
		{"negative attr timeout", func(c *Config) { c.AttrTimeout = -1 }, "attr timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := []struct {
		in, want string
	}{
		{"~", "/home/tester"},
		{"~/mnt/docker-images", filepath.Join("/home/tester", "mnt/docker-images")},
		{"/mnt/docker", "/mnt/docker"},
		{"relative/dir", "relative/dir"},
		{"~other/dir", "~other/dir"},
	}
	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		if err != nil {
			t.Errorf("ExpandHome(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	cfg := Default()
	got, err := cfg.MountpointPath()
	if err != nil || got != "/home/tester/mnt/docker-images" {
		t.Errorf("MountpointPath = %q, %v", got, err)
	}
}
