package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_WritesJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dockerfs.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputPath: out}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { Use(nil) })

	Debug("rebuilt namespace", zap.Int("entries", 3))
	if err := Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"rebuilt namespace"`) || !strings.Contains(string(data), `"entries":3`) {
		t.Errorf("log output missing fields: %s", data)
	}
}

func TestSetLevel(t *testing.T) {
	core, logs := observer.New(globalLevel)
	Use(zap.New(core))
	t.Cleanup(func() {
		Use(nil)
		globalLevel.SetLevel(zapcore.InfoLevel)
	})

	SetLevel("warn")
	Info("hidden")
	Warn("shown")

	if logs.Len() != 1 || logs.All()[0].Message != "shown" {
		t.Errorf("expected only the warning to be logged, got %v", logs.All())
	}

	SetLevel("not-a-level")
	if globalLevel.Level() != zapcore.WarnLevel {
		t.Errorf("invalid level should be ignored, got %v", globalLevel.Level())
	}
}

func TestL_NopBeforeInit(t *testing.T) {
	Use(nil)
	if L() == nil {
		t.Fatal("L should never return nil")
	}
	Info("dropped")
}
