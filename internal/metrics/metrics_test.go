package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(refreshesTotal.WithLabelValues("images", "changed"))
	RecordRefresh("images", "changed")
	RecordRefresh("images", "changed")
	after := testutil.ToFloat64(refreshesTotal.WithLabelValues("images", "changed"))
	if after-before != 2 {
		t.Errorf("expected 2 more refreshes, got %v", after-before)
	}
}

func TestSetNamespace(t *testing.T) {
	SetNamespace(7, 3)
	if got := testutil.ToFloat64(namespaceEntries); got != 7 {
		t.Errorf("namespace entries = %v, want 7", got)
	}
	if got := testutil.ToFloat64(namespaceVersion); got != 3 {
		t.Errorf("namespace version = %v, want 3", got)
	}
}

func TestFlush(t *testing.T) {
	SetTextfile("")
	if err := Flush(); err != nil {
		t.Fatalf("Flush without a textfile should be a no-op, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "dockerfs.prom")
	SetTextfile(path)
	t.Cleanup(func() { SetTextfile("") })

	RecordRebuild("containers", 20*time.Millisecond)
	RecordOperation("getattr", "ok")
	if err := Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	for _, want := range []string{
		"dockerfs_partition_rebuild_duration_seconds_count{source=\"containers\"}",
		"dockerfs_operations_total{op=\"getattr\",result=\"ok\"}",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
