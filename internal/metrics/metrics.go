// Package metrics provides Prometheus metrics for dockerfs.
//
// dockerfs exposes no network listener; the registry is written to a file in
// text exposition format (for the node_exporter textfile collector) when a
// path is configured.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds every dockerfs metric.
	Registry = prometheus.NewRegistry()

	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockerfs_refreshes_total",
			Help: "Listing refreshes by source and outcome (changed, unchanged, failed)",
		},
		[]string{"source", "outcome"},
	)

	rebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dockerfs_partition_rebuild_duration_seconds",
			Help:    "Time to rebuild a source's partition, detail queries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	queryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockerfs_query_failures_total",
			Help: "Failed or malformed runtime queries by source and query kind",
		},
		[]string{"source", "query"},
	)

	skippedEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dockerfs_skipped_entries_total",
			Help: "Inventory entries dropped for malformed details or name collisions",
		},
	)

	namespaceEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dockerfs_namespace_entries",
			Help: "Number of files in the current namespace, marker included",
		},
	)

	namespaceVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dockerfs_namespace_version",
			Help: "Version number of the current namespace snapshot",
		},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockerfs_operations_total",
			Help: "Filesystem operations by operation and result",
		},
		[]string{"op", "result"},
	)
)

func init() {
	Registry.MustRegister(
		refreshesTotal,
		rebuildDuration,
		queryFailuresTotal,
		skippedEntriesTotal,
		namespaceEntries,
		namespaceVersion,
		operationsTotal,
	)
}

// RecordRefresh counts one listing refresh.
func RecordRefresh(source, outcome string) {
	refreshesTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRebuild records how long a partition rebuild took.
func RecordRebuild(source string, duration time.Duration) {
	rebuildDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordQueryFailure counts a failed listing or detail query.
func RecordQueryFailure(source, query string) {
	queryFailuresTotal.WithLabelValues(source, query).Inc()
}

// RecordSkipped counts entries left out of a rebuild.
func RecordSkipped(n int) {
	skippedEntriesTotal.Add(float64(n))
}

// SetNamespace publishes the size and version of the current snapshot.
func SetNamespace(entries int, version uint64) {
	namespaceEntries.Set(float64(entries))
	namespaceVersion.Set(float64(version))
}

// RecordOperation counts one filesystem operation.
func RecordOperation(op, result string) {
	operationsTotal.WithLabelValues(op, result).Inc()
}

var (
	textfileMu   sync.Mutex
	textfilePath string
)

// SetTextfile configures the file Flush writes to. An empty path disables it.
func SetTextfile(path string) {
	textfileMu.Lock()
	defer textfileMu.Unlock()
	textfilePath = path
}

// Flush writes the registry to the configured textfile, if any.
func Flush() error {
	textfileMu.Lock()
	defer textfileMu.Unlock()
	if textfilePath == "" {
		return nil
	}
	return prometheus.WriteToTextfile(textfilePath, Registry)
}
