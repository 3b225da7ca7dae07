package namespace

import (
	"encoding/json"
	"io"
	"time"

	"github.com/dendrascience/dockerfs/version"
)

// Stats summarizes a namespace snapshot.
type Stats struct {
	DockerFSVersion string    `json:"dockerfs_version"`
	Generation      string    `json:"generation"`
	NamespaceVer    uint64    `json:"namespace_version"`
	FileCount       int       `json:"file_count"`
	SubdirCount     int       `json:"subdir_count"`
	SkippedCount    int       `json:"skipped_count"`
	TotalSize       int64     `json:"total_size"`
	OldestEntryTS   time.Time `json:"oldest_entry_ts"`
	NewestEntryTS   time.Time `json:"newest_entry_ts"`
}

// Stats computes a summary of the snapshot. The marker file counts as a file
// but does not contribute to sizes or timestamps.
func (ns *Namespace) Stats() Stats {
	s := Stats{
		DockerFSVersion: version.GetVersion(),
		Generation:      ns.Generation.String(),
		NamespaceVer:    ns.Version,
		FileCount:       ns.Len(),
		SubdirCount:     ns.NumSubdirs(),
		SkippedCount:    ns.Skipped,
	}
	for _, e := range ns.Iterate {
		if e.Contents != nil {
			continue
		}
		s.TotalSize += e.SizeBytes
		if s.OldestEntryTS.IsZero() || e.CreatedAt.Before(s.OldestEntryTS) {
			s.OldestEntryTS = e.CreatedAt
		}
		if e.CreatedAt.After(s.NewestEntryTS) {
			s.NewestEntryTS = e.CreatedAt
		}
	}
	return s
}

// Encode writes the stats as indented JSON.
func (s Stats) Encode(w io.Writer) error {
	je := json.NewEncoder(w)
	je.SetIndent("", "  ")
	return je.Encode(s)
}
