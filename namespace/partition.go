package namespace

import (
	"context"
	"strings"
	"time"

	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/internal/metrics"
	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/util"
	"go.uber.org/zap"
)

// Separator splits a name into subdirectory and leaf.
const Separator = "/"

// Entry is one file of the namespace.
type Entry struct {
	Inode     uint64
	SizeBytes int64
	CreatedAt time.Time
	Contents  []byte // nil for inventory entries
}

// Partition is the tree built from one listing source.
type Partition struct {
	Top     map[string]Entry
	Subdirs map[string]map[string]Entry
	Skipped int // entries left out for bad details or duplicate names
}

func newPartition() *Partition {
	return &Partition{
		Top:     make(map[string]Entry),
		Subdirs: make(map[string]map[string]Entry),
	}
}

// Len returns the number of files in the partition.
func (p *Partition) Len() int {
	n := len(p.Top)
	for _, leaves := range p.Subdirs {
		n += len(leaves)
	}
	return n
}

// DetailFunc answers the per-entry detail query.
type DetailFunc func(ctx context.Context, id string) (inventory.Detail, error)

// SplitName places a name in the tree. The name is split on its first
// separator only, so further separators remain part of the leaf. A name
// without a separator has an empty subdir. ok is false for names that cannot
// be placed: empty names and names with an empty half around the separator.
func SplitName(name string) (subdir, leaf string, ok bool) {
	if name == "" {
		return "", "", false
	}
	subdir, leaf, nested := strings.Cut(name, Separator)
	if !nested {
		return "", name, true
	}
	if subdir == "" || leaf == "" {
		return "", "", false
	}
	return subdir, leaf, true
}

// BuildPartition issues a detail query for every ref and arranges the
// results into a two-level tree. An entry whose detail query fails or
// answers malformed output is skipped and logged; the rest of the partition
// is still built. Within the partition, the first ref to claim a name wins.
func BuildPartition(ctx context.Context, source string, refs []inventory.Ref, detail DetailFunc) *Partition {
	p := newPartition()
	for _, ref := range refs {
		d, err := detail(ctx, ref.ID)
		if err != nil {
			logging.Warn("skipping entry with unusable details",
				zap.String("source", source),
				zap.String("id", ref.ID),
				zap.String("name", ref.Name),
				zap.Error(err))
			metrics.RecordQueryFailure(source, "inspect")
			p.Skipped++
			continue
		}
		created, err := util.ParseTimestamp(d.Created)
		if err != nil {
			logging.Warn("skipping entry with unusable creation time",
				zap.String("source", source),
				zap.String("id", ref.ID),
				zap.Error(err))
			metrics.RecordQueryFailure(source, "inspect")
			p.Skipped++
			continue
		}

		entry := Entry{
			Inode:     util.InodeFromID(ref.ID),
			SizeBytes: d.SizeBytes,
			CreatedAt: created,
		}

		if !p.add(ref.Name, entry) {
			logging.Warn("skipping duplicate or unplaceable name",
				zap.String("source", source),
				zap.String("id", ref.ID),
				zap.String("name", ref.Name))
			p.Skipped++
		}
	}
	return p
}

func (p *Partition) add(name string, e Entry) bool {
	subdir, leaf, ok := SplitName(name)
	if !ok {
		return false
	}
	if subdir == "" {
		if _, ok := p.Top[leaf]; ok {
			return false
		}
		p.Top[leaf] = e
		return true
	}
	leaves, ok := p.Subdirs[subdir]
	if !ok {
		leaves = make(map[string]Entry)
		p.Subdirs[subdir] = leaves
	}
	if _, ok := leaves[leaf]; ok {
		return false
	}
	leaves[leaf] = e
	return true
}
