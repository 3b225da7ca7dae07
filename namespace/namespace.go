package namespace

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadmeName is the reserved top-level marker file.
const ReadmeName = "README"

// Marker is the content of the README file.
var Marker = []byte("Presence of this virtual file means the DockerFS is mounted.\n")

// Namespace is an immutable snapshot of the two-level tree. A new snapshot
// is built for every detected inventory change and replaces the previous
// one wholesale.
type Namespace struct {
	Generation uuid.UUID
	Version    uint64
	BuiltAt    time.Time
	Skipped    int // entries dropped while building partitions and merging

	top     map[string]Entry
	subdirs map[string]map[string]Entry
}

// Merge combines partitions, in order, with the README marker into a new
// namespace. started is the process start time, used as the marker's
// creation time.
//
// Collision rules: README is reserved at the top level, a subdirectory beats
// a top-level file of the same name, and otherwise the first partition to
// claim a name keeps it. Every dropped entry is logged.
func Merge(version uint64, started time.Time, parts ...*Partition) *Namespace {
	ns := &Namespace{
		Generation: uuid.New(),
		Version:    version,
		BuiltAt:    time.Now(),
		top: map[string]Entry{
			ReadmeName: {
				Inode:     util.ReadmeInode,
				SizeBytes: int64(len(Marker)),
				CreatedAt: started,
				Contents:  Marker,
			},
		},
		subdirs: make(map[string]map[string]Entry),
	}

	for _, p := range parts {
		if p == nil {
			continue
		}
		ns.Skipped += p.Skipped
		for _, dir := range slices.Sorted(maps.Keys(p.Subdirs)) {
			leaves := p.Subdirs[dir]
			if dir == ReadmeName {
				ns.drop("subdirectory shadows the marker file", dir, len(leaves))
				continue
			}
			merged, ok := ns.subdirs[dir]
			if !ok {
				merged = make(map[string]Entry, len(leaves))
				ns.subdirs[dir] = merged
			}
			for _, leaf := range slices.Sorted(maps.Keys(leaves)) {
				if _, taken := merged[leaf]; taken {
					ns.drop("name already taken", dir+Separator+leaf, 1)
					continue
				}
				merged[leaf] = leaves[leaf]
			}
		}
	}

	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(p.Top)) {
			switch _, isDir := ns.subdirs[name]; {
			case name == ReadmeName:
				ns.drop("name reserved for the marker file", name, 1)
			case isDir:
				ns.drop("name taken by a subdirectory", name, 1)
			default:
				if _, taken := ns.top[name]; taken {
					ns.drop("name already taken", name, 1)
					continue
				}
				ns.top[name] = p.Top[name]
			}
		}
	}

	return ns
}

func (ns *Namespace) drop(reason, name string, n int) {
	logging.Warn("dropping colliding entry",
		zap.String("name", name),
		zap.String("reason", reason),
		zap.Int("entries", n))
	ns.Skipped += n
}

// Len returns the number of files, README included.
func (ns *Namespace) Len() int {
	n := len(ns.top)
	for _, leaves := range ns.subdirs {
		n += len(leaves)
	}
	return n
}

// NumSubdirs returns the number of subdirectories under the root.
func (ns *Namespace) NumSubdirs() int {
	return len(ns.subdirs)
}

// Iterate yields every file with its full path (without a leading
// separator) in sorted order: top-level entries first, then subdirectories.
func (ns *Namespace) Iterate(yield func(string, Entry) bool) {
	for _, name := range slices.Sorted(maps.Keys(ns.top)) {
		if !yield(name, ns.top[name]) {
			return
		}
	}
	for _, dir := range slices.Sorted(maps.Keys(ns.subdirs)) {
		leaves := ns.subdirs[dir]
		for _, leaf := range slices.Sorted(maps.Keys(leaves)) {
			if !yield(dir+Separator+leaf, leaves[leaf]) {
				return
			}
		}
	}
}

// Kind classifies a resolved path.
type Kind int

const (
	NotFound Kind = iota
	Root
	Directory
	File
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Directory:
		return "directory"
	case File:
		return "file"
	default:
		return "not-found"
	}
}

// Node is the result of resolving a path.
type Node struct {
	Kind   Kind
	Subdir string // set for directories and for files inside a subdirectory
	Name   string // leaf or top-level name; empty for directories
	Entry  Entry  // valid when Kind == File
}

// IsDir reports whether the node is the root or a subdirectory.
func (n Node) IsDir() bool {
	return n.Kind == Root || n.Kind == Directory
}

// Inode returns the node's inode number.
func (n Node) Inode() uint64 {
	switch n.Kind {
	case Root:
		return util.DirInode("")
	case Directory:
		return util.DirInode(n.Subdir)
	case File:
		return n.Entry.Inode
	}
	return 0
}

// Resolve maps a path to a node. One leading separator is stripped. A path
// with a separator is split on the first one into subdirectory and leaf; a
// single segment is looked up among the top-level files, then among the
// subdirectories.
func (ns *Namespace) Resolve(path string) Node {
	path = strings.TrimPrefix(path, Separator)
	if path == "" {
		return Node{Kind: Root}
	}

	if subdir, leaf, nested := strings.Cut(path, Separator); nested {
		if e, ok := ns.subdirs[subdir][leaf]; ok {
			return Node{Kind: File, Subdir: subdir, Name: leaf, Entry: e}
		}
		return Node{Kind: NotFound}
	}

	if e, ok := ns.top[path]; ok {
		return Node{Kind: File, Name: path, Entry: e}
	}
	if _, ok := ns.subdirs[path]; ok {
		return Node{Kind: Directory, Subdir: path}
	}
	return Node{Kind: NotFound}
}

// DirEntry is one name of a directory listing.
type DirEntry struct {
	Name  string
	Inode uint64
	IsDir bool
}

// ReadDir lists a directory: "." and ".." first, then subdirectories, then
// files, each group sorted. Leaves whose names still contain a separator
// cannot be a single directory entry and are left out; Resolve still finds
// them. Every call returns a fresh slice.
func (ns *Namespace) ReadDir(path string) ([]DirEntry, error) {
	node := ns.Resolve(path)
	rootInode := util.DirInode("")

	switch node.Kind {
	case Root:
		entries := make([]DirEntry, 0, 2+len(ns.subdirs)+len(ns.top))
		entries = append(entries,
			DirEntry{Name: ".", Inode: rootInode, IsDir: true},
			DirEntry{Name: "..", Inode: rootInode, IsDir: true})
		for _, dir := range slices.Sorted(maps.Keys(ns.subdirs)) {
			entries = append(entries, DirEntry{Name: dir, Inode: util.DirInode(dir), IsDir: true})
		}
		for _, name := range slices.Sorted(maps.Keys(ns.top)) {
			entries = append(entries, DirEntry{Name: name, Inode: ns.top[name].Inode})
		}
		return entries, nil

	case Directory:
		leaves := ns.subdirs[node.Subdir]
		entries := make([]DirEntry, 0, 2+len(leaves))
		entries = append(entries,
			DirEntry{Name: ".", Inode: node.Inode(), IsDir: true},
			DirEntry{Name: "..", Inode: rootInode, IsDir: true})
		for _, leaf := range slices.Sorted(maps.Keys(leaves)) {
			if strings.Contains(leaf, Separator) {
				continue
			}
			entries = append(entries, DirEntry{Name: leaf, Inode: leaves[leaf].Inode})
		}
		return entries, nil
	}

	return nil, fmt.Errorf("readdir %q: %w", path, util.ErrNotFound)
}

// subdirsAt returns the number of subdirectories directly under a node.
func (ns *Namespace) subdirsAt(n Node) int {
	if n.Kind == Root {
		return len(ns.subdirs)
	}
	return 0
}
