package namespace

import (
	"fmt"
	"os"
	"time"

	"github.com/dendrascience/dockerfs/util"
	"golang.org/x/sys/unix"
)

const (
	// DirMode is reported for the root and every subdirectory.
	DirMode = os.ModeDir | 0o755
	// FileMode is reported for every file.
	FileMode os.FileMode = 0o444
)

// Attr is the synthesized metadata of a node. Nothing is read from disk.
type Attr struct {
	Inode uint64
	Mode  os.FileMode
	Nlink uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Uid   uint32
	Gid   uint32
}

// Synthesizer derives attributes for namespace nodes.
type Synthesizer struct {
	Started time.Time // timestamps of every directory
	Uid     uint32
	Gid     uint32
}

// NewSynthesizer returns a synthesizer owned by the process's effective
// user and group.
func NewSynthesizer(started time.Time) Synthesizer {
	return Synthesizer{
		Started: started,
		Uid:     uint32(unix.Geteuid()),
		Gid:     uint32(unix.Getegid()),
	}
}

// Attr synthesizes the attributes of a resolved node.
func (s Synthesizer) Attr(ns *Namespace, n Node) (Attr, error) {
	switch n.Kind {
	case Root, Directory:
		return s.DirAttr(n.Inode(), ns.subdirsAt(n)), nil
	case File:
		return s.FileAttr(n.Entry), nil
	}
	return Attr{}, fmt.Errorf("getattr: %w", util.ErrNotFound)
}

// DirAttr returns directory attributes. The link count is 2 plus the number
// of subdirectories directly below.
func (s Synthesizer) DirAttr(inode uint64, subdirs int) Attr {
	return Attr{
		Inode: inode,
		Mode:  DirMode,
		Nlink: uint32(2 + subdirs),
		Size:  0,
		Atime: s.Started,
		Mtime: s.Started,
		Ctime: s.Started,
		Uid:   s.Uid,
		Gid:   s.Gid,
	}
}

// FileAttr returns read-only file attributes stamped with the entry's
// creation time.
func (s Synthesizer) FileAttr(e Entry) Attr {
	size := e.SizeBytes
	if size < 0 {
		size = 0
	}
	return Attr{
		Inode: e.Inode,
		Mode:  FileMode,
		Nlink: 1,
		Size:  uint64(size),
		Atime: e.CreatedAt,
		Mtime: e.CreatedAt,
		Ctime: e.CreatedAt,
		Uid:   s.Uid,
		Gid:   s.Gid,
	}
}
