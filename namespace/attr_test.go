package namespace

import (
	"errors"
	"testing"

	"github.com/dendrascience/dockerfs/util"
)

func TestSynthesizer_Attr(t *testing.T) {
	src := newFakeLister()
	src.add("abcdef", "nginx", ts2021, 1000)
	src.add("123456", "group/leaf", ts2021, 10)
	src.add("654321", "other/leaf", ts2021, 10)
	ns := buildFrom(t, src)

	s := Synthesizer{Started: started, Uid: 1000, Gid: 100}

	root, err := s.Attr(ns, ns.Resolve("/"))
	if err != nil {
		t.Fatalf("root Attr failed: %v", err)
	}
	if root.Mode != DirMode || root.Nlink != 4 || root.Size != 0 {
		t.Errorf("root = %+v, want dir mode with nlink 4", root)
	}
	if !root.Mtime.Equal(started) || root.Uid != 1000 || root.Gid != 100 {
		t.Errorf("root times/owner = %+v", root)
	}
	if root.Inode != util.DirInode("") {
		t.Errorf("root inode = %#x", root.Inode)
	}

	group, err := s.Attr(ns, ns.Resolve("/group"))
	if err != nil {
		t.Fatalf("group Attr failed: %v", err)
	}
	if group.Mode != DirMode || group.Nlink != 2 {
		t.Errorf("group = %+v, want dir mode with nlink 2", group)
	}
	if group.Inode == root.Inode {
		t.Error("subdirectory must not share the root inode")
	}

	nginx, err := s.Attr(ns, ns.Resolve("/nginx"))
	if err != nil {
		t.Fatalf("nginx Attr failed: %v", err)
	}
	if nginx.Mode != FileMode || nginx.Nlink != 1 || nginx.Size != 1000 {
		t.Errorf("nginx = %+v", nginx)
	}
	if nginx.Inode != 0xabcdef {
		t.Errorf("nginx inode = %#x", nginx.Inode)
	}
	created := ns.Resolve("/nginx").Entry.CreatedAt
	if !nginx.Atime.Equal(created) || !nginx.Mtime.Equal(created) || !nginx.Ctime.Equal(created) {
		t.Errorf("nginx times = %v/%v/%v, want %v", nginx.Atime, nginx.Mtime, nginx.Ctime, created)
	}

	readme, err := s.Attr(ns, ns.Resolve("/README"))
	if err != nil {
		t.Fatalf("README Attr failed: %v", err)
	}
	if readme.Size != uint64(len(Marker)) || readme.Inode != util.ReadmeInode {
		t.Errorf("README = %+v", readme)
	}

	if _, err := s.Attr(ns, ns.Resolve("/missing")); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing Attr error = %v, want ErrNotFound", err)
	}
}

func TestSynthesizer_FileAttrClampsNegativeSize(t *testing.T) {
	s := Synthesizer{Started: started}
	if got := s.FileAttr(Entry{SizeBytes: -5}).Size; got != 0 {
		t.Errorf("Size = %d, want 0", got)
	}
}

func TestNewSynthesizer_EffectiveIDs(t *testing.T) {
	s := NewSynthesizer(started)
	if !s.Started.Equal(started) {
		t.Errorf("Started = %v", s.Started)
	}
	empty := Merge(1, started)
	a, err := s.Attr(empty, empty.Resolve(""))
	if err != nil {
		t.Fatal(err)
	}
	if a.Uid != s.Uid || a.Gid != s.Gid || a.Nlink != 2 {
		t.Errorf("root attr = %+v", a)
	}
}
