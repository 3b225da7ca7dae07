package dockerfs

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"bazil.org/fuse"
	"github.com/dendrascience/dockerfs/namespace"
	"github.com/dendrascience/dockerfs/util"
)

func newTestFS(t *testing.T) (*FS, *rig) {
	t.Helper()
	r := newRig(t, namespace.PolicyEmpty, Options{})
	r.setImages("abcdef:nginx\n")
	r.setImageDetail("abcdef", "2021-01-01T00:00:00Z 1000")
	r.setContainers("123456:group/leaf\n654321:registry:5000/team/app\n")
	r.setContainerDetail("123456", "2022-01-01T00:00:00Z 10")
	r.setContainerDetail("654321", "2022-01-01T00:00:00Z 20")
	return NewFS(r.adapter, time.Second), r
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{util.ErrNotFound, syscall.ENOENT},
		{fmt.Errorf("readdir %q: %w", "/x", util.ErrNotFound), syscall.ENOENT},
		{util.ErrUnsupported, syscall.ENOTSUP},
		{errors.Join(fmt.Errorf("images: %w", util.ErrUnavailable)), syscall.EAGAIN},
		{errors.New("boom"), syscall.EIO},
	}
	for _, tt := range tests {
		if got := toErrno(tt.err); got != tt.want {
			t.Errorf("toErrno(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRootAttr(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx := context.Background()

	root, err := fsys.Root()
	if err != nil {
		t.Fatal(err)
	}
	var a fuse.Attr
	if err := root.Attr(ctx, &a); err != nil {
		t.Fatalf("Attr failed: %v", err)
	}
	if !a.Mode.IsDir() || a.Valid != time.Second {
		t.Errorf("root attr = %+v", a)
	}
	if a.Inode != util.DirInode("") {
		t.Errorf("root inode = %#x", a.Inode)
	}
	if !a.Mtime.Equal(started) {
		t.Errorf("root mtime = %v, want process start", a.Mtime)
	}
}

func TestDirLookup(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx := context.Background()
	root := &Dir{fs: fsys, path: "/"}

	n, err := root.Lookup(ctx, "nginx")
	if err != nil {
		t.Fatalf("Lookup(nginx) failed: %v", err)
	}
	file, ok := n.(*File)
	if !ok {
		t.Fatalf("nginx node = %T, want *File", n)
	}
	var a fuse.Attr
	if err := file.Attr(ctx, &a); err != nil {
		t.Fatal(err)
	}
	if a.Inode != 0xabcdef || a.Size != 1000 || a.Mode != namespace.FileMode || a.Nlink != 1 {
		t.Errorf("nginx attr = %+v", a)
	}

	n, err = root.Lookup(ctx, "group")
	if err != nil {
		t.Fatalf("Lookup(group) failed: %v", err)
	}
	group, ok := n.(*Dir)
	if !ok {
		t.Fatalf("group node = %T, want *Dir", n)
	}
	if group.path != "/group" {
		t.Errorf("group path = %q", group.path)
	}
	if _, err := group.Lookup(ctx, "leaf"); err != nil {
		t.Errorf("Lookup(group/leaf) failed: %v", err)
	}

	if _, err := root.Lookup(ctx, "missing"); err != syscall.ENOENT {
		t.Errorf("Lookup(missing) error = %v, want ENOENT", err)
	}
	if _, err := group.Lookup(ctx, "missing"); err != syscall.ENOENT {
		t.Errorf("Lookup(group/missing) error = %v, want ENOENT", err)
	}
}

func TestReadDirAll(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx := context.Background()

	dirents, err := (&Dir{fs: fsys, path: "/"}).ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("ReadDirAll failed: %v", err)
	}
	want := []struct {
		name string
		typ  fuse.DirentType
	}{
		{".", fuse.DT_Dir},
		{"..", fuse.DT_Dir},
		{"group", fuse.DT_Dir},
		{"registry:5000", fuse.DT_Dir},
		{"README", fuse.DT_File},
		{"nginx", fuse.DT_File},
	}
	if len(dirents) != len(want) {
		t.Fatalf("dirents = %+v, want %d entries", dirents, len(want))
	}
	for i, w := range want {
		if dirents[i].Name != w.name || dirents[i].Type != w.typ {
			t.Errorf("dirent %d = %+v, want %s (%v)", i, dirents[i], w.name, w.typ)
		}
	}

	// "team/app" cannot be a single path component.
	dirents, err = (&Dir{fs: fsys, path: "/registry:5000"}).ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("ReadDirAll(registry:5000) failed: %v", err)
	}
	if len(dirents) != 2 {
		t.Errorf("registry:5000 dirents = %+v, want only . and ..", dirents)
	}

	if _, err := (&Dir{fs: fsys, path: "/gone"}).ReadDirAll(ctx); err != syscall.ENOENT {
		t.Errorf("ReadDirAll(gone) error = %v, want ENOENT", err)
	}
}

func TestFileOpenAndRead(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx := context.Background()
	readme := &File{fs: fsys, path: "/README"}

	resp := &fuse.OpenResponse{}
	h, err := readme.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, resp)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if resp.Flags&fuse.OpenDirectIO == 0 {
		t.Error("files should be opened with direct I/O")
	}
	if h != readme {
		t.Errorf("handle = %v, want the node itself", h)
	}
	if _, err := readme.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenWriteOnly}, &fuse.OpenResponse{}); err != syscall.EROFS {
		t.Errorf("write open error = %v, want EROFS", err)
	}

	rresp := &fuse.ReadResponse{}
	if err := readme.Read(ctx, &fuse.ReadRequest{Size: 8, Offset: 0}, rresp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(rresp.Data) != "Presence" {
		t.Errorf("Read = %q", rresp.Data)
	}

	rresp = &fuse.ReadResponse{}
	if err := readme.Read(ctx, &fuse.ReadRequest{Size: 8, Offset: int64(len(namespace.Marker))}, rresp); err != nil {
		t.Fatalf("past-end Read failed: %v", err)
	}
	if len(rresp.Data) != 0 {
		t.Errorf("past-end Read = %q, want empty", rresp.Data)
	}

	nginx := &File{fs: fsys, path: "/nginx"}
	if err := nginx.Read(ctx, &fuse.ReadRequest{Size: 8}, &fuse.ReadResponse{}); err != syscall.ENOTSUP {
		t.Errorf("inventory Read error = %v, want ENOTSUP", err)
	}
}

func TestStaleNodeIsNotFound(t *testing.T) {
	fsys, r := newTestFS(t)
	ctx := context.Background()

	n, err := (&Dir{fs: fsys, path: "/"}).Lookup(ctx, "nginx")
	if err != nil {
		t.Fatal(err)
	}
	r.setImages("")

	var a fuse.Attr
	if err := n.Attr(ctx, &a); err != syscall.ENOENT {
		t.Errorf("stale node Attr error = %v, want ENOENT", err)
	}
}

func TestConcurrentOperations(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx := context.Background()
	root := &Dir{fs: fsys, path: "/"}

	done := make(chan error, 20)
	for i := range 20 {
		go func() {
			if i%2 == 0 {
				_, err := root.ReadDirAll(ctx)
				done <- err
				return
			}
			var a fuse.Attr
			done <- root.Attr(ctx, &a)
		}()
	}

	timeout := time.After(5 * time.Second)
	for range 20 {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("operation failed: %v", err)
			}
		case <-timeout:
			t.Fatal("operations deadlocked - test timed out")
		}
	}
}
