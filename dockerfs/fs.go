package dockerfs

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/dendrascience/dockerfs/namespace"
	"github.com/dendrascience/dockerfs/util"
)

// FS is the bazil.org/fuse filesystem backed by an Adapter.
type FS struct {
	Adapter     *Adapter
	AttrTimeout time.Duration // how long the kernel may cache attributes
}

// NewFS creates a filesystem serving the adapter's namespace.
func NewFS(a *Adapter, attrTimeout time.Duration) *FS {
	return &FS{Adapter: a, AttrTimeout: attrTimeout}
}

// Root returns the root directory node
func (f *FS) Root() (fs.Node, error) {
	return &Dir{fs: f, path: namespace.Separator}, nil
}

// Dir is the root or a subdirectory.
type Dir struct {
	fs   *FS
	path string
}

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := d.fs.Adapter.Getattr(ctx, d.path)
	if err != nil {
		return toErrno(err)
	}
	d.fs.fill(a, attr)
	return nil
}

// Lookup resolves a name in this directory to a node
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := joinPath(d.path, name)
	attr, err := d.fs.Adapter.Getattr(ctx, child)
	if err != nil {
		return nil, toErrno(err)
	}
	if attr.Mode.IsDir() {
		return &Dir{fs: d.fs, path: child}, nil
	}
	return &File{fs: d.fs, path: child}, nil
}

// ReadDirAll lists the directory.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.Adapter.ReadDirEntries(ctx, d.path)
	if err != nil {
		return nil, toErrno(err)
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		dirents = append(dirents, fuse.Dirent{Inode: e.Inode, Name: e.Name, Type: typ})
	}
	return dirents, nil
}

// File is the README marker or an inventory entry.
type File struct {
	fs   *FS
	path string
}

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := f.fs.Adapter.Getattr(ctx, f.path)
	if err != nil {
		return toErrno(err)
	}
	f.fs.fill(a, attr)
	return nil
}

// Open bypasses the page cache so every read reaches the adapter.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		return nil, syscall.EROFS
	}
	resp.Flags |= fuse.OpenDirectIO
	return f, nil
}

// Read serves a byte range of the file.
func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := f.fs.Adapter.Read(ctx, f.path, req.Size, req.Offset)
	if err != nil {
		return toErrno(err)
	}
	resp.Data = data
	return nil
}

func (f *FS) fill(dst *fuse.Attr, src namespace.Attr) {
	dst.Valid = f.AttrTimeout
	dst.Inode = src.Inode
	dst.Mode = src.Mode
	dst.Nlink = src.Nlink
	dst.Size = src.Size
	dst.Atime = src.Atime
	dst.Mtime = src.Mtime
	dst.Ctime = src.Ctime
	dst.Uid = src.Uid
	dst.Gid = src.Gid
}

func joinPath(dir, name string) string {
	return strings.TrimSuffix(dir, namespace.Separator) + namespace.Separator + name
}

// toErrno maps adapter errors to the errno the kernel sees.
func toErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, util.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, util.ErrUnsupported):
		return syscall.ENOTSUP
	case errors.Is(err, util.ErrUnavailable):
		return syscall.EAGAIN
	}
	return syscall.EIO
}

var (
	_ fs.FS                 = (*FS)(nil)
	_ fs.Node               = (*Dir)(nil)
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)
	_ fs.Node               = (*File)(nil)
	_ fs.NodeOpener         = (*File)(nil)
	_ fs.HandleReader       = (*File)(nil)
)
