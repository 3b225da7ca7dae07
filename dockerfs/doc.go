// Package dockerfs implements a read-only FUSE filesystem that shows a
// container runtime's images and containers as files.
//
// Every image and container becomes one file. A name containing a "/" is
// split on the first one, so "library/ubuntu" appears as the file "ubuntu"
// inside the directory "library". File sizes and timestamps come from the
// runtime's inspect output; file contents are not readable. A virtual README
// at the root marks the mount.
//
// The Adapter polls the runtime's listings on every operation (or at most
// once per refresh interval) and rebuilds only the sources whose listing
// changed. FS, Dir and File expose the adapter through bazil.org/fuse.
package dockerfs
