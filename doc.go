// Package main provides the dockerfs command-line interface.
//
// dockerfs is a read-only FUSE filesystem that shows a container runtime's
// images and containers as files, with sizes and timestamps taken from the
// runtime's inspect output.
//
// The main binary supports multiple subcommands:
//   - mount: Mount dockerfs at a mountpoint (default ~/mnt/docker-images)
//   - tree: Print the tree dockerfs would serve, without mounting
//   - check: Report runtime output dockerfs would have to skip
//   - version: Print version and build information
package main
