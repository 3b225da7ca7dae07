// Package cmd provides the command-line interface implementation for dockerfs.
//
// It uses the Cobra library for command structure and Fang for styling. The
// commands share one config.Config: flags are bound into it with defaults
// taken from the DOCKERFS_* environment, and the root command validates it
// and initializes logging before any subcommand runs.
//
// The package is organized into the following commands:
//   - root: Main command coordinator and persistent flags
//   - mount: FUSE mounting, in the foreground or detached
//   - tree: Print the namespace without mounting
//   - check: Report runtime output dockerfs would have to skip
package cmd
