package cmd

import (
	"fmt"

	"github.com/dendrascience/dockerfs/internal/config"
	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root cobra command for the dockerfs CLI.
// Flags default to the DOCKERFS_* environment, so an explicit flag always
// wins over the environment.
func NewRootCmd() *cobra.Command {
	cfg, envErr := config.Load()

	rootCmd := &cobra.Command{
		Use:   "dockerfs",
		Short: "dockerfs - A read-only FUSE filesystem showing container images and containers",
		Long: `dockerfs is a read-only FUSE filesystem that shows the images and containers of
a container runtime (docker, podman) as files.

Each image or container is a file whose size and timestamps come from the
runtime's inspect output. Names containing a slash, such as library/ubuntu,
become a file inside a directory. A README file at the root marks the mount.

Use subcommands to perform different operations:
  - mount: Mount dockerfs at a mountpoint
  - tree: Print the tree dockerfs would serve, without mounting
  - check: Run every runtime query once and report malformed output
  - version: Print version and build information`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return fmt.Errorf("environment: %w", envErr)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return logging.Init(logging.Config{
				Level:      cfg.LogLevel,
				Format:     cfg.LogFormat,
				OutputPath: cfg.LogFile,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	bindPersistentFlags(rootCmd, cfg)

	groupUtilities := "utilities"
	groupFilesystem := "filesystem"

	// Add command groups for better organization
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd(cfg)
	treeCmd := NewTreeCmd(cfg)
	checkCmd := NewCheckCmd(cfg)
	versionCmd := newVersionCmd()

	mountCmd.GroupID = groupFilesystem
	treeCmd.GroupID = groupUtilities
	checkCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	// Add subcommands
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func bindPersistentFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.PersistentFlags()
	f.StringVar(&cfg.Runtime, "runtime", cfg.Runtime, "Container runtime binary to query (docker, podman)")
	f.StringSliceVar(&cfg.Sources, "source", cfg.Sources, "Listing sources in merge order (images, containers)")
	f.StringVar(&cfg.OnQueryFailure, "on-query-failure", cfg.OnQueryFailure,
		"What a failed listing query means: empty, stale or unavailable")
	f.DurationVar(&cfg.QueryTimeout, "query-timeout", cfg.QueryTimeout, "Timeout for each runtime query (0 for none)")
	f.BoolVar(&cfg.NoTrunc, "no-trunc", cfg.NoTrunc, "List full identifiers")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file instead of stderr")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.Fprint(cmd.OutOrStdout(), "dockerfs")
		},
	}
}
