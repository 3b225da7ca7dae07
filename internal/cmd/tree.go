package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dendrascience/dockerfs/internal/config"
	"github.com/spf13/cobra"
)

// NewTreeCmd creates and returns the tree subcommand for the dockerfs CLI.
// It builds the namespace once and prints it without mounting.
func NewTreeCmd(cfg *config.Config) *cobra.Command {
	var (
		long  bool
		stats bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the tree dockerfs would serve",
		Long: `Query the runtime once and print every file dockerfs would serve, one path
per line, without mounting anything.

This is a utility command for checking how image and container names are
placed in the tree and which entries are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTree(ctx, cmd.OutOrStdout(), cfg, long, stats)
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show inode, size and creation time")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print a JSON summary after the listing")

	return cmd
}

func runTree(ctx context.Context, w io.Writer, cfg *config.Config, long, stats bool) error {
	adapter, err := newAdapter(cfg, queryRunner)
	if err != nil {
		return err
	}
	ns, err := adapter.Refresh(ctx)
	if err != nil {
		return err
	}

	for path, e := range ns.Iterate {
		if !long {
			fmt.Fprintf(w, "/%s\n", path)
			continue
		}
		fmt.Fprintf(w, "%20d %12d %s /%s\n",
			e.Inode, e.SizeBytes, e.CreatedAt.UTC().Format(time.RFC3339), path)
	}

	if stats {
		return ns.Stats().Encode(w)
	}
	fmt.Fprintf(w, "Total files: %d in %d directories (%d skipped)\n",
		ns.Len(), ns.NumSubdirs(), ns.Skipped)
	return nil
}
