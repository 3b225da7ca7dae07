package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dendrascience/dockerfs/internal/config"
	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/namespace"
	"github.com/dendrascience/dockerfs/util"
	"github.com/spf13/cobra"
)

// errProblemsFound makes check exit non-zero.
var errProblemsFound = errors.New("problems found")

// NewCheckCmd creates and returns the check subcommand for the dockerfs CLI.
// It runs every runtime query once and reports output dockerfs cannot use.
func NewCheckCmd(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the runtime's listing and inspect output",
		Long: `Run every listing query and one inspect query per listed entry, and report
output that dockerfs would have to skip: failed queries, malformed listing
lines, malformed inspect output, unparseable creation times and names that
cannot be placed in the tree.

Exits with status 1 if any problem is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runCheck(ctx, cmd.OutOrStdout(), cfg, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every checked entry")

	return cmd
}

func runCheck(ctx context.Context, w io.Writer, cfg *config.Config, verbose bool) error {
	sources, err := newSources(cfg, queryRunner)
	if err != nil {
		return err
	}

	var totalProblems, totalEntries int
	for _, src := range sources {
		problems, entries := checkSource(ctx, w, src, verbose)
		totalProblems += len(problems)
		totalEntries += entries

		if len(problems) > 0 {
			fmt.Fprintf(w, "Source %s has %d problems:\n", src.Kind, len(problems))
			for _, p := range problems {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		} else if verbose {
			fmt.Fprintf(w, "Source %s is valid\n", src.Kind)
		}
	}

	fmt.Fprintf(w, "\nCheck complete:\n")
	fmt.Fprintf(w, "  Sources checked: %d\n", len(sources))
	fmt.Fprintf(w, "  Entries checked: %d\n", totalEntries)
	fmt.Fprintf(w, "  Total problems: %d\n", totalProblems)

	if totalProblems > 0 {
		return fmt.Errorf("%d %w", totalProblems, errProblemsFound)
	}
	return nil
}

func checkSource(ctx context.Context, w io.Writer, src *inventory.Source, verbose bool) (problems []string, entries int) {
	refs, err := src.List(ctx)
	if err != nil {
		if !errors.Is(err, util.ErrMalformedRecord) {
			return []string{fmt.Sprintf("listing query failed: %v", err)}, 0
		}
		problems = append(problems, fmt.Sprintf("malformed listing: %v", err))
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		entries++
		if verbose {
			fmt.Fprintf(w, "Checking %s %s (%s)\n", src.Kind, ref.Name, ref.ID)
		}

		if _, _, ok := namespace.SplitName(ref.Name); !ok {
			problems = append(problems, fmt.Sprintf("%s: name %q cannot be placed in the tree", ref.ID, ref.Name))
		} else if seen[ref.Name] {
			problems = append(problems, fmt.Sprintf("%s: name %q is listed more than once", ref.ID, ref.Name))
		}
		seen[ref.Name] = true

		d, err := src.Detail(ctx, ref.ID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", ref.ID, err))
			continue
		}
		if _, err := util.ParseTimestamp(d.Created); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", ref.ID, err))
		}
	}
	return problems, entries
}
