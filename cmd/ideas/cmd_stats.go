package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"idea-harvest/pkg/ledger"
	"idea-harvest/pkg/pipeline"
	"idea-harvest/pkg/store"
)

var statsFlags struct {
	runs int
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the statistics table and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var markUsedCmd = &cobra.Command{
	Use:   "mark-used <record-id> <idea-slug>",
	Short: "Mark a stored record as used by a published idea",
	RunE:  runMarkUsed,
}

func init() {
	statsCmd.Flags().IntVar(&statsFlags.runs, "runs", 5, "Number of recent runs to list")
}

func runStats(cmd *cobra.Command, _ []string) error {
	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	stats, err := l.Statistics(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintln(out, "No statistics yet. Run 'ideas run' first.")
	} else if err := pipeline.WriteStatistics(out, stats); err != nil {
		return err
	}

	runs, err := l.Runs(ctx, statsFlags.runs)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Fprintf(out, "\nRecent runs:\n")
		for _, r := range runs {
			line := fmt.Sprintf("  %s  %-6s scraped=%d new=%d duplicate=%d",
				r.StartedAt.Local().Format(time.DateTime), r.Mode, r.Scraped, r.New, r.Duplicate)
			if r.Failed != "" {
				line += " failed=" + r.Failed
			}
			if r.RemoteStale {
				line += " remote=stale"
			}
			if r.Error != "" {
				line += " error=" + strconv.Quote(r.Error)
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func runMarkUsed(cmd *cobra.Command, args []string) error {
	if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
		return &usageError{msg: "usage: ideas mark-used <record-id> <idea-slug>"}
	}
	ctx := cmd.Context()

	records := store.NewCSVStore(cfg.RecordsPath())
	rec, ok, err := records.Find(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no record with id %q in %s", args[0], records.Path())
	}

	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.MarkUsed(ctx, rec, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s (%s: %s) as used by %s. Statistics update on the next run.\n",
		rec.ID, rec.Platform, rec.Title, args[1])
	return nil
}
