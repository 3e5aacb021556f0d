package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"idea-harvest/pkg/domain"
)

// WriteReport prints the human-readable run summary. Totals and the
// per-platform breakdown are always printed, also for dry runs.
func WriteReport(w io.Writer, r *domain.RunReport) error {
	var b strings.Builder

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
	fmt.Fprintf(&b, "Run (%s) finished in %s\n", r.Mode, elapsed)
	fmt.Fprintf(&b, "  scraped:   %d\n", r.Scraped)
	fmt.Fprintf(&b, "  new:       %d\n", r.New)
	fmt.Fprintf(&b, "  duplicate: %d\n", r.Duplicate)

	if len(r.Platforms) > 0 {
		b.WriteString("\nPer platform:\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PLATFORM\tSCRAPED\tNEW\tDUPLICATE\tSTATUS")
		for _, p := range r.Platforms {
			status := "ok"
			if p.Err != "" {
				status = "failed: " + p.Err
			}
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%s\n", p.Platform, p.Scraped, p.New, p.Duplicate, status)
		}
		tw.Flush()
	}

	if empty := r.EmptyPlatforms(); len(empty) > 0 {
		fmt.Fprintf(&b, "\nZero results from: %s\n", joinPlatforms(empty))
	}

	switch {
	case r.Err != "":
		fmt.Fprintf(&b, "\nRun failed: %s\nNo records were added to the local store.\n", r.Err)
	case r.Mode == string(ModeTest):
		b.WriteString("\nDry run: nothing was written.\n")
		for _, rec := range r.Sample {
			fmt.Fprintf(&b, "  [%s] %s  %s\n", rec.Platform, rec.Title, rec.URL)
		}
	case !r.Persisted:
		b.WriteString("\nNothing new to persist.\n")
	}
	if r.RemoteStale {
		b.WriteString("\nWarning: the remote mirror could not be fully updated; the local store is authoritative.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteStatistics prints the statistics table.
func WriteStatistics(w io.Writer, stats []domain.PlatformStatistics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(domain.StatisticsHeader, "\t")))
	for _, s := range stats {
		fmt.Fprintln(tw, strings.Join(s.Row(), "\t"))
	}
	return tw.Flush()
}

func joinPlatforms(ps []domain.Platform) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
