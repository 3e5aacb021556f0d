package domain

import (
	"strconv"
	"time"
)

// Row renders the statistics entry in StatisticsHeader order.
func (s PlatformStatistics) Row() []string {
	return []string{
		string(s.Platform),
		strconv.Itoa(s.Total),
		strconv.Itoa(s.NewThisRun),
		strconv.Itoa(s.Used),
		strconv.Itoa(s.Unused),
	}
}

// PlatformRun is the per-platform breakdown of one run.
type PlatformRun struct {
	Platform  Platform
	Scraped   int
	New       int
	Duplicate int
	Err       string // adapter error, empty on success
}

// RunReport summarizes one orchestrator run from history load to reporting.
type RunReport struct {
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time

	Scraped   int
	New       int
	Duplicate int

	Platforms []PlatformRun // in adapter execution order

	// RemoteStale is set when the remote mirror could not be fully updated.
	RemoteStale bool
	// Persisted is false for dry runs, for runs with nothing new and for
	// runs that failed before or during the local append.
	Persisted bool
	// Err is the error that stopped the run early, empty when it completed.
	Err string

	Statistics []PlatformStatistics
	Sample     []CanonicalRecord // dry runs only
}

// EmptyPlatforms lists platforms that contributed zero results.
func (r *RunReport) EmptyPlatforms() []Platform {
	var out []Platform
	for _, p := range r.Platforms {
		if p.Scraped == 0 {
			out = append(out, p.Platform)
		}
	}
	return out
}

// FailedPlatforms lists platforms whose adapter returned an error.
func (r *RunReport) FailedPlatforms() []Platform {
	var out []Platform
	for _, p := range r.Platforms {
		if p.Err != "" {
			out = append(out, p.Platform)
		}
	}
	return out
}
