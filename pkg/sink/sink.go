// Package sink persists a run's new records: the local store first, then
// the remote mirror, then the statistics table.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/logging"
)

// remoteFanOut bounds concurrent dataset pushes to the mirror.
const remoteFanOut = 4

// RecordStore is the authoritative local store.
type RecordStore interface {
	Append(ctx context.Context, records []domain.CanonicalRecord) error
}

// StatsStore holds the local statistics table and used-record marks.
type StatsStore interface {
	ReplaceStatistics(ctx context.Context, stats []domain.PlatformStatistics) error
	UsedCounts(ctx context.Context) (map[domain.Platform]int, error)
}

// Remote is the best-effort mirror.
type Remote interface {
	Enabled() bool
	Push(ctx context.Context, dataset string, header []string, rows [][]string) error
	Replace(ctx context.Context, dataset string, header []string, rows [][]string) error
}

type Sink struct {
	store  RecordStore
	stats  StatsStore
	remote Remote
	log    *slog.Logger
}

// New creates a Sink. remote may be nil or disabled.
func New(store RecordStore, stats StatsStore, remote Remote) *Sink {
	return &Sink{store: store, stats: stats, remote: remote, log: logging.New("sink")}
}

func (s *Sink) remoteEnabled() bool {
	return s.remote != nil && s.remote.Enabled()
}

// AppendLocal adds records to the local store. Its failure fails the run.
func (s *Sink) AppendLocal(ctx context.Context, records []domain.CanonicalRecord) error {
	if err := s.store.Append(ctx, records); err != nil {
		return fmt.Errorf("append to local store: %w", err)
	}
	return nil
}

// MirrorRemote appends records to the combined raw dataset and to each
// platform's own dataset. Datasets are pushed concurrently; every failure is
// logged and the joined error returned. The local store is never touched.
func (s *Sink) MirrorRemote(ctx context.Context, records []domain.CanonicalRecord) error {
	if !s.remoteEnabled() || len(records) == 0 {
		return nil
	}

	byPlatform := make(map[domain.Platform][]domain.CanonicalRecord)
	var platforms []domain.Platform
	for _, r := range records {
		if _, ok := byPlatform[r.Platform]; !ok {
			platforms = append(platforms, r.Platform)
		}
		byPlatform[r.Platform] = append(byPlatform[r.Platform], r)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	push := func(dataset string, batch []domain.CanonicalRecord) func() error {
		return func() error {
			if err := s.remote.Push(ctx, dataset, domain.RecordHeader, domain.Rows(batch)); err != nil {
				s.log.Error("remote push failed", "dataset", dataset, "rows", len(batch), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		}
	}

	var g errgroup.Group
	g.SetLimit(remoteFanOut)
	g.Go(push(domain.RawDataset, records))
	for _, p := range platforms {
		g.Go(push(p.DatasetName(), byPlatform[p]))
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// RefreshStatistics recomputes the statistics table from cumulative totals
// and this run's new counts, and replaces the local copy.
func (s *Sink) RefreshStatistics(ctx context.Context, order []domain.Platform, totals, fresh map[domain.Platform]int) ([]domain.PlatformStatistics, error) {
	used, err := s.stats.UsedCounts(ctx)
	if err != nil {
		return nil, err
	}
	stats := ComputeStatistics(order, totals, fresh, used)
	if err := s.stats.ReplaceStatistics(ctx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MirrorStatistics replaces the remote statistics dataset.
func (s *Sink) MirrorStatistics(ctx context.Context, stats []domain.PlatformStatistics) error {
	if !s.remoteEnabled() {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, st.Row())
	}
	if err := s.remote.Replace(ctx, domain.StatisticsDataset, domain.StatisticsHeader, rows); err != nil {
		s.log.Error("remote statistics update failed", "error", err)
		return err
	}
	return nil
}

// ComputeStatistics builds one row per platform: the platforms of order
// first, then any other platform present in totals, alphabetically.
func ComputeStatistics(order []domain.Platform, totals, fresh, used map[domain.Platform]int) []domain.PlatformStatistics {
	seen := make(map[domain.Platform]bool, len(order))
	platforms := append([]domain.Platform(nil), order...)
	for _, p := range order {
		seen[p] = true
	}
	var extra []domain.Platform
	for p := range totals {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	platforms = append(platforms, extra...)

	out := make([]domain.PlatformStatistics, 0, len(platforms))
	for _, p := range platforms {
		total := totals[p]
		u := min(used[p], total)
		out = append(out, domain.PlatformStatistics{
			Platform:   p,
			Total:      total,
			NewThisRun: fresh[p],
			Used:       u,
			Unused:     total - u,
		})
	}
	return out
}
