package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"idea-harvest/pkg/dedup"
	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/logging"
	"idea-harvest/pkg/sources"
)

// ErrHistoryLoad aborts a run before any adapter executes.
var ErrHistoryLoad = errors.New("failed to load history")

// Mode selects which adapters run and whether results are persisted.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeSingle Mode = "single"
	ModeTest   Mode = "test" // dry run: nothing is written anywhere
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle           State = "idle"
	StateLoadingHistory State = "loading_history"
	StateScraping       State = "scraping"
	StateNormalizing    State = "normalizing"
	StateDeduplicating  State = "deduplicating"
	StatePersisting     State = "persisting"
	StateReporting      State = "reporting"
	StateDone           State = "done"
)

// DefaultSampleSize is how many new records a dry run shows.
const DefaultSampleSize = 5

// AdapterSource resolves the adapters of a run.
type AdapterSource interface {
	All() []sources.Adapter
	Get(name string) (sources.Adapter, error)
}

// Normalizer maps one adapter's raw batch to canonical records.
type Normalizer interface {
	NormalizeAll(platform domain.Platform, batch []domain.RawCandidate) ([]domain.CanonicalRecord, error)
}

// Persister writes a run's outcome. Only AppendLocal failures fail a run.
type Persister interface {
	AppendLocal(ctx context.Context, records []domain.CanonicalRecord) error
	MirrorRemote(ctx context.Context, records []domain.CanonicalRecord) error
	RefreshStatistics(ctx context.Context, order []domain.Platform, totals, fresh map[domain.Platform]int) ([]domain.PlatformStatistics, error)
	MirrorStatistics(ctx context.Context, stats []domain.PlatformStatistics) error
}

// RunRecorder keeps an audit trail of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, report domain.RunReport) error
}

// Deps wires an Orchestrator. Runs may be nil.
type Deps struct {
	Adapters   AdapterSource
	History    dedup.HistorySource
	Normalizer Normalizer
	Sink       Persister
	Runs       RunRecorder
	Order      []domain.Platform // statistics row order
	SampleSize int
}

// Orchestrator drives a run from history load to report. Adapters run one
// after another; a failing adapter never stops the others.
type Orchestrator struct {
	deps Deps
	log  *slog.Logger

	mu    sync.Mutex
	state State
}

func New(deps Deps) *Orchestrator {
	if deps.SampleSize <= 0 {
		deps.SampleSize = DefaultSampleSize
	}
	if deps.Order == nil {
		deps.Order = sources.Order
	}
	return &Orchestrator{deps: deps, log: logging.New("orchestrator"), state: StateIdle}
}

// State reports the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) enter(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.log.Debug("state", "state", string(s))
}

// platformBatch carries one adapter's output through the stages.
type platformBatch struct {
	platform domain.Platform
	raw      []domain.RawCandidate
	records  []domain.CanonicalRecord
	err      error
}

// Run executes one run. platform is only used in ModeSingle.
//
// The returned report is non-nil whenever adapters were started, even when
// err is non-nil, so callers can still print what happened.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, platform string) (*domain.RunReport, error) {
	adapters, err := o.resolve(mode, platform)
	if err != nil {
		return nil, err
	}

	report := &domain.RunReport{Mode: string(mode), StartedAt: time.Now()}
	defer o.enter(StateDone)

	o.enter(StateLoadingHistory)
	index := dedup.NewIndex()
	if err := index.LoadExisting(ctx, o.deps.History); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryLoad, err)
	}
	o.log.Info("history loaded", "known_keys", index.Len())

	o.enter(StateScraping)
	batches := o.scrape(ctx, adapters)
	if err := ctx.Err(); err != nil {
		return report, o.fail(report, batches, fmt.Errorf("run cancelled: %w", err))
	}

	o.enter(StateNormalizing)
	for _, b := range batches {
		b.records, err = o.deps.Normalizer.NormalizeAll(b.platform, b.raw)
		if err != nil {
			return report, o.fail(report, batches, fmt.Errorf("normalize %s: %w", b.platform, err))
		}
	}

	o.enter(StateDeduplicating)
	fresh, freshCount := o.deduplicate(index, batches, report)

	if mode != ModeTest {
		o.enter(StatePersisting)
		if err := o.persist(ctx, fresh, report); err != nil {
			return report, o.fail(report, nil, err)
		}
		o.refreshStatistics(ctx, index.CountByPlatform(), freshCount, report)
	} else {
		report.Sample = fresh[:min(len(fresh), o.deps.SampleSize)]
	}

	o.enter(StateReporting)
	o.finishReport(report, nil)
	return report, nil
}

func (o *Orchestrator) resolve(mode Mode, platform string) ([]sources.Adapter, error) {
	switch mode {
	case ModeFull, ModeTest:
		return o.deps.Adapters.All(), nil
	case ModeSingle:
		a, err := o.deps.Adapters.Get(platform)
		if err != nil {
			return nil, err
		}
		return []sources.Adapter{a}, nil
	}
	return nil, fmt.Errorf("unknown run mode %q", mode)
}

func (o *Orchestrator) scrape(ctx context.Context, adapters []sources.Adapter) []*platformBatch {
	batches := make([]*platformBatch, 0, len(adapters))
	for i, a := range adapters {
		if ctx.Err() != nil {
			break
		}
		o.log.Info("running adapter", "platform", string(a.Platform()), "position", i+1, "of", len(adapters))
		raw, err := a.FetchRaw(ctx)
		if err != nil {
			o.log.Error("adapter failed, continuing with the next one", "platform", string(a.Platform()), "partial", len(raw), "error", err)
		}
		batches = append(batches, &platformBatch{platform: a.Platform(), raw: raw, err: err})
	}
	return batches
}

func (o *Orchestrator) deduplicate(index *dedup.Index, batches []*platformBatch, report *domain.RunReport) ([]domain.CanonicalRecord, map[domain.Platform]int) {
	var fresh []domain.CanonicalRecord
	freshCount := make(map[domain.Platform]int)

	for _, b := range batches {
		newRecs, dupes := index.Partition(b.records)
		fresh = append(fresh, newRecs...)
		freshCount[b.platform] += len(newRecs)

		run := domain.PlatformRun{
			Platform:  b.platform,
			Scraped:   len(b.raw),
			New:       len(newRecs),
			Duplicate: len(dupes),
		}
		if b.err != nil {
			run.Err = b.err.Error()
		}
		report.Platforms = append(report.Platforms, run)
		report.Scraped += run.Scraped
		report.New += run.New
		report.Duplicate += run.Duplicate
	}
	return fresh, freshCount
}

func (o *Orchestrator) persist(ctx context.Context, fresh []domain.CanonicalRecord, report *domain.RunReport) error {
	if len(fresh) == 0 {
		o.log.Info("no new records, nothing to persist")
		return nil
	}
	if err := o.deps.Sink.AppendLocal(ctx, fresh); err != nil {
		return err
	}
	report.Persisted = true

	if err := o.deps.Sink.MirrorRemote(ctx, fresh); err != nil {
		report.RemoteStale = true
		o.log.Warn("remote mirror is stale, local store is up to date", "error", err)
	}
	return nil
}

// refreshStatistics runs on every persisting run, also when nothing was new,
// so the table always reflects the latest totals.
func (o *Orchestrator) refreshStatistics(ctx context.Context, totals, fresh map[domain.Platform]int, report *domain.RunReport) {
	stats, err := o.deps.Sink.RefreshStatistics(ctx, o.deps.Order, totals, fresh)
	if err != nil {
		o.log.Error("statistics update failed", "error", err)
		return
	}
	report.Statistics = stats
	if err := o.deps.Sink.MirrorStatistics(ctx, stats); err != nil {
		report.RemoteStale = true
	}
}

// fail closes the report of a run that stopped early. unprocessed holds
// batches that never reached deduplication.
func (o *Orchestrator) fail(report *domain.RunReport, unprocessed []*platformBatch, err error) error {
	report.Err = err.Error()
	o.enter(StateReporting)
	o.finishReport(report, unprocessed)
	return err
}

func (o *Orchestrator) finishReport(report *domain.RunReport, unprocessed []*platformBatch) {
	for _, b := range unprocessed {
		run := domain.PlatformRun{Platform: b.platform, Scraped: len(b.raw)}
		if b.err != nil {
			run.Err = b.err.Error()
		}
		report.Platforms = append(report.Platforms, run)
		report.Scraped += run.Scraped
	}
	report.FinishedAt = time.Now()

	o.log.Info("run finished",
		"mode", report.Mode,
		"failed", report.Err != "",
		"scraped", report.Scraped,
		"new", report.New,
		"duplicate", report.Duplicate,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	for _, p := range report.EmptyPlatforms() {
		o.log.Warn("platform returned zero results", "platform", string(p))
	}
	for _, r := range report.Sample {
		o.log.Info("sample record", "platform", string(r.Platform), "title", r.Title, "url", r.URL)
	}

	if o.deps.Runs != nil && report.Mode != string(ModeTest) {
		if err := o.deps.Runs.RecordRun(context.Background(), *report); err != nil {
			o.log.Warn("could not record run", "error", err)
		}
	}
}
