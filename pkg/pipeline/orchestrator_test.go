package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/normalize"
	"idea-harvest/pkg/sink"
	"idea-harvest/pkg/sources"
	"idea-harvest/pkg/store"
)

// mockAdapter is a mock implementation of sources.Adapter for testing
type mockAdapter struct {
	platform domain.Platform
	items    []domain.RawCandidate
	err      error
	calls    int
}

func (m *mockAdapter) Platform() domain.Platform { return m.platform }

func (m *mockAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	m.calls++
	return m.items, m.err
}

func titles(ts ...string) []domain.RawCandidate {
	out := make([]domain.RawCandidate, len(ts))
	for i, t := range ts {
		out[i] = domain.RawCandidate{Title: t, URL: "https://example.com/" + t}
	}
	return out
}

// mockStats is a mock implementation of sink.StatsStore for testing
type mockStats struct {
	stats    []domain.PlatformStatistics
	replaced int
}

func (m *mockStats) ReplaceStatistics(ctx context.Context, stats []domain.PlatformStatistics) error {
	m.replaced++
	m.stats = stats
	return nil
}

func (m *mockStats) UsedCounts(ctx context.Context) (map[domain.Platform]int, error) {
	return nil, nil
}

// mockRemote is a mock implementation of sink.Remote for testing
type mockRemote struct {
	mu     sync.Mutex
	pushes int
	err    error
}

func (m *mockRemote) Enabled() bool { return true }

func (m *mockRemote) Push(ctx context.Context, dataset string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes++
	return m.err
}

func (m *mockRemote) Replace(ctx context.Context, dataset string, header []string, rows [][]string) error {
	return m.err
}

// mockRuns is a mock implementation of RunRecorder for testing
type mockRuns struct {
	reports []domain.RunReport
}

func (m *mockRuns) RecordRun(ctx context.Context, report domain.RunReport) error {
	m.reports = append(m.reports, report)
	return nil
}

type fixture struct {
	store  *store.CSVStore
	stats  *mockStats
	remote *mockRemote
	runs   *mockRuns
	orch   *Orchestrator
}

func newFixture(t *testing.T, adapters ...sources.Adapter) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewCSVStore(filepath.Join(t.TempDir(), "raw_data.csv")),
		stats:  &mockStats{},
		remote: &mockRemote{},
		runs:   &mockRuns{},
	}
	f.orch = New(Deps{
		Adapters:   sources.NewRegistry(adapters...),
		History:    f.store,
		Normalizer: normalize.New(normalize.DefaultMaxLen),
		Sink:       sink.New(f.store, f.stats, f.remote),
		Runs:       f.runs,
	})
	return f
}

func (f *fixture) stored(t *testing.T) []domain.CanonicalRecord {
	t.Helper()
	recs, err := f.store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return recs
}

// Test Case 1: TestOrchestrator_PartialFailureIsolation
// Input: three adapters, the second one fails
// Expected Output: all three run, records of the first and third are persisted,
// the failure is reported for the second platform only
func TestOrchestrator_PartialFailureIsolation(t *testing.T) {
	a := &mockAdapter{platform: domain.PlatformN8N, items: titles("one", "two")}
	b := &mockAdapter{platform: domain.PlatformMake, err: errors.New("chrome crashed")}
	c := &mockAdapter{platform: domain.PlatformIFTTT, items: titles("three")}
	f := newFixture(t, a, b, c)

	report, err := f.orch.Run(context.Background(), ModeFull, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1", a.calls, b.calls, c.calls)
	}
	if report.New != 3 || report.Scraped != 3 {
		t.Errorf("report new=%d scraped=%d, want 3/3", report.New, report.Scraped)
	}
	if diff := cmp.Diff([]domain.Platform{domain.PlatformMake}, report.FailedPlatforms()); diff != "" {
		t.Errorf("failed platforms mismatch (-want +got):\n%s", diff)
	}
	if got := len(f.stored(t)); got != 3 {
		t.Errorf("stored %d records, want 3", got)
	}
	if !report.Persisted || report.RemoteStale {
		t.Errorf("Persisted=%v RemoteStale=%v", report.Persisted, report.RemoteStale)
	}
	if f.orch.State() != StateDone {
		t.Errorf("State = %q, want done", f.orch.State())
	}
}

// Test Case 2: TestOrchestrator_CaseInsensitiveDuplicates
// Input: one n8n adapter returning "X" and "x"
// Expected Output: one new record, one duplicate, statistics total=1 new_this_run=1
func TestOrchestrator_CaseInsensitiveDuplicates(t *testing.T) {
	f := newFixture(t, &mockAdapter{platform: domain.PlatformN8N, items: titles("X", "x")})

	report, err := f.orch.Run(context.Background(), ModeFull, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.New != 1 || report.Duplicate != 1 {
		t.Errorf("new=%d duplicate=%d, want 1/1", report.New, report.Duplicate)
	}

	var n8n domain.PlatformStatistics
	for _, s := range f.stats.stats {
		if s.Platform == domain.PlatformN8N {
			n8n = s
		}
	}
	want := domain.PlatformStatistics{Platform: domain.PlatformN8N, Total: 1, NewThisRun: 1, Unused: 1}
	if diff := cmp.Diff(want, n8n); diff != "" {
		t.Errorf("n8n statistics mismatch (-want +got):\n%s", diff)
	}
}

// Test Case 3: TestOrchestrator_SecondRunFindsNothingNew
// Input: the same adapter output twice
// Expected Output: second run has new=0, the store is unchanged,
// statistics are still refreshed
func TestOrchestrator_SecondRunFindsNothingNew(t *testing.T) {
	f := newFixture(t, &mockAdapter{platform: domain.PlatformZapier, items: titles("Gmail to Sheets", "Slack alerts")})
	ctx := context.Background()

	if _, err := f.orch.Run(ctx, ModeFull, ""); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	before := f.stored(t)

	report, err := f.orch.Run(ctx, ModeFull, "")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if report.New != 0 || report.Duplicate != 2 || report.Persisted {
		t.Errorf("second run new=%d duplicate=%d persisted=%v", report.New, report.Duplicate, report.Persisted)
	}
	if diff := cmp.Diff(before, f.stored(t)); diff != "" {
		t.Errorf("store changed (-before +after):\n%s", diff)
	}
	if f.stats.replaced != 2 {
		t.Errorf("statistics replaced %d times, want 2", f.stats.replaced)
	}
	if len(f.runs.reports) != 2 {
		t.Errorf("recorded %d runs, want 2", len(f.runs.reports))
	}
}

// Test Case 4: TestOrchestrator_TestModeWritesNothing
// Input: dry run with two new records
// Expected Output: report counts filled, sample present, no store/stats/remote/ledger writes
func TestOrchestrator_TestModeWritesNothing(t *testing.T) {
	f := newFixture(t, &mockAdapter{platform: domain.PlatformAirtable, items: titles("CRM", "Content calendar")})

	report, err := f.orch.Run(context.Background(), ModeTest, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.New != 2 || len(report.Sample) != 2 || report.Persisted {
		t.Errorf("new=%d sample=%d persisted=%v", report.New, len(report.Sample), report.Persisted)
	}
	if len(f.stored(t)) != 0 || f.stats.replaced != 0 || f.remote.pushes != 0 || len(f.runs.reports) != 0 {
		t.Error("dry run must not write anything")
	}
}

// Test Case 5: TestOrchestrator_HistoryLoadFailure
// Input: history source that cannot be read
// Expected Output: ErrHistoryLoad, no adapter executed
func TestOrchestrator_HistoryLoadFailure(t *testing.T) {
	a := &mockAdapter{platform: domain.PlatformN8N, items: titles("x")}
	f := newFixture(t, a)
	f.orch.deps.History = failingHistory{}

	if _, err := f.orch.Run(context.Background(), ModeFull, ""); !errors.Is(err, ErrHistoryLoad) {
		t.Fatalf("expected ErrHistoryLoad, got %v", err)
	}
	if a.calls != 0 {
		t.Error("adapters must not run when history cannot be loaded")
	}
}

type failingHistory struct{}

func (failingHistory) ReadAll(ctx context.Context) ([]domain.CanonicalRecord, error) {
	return nil, store.ErrCorruptStore
}

// Test Case 6: TestOrchestrator_SingleMode
// Input: single mode for a known and an unknown platform
// Expected Output: only the named adapter runs; unknown names fail before any work
func TestOrchestrator_SingleMode(t *testing.T) {
	a := &mockAdapter{platform: domain.PlatformN8N, items: titles("x")}
	b := &mockAdapter{platform: domain.PlatformZapier, items: titles("y")}
	f := newFixture(t, a, b)

	report, err := f.orch.Run(context.Background(), ModeSingle, "zapier")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if a.calls != 0 || b.calls != 1 || len(report.Platforms) != 1 {
		t.Errorf("calls n8n=%d zapier=%d platforms=%d", a.calls, b.calls, len(report.Platforms))
	}

	if _, err := f.orch.Run(context.Background(), ModeSingle, "bubble"); !errors.Is(err, sources.ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

// Test Case 7: TestOrchestrator_RemoteFailureMarksStale
// Input: remote mirror failing every push
// Expected Output: run succeeds, local store persisted, report flagged stale
func TestOrchestrator_RemoteFailureMarksStale(t *testing.T) {
	f := newFixture(t, &mockAdapter{platform: domain.PlatformN8N, items: titles("x", "y")})
	f.remote.err = errors.New("quota exceeded")

	report, err := f.orch.Run(context.Background(), ModeFull, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.RemoteStale || !report.Persisted {
		t.Errorf("RemoteStale=%v Persisted=%v, want true/true", report.RemoteStale, report.Persisted)
	}
	if len(f.stored(t)) != 2 {
		t.Errorf("local store should hold both records")
	}
}

// Test Case 8: TestOrchestrator_ZeroResultsReported
// Input: one adapter returns nothing without error
// Expected Output: platform listed as empty, report text mentions it
func TestOrchestrator_ZeroResultsReported(t *testing.T) {
	f := newFixture(t,
		&mockAdapter{platform: domain.PlatformN8N, items: titles("x")},
		&mockAdapter{platform: domain.PlatformPowerAutomate},
	)

	report, err := f.orch.Run(context.Background(), ModeFull, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]domain.Platform{domain.PlatformPowerAutomate}, report.EmptyPlatforms()); diff != "" {
		t.Errorf("empty platforms mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, report); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"scraped:   1", "new:       1", "duplicate: 0", "Zero results from: powerAutomate"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

// Test Case 9: TestOrchestrator_Cancelled
// Input: context cancelled by the first adapter
// Expected Output: remaining adapters skipped, nothing persisted, error returned
func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &cancellingAdapter{cancel: cancel}
	b := &mockAdapter{platform: domain.PlatformZapier, items: titles("y")}
	f := newFixture(t, a, b)

	report, err := f.orch.Run(ctx, ModeFull, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.calls != 0 {
		t.Error("adapters after cancellation must not run")
	}
	if report == nil || report.Persisted || len(f.stored(t)) != 0 {
		t.Error("cancelled run must not persist")
	}
}

// failingStore is a record store whose appends always fail
type failingStore struct {
	err error
}

func (f *failingStore) ReadAll(ctx context.Context) ([]domain.CanonicalRecord, error) {
	return nil, nil
}

func (f *failingStore) Append(ctx context.Context, records []domain.CanonicalRecord) error {
	return f.err
}

// Test Case 10: TestOrchestrator_LocalAppendFailureReported
// Input: one adapter with new records, a store whose append fails
// Expected Output: run error returned, report closed with a finish time and
// the failure, run history recorded, report text names the failure
func TestOrchestrator_LocalAppendFailureReported(t *testing.T) {
	failing := &failingStore{err: errors.New("disk full")}
	runs := &mockRuns{}
	orch := New(Deps{
		Adapters:   sources.NewRegistry(&mockAdapter{platform: domain.PlatformN8N, items: titles("x")}),
		History:    failing,
		Normalizer: normalize.New(normalize.DefaultMaxLen),
		Sink:       sink.New(failing, &mockStats{}, &mockRemote{}),
		Runs:       runs,
	})

	report, err := orch.Run(context.Background(), ModeFull, "")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected append error, got %v", err)
	}
	if report == nil {
		t.Fatal("expected a report for a failed run")
	}
	if report.FinishedAt.IsZero() || report.FinishedAt.Before(report.StartedAt) {
		t.Errorf("FinishedAt = %v, StartedAt = %v", report.FinishedAt, report.StartedAt)
	}
	if report.Persisted || !strings.Contains(report.Err, "disk full") {
		t.Errorf("Persisted=%v Err=%q", report.Persisted, report.Err)
	}
	if len(runs.reports) != 1 || runs.reports[0].Err == "" {
		t.Errorf("failed run should be recorded with its error, got %+v", runs.reports)
	}
	if orch.State() != StateDone {
		t.Errorf("State = %q, want done", orch.State())
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, report); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Run failed: append to local store: disk full") {
		t.Errorf("report should name the failure:\n%s", out)
	}
	if strings.Contains(out, "Nothing new to persist") || strings.Contains(out, "finished in -") {
		t.Errorf("report misstates the outcome:\n%s", out)
	}
}

type cancellingAdapter struct {
	cancel context.CancelFunc
}

func (c *cancellingAdapter) Platform() domain.Platform { return domain.PlatformN8N }

func (c *cancellingAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	c.cancel()
	return titles("x"), ctx.Err()
}

func TestWriteStatistics(t *testing.T) {
	var buf bytes.Buffer
	err := WriteStatistics(&buf, []domain.PlatformStatistics{{Platform: domain.PlatformN8N, Total: 4, NewThisRun: 1, Used: 1, Unused: 3}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "PLATFORM") || !strings.HasPrefix(lines[1], "n8n") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
}
