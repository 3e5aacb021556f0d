package mirror

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"idea-harvest/pkg/config"
)

type fakeBackend struct {
	ensured  []string
	appended map[string][][]string
	replaced map[string][][]string
	failOn   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{appended: map[string][][]string{}, replaced: map[string][][]string{}}
}

func (f *fakeBackend) EnsureDataset(ctx context.Context, name string, header []string) error {
	if name == f.failOn {
		return errors.New("quota exceeded")
	}
	f.ensured = append(f.ensured, name)
	return nil
}

func (f *fakeBackend) AppendRows(ctx context.Context, name string, header []string, rows [][]string) error {
	f.appended[name] = append(f.appended[name], rows...)
	return nil
}

func (f *fakeBackend) ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error {
	f.replaced[name] = append([][]string{header}, rows...)
	return nil
}

func (f *fakeBackend) Close(ctx context.Context) error { return nil }

func TestMirror_Push(t *testing.T) {
	b := newFakeBackend()
	m := New("fake", b)

	rows := [][]string{{"1", "a"}, {"2", "b"}}
	if err := m.Push(context.Background(), "raw_data", []string{"id", "title"}, rows); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := m.Push(context.Background(), "n8n_data", []string{"id", "title"}, nil); err != nil {
		t.Fatalf("empty Push failed: %v", err)
	}

	if diff := cmp.Diff([]string{"raw_data"}, b.ensured); diff != "" {
		t.Errorf("ensured mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rows, b.appended["raw_data"]); diff != "" {
		t.Errorf("appended mismatch (-want +got):\n%s", diff)
	}
}

func TestMirror_PushError(t *testing.T) {
	b := newFakeBackend()
	b.failOn = "raw_data"
	err := New("fake", b).Push(context.Background(), "raw_data", []string{"id"}, [][]string{{"1"}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(b.appended) != 0 {
		t.Error("rows must not be appended when the dataset could not be ensured")
	}
}

func TestMirror_Disabled(t *testing.T) {
	var m *Mirror
	if m.Enabled() {
		t.Fatal("nil mirror should be disabled")
	}
	if err := m.Push(context.Background(), "raw_data", nil, [][]string{{"x"}}); err != nil {
		t.Errorf("disabled Push: %v", err)
	}
	if err := m.Replace(context.Background(), "statistics", nil, nil); err != nil {
		t.Errorf("disabled Replace: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Errorf("disabled Close: %v", err)
	}
}

func TestOpen_NoneAndUnknown(t *testing.T) {
	m, err := Open(context.Background(), config.RemoteConfig{Backend: config.BackendNone})
	if err != nil || m != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", m, err)
	}
	if _, err := Open(context.Background(), config.RemoteConfig{Backend: "excel"}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

type sqliteProvider struct{ db *sql.DB }

func (p sqliteProvider) DB() *sql.DB { return p.db }

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func readTable(t *testing.T, db *sql.DB, query string) [][]string {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			t.Fatal(err)
		}
		out = append(out, []string{a, b})
	}
	return out
}

func TestSQLBackend(t *testing.T) {
	ctx := context.Background()
	sqlDB := openSQLite(t)
	m := New("sql", NewSQLBackend(sqliteProvider{sqlDB}, nil))
	header := []string{"platform", "total"}

	if err := m.Push(ctx, "statistics", header, [][]string{{"n8n", "3"}}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := m.Push(ctx, "statistics", header, [][]string{{"make", "1"}}); err != nil {
		t.Fatalf("second Push failed: %v", err)
	}
	got := readTable(t, sqlDB, `SELECT "platform", "total" FROM "statistics" ORDER BY rowid`)
	if diff := cmp.Diff([][]string{{"n8n", "3"}, {"make", "1"}}, got); diff != "" {
		t.Errorf("rows after push mismatch (-want +got):\n%s", diff)
	}

	if err := m.Replace(ctx, "statistics", header, [][]string{{"zapier", "9"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got = readTable(t, sqlDB, `SELECT "platform", "total" FROM "statistics"`)
	if diff := cmp.Diff([][]string{{"zapier", "9"}}, got); diff != "" {
		t.Errorf("rows after replace mismatch (-want +got):\n%s", diff)
	}

	if err := m.Push(ctx, "statistics", header, [][]string{{"only-one-column"}}); err == nil {
		t.Error("expected an error for a short row")
	}
}

func TestRowShapes(t *testing.T) {
	header := []string{"id", "title"}
	rows := [][]string{{"1", "a"}, {"2"}}

	maps := rowMaps(header, rows)
	if diff := cmp.Diff([]map[string]string{{"id": "1", "title": "a"}, {"id": "2"}}, maps); diff != "" {
		t.Errorf("rowMaps mismatch (-want +got):\n%s", diff)
	}

	docs := rowDocs(header, rows)
	if len(docs) != 2 {
		t.Fatalf("rowDocs returned %d docs", len(docs))
	}

	if got := sheetRange("it's", "A1"); got != "'it''s'!A1" {
		t.Errorf("sheetRange = %q", got)
	}
	if got := sheetRange("raw_data", ""); got != "'raw_data'" {
		t.Errorf("sheetRange = %q", got)
	}
}
