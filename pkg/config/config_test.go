package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.RequestDelay != 2*time.Second {
		t.Errorf("RequestDelay = %v, want 2s", cfg.RequestDelay)
	}
	if cfg.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.MaxConcurrent)
	}
	if cfg.TextMaxLen != 500 {
		t.Errorf("TextMaxLen = %d, want 500", cfg.TextMaxLen)
	}
	if cfg.MaxItems != 10000 {
		t.Errorf("MaxItems = %d, want 10000", cfg.MaxItems)
	}
	if cfg.Remote.Backend != BackendNone {
		t.Errorf("Backend = %q, want none", cfg.Remote.Backend)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if got := cfg.RecordsPath(); got != filepath.Join("data", "raw_data.csv") {
		t.Errorf("RecordsPath = %q", got)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"DATA_DIR":                "/tmp/ideas",
		"REQUEST_DELAY_MS":        "250",
		"MAX_CONCURRENT_REQUESTS": "5",
		"REQUEST_TIMEOUT_MS":      "10000",
		"USER_AGENT":              "ideas-test",
		"DEBUG":                   "true",
		"LOG_LEVEL":               "error",
		"REMOTE_BACKEND":          "SHEETS",
		"GOOGLE_SHEETS_ID":        "sheet-123",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.DataDir != "/tmp/ideas" || cfg.RequestDelay != 250*time.Millisecond || cfg.MaxConcurrent != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.UserAgent != "ideas-test" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("DEBUG=true should force debug level, got %v", cfg.LogLevel)
	}
	if cfg.Remote.Backend != BackendSheets || cfg.Remote.SheetsID != "sheet-123" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
}

func TestLoadFrom_InvalidNumbersFallBack(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"REQUEST_DELAY_MS":        "soon",
		"MAX_CONCURRENT_REQUESTS": "-1",
		"DEBUG":                   "maybe",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.RequestDelay != DefaultRequestDelay || cfg.MaxConcurrent != DefaultMaxConcurrent || cfg.Debug {
		t.Errorf("invalid values should fall back to defaults: %+v", cfg)
	}
}

func TestLoadFrom_RemoteValidation(t *testing.T) {
	cases := []map[string]string{
		{"REMOTE_BACKEND": "sheets"},
		{"REMOTE_BACKEND": "postgres"},
		{"REMOTE_BACKEND": "mongo"},
		{"REMOTE_BACKEND": "supabase", "SUPABASE_URL": "https://x.supabase.co"},
		{"REMOTE_BACKEND": "excel"},
	}
	for _, env := range cases {
		_, err := LoadFrom(envMap(env))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("env %v: expected ErrInvalidConfig, got %v", env, err)
		}
	}
}

func TestLoadFrom_SourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	doc := `
sources:
  zapier:
    page_size: 50
    apps: [slack, gmail]
  make:
    enabled: false
    max_load_more: 5
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(envMap(map[string]string{"SOURCES_FILE": path}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	disabled := false
	want := map[string]SourceOverride{
		"zapier": {PageSize: 50, Apps: []string{"slack", "gmail"}},
		"make":   {Enabled: &disabled, MaxLoadMore: 5},
	}
	if diff := cmp.Diff(want, cfg.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if cfg.Sources["make"].IsEnabled() {
		t.Error("make should be disabled")
	}
	if !cfg.Sources["zapier"].IsEnabled() {
		t.Error("zapier should be enabled by default")
	}
}

func TestParseSources_Invalid(t *testing.T) {
	if _, err := ParseSources([]byte("sources: [1, 2")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for malformed yaml, got %v", err)
	}
	if _, err := ParseSources([]byte("sources:\n  n8n:\n    page_size: -1\n")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for negative limit, got %v", err)
	}
}
