package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"idea-harvest/pkg/logging"
)

// ErrInvalidConfig marks configuration that cannot be used as given.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultDataDir        = "data"
	DefaultRequestDelay   = 2000 * time.Millisecond
	DefaultMaxConcurrent  = 3
	DefaultRequestTimeout = 30 * time.Second
	DefaultAdapterTimeout = 15 * time.Minute
	DefaultMaxItems       = 10000
	DefaultMaxLoadMore    = 50
	DefaultTextMaxLen     = 500
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Remote backends for the spreadsheet-style mirror.
const (
	BackendNone     = "none"
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendMongo    = "mongo"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	DataDir string

	RequestDelay   time.Duration // minimum delay between requests to the same host
	MaxConcurrent  int           // in-flight request cap per adapter
	RequestTimeout time.Duration // per HTTP call / page navigation
	AdapterTimeout time.Duration // whole-adapter deadline
	UserAgent      string

	Debug     bool
	LogLevel  slog.Level
	LogFormat string

	MaxItems    int
	MaxLoadMore int
	TextMaxLen  int

	ChromePath string

	Remote RemoteConfig

	SourcesFile string
	Sources     map[string]SourceOverride
}

// RemoteConfig selects and addresses the remote mirror.
type RemoteConfig struct {
	Backend string

	SheetsID        string
	CredentialsFile string

	PostgresDSN string

	SupabaseURL      string
	SupabaseKey      string
	SupabasePassword string
	SupabaseDBURL    string

	MongoURI string
	MongoDB  string
}

// RecordsPath is the local CSV store.
func (c Config) RecordsPath() string {
	return filepath.Join(c.DataDir, "raw_data.csv")
}

// LedgerPath is the local SQLite ledger.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv. Malformed numbers and
// booleans fall back to their defaults with a warning.
func LoadFrom(getenv func(string) string) (Config, error) {
	log := logging.New("config")
	env := envReader{getenv: getenv, log: log}

	cfg := Config{
		DataDir:        env.str("DATA_DIR", DefaultDataDir),
		RequestDelay:   env.millis("REQUEST_DELAY_MS", DefaultRequestDelay),
		MaxConcurrent:  env.positiveInt("MAX_CONCURRENT_REQUESTS", DefaultMaxConcurrent),
		RequestTimeout: env.millis("REQUEST_TIMEOUT_MS", DefaultRequestTimeout),
		AdapterTimeout: env.millis("ADAPTER_TIMEOUT_MS", DefaultAdapterTimeout),
		UserAgent:      env.str("USER_AGENT", DefaultUserAgent),
		Debug:          env.boolean("DEBUG", false),
		LogFormat:      env.str("LOG_FORMAT", "text"),
		MaxItems:       env.positiveInt("MAX_ITEMS", DefaultMaxItems),
		MaxLoadMore:    env.positiveInt("MAX_LOAD_MORE", DefaultMaxLoadMore),
		TextMaxLen:     env.positiveInt("TEXT_MAX_LEN", DefaultTextMaxLen),
		ChromePath:     env.str("CHROME_PATH", ""),
		SourcesFile:    env.str("SOURCES_FILE", ""),
		Remote: RemoteConfig{
			Backend:          strings.ToLower(env.str("REMOTE_BACKEND", BackendNone)),
			SheetsID:         env.str("GOOGLE_SHEETS_ID", ""),
			CredentialsFile:  env.str("GOOGLE_CREDENTIALS_FILE", ""),
			PostgresDSN:      env.str("POSTGRES_DSN", ""),
			SupabaseURL:      env.str("SUPABASE_URL", ""),
			SupabaseKey:      env.str("SUPABASE_KEY", ""),
			SupabasePassword: env.str("SUPABASE_DB_PASSWORD", ""),
			SupabaseDBURL:    env.str("SUPABASE_DB_URL", ""),
			MongoURI:         env.str("MONGO_URI", ""),
			MongoDB:          env.str("MONGO_DB", "ideas"),
		},
	}

	level, ok := logging.ParseLevel(env.str("LOG_LEVEL", "info"))
	if !ok {
		log.Warn("unknown LOG_LEVEL, using info", "value", getenv("LOG_LEVEL"))
	}
	cfg.LogLevel = level
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}

	if err := cfg.Remote.validate(); err != nil {
		return Config{}, err
	}

	if cfg.SourcesFile != "" {
		sources, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Sources = sources
	}

	return cfg, nil
}

func (r RemoteConfig) validate() error {
	switch r.Backend {
	case BackendNone, "":
		return nil
	case BackendSheets:
		if r.SheetsID == "" {
			return fmt.Errorf("%w: GOOGLE_SHEETS_ID is required for the sheets backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if r.PostgresDSN == "" {
			return fmt.Errorf("%w: POSTGRES_DSN is required for the postgres backend", ErrInvalidConfig)
		}
	case BackendSupabase:
		if r.SupabaseDBURL == "" && (r.SupabaseURL == "" || (r.SupabaseKey == "" && r.SupabasePassword == "")) {
			return fmt.Errorf("%w: SUPABASE_DB_URL or SUPABASE_URL with SUPABASE_KEY/SUPABASE_DB_PASSWORD is required", ErrInvalidConfig)
		}
	case BackendMongo:
		if r.MongoURI == "" {
			return fmt.Errorf("%w: MONGO_URI is required for the mongo backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown REMOTE_BACKEND %q", ErrInvalidConfig, r.Backend)
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	log    *slog.Logger
}

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) positiveInt(key string, def int) int {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		e.log.Warn("ignoring invalid value", "key", key, "value", raw, "default", def)
		return def
	}
	return n
}

func (e envReader) millis(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.log.Warn("ignoring invalid value", "key", key, "value", raw, "default", def)
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func (e envReader) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.log.Warn("ignoring invalid value", "key", key, "value", raw, "default", def)
		return def
	}
	return b
}
