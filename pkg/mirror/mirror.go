// Package mirror keeps a best-effort remote copy of the local store and the
// statistics table in a spreadsheet-style backend.
package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"idea-harvest/pkg/config"
	"idea-harvest/pkg/db"
	"idea-harvest/pkg/logging"
)

// Backend is one remote storage flavour. A dataset is a named table whose
// first row (or schema) is its header.
type Backend interface {
	// EnsureDataset creates the dataset if it is missing and writes the
	// header when the dataset is empty.
	EnsureDataset(ctx context.Context, name string, header []string) error
	AppendRows(ctx context.Context, name string, header []string, rows [][]string) error
	// ReplaceRows clears the dataset and writes header and rows.
	ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error
	Close(ctx context.Context) error
}

// Mirror wraps a Backend with logging. A nil *Mirror is a disabled mirror.
type Mirror struct {
	backend Backend
	name    string
	log     *slog.Logger
}

func New(name string, b Backend) *Mirror {
	return &Mirror{backend: b, name: name, log: logging.New("mirror").With("backend", name)}
}

// Enabled reports whether a backend is configured.
func (m *Mirror) Enabled() bool {
	return m != nil && m.backend != nil
}

// Push ensures dataset exists and appends rows to it.
func (m *Mirror) Push(ctx context.Context, dataset string, header []string, rows [][]string) error {
	if !m.Enabled() || len(rows) == 0 {
		return nil
	}
	if err := m.backend.EnsureDataset(ctx, dataset, header); err != nil {
		return fmt.Errorf("ensure dataset %s: %w", dataset, err)
	}
	if err := m.backend.AppendRows(ctx, dataset, header, rows); err != nil {
		return fmt.Errorf("append to %s: %w", dataset, err)
	}
	m.log.Info("pushed rows", "dataset", dataset, "rows", len(rows))
	return nil
}

// Replace overwrites dataset with header and rows.
func (m *Mirror) Replace(ctx context.Context, dataset string, header []string, rows [][]string) error {
	if !m.Enabled() {
		return nil
	}
	if err := m.backend.EnsureDataset(ctx, dataset, header); err != nil {
		return fmt.Errorf("ensure dataset %s: %w", dataset, err)
	}
	if err := m.backend.ReplaceRows(ctx, dataset, header, rows); err != nil {
		return fmt.Errorf("replace %s: %w", dataset, err)
	}
	m.log.Info("replaced dataset", "dataset", dataset, "rows", len(rows))
	return nil
}

func (m *Mirror) Close(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.backend.Close(ctx)
}

// Open connects the backend selected by cfg. It returns a nil Mirror when
// no backend is configured.
func Open(ctx context.Context, cfg config.RemoteConfig) (*Mirror, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil

	case config.BackendSheets:
		b, err := NewSheetsBackend(ctx, cfg.SheetsID, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return New(cfg.Backend, b), nil

	case config.BackendPostgres:
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN, MaxOpenConns: 4})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return New(cfg.Backend, NewSQLBackend(client, func(context.Context) error { return client.Close() })), nil

	case config.BackendSupabase:
		client := db.NewSupabaseClient(db.SupabaseConfig{
			ConnectionString: cfg.SupabaseDBURL,
			SupabaseURL:      cfg.SupabaseURL,
			SupabaseKey:      cfg.SupabaseKey,
			Password:         cfg.SupabasePassword,
			MaxOpenConns:     4,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		closer := func(context.Context) error { return client.Close() }
		if client.HasDirectDB() {
			return New(cfg.Backend, NewSQLBackend(client, closer)), nil
		}
		return New(cfg.Backend+"-rest", NewRESTBackend(client.SDK(), closer)), nil

	case config.BackendMongo:
		client := db.NewMongoClient(cfg.MongoURI, cfg.MongoDB)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return New(cfg.Backend, NewMongoBackend(client)), nil
	}

	return nil, fmt.Errorf("%w: unknown remote backend %q", config.ErrInvalidConfig, cfg.Backend)
}
