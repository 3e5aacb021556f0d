package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"idea-harvest/pkg/config"
	"idea-harvest/pkg/logging"
)

// Lazy connects its backend on the first write. Runs that stop before
// persisting (a failed history load, a dry run, nothing new) never contact
// the remote. A failed open is remembered: every later write returns it.
type Lazy struct {
	cfg  config.RemoteConfig
	open func(context.Context, config.RemoteConfig) (*Mirror, error)
	log  *slog.Logger

	once   sync.Once
	mirror *Mirror
	err    error
}

func NewLazy(cfg config.RemoteConfig) *Lazy {
	return &Lazy{cfg: cfg, open: Open, log: logging.New("mirror").With("backend", cfg.Backend)}
}

// Enabled reports whether a backend is configured, without connecting.
func (l *Lazy) Enabled() bool {
	return l != nil && l.cfg.Backend != "" && l.cfg.Backend != config.BackendNone
}

func (l *Lazy) connect(ctx context.Context) (*Mirror, error) {
	l.once.Do(func() {
		l.mirror, l.err = l.open(ctx, l.cfg)
		if l.err != nil {
			l.err = fmt.Errorf("open %s mirror: %w", l.cfg.Backend, l.err)
			l.log.Error("remote mirror unavailable, continuing with the local store only", "error", l.err)
		}
	})
	return l.mirror, l.err
}

func (l *Lazy) Push(ctx context.Context, dataset string, header []string, rows [][]string) error {
	if !l.Enabled() || len(rows) == 0 {
		return nil
	}
	m, err := l.connect(ctx)
	if err != nil {
		return err
	}
	return m.Push(ctx, dataset, header, rows)
}

func (l *Lazy) Replace(ctx context.Context, dataset string, header []string, rows [][]string) error {
	if !l.Enabled() {
		return nil
	}
	m, err := l.connect(ctx)
	if err != nil {
		return err
	}
	return m.Replace(ctx, dataset, header, rows)
}

// Close closes the backend if it was ever opened.
func (l *Lazy) Close(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.mirror.Close(ctx)
}
