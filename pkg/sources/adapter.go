package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/logging"
)

// ErrUnknownPlatform is returned when a platform name matches no configured adapter.
var ErrUnknownPlatform = errors.New("unknown platform")

// Adapter extracts raw candidates from one external catalog.
//
// FetchRaw may return a partial result together with an error (for example
// when a later page times out); callers keep whatever was returned.
type Adapter interface {
	Platform() domain.Platform
	FetchRaw(ctx context.Context) ([]domain.RawCandidate, error)
}

// Guarded wraps an Adapter with the shared boilerplate every source needs:
// a whole-adapter deadline, panic capture and outcome logging.
type Guarded struct {
	Adapter
	timeout time.Duration
	log     *slog.Logger
}

// Guard decorates a. A zero timeout means no adapter-level deadline.
func Guard(a Adapter, timeout time.Duration) *Guarded {
	return &Guarded{
		Adapter: a,
		timeout: timeout,
		log:     logging.New("source").With("platform", string(a.Platform())),
	}
}

// FetchRaw runs the wrapped adapter. Panics become errors; the partial
// result gathered before a failure is still returned.
func (g *Guarded) FetchRaw(ctx context.Context) (out []domain.RawCandidate, err error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s adapter panicked: %v", g.Platform(), r)
		}
		if err != nil {
			g.log.Error("adapter failed", "error", err, "partial", len(out), "elapsed", time.Since(start))
			return
		}
		g.log.Info("adapter finished", "candidates", len(out), "elapsed", time.Since(start))
	}()

	g.log.Info("adapter started")
	return g.Adapter.FetchRaw(ctx)
}
