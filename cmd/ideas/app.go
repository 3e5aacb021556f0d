package main

import (
	"context"
	"fmt"
	"log/slog"

	"idea-harvest/pkg/config"
	"idea-harvest/pkg/ledger"
	"idea-harvest/pkg/logging"
	"idea-harvest/pkg/mirror"
	"idea-harvest/pkg/normalize"
	"idea-harvest/pkg/pipeline"
	"idea-harvest/pkg/sink"
	"idea-harvest/pkg/sources"
	"idea-harvest/pkg/store"
)

// app holds everything a run needs. Dry runs open neither the ledger nor
// the remote mirror, so they leave no trace on disk or remotely. The mirror
// connects on its first write, after history has loaded.
type app struct {
	orch   *pipeline.Orchestrator
	ledger *ledger.Ledger
	mirror *mirror.Lazy
	log    *slog.Logger
}

func openApp(cfg config.Config, mode pipeline.Mode) (*app, error) {
	a := &app{log: logging.New("app")}

	registry, err := sources.Build(cfg, nil)
	if err != nil {
		return nil, err
	}
	records := store.NewCSVStore(cfg.RecordsPath())

	deps := pipeline.Deps{
		Adapters:   registry,
		History:    records,
		Normalizer: normalize.New(cfg.TextMaxLen),
		Order:      sources.Order,
	}

	if mode != pipeline.ModeTest {
		a.ledger, err = ledger.Open(cfg.LedgerPath())
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		deps.Runs = a.ledger

		a.mirror = mirror.NewLazy(cfg.Remote)
		deps.Sink = sink.New(records, a.ledger, a.mirror)
	}

	a.orch = pipeline.New(deps)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.mirror.Close(ctx); err != nil {
		a.log.Warn("close mirror", "error", err)
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn("close ledger", "error", err)
		}
	}
}
