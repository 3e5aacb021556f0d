package sources

import (
	"context"
	"log/slog"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/logging"
)

const (
	defaultPageSize = 100
	defaultMaxItems = 10000
)

// PageFunc fetches one window of an offset/limit search endpoint.
type PageFunc func(ctx context.Context, offset, limit int) ([]domain.RawCandidate, error)

// Pager walks an offset/limit window. It stops when a page returns fewer
// items than requested, when MaxItems is reached, or after
// MaxItems/PageSize+1 iterations, whichever comes first, so an upstream that
// misreports its total cannot keep it looping.
type Pager struct {
	PageSize int
	MaxItems int
	Log      *slog.Logger
}

func (p Pager) limits() (pageSize, maxItems int) {
	pageSize, maxItems = p.PageSize, p.MaxItems
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return pageSize, maxItems
}

// Walk calls fetch for consecutive windows, strictly one after another.
// A failure on the first page is returned as an error. A failure on a later
// page is treated as the end of data and the items gathered so far are
// returned. Context cancellation returns the partial result and ctx.Err().
func (p Pager) Walk(ctx context.Context, fetch PageFunc) ([]domain.RawCandidate, error) {
	log := p.Log
	if log == nil {
		log = logging.New("pager")
	}
	pageSize, maxItems := p.limits()
	maxIterations := maxItems/pageSize + 1

	var out []domain.RawCandidate
	offset := 0
	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		items, err := fetch(ctx, offset, pageSize)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("page failed, treating as end of data", "offset", offset, "collected", len(out), "error", err)
			return out, nil
		}

		if remaining := maxItems - len(out); len(items) >= remaining {
			out = append(out, items[:remaining]...)
			log.Info("item cap reached", "max_items", maxItems)
			return out, nil
		}
		out = append(out, items...)

		if len(items) < pageSize {
			log.Debug("short page, end of data", "offset", offset, "returned", len(items))
			return out, nil
		}
		offset += pageSize
	}

	log.Warn("iteration ceiling reached", "iterations", maxIterations, "collected", len(out))
	return out, nil
}
