// Package dedup decides which records are new by a normalized
// platform+title key over all history.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"idea-harvest/pkg/domain"
)

// HistorySource yields every record persisted so far.
type HistorySource interface {
	ReadAll(ctx context.Context) ([]domain.CanonicalRecord, error)
}

// NormalizeTitle lowercases title and keeps only ASCII letters and digits.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key is the deduplication key of a record: platform, "_", normalized title.
func Key(platform domain.Platform, title string) string {
	return string(platform) + "_" + NormalizeTitle(title)
}

// Index is the set of keys seen across all history and the current run.
// It is not safe for concurrent use.
type Index struct {
	seen map[string]domain.Platform
}

func NewIndex() *Index {
	return &Index{seen: make(map[string]domain.Platform)}
}

// LoadExisting replaces the index contents with the keys of every historic
// record. Loading the same history twice leaves the same index.
func (x *Index) LoadExisting(ctx context.Context, src HistorySource) error {
	records, err := src.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	x.seen = make(map[string]domain.Platform, len(records))
	for _, r := range records {
		x.seen[Key(r.Platform, r.Title)] = r.Platform
	}
	return nil
}

// Contains reports whether a record with this platform and title is known.
func (x *Index) Contains(platform domain.Platform, title string) bool {
	_, ok := x.seen[Key(platform, title)]
	return ok
}

// Partition splits batch into records whose key is unseen and duplicates.
// Fresh keys are added to the index as they are found, so a second record
// with the same key in one batch is a duplicate. Batch order is preserved.
func (x *Index) Partition(batch []domain.CanonicalRecord) (fresh, dupes []domain.CanonicalRecord) {
	for _, r := range batch {
		if x.Contains(r.Platform, r.Title) {
			dupes = append(dupes, r)
			continue
		}
		x.seen[Key(r.Platform, r.Title)] = r.Platform
		fresh = append(fresh, r)
	}
	return fresh, dupes
}

// Len is the number of distinct keys.
func (x *Index) Len() int {
	return len(x.seen)
}

// CountByPlatform returns distinct keys per platform, the cumulative total
// used in statistics.
func (x *Index) CountByPlatform() map[domain.Platform]int {
	out := make(map[domain.Platform]int)
	for _, p := range x.seen {
		out[p]++
	}
	return out
}
