// Package ledger keeps run bookkeeping in a local SQLite database: the
// statistics table, which records were used for published ideas, and an
// audit row per run.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"idea-harvest/pkg/domain"
)

type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if needed) the ledger at path and migrates its schema.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.AutoMigrate(&StatRow{}, &UsedRecord{}, &RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReplaceStatistics swaps the whole statistics table for stats.
func (l *Ledger) ReplaceStatistics(ctx context.Context, stats []domain.PlatformStatistics) error {
	now := time.Now().UTC()
	rows := make([]StatRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, StatRow{
			Platform:   string(s.Platform),
			Total:      s.Total,
			NewThisRun: s.NewThisRun,
			Used:       s.Used,
			Unused:     s.Unused,
			UpdatedAt:  now,
		})
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&StatRow{}).Error; err != nil {
			return fmt.Errorf("clear statistics: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert statistics: %w", err)
		}
		return nil
	})
}

// Statistics returns the current statistics table ordered by platform.
func (l *Ledger) Statistics(ctx context.Context) ([]domain.PlatformStatistics, error) {
	var rows []StatRow
	if err := l.db.WithContext(ctx).Order("platform").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read statistics: %w", err)
	}
	out := make([]domain.PlatformStatistics, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PlatformStatistics{
			Platform:   domain.Platform(r.Platform),
			Total:      r.Total,
			NewThisRun: r.NewThisRun,
			Used:       r.Used,
			Unused:     r.Unused,
		})
	}
	return out, nil
}

// UsedCounts returns how many records of each platform were marked used.
func (l *Ledger) UsedCounts(ctx context.Context) (map[domain.Platform]int, error) {
	var rows []struct {
		Platform string
		Count    int
	}
	err := l.db.WithContext(ctx).Model(&UsedRecord{}).
		Select("platform, count(*) as count").
		Group("platform").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count used records: %w", err)
	}

	out := make(map[domain.Platform]int, len(rows))
	for _, r := range rows {
		out[domain.Platform(r.Platform)] = r.Count
	}
	return out, nil
}

// MarkUsed records that rec fed the published idea ideaSlug. Marking the
// same record again moves it to the new idea.
func (l *Ledger) MarkUsed(ctx context.Context, rec domain.CanonicalRecord, ideaSlug string) error {
	ideaSlug = strings.TrimSpace(ideaSlug)
	if ideaSlug == "" {
		return fmt.Errorf("idea slug is required")
	}
	row := UsedRecord{
		RecordID: rec.ID,
		Platform: string(rec.Platform),
		IdeaSlug: ideaSlug,
		UsedAt:   time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("mark record %s used: %w", rec.ID, err)
	}
	return nil
}

// RecordRun appends the audit row for a finished run.
func (l *Ledger) RecordRun(ctx context.Context, report domain.RunReport) error {
	row := RunRecord{
		Mode:        report.Mode,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Scraped:     report.Scraped,
		New:         report.New,
		Duplicate:   report.Duplicate,
		Failed:      joinPlatforms(report.FailedPlatforms()),
		Empty:       joinPlatforms(report.EmptyPlatforms()),
		RemoteStale: report.RemoteStale,
		Persisted:   report.Persisted,
		Error:       report.Err,
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	var rows []RunRecord
	q := l.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return rows, nil
}

func joinPlatforms(ps []domain.Platform) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}
