package ledger

import "time"

// StatRow is one persisted row of the statistics table.
type StatRow struct {
	Platform   string `gorm:"primaryKey;size:64"`
	Total      int
	NewThisRun int
	Used       int
	Unused     int
	UpdatedAt  time.Time
}

func (StatRow) TableName() string { return "statistics" }

// UsedRecord marks a stored record as incorporated into a published idea.
type UsedRecord struct {
	RecordID string    `gorm:"primaryKey;size:64"`
	Platform string    `gorm:"index;size:64"`
	IdeaSlug string    `gorm:"index;size:256"`
	UsedAt   time.Time `gorm:"index"`
}

func (UsedRecord) TableName() string { return "used_records" }

// RunRecord is the audit row of one orchestrator run.
type RunRecord struct {
	ID          uint      `gorm:"primaryKey"`
	Mode        string    `gorm:"index;size:16"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  time.Time
	Scraped     int
	New         int
	Duplicate   int
	Failed      string `gorm:"type:text"` // comma separated platforms
	Empty       string `gorm:"type:text"`
	RemoteStale bool
	Persisted   bool
	Error       string `gorm:"type:text"`
}

func (RunRecord) TableName() string { return "runs" }
