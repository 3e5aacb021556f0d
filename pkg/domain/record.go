package domain

import (
	"fmt"
	"strconv"
)

// RawCandidate is what one source adapter extracts for a single catalog item,
// before any cleaning. It is never persisted as-is.
type RawCandidate struct {
	Title         string
	Description   string
	TagCandidates []string // service names, categories or technology keywords
	Category      string
	URL           string
	SourceApp     string // sub-source within a platform, e.g. a specific connector
}

// CanonicalRecord is the normalized, persistable unit written to the local
// store and mirrored to the remote tables. Records are append-only.
type CanonicalRecord struct {
	ID          string   `bson:"id" json:"id"`
	Platform    Platform `bson:"platform" json:"platform"`
	SourceApp   string   `bson:"source_app" json:"source_app"`
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description" json:"description"`
	Tags        string   `bson:"tools_tags" json:"tools_tags"`
	Category    string   `bson:"category" json:"category"`
	URL         string   `bson:"url" json:"url"`
	ScrapedDate string   `bson:"scraped_date" json:"scraped_date"` // ISO date, 2006-01-02
	IsNew       bool     `bson:"is_new" json:"is_new"`
}

// RecordHeader is the fixed column order of the local store and of the
// remote raw dataset.
var RecordHeader = []string{
	"id",
	"platform",
	"source_app",
	"title",
	"description",
	"tools_tags",
	"category",
	"url",
	"scraped_date",
	"is_new",
}

// DateLayout is the layout of CanonicalRecord.ScrapedDate.
const DateLayout = "2006-01-02"

// Row renders the record in RecordHeader order.
func (r CanonicalRecord) Row() []string {
	return []string{
		r.ID,
		string(r.Platform),
		r.SourceApp,
		r.Title,
		r.Description,
		r.Tags,
		r.Category,
		r.URL,
		r.ScrapedDate,
		strconv.FormatBool(r.IsNew),
	}
}

// RecordFromRow parses a row written by Row.
func RecordFromRow(row []string) (CanonicalRecord, error) {
	if len(row) != len(RecordHeader) {
		return CanonicalRecord{}, fmt.Errorf("expected %d columns, got %d", len(RecordHeader), len(row))
	}

	isNew, err := strconv.ParseBool(row[9])
	if err != nil {
		return CanonicalRecord{}, fmt.Errorf("parse is_new %q: %w", row[9], err)
	}

	return CanonicalRecord{
		ID:          row[0],
		Platform:    Platform(row[1]),
		SourceApp:   row[2],
		Title:       row[3],
		Description: row[4],
		Tags:        row[5],
		Category:    row[6],
		URL:         row[7],
		ScrapedDate: row[8],
		IsNew:       isNew,
	}, nil
}

// Rows renders a batch of records.
func Rows(records []CanonicalRecord) [][]string {
	out := make([][]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Row())
	}
	return out
}
