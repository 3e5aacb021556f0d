package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const appendChunk = 500

// SheetsBackend mirrors datasets as tabs of one Google spreadsheet.
type SheetsBackend struct {
	svc           *sheets.Service
	spreadsheetID string

	mu    sync.Mutex
	known map[string]bool // tabs known to exist with a header
}

// NewSheetsBackend authenticates with a service-account credentials file, or
// with application default credentials when the path is empty.
func NewSheetsBackend(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*SheetsBackend, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsBackend{svc: svc, spreadsheetID: spreadsheetID, known: make(map[string]bool)}, nil
}

func (b *SheetsBackend) EnsureDataset(ctx context.Context, name string, header []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.known[name] {
		return nil
	}

	ss, err := b.svc.Spreadsheets.Get(b.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	exists := false
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			exists = true
			break
		}
	}

	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{
				Title:          name,
				GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: 26},
			}},
		}}}
		if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	first, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, sheetRange(name, "A1:A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", name, err)
	}
	if len(first.Values) == 0 {
		vr := &sheets.ValueRange{Values: toValues([][]string{header})}
		if _, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, sheetRange(name, "A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header of %s: %w", name, err)
		}
	}

	b.known[name] = true
	return nil
}

func (b *SheetsBackend) AppendRows(ctx context.Context, name string, header []string, rows [][]string) error {
	for start := 0; start < len(rows); start += appendChunk {
		end := min(start+appendChunk, len(rows))
		vr := &sheets.ValueRange{Values: toValues(rows[start:end])}
		_, err := b.svc.Spreadsheets.Values.Append(b.spreadsheetID, sheetRange(name, "A1"), vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append rows [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (b *SheetsBackend) ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if _, err := b.svc.Spreadsheets.Values.Clear(b.spreadsheetID, sheetRange(name, ""), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	all := append([][]string{header}, rows...)
	vr := &sheets.ValueRange{Values: toValues(all)}
	if _, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, sheetRange(name, "A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (b *SheetsBackend) Close(ctx context.Context) error { return nil }

// sheetRange quotes a tab name for A1 notation.
func sheetRange(name, cells string) string {
	quoted := "'" + strings.ReplaceAll(name, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
