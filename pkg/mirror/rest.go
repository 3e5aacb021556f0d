package mirror

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// noMatch never equals a real first-column value; PostgREST refuses an
// unfiltered delete.
const noMatch = "__idea_harvest_no_match__"

// RESTBackend mirrors through Supabase's REST API. Tables cannot be created
// over REST, so every dataset must already exist with TEXT columns named
// after the header.
type RESTBackend struct {
	sdk   *supabase.Client
	close func(context.Context) error
}

func NewRESTBackend(sdk *supabase.Client, close func(context.Context) error) *RESTBackend {
	return &RESTBackend{sdk: sdk, close: close}
}

func (b *RESTBackend) EnsureDataset(ctx context.Context, name string, header []string) error {
	if _, _, err := b.sdk.From(name).Select(header[0], "exact", true).Execute(); err != nil {
		return fmt.Errorf("table %s is not reachable over REST (create it first): %w", name, err)
	}
	return nil
}

func (b *RESTBackend) AppendRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if _, _, err := b.sdk.From(name).Insert(rowMaps(header, rows), false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

func (b *RESTBackend) ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if _, _, err := b.sdk.From(name).Delete("minimal", "").Neq(header[0], noMatch).Execute(); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	return b.AppendRows(ctx, name, header, rows)
}

func (b *RESTBackend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

func rowMaps(header []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
