package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"idea-harvest/pkg/domain"
)

type mockHistory struct {
	records []domain.CanonicalRecord
	err     error
}

func (m *mockHistory) ReadAll(ctx context.Context) ([]domain.CanonicalRecord, error) {
	return m.records, m.err
}

func rec(p domain.Platform, title string) domain.CanonicalRecord {
	return domain.CanonicalRecord{ID: title, Platform: p, Title: title}
}

func TestKey(t *testing.T) {
	tests := []struct {
		platform domain.Platform
		title    string
		want     string
	}{
		{domain.PlatformN8N, "Send Slack Message", "n8n_sendslackmessage"},
		{domain.PlatformN8N, "send-slack-message!!", "n8n_sendslackmessage"},
		{domain.PlatformZapier, "Gmail → Sheets (v2)", "zapier_gmailsheetsv2"},
		{domain.PlatformMake, "", "make_"},
		{domain.PlatformMake, "Café", "make_caf"},
	}
	for _, tt := range tests {
		if got := Key(tt.platform, tt.title); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.platform, tt.title, got, tt.want)
		}
	}
}

func TestPartition_AgainstHistoryAndWithinBatch(t *testing.T) {
	x := NewIndex()
	err := x.LoadExisting(context.Background(), &mockHistory{records: []domain.CanonicalRecord{
		rec(domain.PlatformN8N, "Send Slack Message"),
	}})
	if err != nil {
		t.Fatalf("LoadExisting failed: %v", err)
	}

	batch := []domain.CanonicalRecord{
		rec(domain.PlatformN8N, "send-slack-message!!"),
		rec(domain.PlatformN8N, "Daily digest"),
		rec(domain.PlatformN8N, "DAILY DIGEST"),
		rec(domain.PlatformZapier, "Send Slack Message"),
	}
	fresh, dupes := x.Partition(batch)

	if diff := cmp.Diff([]domain.CanonicalRecord{batch[1], batch[3]}, fresh); diff != "" {
		t.Errorf("fresh mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.CanonicalRecord{batch[0], batch[2]}, dupes); diff != "" {
		t.Errorf("dupes mismatch (-want +got):\n%s", diff)
	}
	if x.Len() != 3 {
		t.Errorf("Len = %d, want 3", x.Len())
	}
}

func TestPartition_EmptyTitlesCollide(t *testing.T) {
	x := NewIndex()
	fresh, dupes := x.Partition([]domain.CanonicalRecord{rec(domain.PlatformMake, ""), rec(domain.PlatformMake, "!!")})
	if len(fresh) != 1 || len(dupes) != 1 {
		t.Errorf("fresh=%d dupes=%d, want 1 and 1", len(fresh), len(dupes))
	}
}

func TestLoadExisting_Idempotent(t *testing.T) {
	history := &mockHistory{records: []domain.CanonicalRecord{
		rec(domain.PlatformN8N, "A"),
		rec(domain.PlatformZapier, "B"),
		rec(domain.PlatformZapier, "b"),
	}}

	x := NewIndex()
	for i := 0; i < 2; i++ {
		if err := x.LoadExisting(context.Background(), history); err != nil {
			t.Fatal(err)
		}
	}
	want := map[domain.Platform]int{domain.PlatformN8N: 1, domain.PlatformZapier: 1}
	if diff := cmp.Diff(want, x.CountByPlatform()); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if !x.Contains(domain.PlatformZapier, "B!") {
		t.Error("expected B to be known")
	}
}

func TestLoadExisting_Error(t *testing.T) {
	boom := errors.New("corrupt")
	if err := NewIndex().LoadExisting(context.Background(), &mockHistory{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
