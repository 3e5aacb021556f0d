package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"idea-harvest/pkg/domain"
)

// DefaultMaxLen caps title and description length.
const DefaultMaxLen = 500

// Normalizer converts raw candidates into canonical records.
type Normalizer struct {
	MaxLen int
	Now    func() time.Time
	NewID  func() (string, error)
}

// New creates a Normalizer with UUIDv7 ids and the wall clock.
func New(maxLen int) *Normalizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Normalizer{
		MaxLen: maxLen,
		Now:    time.Now,
		NewID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// Normalize maps one candidate. The record is marked new and dated today.
func (n *Normalizer) Normalize(platform domain.Platform, c domain.RawCandidate) (domain.CanonicalRecord, error) {
	id, err := n.NewID()
	if err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("generate record id: %w", err)
	}

	return domain.CanonicalRecord{
		ID:          id,
		Platform:    platform,
		SourceApp:   strings.TrimSpace(c.SourceApp),
		Title:       CleanText(c.Title, n.MaxLen),
		Description: CleanText(c.Description, n.MaxLen),
		Tags:        JoinTags(c.TagCandidates),
		Category:    CleanText(c.Category, n.MaxLen),
		URL:         strings.TrimSpace(c.URL),
		ScrapedDate: n.Now().Format(domain.DateLayout),
		IsNew:       true,
	}, nil
}

// NormalizeAll maps a batch in order.
func (n *Normalizer) NormalizeAll(platform domain.Platform, batch []domain.RawCandidate) ([]domain.CanonicalRecord, error) {
	out := make([]domain.CanonicalRecord, 0, len(batch))
	for _, c := range batch {
		r, err := n.Normalize(platform, c)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// CleanText collapses every whitespace run to one space, trims the ends and
// truncates to maxLen characters. maxLen <= 0 disables truncation.
func CleanText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		return s
	}
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen])
	}
	return s
}

// JoinTags trims each tag, drops empty ones and joins the rest with commas.
// Duplicates are kept.
func JoinTags(tags []string) string {
	kept := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.Join(strings.Fields(t), " "); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ",")
}
