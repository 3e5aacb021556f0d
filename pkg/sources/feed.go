package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"idea-harvest/pkg/content"
	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/httpclient"
)

const n8nCommunityFeedURL = "https://community.n8n.io/c/built-with-n8n/15.rss"

// FeedAdapter reads a community showcase RSS/Atom feed. Item bodies are HTML
// and are reduced to text before they reach the normalizer.
type FeedAdapter struct {
	platform  domain.Platform
	client    *httpclient.HTTPClient
	feedURL   string
	parser    *gofeed.Parser
	extractor content.Extractor
}

func NewFeedAdapter(platform domain.Platform, client *httpclient.HTTPClient, feedURL string) *FeedAdapter {
	if feedURL == "" {
		feedURL = n8nCommunityFeedURL
	}
	return &FeedAdapter{
		platform:  platform,
		client:    client,
		feedURL:   feedURL,
		parser:    gofeed.NewParser(),
		extractor: content.NewDefaultExtractor(),
	}
}

func (a *FeedAdapter) Platform() domain.Platform { return a.platform }

func (a *FeedAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	body, err := a.client.GetBody(ctx, a.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", a.feedURL, err)
	}
	feed, err := a.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.feedURL, err)
	}

	out := make([]domain.RawCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		body := item.Description
		if body == "" {
			body = item.Content
		}
		desc, err := a.extractor.ExtractText(body)
		if err != nil {
			desc = body
		}

		var category string
		if len(item.Categories) > 0 {
			category = item.Categories[0]
		}
		out = append(out, domain.RawCandidate{
			Title:         item.Title,
			Description:   desc,
			TagCandidates: item.Categories,
			Category:      category,
			URL:           item.Link,
		})
	}
	return out, nil
}
