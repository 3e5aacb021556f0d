package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/httpclient"
	"idea-harvest/pkg/logging"
)

const (
	zapierSearchURL   = "https://zapier.com/api/v3/zap-templates"
	zapierTemplateURL = "https://zapier.com/templates/details/"
)

// ZapierAdapter walks Zapier's template listing with limit/offset. When apps
// are configured, one walk is made per app and its candidates carry the app
// as SourceApp.
type ZapierAdapter struct {
	client  *httpclient.HTTPClient
	baseURL string
	apps    []string
	pager   Pager
	log     *slog.Logger
}

func NewZapierAdapter(client *httpclient.HTTPClient, baseURL string, apps []string, pager Pager) *ZapierAdapter {
	if baseURL == "" {
		baseURL = zapierSearchURL
	}
	log := logging.New("source").With("platform", string(domain.PlatformZapier))
	pager.Log = log
	return &ZapierAdapter{client: client, baseURL: baseURL, apps: apps, pager: pager, log: log}
}

func (a *ZapierAdapter) Platform() domain.Platform { return domain.PlatformZapier }

type zapierResponse struct {
	Objects []zapierTemplate `json:"objects"`
	Meta    struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

type zapierTemplate struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description_plain"`
	Slug        string `json:"slug"`
	URL         string `json:"url"`
	Steps       []struct {
		App struct {
			Title    string `json:"title"`
			Category string `json:"category"`
		} `json:"app"`
	} `json:"steps"`
}

// FetchRaw walks the unfiltered listing, or each configured app in turn.
// A failing app is logged and skipped unless it is the only one.
func (a *ZapierAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	if len(a.apps) == 0 {
		return a.pager.Walk(ctx, a.pageFunc(""))
	}

	var out []domain.RawCandidate
	var lastErr error
	for _, app := range a.apps {
		items, err := a.pager.Walk(ctx, a.pageFunc(app))
		out = append(out, items...)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			a.log.Warn("app walk failed", "app", app, "error", err)
			lastErr = err
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (a *ZapierAdapter) pageFunc(app string) PageFunc {
	return func(ctx context.Context, offset, limit int) ([]domain.RawCandidate, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		if app != "" {
			q.Set("app", app)
		}

		var resp zapierResponse
		if err := a.client.GetJSON(ctx, a.baseURL+"?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("zapier templates at offset %d: %w", offset, err)
		}
		if len(resp.Objects) == 0 && resp.Meta.TotalCount > offset {
			a.log.Warn("upstream total disagrees with empty page", "total", resp.Meta.TotalCount, "offset", offset, "app", app)
		}

		out := make([]domain.RawCandidate, 0, len(resp.Objects))
		for _, t := range resp.Objects {
			c := t.candidate()
			c.SourceApp = app
			out = append(out, c)
		}
		return out, nil
	}
}

func (t zapierTemplate) candidate() domain.RawCandidate {
	var tags []string
	category := ""
	for _, s := range t.Steps {
		if name := strings.TrimSpace(s.App.Title); name != "" {
			tags = append(tags, name)
		}
		if category == "" {
			category = s.App.Category
		}
	}

	link := t.URL
	if link == "" && t.Slug != "" {
		link = zapierTemplateURL + strconv.Itoa(t.ID) + "/" + t.Slug
	}

	return domain.RawCandidate{
		Title:         t.Title,
		Description:   t.Description,
		TagCandidates: tags,
		Category:      category,
		URL:           link,
	}
}
