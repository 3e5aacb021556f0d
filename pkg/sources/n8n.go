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
	n8nSearchURL   = "https://api.n8n.io/api/templates/search"
	n8nWorkflowURL = "https://n8n.io/workflows/"
)

// N8NAdapter walks the n8n template search API page by page.
type N8NAdapter struct {
	client  *httpclient.HTTPClient
	baseURL string
	pager   Pager
	log     *slog.Logger
}

// NewN8NAdapter creates an adapter against baseURL (the search endpoint).
func NewN8NAdapter(client *httpclient.HTTPClient, baseURL string, pager Pager) *N8NAdapter {
	if baseURL == "" {
		baseURL = n8nSearchURL
	}
	log := logging.New("source").With("platform", string(domain.PlatformN8N))
	pager.Log = log
	return &N8NAdapter{client: client, baseURL: baseURL, pager: pager, log: log}
}

func (a *N8NAdapter) Platform() domain.Platform { return domain.PlatformN8N }

type n8nSearchResponse struct {
	TotalWorkflows int           `json:"totalWorkflows"`
	Workflows      []n8nWorkflow `json:"workflows"`
}

type n8nWorkflow struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Nodes       []struct {
		DisplayName string `json:"displayName"`
		Categories  []struct {
			Name string `json:"name"`
		} `json:"nodeCategories"`
	} `json:"nodes"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
}

func (a *N8NAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	return a.pager.Walk(ctx, a.fetchPage)
}

func (a *N8NAdapter) fetchPage(ctx context.Context, offset, limit int) ([]domain.RawCandidate, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(offset/limit+1))
	q.Set("rows", strconv.Itoa(limit))
	pageURL := a.baseURL + "?" + q.Encode()

	var resp n8nSearchResponse
	if err := a.client.GetJSON(ctx, pageURL, &resp); err != nil {
		return nil, fmt.Errorf("n8n search page at offset %d: %w", offset, err)
	}
	if len(resp.Workflows) == 0 && resp.TotalWorkflows > offset {
		a.log.Warn("upstream total disagrees with empty page", "total", resp.TotalWorkflows, "offset", offset)
	}

	out := make([]domain.RawCandidate, 0, len(resp.Workflows))
	for _, wf := range resp.Workflows {
		out = append(out, wf.candidate())
	}
	return out, nil
}

func (wf n8nWorkflow) candidate() domain.RawCandidate {
	seen := make(map[string]bool)
	var tags []string
	category := ""
	for _, n := range wf.Nodes {
		name := strings.TrimSpace(n.DisplayName)
		if name != "" && !seen[name] {
			seen[name] = true
			tags = append(tags, name)
		}
		if category == "" && len(n.Categories) > 0 {
			category = n.Categories[0].Name
		}
	}
	if len(wf.Categories) > 0 {
		category = wf.Categories[0].Name
	}

	return domain.RawCandidate{
		Title:         wf.Name,
		Description:   wf.Description,
		TagCandidates: tags,
		Category:      category,
		URL:           n8nWorkflowURL + strconv.Itoa(wf.ID),
	}
}
