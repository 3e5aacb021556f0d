package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/httpclient"
)

var awesomeLists = map[domain.Platform]string{
	domain.PlatformAwesomeSelfhosted: "https://github.com/awesome-selfhosted/awesome-selfhosted",
	domain.PlatformAwesomeN8N:        "https://github.com/restyler/awesome-n8n",
}

// AwesomeListAdapter reads a curated "awesome" list from its rendered README.
// Section headings become categories, list entries become candidates.
type AwesomeListAdapter struct {
	platform domain.Platform
	client   *httpclient.HTTPClient
	pageURL  string
}

func NewAwesomeListAdapter(platform domain.Platform, client *httpclient.HTTPClient, pageURL string) *AwesomeListAdapter {
	if pageURL == "" {
		pageURL = awesomeLists[platform]
	}
	return &AwesomeListAdapter{platform: platform, client: client, pageURL: pageURL}
}

func (a *AwesomeListAdapter) Platform() domain.Platform { return a.platform }

func (a *AwesomeListAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	body, err := a.client.GetBody(ctx, a.pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.pageURL, err)
	}
	return ParseAwesomeList(string(body), a.pageURL)
}

// ParseAwesomeList walks headings and list items in document order. An entry
// is a list item whose first direct child is a link; the rest of the item's
// own text is its description and inline code spans are its tags. Links to
// in-page anchors (tables of contents) are skipped.
func ParseAwesomeList(html, pageURL string) ([]domain.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := doc.Find("article.markdown-body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var result []domain.RawCandidate
	category := ""
	root.Find("h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h2", "h3":
			category = strings.Join(strings.Fields(s.Text()), " ")
			return
		}

		link := s.ChildrenFiltered("a").First()
		if link.Length() == 0 {
			link = s.ChildrenFiltered("p").ChildrenFiltered("a").First()
		}
		href, _ := link.Attr("href")
		target := normalizeURL(href, pageURL)
		if target == "" {
			return
		}
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			return
		}

		own := s.Clone()
		own.Find("ul, ol").Remove()
		text := strings.Join(strings.Fields(own.Text()), " ")
		desc := strings.TrimPrefix(text, title)
		desc = strings.TrimLeft(desc, " -–—:")

		var tags []string
		own.Find("code").Each(func(_ int, c *goquery.Selection) {
			if tag := strings.TrimSpace(c.Text()); tag != "" {
				tags = append(tags, tag)
			}
		})

		result = append(result, domain.RawCandidate{
			Title:         title,
			Description:   desc,
			TagCandidates: tags,
			Category:      category,
			URL:           target,
		})
	})
	return result, nil
}
