package sources

import (
	"context"
	"fmt"
	"net/url"

	"idea-harvest/pkg/browser"
	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/httpclient"
)

// BrowserAdapter renders a JavaScript catalog page, expands it with its
// load-more control and extracts cards with SelectorRules.
type BrowserAdapter struct {
	platform domain.Platform
	renderer browser.Renderer
	page     browser.PageRequest
	rules    SelectorRules
	hosts    *httpclient.HostLimiter // optional; spaces page loads per host
}

func NewBrowserAdapter(platform domain.Platform, renderer browser.Renderer, page browser.PageRequest, rules SelectorRules) *BrowserAdapter {
	return &BrowserAdapter{platform: platform, renderer: renderer, page: page, rules: rules}
}

func (a *BrowserAdapter) Platform() domain.Platform { return a.platform }

func (a *BrowserAdapter) FetchRaw(ctx context.Context) ([]domain.RawCandidate, error) {
	if a.hosts != nil {
		if u, err := url.Parse(a.page.URL); err == nil {
			if err := a.hosts.Wait(ctx, u.Host); err != nil {
				return nil, fmt.Errorf("wait for host delay: %w", err)
			}
		}
	}
	html, err := a.renderer.Render(ctx, a.page)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", a.page.URL, err)
	}
	return ExtractCandidates(html, a.page.URL, a.rules)
}

// browserSite is the built-in definition of one rendered catalog. The
// settle delay between load-more clicks is the configured request delay.
type browserSite struct {
	page  browser.PageRequest
	rules SelectorRules
}

var browserSites = map[domain.Platform]browserSite{
	domain.PlatformMake: {
		page: browser.PageRequest{
			URL:              "https://www.make.com/en/templates",
			WaitSelector:     "a[href*='/templates/']",
			LoadMoreSelector: "button[data-testid='load-more'], button.load-more",
		},
		rules: SelectorRules{
			Item:        "a[href*='/en/templates/']:has(h3)",
			Title:       "h3",
			Description: "p",
			Tags:        "img[alt]",
			TagAttr:     "alt",
		},
	},
	domain.PlatformPowerAutomate: {
		page: browser.PageRequest{
			URL:              "https://make.powerautomate.com/templates/",
			WaitSelector:     "[class*='templateCard'], [data-automation-id='template-card']",
			LoadMoreSelector: "button[aria-label*='more' i]",
		},
		rules: SelectorRules{
			Item:        "[class*='templateCard'], [data-automation-id='template-card']",
			Title:       "[class*='title']",
			Description: "[class*='description']",
			Tags:        "img[alt]",
			TagAttr:     "alt",
			Category:    "[class*='type']",
		},
	},
	domain.PlatformIFTTT: {
		page: browser.PageRequest{
			URL:              "https://ifttt.com/explore/applets",
			WaitSelector:     "a[href^='/applets/']",
			LoadMoreSelector: "button.load-more, a.load-more",
		},
		rules: SelectorRules{
			Item:     "a[href^='/applets/']",
			Title:    "[class*='title'], h3, span",
			Tags:     "img[alt]",
			TagAttr:  "alt",
			Category: "[class*='service']",
		},
	},
	domain.PlatformAirtable: {
		page: browser.PageRequest{
			URL:              "https://www.airtable.com/templates",
			WaitSelector:     "a[href*='/templates/']",
			LoadMoreSelector: "button[aria-label*='more' i], button.load-more",
		},
		rules: SelectorRules{
			Item:        "a[href*='/templates/']:has(h3, h4)",
			Title:       "h3, h4",
			Description: "p",
			Category:    "[class*='category']",
		},
	},
}
