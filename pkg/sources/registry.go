package sources

import (
	"fmt"
	"sort"
	"strings"

	"idea-harvest/pkg/browser"
	"idea-harvest/pkg/config"
	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/httpclient"
)

// Order is the fixed order in which a full run visits the platforms.
var Order = []domain.Platform{
	domain.PlatformN8N,
	domain.PlatformZapier,
	domain.PlatformMake,
	domain.PlatformPowerAutomate,
	domain.PlatformIFTTT,
	domain.PlatformAirtable,
	domain.PlatformAwesomeSelfhosted,
	domain.PlatformAwesomeN8N,
	domain.PlatformN8NCommunity,
}

// Registry holds the enabled adapters in run order.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// All returns the adapters in run order.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// Names lists the platform names accepted by Get.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, string(a.Platform()))
	}
	return names
}

// Get finds an adapter by platform name, ignoring case.
func (r *Registry) Get(name string) (Adapter, error) {
	for _, a := range r.adapters {
		if strings.EqualFold(string(a.Platform()), name) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPlatform, name, strings.Join(r.Names(), ", "))
}

// Build creates every enabled adapter from cfg, each wrapped by Guard.
// renderer serves the browser-driven catalogs; when nil a headless Chrome
// renderer is configured from cfg. Overrides naming an unknown platform are
// rejected.
func Build(cfg config.Config, renderer browser.Renderer) (*Registry, error) {
	known := make(map[string]bool, len(Order))
	for _, p := range Order {
		known[string(p)] = true
	}
	var unknown []string
	for name := range cfg.Sources {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: sources file names unknown platforms %s", config.ErrInvalidConfig, strings.Join(unknown, ", "))
	}

	if renderer == nil {
		renderer = browser.NewChromeRenderer(browser.Options{
			ExecPath:    cfg.ChromePath,
			UserAgent:   cfg.UserAgent,
			StepTimeout: cfg.RequestTimeout,
		})
	}

	// one host limiter for the whole run: adapters that share a host
	// (github.com for both awesome lists) share its delay
	hosts := httpclient.NewHostLimiter(cfg.RequestDelay)

	var adapters []Adapter
	for _, p := range Enabled(cfg) {
		o := cfg.Sources[string(p)]
		adapters = append(adapters, Guard(newAdapter(p, cfg, o, renderer, hosts), cfg.AdapterTimeout))
	}
	return NewRegistry(adapters...), nil
}

// Enabled lists the platforms cfg leaves enabled, in run order.
func Enabled(cfg config.Config) []domain.Platform {
	var out []domain.Platform
	for _, p := range Order {
		if cfg.Sources[string(p)].IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

func newAdapter(p domain.Platform, cfg config.Config, o config.SourceOverride, renderer browser.Renderer, hosts *httpclient.HostLimiter) Adapter {
	pager := Pager{PageSize: o.PageSize, MaxItems: firstPositive(o.MaxItems, cfg.MaxItems)}

	switch p {
	case domain.PlatformN8N:
		return NewN8NAdapter(newClient(cfg, httpclient.APIClient, hosts), o.BaseURL, pager)
	case domain.PlatformZapier:
		return NewZapierAdapter(newClient(cfg, httpclient.APIClient, hosts), o.BaseURL, o.Apps, pager)
	case domain.PlatformAwesomeSelfhosted, domain.PlatformAwesomeN8N:
		return NewAwesomeListAdapter(p, newClient(cfg, httpclient.BrowserClient, hosts), o.BaseURL)
	case domain.PlatformN8NCommunity:
		return NewFeedAdapter(p, newClient(cfg, httpclient.CloudflareClient, hosts), o.BaseURL)
	}

	site := browserSites[p]
	page := site.page
	if o.BaseURL != "" {
		page.URL = o.BaseURL
	}
	page.MaxLoadMore = firstPositive(o.MaxLoadMore, cfg.MaxLoadMore)
	page.SettleDelay = cfg.RequestDelay
	a := NewBrowserAdapter(p, renderer, page, site.rules)
	a.hosts = hosts
	return a
}

// newClient gives each adapter its own in-flight cap; the per-host delay is
// shared through hosts. The configured user agent only replaces the browser
// profile; the API and Cloudflare profiles depend on their own.
func newClient(cfg config.Config, t httpclient.ClientType, hosts *httpclient.HostLimiter) *httpclient.HTTPClient {
	opts := httpclient.Options{
		Timeout:       cfg.RequestTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
		Hosts:         hosts,
	}
	if t == httpclient.BrowserClient {
		opts.UserAgent = cfg.UserAgent
	}
	return httpclient.NewClientWithOptions(t, opts)
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
