package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient uses browser-like headers for catalog pages that reject
	// non-browser user agents
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple headers (like curl) to avoid 403 (Forbidden) errors
	// Used for Cloudflare-protected sites that block browser-like User-Agents
	CloudflareClient ClientType = "cloudflare"

	// APIClient asks for JSON and is used against template search endpoints
	APIClient ClientType = "api"
)

// Options controls timeouts and politeness
type Options struct {
	Timeout       time.Duration // per request, including reading the body
	UserAgent     string        // overrides the profile's User-Agent when set
	MinDelay      time.Duration // minimum spacing between requests to the same host
	MaxConcurrent int           // in-flight request cap for this client
	Hosts         *HostLimiter  // shared per-host spacing; MinDelay is ignored when set
}

// HTTPClient wraps an http.Client with header profiles and politeness limits.
// One client is created per adapter so the in-flight cap is per platform;
// the per-host delay comes from a HostLimiter that clients may share.
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	userAgent  string

	sem   *semaphore.Weighted
	hosts *HostLimiter
}

// HostLimiter spaces consecutive requests to the same host. One HostLimiter
// shared by several clients keeps the delay across all of them.
type HostLimiter struct {
	minDelay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // host -> limiter
}

// NewHostLimiter creates a limiter allowing one request per minDelay and host.
// A zero delay disables spacing.
func NewHostLimiter(minDelay time.Duration) *HostLimiter {
	return &HostLimiter{minDelay: minDelay, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to host may be sent.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiterFor(host).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}

	limit := rate.Inf
	if h.minDelay > 0 {
		limit = rate.Every(h.minDelay)
	}
	l := rate.NewLimiter(limit, 1)
	h.limiters[host] = l
	return l
}

// NewClientWithOptions creates a new HTTP client with explicit limits
func NewClientWithOptions(clientType ClientType, opts Options) *HTTPClient {
	client := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	hosts := opts.Hosts
	if hosts == nil {
		hosts = NewHostLimiter(opts.MinDelay)
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
		userAgent:  opts.UserAgent,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		hosts:      hosts,
	}
}

// Do executes an HTTP request with the appropriate headers for the client type.
// It blocks until the host's delay has elapsed and an in-flight slot is free.
// The slot is held until the response body is closed.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}

	if err := c.hosts.Wait(ctx, req.URL.Host); err != nil {
		c.sem.Release(1)
		return nil, fmt.Errorf("wait for host delay: %w", err)
	}

	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		c.sem.Release(1)
		return nil, err
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() { c.sem.Release(1) }}
	return resp, nil
}

// Get is a convenience method for GET requests
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetBody fetches url and returns the body of a 200 response
func (c *HTTPClient) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// GetJSON fetches url and decodes a 200 JSON response into v
func (c *HTTPClient) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

	case CloudflareClient:
		// Cloudflare allows simple tools like curl but blocks browser-like User-Agents
		req.Header.Set("User-Agent", "curl/8.7.1")

	case APIClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; idea-harvest/1.0)")
		req.Header.Set("Accept", "application/json")

	default:
		// Default: use Go's default User-Agent
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
