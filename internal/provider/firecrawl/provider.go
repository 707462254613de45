// Package firecrawl adapts the hosted Firecrawl crawl API to the
// audit.CrawlProvider interface.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Config controls provider behavior.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements audit.CrawlProvider against the Firecrawl v1 API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New builds a Provider. The timeout bounds each HTTP call, not the
// crawl itself; crawls run asynchronously on the provider side.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type startRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit,omitempty"`
	MaxDepth      int           `json:"maxDepth,omitempty"`
	AllowExternal bool          `json:"allowExternalLinks"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type startResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type crawlResponse struct {
	Status    string      `json:"status"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Data      []crawlPage `json:"data"`
}

type crawlPage struct {
	Markdown string         `json:"markdown"`
	HTML     string         `json:"html"`
	Metadata map[string]any `json:"metadata"`
}

// Start submits a crawl and returns the provider's job id.
func (p *Provider) Start(ctx context.Context, req audit.CrawlRequest) (string, error) {
	body := startRequest{
		URL:           req.StartURL,
		Limit:         req.MaxPages,
		MaxDepth:      req.Depth,
		AllowExternal: !req.FollowInternalLinks,
		ScrapeOptions: scrapeOptions{Formats: []string{"markdown", "html"}},
	}
	var out startResponse
	if err := p.do(ctx, http.MethodPost, "/v1/crawl", body, &out); err != nil {
		return "", err
	}
	if !out.Success || out.ID == "" {
		return "", fmt.Errorf("firecrawl: crawl rejected: %s", out.Error)
	}
	return out.ID, nil
}

// Status reports the crawl state and a completion percentage derived
// from the provider's completed/total page counters.
func (p *Provider) Status(ctx context.Context, providerJobID string) (audit.CrawlStatus, error) {
	var out crawlResponse
	if err := p.do(ctx, http.MethodGet, "/v1/crawl/"+providerJobID, nil, &out); err != nil {
		return audit.CrawlStatus{}, err
	}
	status := audit.CrawlStatus{State: mapState(out.Status)}
	if out.Total > 0 {
		status.Percent = 100 * out.Completed / out.Total
		if status.Percent > 100 {
			status.Percent = 100
		}
	}
	return status, nil
}

// Results fetches whatever pages the crawl has produced so far. Safe to
// call in any state; a failed crawl may still yield partial pages.
func (p *Provider) Results(ctx context.Context, providerJobID string) ([]audit.PagePayload, error) {
	var out crawlResponse
	if err := p.do(ctx, http.MethodGet, "/v1/crawl/"+providerJobID, nil, &out); err != nil {
		return nil, err
	}
	pages := make([]audit.PagePayload, 0, len(out.Data))
	for _, d := range out.Data {
		pages = append(pages, audit.PagePayload{
			URL:         metaString(d.Metadata, "sourceURL"),
			Title:       metaString(d.Metadata, "title"),
			HTML:        d.HTML,
			Markdown:    d.Markdown,
			StatusCode:  metaInt(d.Metadata, "statusCode"),
			ContentType: metaString(d.Metadata, "contentType"),
			Metadata:    d.Metadata,
		})
	}
	return pages, nil
}

func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("firecrawl: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("firecrawl: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("firecrawl: %s %s: status %d: %s", method, path, resp.StatusCode, payload)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("firecrawl: decode response: %w", err)
	}
	return nil
}

func mapState(s string) audit.CrawlState {
	switch s {
	case "scraping", "crawling", "queued":
		return audit.CrawlRunning
	case "completed":
		return audit.CrawlSucceeded
	case "failed":
		return audit.CrawlFailed
	case "cancelled":
		return audit.CrawlAborted
	default:
		return audit.CrawlRunning
	}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
