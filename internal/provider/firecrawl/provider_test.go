package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seolytics/aeo-audit/internal/audit"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "fc-test-key", BaseURL: srv.URL})
}

func TestStartSubmitsCrawl(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/crawl", r.URL.Path)
		require.Equal(t, "Bearer fc-test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://example.com", body["url"])
		require.Equal(t, float64(25), body["limit"])

		json.NewEncoder(w).Encode(map[string]any{"success": true, "id": "crawl-123"})
	})

	id, err := p.Start(context.Background(), audit.CrawlRequest{
		StartURL: "https://example.com",
		MaxPages: 25,
		Depth:    3,
	})
	require.NoError(t, err)
	require.Equal(t, "crawl-123", id)
}

func TestStartRejected(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid url"})
	})

	_, err := p.Start(context.Background(), audit.CrawlRequest{StartURL: "nope"})
	require.ErrorContains(t, err, "invalid url")
}

func TestStatusMapsStatesAndPercent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		provider string
		want     audit.CrawlState
	}{
		{"scraping", audit.CrawlRunning},
		{"completed", audit.CrawlSucceeded},
		{"failed", audit.CrawlFailed},
		{"cancelled", audit.CrawlAborted},
		{"something-new", audit.CrawlRunning},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.provider, func(t *testing.T) {
			t.Parallel()
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/crawl/abc", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]any{
					"status": tc.provider, "completed": 3, "total": 10,
				})
			})
			status, err := p.Status(context.Background(), "abc")
			require.NoError(t, err)
			require.Equal(t, tc.want, status.State)
			require.Equal(t, 30, status.Percent)
		})
	}
}

func TestStatusZeroTotal(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "scraping"})
	})
	status, err := p.Status(context.Background(), "abc")
	require.NoError(t, err)
	require.Zero(t, status.Percent)
}

func TestResultsMapsPages(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "completed",
			"data": []map[string]any{
				{
					"markdown": "# Hello",
					"html":     "<html><body><h1>Hello</h1></body></html>",
					"metadata": map[string]any{
						"sourceURL":   "https://example.com/",
						"title":       "Hello",
						"statusCode":  200,
						"contentType": "text/html",
					},
				},
			},
		})
	})

	pages, err := p.Results(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "https://example.com/", pages[0].URL)
	require.Equal(t, "Hello", pages[0].Title)
	require.Equal(t, 200, pages[0].StatusCode)
	require.Equal(t, "# Hello", pages[0].Markdown)
}

func TestErrorStatusSurfaced(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	_, err := p.Status(context.Background(), "abc")
	require.ErrorContains(t, err, "status 429")
}
