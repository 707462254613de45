package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
	clocksystem "github.com/seolytics/aeo-audit/internal/clock/system"
	"github.com/seolytics/aeo-audit/internal/config"
	"github.com/seolytics/aeo-audit/internal/id/uuid"
	"github.com/seolytics/aeo-audit/internal/orchestrator"
	"github.com/seolytics/aeo-audit/internal/provider/providertest"
	"github.com/seolytics/aeo-audit/internal/rendering"
	storememory "github.com/seolytics/aeo-audit/internal/store/memory"
)

type fixture struct {
	server *Server
	orch   *orchestrator.Orchestrator
	store  *storememory.Store
}

func newFixture(t *testing.T, provider *providertest.Provider, cfg config.Config) *fixture {
	t.Helper()
	store := storememory.New(uuid.New(), clocksystem.New())
	orch := orchestrator.New(orchestrator.Options{
		Provider:   provider,
		Store:      store,
		Classifier: rendering.New(),
		IDs:        uuid.New(),
		Clock:      clocksystem.New(),
		Logger:     zap.NewNop(),
	})
	server := NewServer(orch, uuid.New(), zap.NewNop(), cfg)
	return &fixture{server: server, orch: orch, store: store}
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	payload := map[string]any{}
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func pagePayload(path string) audit.PagePayload {
	return audit.PagePayload{
		URL:        "https://example.com" + path,
		Title:      "Example",
		HTML:       `<html lang="en"><head><title>Example</title></head><body><main><h1>Example</h1><p>` + strings.Repeat("A perfectly ordinary sentence for the analyzer. ", 40) + `</p></main></body></html>`,
		StatusCode: 200,
	}
}

func TestStartAuditAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{JobID: "crawl-9"}, config.Config{})

	rec, body := doJSON(t, f.server, http.MethodPost, "/v1/audits", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotEmpty(t, body["job_id"])
	require.NotEmpty(t, body["site_id"])
	require.Equal(t, string(audit.StatusStarted), body["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStartAuditValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{}, config.Config{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"url":`},
		{"missing url", `{}`},
		{"loopback host", `{"url":"http://127.0.0.1/admin"}`},
		{"bad scheme", `{"url":"ftp://example.com"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doJSON(t, f.server, http.MethodPost, "/v1/audits", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestProviderRejectionReportsFailedJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{StartErr: context.DeadlineExceeded}, config.Config{})

	rec, body := doJSON(t, f.server, http.MethodPost, "/v1/audits", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, string(audit.StatusFailed), body["status"])
}

func TestStatusAndResultsFlow(t *testing.T) {
	t.Parallel()
	provider := &providertest.Provider{
		Statuses: []audit.CrawlStatus{{State: audit.CrawlSucceeded, Percent: 100}},
		Pages:    []audit.PagePayload{pagePayload("/"), pagePayload("/about")},
	}
	f := newFixture(t, provider, config.Config{})

	rec, start := doJSON(t, f.server, http.MethodPost, "/v1/audits", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := start["job_id"].(string)

	rec, status := doJSON(t, f.server, http.MethodGet, "/v1/audits/"+jobID+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(audit.StatusProcessing), status["status"])

	f.orch.Wait()

	rec, status = doJSON(t, f.server, http.MethodGet, "/v1/audits/"+jobID+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(audit.StatusCompleted), status["status"])
	require.InDelta(t, 100, status["progress_percent"], 0.1)

	rec, _ = doJSON(t, f.server, http.MethodGet, "/v1/audits/"+jobID+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report audit.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, audit.StatusCompleted, report.Job.Status)
	require.Len(t, report.Pages, 2)
	require.Positive(t, report.Job.OverallScore)
}

func TestStatusUnknownJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{}, config.Config{})

	rec, body := doJSON(t, f.server, http.MethodGet, "/v1/audits/nope/status", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "job not found", body["error"])

	rec, _ = doJSON(t, f.server, http.MethodGet, "/v1/audits/nope/results", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAudit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{}, config.Config{})

	_, start := doJSON(t, f.server, http.MethodPost, "/v1/audits", `{"url":"https://example.com"}`)
	jobID := start["job_id"].(string)

	rec, body := doJSON(t, f.server, http.MethodPost, "/v1/audits/"+jobID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(audit.StatusFailed), body["status"])

	// Cancelling an already-terminal job conflicts.
	rec, _ = doJSON(t, f.server, http.MethodPost, "/v1/audits/"+jobID+"/cancel", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, f.server, http.MethodPost, "/v1/audits/missing/cancel", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyGuardsV1Only(t *testing.T) {
	t.Parallel()
	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "sekrit"}}
	f := newFixture(t, &providertest.Provider{}, cfg)

	rec, _ := doJSON(t, f.server, http.MethodPost, "/v1/audits", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/audits", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("X-API-Key", "sekrit")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	// Probes stay open for the load balancer.
	rec, _ = doJSON(t, f.server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &providertest.Provider{}, config.Config{})

	rec, body := doJSON(t, f.server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])

	rec, body = doJSON(t, f.server, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ready", body["status"])

	rec, _ = doJSON(t, f.server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "auditor_")
}
