// Package providertest contains a scripted audit.CrawlProvider for
// tests. Each call to Status pops the next scripted status, holding on
// the last one, so tests can walk a crawl through its lifecycle
// deterministically.
package providertest

import (
	"context"
	"sync"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Provider is a scripted CrawlProvider. Zero value is usable: Start
// succeeds with JobID "test-crawl", Status reports a running crawl.
type Provider struct {
	mu sync.Mutex

	// JobID returned by Start; defaults to "test-crawl".
	JobID string
	// StartErr makes Start fail.
	StartErr error
	// Statuses are returned in order; the last one repeats. Empty
	// means a perpetually running crawl.
	Statuses []audit.CrawlStatus
	// StatusErr makes every Status call fail.
	StatusErr error
	// Pages returned by Results.
	Pages []audit.PagePayload
	// ResultsErr makes Results fail.
	ResultsErr error

	statusIdx    int
	StartCalls   int
	StatusCalls  int
	ResultsCalls int
}

func (p *Provider) Start(ctx context.Context, req audit.CrawlRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls++
	if p.StartErr != nil {
		return "", p.StartErr
	}
	if p.JobID == "" {
		return "test-crawl", nil
	}
	return p.JobID, nil
}

func (p *Provider) Status(ctx context.Context, providerJobID string) (audit.CrawlStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusCalls++
	if p.StatusErr != nil {
		return audit.CrawlStatus{}, p.StatusErr
	}
	if len(p.Statuses) == 0 {
		return audit.CrawlStatus{State: audit.CrawlRunning}, nil
	}
	status := p.Statuses[p.statusIdx]
	if p.statusIdx < len(p.Statuses)-1 {
		p.statusIdx++
	}
	return status, nil
}

func (p *Provider) Results(ctx context.Context, providerJobID string) ([]audit.PagePayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResultsCalls++
	if p.ResultsErr != nil {
		return nil, p.ResultsErr
	}
	pages := make([]audit.PagePayload, len(p.Pages))
	copy(pages, p.Pages)
	return pages, nil
}
