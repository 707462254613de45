// Package local implements audit.CrawlProvider with an in-process
// Colly crawler. It exists for development and self-hosted deployments
// that do not want a hosted crawl API; it honors the same asynchronous
// contract, so the orchestrator cannot tell the two apart.
package local

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Parallelism bounds concurrent fetches within one crawl.
	Parallelism int
}

// Provider runs crawls in-process and implements audit.CrawlProvider.
type Provider struct {
	cfg    Config
	ids    audit.IDGenerator
	logger *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*crawlJob
}

type crawlJob struct {
	mu       sync.RWMutex
	state    audit.CrawlState
	limit    int
	visited  int
	pages    []audit.PagePayload
	firstErr error
}

// New builds a Provider.
func New(cfg Config, ids audit.IDGenerator, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Provider{
		cfg:    cfg,
		ids:    ids,
		logger: logger,
		jobs:   make(map[string]*crawlJob),
	}
}

// Start begins an asynchronous crawl and returns its id immediately.
// The crawl itself runs detached from the caller's context, matching
// the hosted-provider contract.
func (p *Provider) Start(ctx context.Context, req audit.CrawlRequest) (string, error) {
	start, err := url.Parse(req.StartURL)
	if err != nil {
		return "", err
	}
	id, err := p.ids.NewID()
	if err != nil {
		return "", err
	}
	job := &crawlJob{state: audit.CrawlRunning, limit: req.MaxPages}

	p.mu.Lock()
	p.jobs[id] = job
	p.mu.Unlock()

	go p.crawl(job, start, req)
	return id, nil
}

// Status reports crawl state and a percentage against the page limit.
func (p *Provider) Status(ctx context.Context, providerJobID string) (audit.CrawlStatus, error) {
	job, err := p.job(providerJobID)
	if err != nil {
		return audit.CrawlStatus{}, err
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	status := audit.CrawlStatus{State: job.state}
	if job.limit > 0 {
		status.Percent = 100 * len(job.pages) / job.limit
		if status.Percent > 100 {
			status.Percent = 100
		}
	}
	return status, nil
}

// Results returns the pages collected so far.
func (p *Provider) Results(ctx context.Context, providerJobID string) ([]audit.PagePayload, error) {
	job, err := p.job(providerJobID)
	if err != nil {
		return nil, err
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	pages := make([]audit.PagePayload, len(job.pages))
	copy(pages, job.pages)
	return pages, nil
}

func (p *Provider) job(id string) (*crawlJob, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	if !ok {
		return nil, audit.ErrNotFound
	}
	return job, nil
}

func (p *Provider) crawl(job *crawlJob, start *url.URL, req audit.CrawlRequest) {
	opts := []colly.CollectorOption{colly.Async(true)}
	if req.Depth > 0 {
		opts = append(opts, colly.MaxDepth(req.Depth))
	}
	if req.FollowInternalLinks {
		opts = append(opts, colly.AllowedDomains(start.Hostname(), "www."+start.Hostname()))
	}
	c := colly.NewCollector(opts...)
	if p.cfg.UserAgent != "" {
		c.UserAgent = p.cfg.UserAgent
	}
	c.SetRequestTimeout(p.cfg.Timeout)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: p.cfg.Parallelism})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !strings.Contains(contentType, "text/html") {
			return
		}
		job.mu.Lock()
		defer job.mu.Unlock()
		if job.limit > 0 && len(job.pages) >= job.limit {
			return
		}
		job.pages = append(job.pages, audit.PagePayload{
			URL:         r.Request.URL.String(),
			HTML:        string(r.Body),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
		})
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if !req.FollowInternalLinks {
			return
		}
		job.mu.RLock()
		full := job.limit > 0 && len(job.pages) >= job.limit
		job.mu.RUnlock()
		if full {
			return
		}
		err := e.Request.Visit(e.Attr("href"))
		var visited *colly.AlreadyVisitedError
		if err != nil && !errors.As(err, &visited) && !errors.Is(err, colly.ErrMaxDepth) {
			p.logger.Debug("skipping link", zap.String("href", e.Attr("href")), zap.Error(err))
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		job.mu.Lock()
		if job.firstErr == nil {
			job.firstErr = err
		}
		job.mu.Unlock()
		p.logger.Debug("fetch failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	visitErr := c.Visit(start.String())
	c.Wait()

	job.mu.Lock()
	defer job.mu.Unlock()
	switch {
	case len(job.pages) > 0:
		// Partial failures on deep links do not fail the crawl as long
		// as something was collected.
		job.state = audit.CrawlSucceeded
	case visitErr != nil || job.firstErr != nil:
		job.state = audit.CrawlFailed
	default:
		job.state = audit.CrawlSucceeded
	}
}
