// Package orchestrator drives an audit end to end: it starts provider
// crawls, tracks job lifecycle, and turns crawl results into persisted,
// scored pages.
//
// Job status moves pending -> started -> processing -> completed, with
// failed terminal from any state. Page processing is triggered exactly
// once per job; the store's MarkProcessing compare-and-set is the guard.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/checklist"
	"github.com/seolytics/aeo-audit/internal/diagnostics"
	"github.com/seolytics/aeo-audit/internal/metrics"
	"github.com/seolytics/aeo-audit/internal/normalize"
	"github.com/seolytics/aeo-audit/internal/scoring"
)

// ProgressThresholds tunes the time-based progress heuristic. The
// heuristic stands in for provider telemetry: when the provider reports
// a believable percent, the time floor only keeps it from going
// backwards.
type ProgressThresholds struct {
	// RampSeconds is the window over which progress climbs to RampCeiling.
	RampSeconds int
	RampCeiling int
	// Past MidpointSeconds the reported floor jumps to MidpointFloor.
	MidpointSeconds int
	MidpointFloor   int
	// Past ForceFlushSeconds a still-crawling job is processed with
	// whatever pages exist.
	ForceFlushSeconds int
}

// CrawlDefaults fills unset fields of incoming audit requests.
type CrawlDefaults struct {
	MaxPages            int
	Depth               int
	FollowInternalLinks bool
}

// Options wires the orchestrator's collaborators. Provider, Store,
// Classifier, IDs and Clock are required; the rest degrade gracefully
// when nil.
type Options struct {
	Provider   audit.CrawlProvider
	Store      audit.ResultStore
	Classifier audit.RenderingClassifier
	Annotator  *diagnostics.Annotator
	Blobs      audit.BlobStore
	Publisher  audit.Publisher
	Hasher     audit.Hasher
	IDs        audit.IDGenerator
	Clock      audit.Clock
	Logger     *zap.Logger

	Thresholds      ProgressThresholds
	Defaults        CrawlDefaults
	PageConcurrency int
	// EventTopic is the pub/sub topic for audit-completed events.
	EventTopic string
	// ProcessTimeout bounds the detached page-processing pass.
	ProcessTimeout time.Duration
}

// Orchestrator implements the audit pipeline.
type Orchestrator struct {
	opts       Options
	normalizer *normalize.Normalizer

	wg sync.WaitGroup
}

// New builds an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Thresholds.RampSeconds <= 0 {
		opts.Thresholds.RampSeconds = 30
	}
	if opts.Thresholds.RampCeiling <= 0 {
		opts.Thresholds.RampCeiling = 30
	}
	if opts.Thresholds.MidpointSeconds <= 0 {
		opts.Thresholds.MidpointSeconds = 120
	}
	if opts.Thresholds.MidpointFloor <= 0 {
		opts.Thresholds.MidpointFloor = 50
	}
	if opts.Thresholds.ForceFlushSeconds <= 0 {
		opts.Thresholds.ForceFlushSeconds = 300
	}
	if opts.Defaults.MaxPages <= 0 {
		opts.Defaults.MaxPages = 25
	}
	if opts.PageConcurrency <= 0 {
		opts.PageConcurrency = 4
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	metrics.Init()
	return &Orchestrator{
		opts:       opts,
		normalizer: normalize.New(),
	}
}

// Wait blocks until detached page-processing goroutines finish. Used in
// shutdown and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// StartResult is returned by StartAudit.
type StartResult struct {
	JobID  string `json:"job_id"`
	SiteID string `json:"site_id"`
	Status string `json:"status"`
}

// AuditRequest is the validated input for StartAudit.
type AuditRequest struct {
	OwnerID  string
	URL      string
	MaxPages int
	Depth    int
}

// StartAudit validates the URL, upserts the site, creates the job, and
// submits the provider crawl. A provider rejection does not surface to
// the caller as an error: the job is persisted as failed and its ids
// are still returned, so the client can poll the failure normally.
func (o *Orchestrator) StartAudit(ctx context.Context, req AuditRequest) (StartResult, error) {
	startURL, err := validateStartURL(req.URL)
	if err != nil {
		return StartResult{}, err
	}

	site, err := o.opts.Store.UpsertSite(ctx, req.OwnerID, startURL.Hostname())
	if err != nil {
		return StartResult{}, fmt.Errorf("upsert site: %w", err)
	}

	jobID, err := o.opts.IDs.NewID()
	if err != nil {
		return StartResult{}, err
	}
	job := audit.Job{
		ID:        jobID,
		SiteID:    site.ID,
		Status:    audit.StatusPending,
		StartedAt: o.opts.Clock.Now(),
	}
	if err := o.opts.Store.CreateJob(ctx, job); err != nil {
		return StartResult{}, fmt.Errorf("create job: %w", err)
	}

	crawlReq := audit.CrawlRequest{
		StartURL:            startURL.String(),
		MaxPages:            req.MaxPages,
		Depth:               req.Depth,
		FollowInternalLinks: o.opts.Defaults.FollowInternalLinks,
	}
	if crawlReq.MaxPages <= 0 {
		crawlReq.MaxPages = o.opts.Defaults.MaxPages
	}
	if crawlReq.Depth <= 0 {
		crawlReq.Depth = o.opts.Defaults.Depth
	}

	providerJobID, err := o.opts.Provider.Start(ctx, crawlReq)
	if err != nil {
		o.opts.Logger.Warn("provider rejected crawl",
			zap.String("job_id", jobID),
			zap.String("url", crawlReq.StartURL),
			zap.Error(err))
		o.failJob(ctx, job, fmt.Sprintf("crawl submission failed: %v", err))
		return StartResult{JobID: jobID, SiteID: site.ID, Status: string(audit.StatusFailed)}, nil
	}

	job.Status = audit.StatusStarted
	job.ProviderJobID = providerJobID
	if err := o.opts.Store.UpdateJob(ctx, job); err != nil {
		return StartResult{}, fmt.Errorf("update job: %w", err)
	}

	o.opts.Logger.Info("audit started",
		zap.String("job_id", jobID),
		zap.String("site_id", site.ID),
		zap.String("provider_job_id", providerJobID),
		zap.String("url", crawlReq.StartURL))

	return StartResult{JobID: jobID, SiteID: site.ID, Status: string(audit.StatusStarted)}, nil
}

// GetResults returns the persisted report for a job.
func (o *Orchestrator) GetResults(ctx context.Context, jobID string) (audit.Report, error) {
	return o.opts.Store.GetReport(ctx, jobID)
}

// ErrJobTerminal is returned when an operation needs a live job but the
// job already finished.
var ErrJobTerminal = errors.New("job already terminal")

// Cancel marks a non-terminal job failed. Cancelling a terminal job is
// a no-op error so clients learn they were too late.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.opts.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobTerminal, jobID, job.Status)
	}
	o.failJob(ctx, job, "canceled by user")
	return nil
}

func (o *Orchestrator) failJob(ctx context.Context, job audit.Job, reason string) {
	now := o.opts.Clock.Now()
	job.Status = audit.StatusFailed
	job.CompletedAt = &now
	job.ErrorText = reason
	if err := o.opts.Store.UpdateJob(ctx, job); err != nil {
		o.opts.Logger.Error("failed to persist job failure",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(audit.StatusFailed))
}

// ErrInvalidURL marks a start URL the service refuses to audit. Handlers
// map it to a client error rather than a server fault.
var ErrInvalidURL = errors.New("invalid url")

// validateStartURL accepts absolute http(s) URLs with a public-looking
// host. Loopback and private addresses are rejected to keep the
// provider from being pointed at internal infrastructure.
func validateStartURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if strings.EqualFold(host, "localhost") {
		return nil, fmt.Errorf("%w: host is not audit-able", ErrInvalidURL)
	}
	if ip := net.ParseIP(host); ip != nil &&
		(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()) {
		return nil, fmt.Errorf("%w: host is not audit-able", ErrInvalidURL)
	}
	return u, nil
}

func roundMean(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

// analyzePage runs the full per-page pipeline on a normalized record.
func (o *Orchestrator) analyzePage(ctx context.Context, rec audit.PageRecord) audit.AnalysisResult {
	items := checklist.Evaluate(rec)
	classification := o.opts.Classifier.Classify(rec.HTML)
	result := scoring.Aggregate(items, classification)
	if o.opts.Annotator != nil {
		o.opts.Annotator.Annotate(ctx, result.Issues)
	}
	return result
}
