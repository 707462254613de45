package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/metrics"
	"github.com/seolytics/aeo-audit/internal/normalize"
)

// triggerProcessing starts the page-processing pass in the background
// if this caller wins the MarkProcessing transition. Losing the race is
// normal: concurrent polls observe the terminal crawl state together.
func (o *Orchestrator) triggerProcessing(job audit.Job, crawlState audit.CrawlState) {
	won, err := o.opts.Store.MarkProcessing(context.Background(), job.ID)
	if err != nil {
		o.opts.Logger.Error("mark processing failed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !won {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.ProcessTimeout)
		defer cancel()
		o.processPages(ctx, job, crawlState)
	}()
}

// processPages fetches crawl results, analyzes every page, and
// finalizes the job. It runs detached from any request context.
func (o *Orchestrator) processPages(ctx context.Context, job audit.Job, crawlState audit.CrawlState) {
	metrics.IncActiveAudits()
	defer metrics.DecActiveAudits()

	payloads, err := o.opts.Provider.Results(ctx, job.ProviderJobID)
	if err != nil {
		o.opts.Logger.Error("fetching crawl results failed",
			zap.String("job_id", job.ID), zap.Error(err))
		o.failJob(ctx, job, fmt.Sprintf("fetching crawl results failed: %v", err))
		return
	}

	// A crawl that ended badly but yielded nothing still completes with
	// zero pages; only result-fetch errors fail the job here.

	var (
		mu     sync.Mutex
		scores []int
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, o.opts.PageConcurrency)

	for _, payload := range payloads {
		wg.Add(1)
		go func(payload audit.PagePayload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			score, ok := o.processPage(ctx, job, payload)
			if !ok {
				return
			}
			// Persist running aggregates under the lock so a poller
			// watching the job sees totals grow, never regress.
			mu.Lock()
			scores = append(scores, score)
			err := o.opts.Store.UpdateJobStats(ctx, job.ID, len(scores), roundMean(scores))
			mu.Unlock()
			if err != nil {
				o.opts.Logger.Error("updating job stats failed",
					zap.String("job_id", job.ID), zap.Error(err))
			}
		}(payload)
	}
	wg.Wait()

	// The job may have been cancelled while pages were processing; a
	// terminal status must not be overwritten.
	current, err := o.opts.Store.GetJob(ctx, job.ID)
	if err != nil {
		o.opts.Logger.Error("reloading job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if current.Status.Terminal() {
		o.opts.Logger.Info("job reached terminal state during processing, leaving as-is",
			zap.String("job_id", job.ID), zap.String("status", string(current.Status)))
		return
	}

	overall := roundMean(scores)
	if err := o.opts.Store.UpdateJobStats(ctx, job.ID, len(scores), overall); err != nil {
		o.opts.Logger.Error("updating job stats failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	now := o.opts.Clock.Now()
	current.Status = audit.StatusCompleted
	current.CompletedAt = &now
	current.TotalPages = len(scores)
	current.OverallScore = overall
	if crawlState != audit.CrawlSucceeded {
		current.ErrorText = fmt.Sprintf("crawl ended %s; audited %d collected pages", crawlState, len(scores))
	}
	if err := o.opts.Store.UpdateJob(ctx, current); err != nil {
		o.opts.Logger.Error("completing job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(audit.StatusCompleted))

	o.opts.Logger.Info("audit completed",
		zap.String("job_id", job.ID),
		zap.Int("pages", len(scores)),
		zap.Int("overall_score", overall))

	o.publishCompleted(ctx, current)
}

// processPage normalizes, analyzes and persists one page. Returns the
// page score and whether it should count toward the job aggregate.
func (o *Orchestrator) processPage(ctx context.Context, job audit.Job, payload audit.PagePayload) (int, bool) {
	rec, err := o.normalizer.Normalize(payload)
	if err != nil {
		o.opts.Logger.Warn("skipping malformed page",
			zap.String("job_id", job.ID), zap.Error(err))
		return 0, false
	}
	if normalize.Skippable(rec) {
		return 0, false
	}

	result := o.analyzePage(ctx, rec)

	row := audit.PageRow{
		JobID:      job.ID,
		URL:        rec.URL,
		Title:      rec.Title,
		Score:      result.OverallScore,
		Rendering:  result.Rendering.Mode,
		AnalyzedAt: o.opts.Clock.Now(),
		Analysis:   result,
	}
	row.SnapshotURI, row.ContentHash = o.snapshot(ctx, job, rec)

	// Cancellation can land at any point mid-crawl; re-check before the
	// write so a terminal job stops accumulating page rows.
	if current, err := o.opts.Store.GetJob(ctx, job.ID); err != nil || current.Status.Terminal() {
		return 0, false
	}

	pageID, err := o.opts.Store.SavePage(ctx, row)
	if err != nil {
		if errors.Is(err, audit.ErrDuplicatePage) {
			// The provider occasionally returns the same URL twice;
			// first write wins.
			return 0, false
		}
		o.opts.Logger.Error("saving page failed",
			zap.String("job_id", job.ID), zap.String("url", rec.URL), zap.Error(err))
		return 0, false
	}
	if err := o.opts.Store.SaveIssues(ctx, pageID, result.Issues); err != nil {
		o.opts.Logger.Error("saving issues failed",
			zap.String("job_id", job.ID), zap.String("page_id", pageID), zap.Error(err))
	}

	metrics.ObservePage(rec.URL, string(result.Rendering.Mode), result.OverallScore)
	return result.OverallScore, true
}

// snapshot stores the raw HTML in the blob store, keyed by content
// hash. Best effort: snapshot failures cost the URI, not the audit.
func (o *Orchestrator) snapshot(ctx context.Context, job audit.Job, rec audit.PageRecord) (uri, hash string) {
	if o.opts.Hasher != nil {
		h, err := o.opts.Hasher.Hash([]byte(rec.HTML))
		if err == nil {
			hash = h
		}
	}
	if o.opts.Blobs == nil || hash == "" {
		return "", hash
	}
	path := fmt.Sprintf("audits/%s/%s.html", job.ID, hash)
	uri, err := o.opts.Blobs.PutObject(ctx, path, "text/html", strings.NewReader(rec.HTML))
	if err != nil {
		o.opts.Logger.Warn("snapshot upload failed",
			zap.String("job_id", job.ID), zap.String("url", rec.URL), zap.Error(err))
		return "", hash
	}
	return uri, hash
}

// publishCompleted emits the audit-completed event. Best effort.
func (o *Orchestrator) publishCompleted(ctx context.Context, job audit.Job) {
	if o.opts.Publisher == nil || o.opts.EventTopic == "" {
		return
	}
	event := map[string]any{
		"type":          "audit.completed",
		"job_id":        job.ID,
		"site_id":       job.SiteID,
		"total_pages":   job.TotalPages,
		"overall_score": job.OverallScore,
		"completed_at":  job.CompletedAt,
	}
	if _, err := o.opts.Publisher.Publish(ctx, o.opts.EventTopic, event); err != nil {
		o.opts.Logger.Warn("publishing completion event failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}
