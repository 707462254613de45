package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Progress percentages reported at fixed lifecycle points. Processing
// after a clean crawl reports higher than processing after a degraded
// one, so clients see the difference without a separate field.
const (
	percentFailed             = 80
	percentProcessingClean    = 85
	percentProcessingDegraded = 70
	percentMinimum            = 5
)

// PollStatus reports job progress and, as a side effect, advances the
// state machine: a terminal provider state observed here triggers page
// processing exactly once.
//
// Provider errors are swallowed. A flaky provider status endpoint must
// not fail a poll; the caller gets the time-based floor instead.
func (o *Orchestrator) PollStatus(ctx context.Context, jobID string) (audit.Progress, error) {
	job, err := o.opts.Store.GetJob(ctx, jobID)
	if err != nil {
		return audit.Progress{}, err
	}

	switch job.Status {
	case audit.StatusCompleted:
		return audit.Progress{Status: audit.StatusCompleted, ProgressPercent: 100}, nil
	case audit.StatusFailed:
		// Failed jobs report a high but incomplete percent: most of the
		// pipeline ran before the failure was recorded.
		return audit.Progress{Status: audit.StatusFailed, ProgressPercent: percentFailed}, nil
	case audit.StatusProcessing:
		return audit.Progress{Status: audit.StatusProcessing, ProgressPercent: percentProcessingClean}, nil
	}

	// pending or started from here on.
	floor := o.timeFloor(job)

	elapsed := o.opts.Clock.Now().Sub(job.StartedAt).Seconds()
	if int(elapsed) >= o.opts.Thresholds.ForceFlushSeconds {
		// The crawl has run long enough; audit whatever exists rather
		// than keep the client waiting indefinitely.
		o.opts.Logger.Warn("forcing page processing after stall",
			zap.String("job_id", jobID))
		o.triggerProcessing(job, audit.CrawlTimeout)
		return audit.Progress{Status: audit.StatusProcessing, ProgressPercent: percentProcessingDegraded}, nil
	}

	if job.ProviderJobID == "" {
		return audit.Progress{Status: job.Status, ProgressPercent: max(floor, percentMinimum)}, nil
	}

	status, err := o.opts.Provider.Status(ctx, job.ProviderJobID)
	if err != nil {
		o.opts.Logger.Warn("provider status unavailable",
			zap.String("job_id", jobID), zap.Error(err))
		return audit.Progress{Status: job.Status, ProgressPercent: max(floor, percentMinimum)}, nil
	}

	switch status.State {
	case audit.CrawlSucceeded:
		o.triggerProcessing(job, status.State)
		return audit.Progress{Status: audit.StatusProcessing, ProgressPercent: percentProcessingClean}, nil
	case audit.CrawlFailed, audit.CrawlTimeout, audit.CrawlAborted:
		// Degraded success: partial results are still worth auditing.
		o.opts.Logger.Info("provider crawl ended abnormally, processing partial results",
			zap.String("job_id", jobID), zap.String("state", string(status.State)))
		o.triggerProcessing(job, status.State)
		return audit.Progress{Status: audit.StatusProcessing, ProgressPercent: percentProcessingDegraded}, nil
	}

	percent := status.Percent
	if percent > 99 {
		percent = 99
	}
	return audit.Progress{Status: job.Status, ProgressPercent: max(floor, percent, percentMinimum)}, nil
}

// timeFloor computes the heuristic lower bound on progress from job
// age: roughly a point per second up to the ramp ceiling, then a jump
// to the midpoint floor once the crawl has clearly been running a while.
func (o *Orchestrator) timeFloor(job audit.Job) int {
	elapsed := int(o.opts.Clock.Now().Sub(job.StartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	t := o.opts.Thresholds
	floor := elapsed * t.RampCeiling / t.RampSeconds
	if floor > t.RampCeiling {
		floor = t.RampCeiling
	}
	if elapsed >= t.MidpointSeconds && floor < t.MidpointFloor {
		floor = t.MidpointFloor
	}
	return floor
}
