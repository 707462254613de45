package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/metrics"
)

// Annotator decorates issues with generated diagnostics under strict
// budgets: a per-call timeout, a request rate limit, and bounded
// concurrency. Every failure path degrades to the fallback text.
type Annotator struct {
	gen     audit.DiagnosticGenerator
	logger  *zap.Logger
	timeout time.Duration
	limiter *rate.Limiter
	sem     chan struct{}
}

// AnnotatorOptions bound the annotator's resource usage. Zero values
// get sensible defaults.
type AnnotatorOptions struct {
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	MaxConcurrent  int
}

// NewAnnotator wraps gen. A nil gen disables annotation entirely;
// Annotate then only fills in fallbacks.
func NewAnnotator(gen audit.DiagnosticGenerator, logger *zap.Logger, opts AnnotatorOptions) *Annotator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	metrics.Init()
	return &Annotator{
		gen:     gen,
		logger:  logger,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		sem:     make(chan struct{}, opts.MaxConcurrent),
	}
}

// Annotate fills Issue.Diagnostic for every issue in place. It never
// returns an error: issues the generator cannot annotate keep the
// fallback "title: description" text.
func (a *Annotator) Annotate(ctx context.Context, issues []audit.Issue) {
	var wg sync.WaitGroup
	for i := range issues {
		issues[i].Diagnostic = fallbackDiagnostic(issues[i])
		if a.gen == nil {
			continue
		}
		wg.Add(1)
		go func(issue *audit.Issue) {
			defer wg.Done()
			if text, ok := a.generate(ctx, issue); ok {
				issue.Diagnostic = text
			}
		}(&issues[i])
	}
	wg.Wait()
}

func (a *Annotator) generate(ctx context.Context, issue *audit.Issue) (string, bool) {
	select {
	case a.sem <- struct{}{}:
		defer func() { <-a.sem }()
	case <-ctx.Done():
		return "", false
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.gen.Generate(callCtx, audit.DiagnosticRequest{
		Title:       issue.Title,
		Description: issue.Description,
		Impact:      issue.Impact,
		Category:    issue.Category,
	})
	if err != nil {
		metrics.ObserveDiagnostic("failed")
		if a.logger != nil {
			a.logger.Debug("diagnostic generation failed",
				zap.String("issue", issue.Title),
				zap.Error(err))
		}
		return "", false
	}
	metrics.ObserveDiagnostic("generated")
	return text, true
}

func fallbackDiagnostic(issue audit.Issue) string {
	return fmt.Sprintf("%s: %s", issue.Title, issue.Description)
}
