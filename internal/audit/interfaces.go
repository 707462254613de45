package audit

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store errors shared by implementations.
var (
	// ErrNotFound is returned when a site, job or page does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePage is returned when a (job, url) page row already exists.
	ErrDuplicatePage = errors.New("duplicate page")
)

// CrawlState is a provider-reported crawl state.
type CrawlState string

// Observed provider states. Everything terminal except CrawlSucceeded is
// treated as degraded success: results are still fetched.
const (
	CrawlRunning   CrawlState = "running"
	CrawlSucceeded CrawlState = "succeeded"
	CrawlFailed    CrawlState = "failed"
	CrawlTimeout   CrawlState = "timeout"
	CrawlAborted   CrawlState = "aborted"
)

// TerminalState reports whether the provider will make no further progress.
func (s CrawlState) TerminalState() bool {
	return s != CrawlRunning
}

// CrawlRequest captures everything needed to start a provider crawl.
type CrawlRequest struct {
	StartURL            string
	MaxPages            int
	Depth               int
	FollowInternalLinks bool
}

// CrawlStatus is a provider status snapshot.
type CrawlStatus struct {
	State   CrawlState
	Percent int
}

// PagePayload is the loosely-typed page shape returned by a provider.
// The normalizer is the only component that consumes it.
type PagePayload struct {
	URL         string
	Title       string
	HTML        string
	Markdown    string
	StatusCode  int
	ContentType string
	Metadata    map[string]any
}

// CrawlProvider is the externally-hosted crawl service boundary.
type CrawlProvider interface {
	Start(ctx context.Context, req CrawlRequest) (string, error)
	Status(ctx context.Context, providerJobID string) (CrawlStatus, error)
	Results(ctx context.Context, providerJobID string) ([]PagePayload, error)
}

// DiagnosticRequest carries the fields interpolated into the generator prompt.
type DiagnosticRequest struct {
	Title       string
	Description string
	Impact      string
	Category    Category
	Snippet     string
}

// DiagnosticGenerator produces a short human-readable explanation for an
// Issue. Implementations must honor the context deadline.
type DiagnosticGenerator interface {
	Generate(ctx context.Context, req DiagnosticRequest) (string, error)
}

// ResultStore is the only component permitted to read or write persisted
// site, job, page and issue records.
type ResultStore interface {
	UpsertSite(ctx context.Context, ownerID, rootDomain string) (Site, error)
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJob(ctx context.Context, job Job) error
	// MarkProcessing transitions a job to processing iff it is not already
	// processing or terminal. It returns true when this call won the
	// transition, acting as the double-trigger guard for page processing.
	MarkProcessing(ctx context.Context, jobID string) (bool, error)
	SavePage(ctx context.Context, page PageRow) (string, error)
	SaveIssues(ctx context.Context, pageID string, issues []Issue) error
	UpdateJobStats(ctx context.Context, jobID string, totalPages, overallScore int) error
	GetReport(ctx context.Context, jobID string) (Report, error)
}

// RenderingClassifier decides how a page's content is rendered. It sits
// behind an interface so the heuristic can be swapped without touching
// the scoring aggregator.
type RenderingClassifier interface {
	Classify(html string) RenderingClassification
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes audit lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
