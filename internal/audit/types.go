// Package audit defines core types shared across subsystems.
package audit

import (
	"time"
)

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

// Job status values persisted in the result store. Transitions are
// forward-monotonic except StatusFailed, which is terminal from any state.
const (
	StatusPending    JobStatus = "pending"
	StatusStarted    JobStatus = "started"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Site is one audited property, upserted per (owner, root domain).
type Site struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	RootDomain string    `json:"root_domain"`
	CreatedAt  time.Time `json:"created_at"`
}

// Job is one end-to-end audit run for a single site snapshot.
type Job struct {
	ID            string     `json:"id"`
	SiteID        string     `json:"site_id"`
	Status        JobStatus  `json:"status"`
	ProviderJobID string     `json:"provider_job_id,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TotalPages    int        `json:"total_pages"`
	OverallScore  int        `json:"overall_score"`
	ErrorText     string     `json:"error_text,omitempty"`
}

// PageRecord is the canonical representation of one crawled page,
// immutable once produced for a given crawl snapshot.
type PageRecord struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	HTML           string   `json:"html"`
	Markdown       string   `json:"markdown"`
	StatusCode     int      `json:"status_code"`
	IsDocument     bool     `json:"is_document"`
	DocumentType   string   `json:"document_type,omitempty"`
	StructuredData []string `json:"structured_data,omitempty"`
}

// Category labels one of the five fixed rubric groups.
type Category string

// The fixed rubric categories. Every ChecklistItem, Issue and
// Recommendation carries exactly one of these.
const (
	CategoryContent       Category = "content_quality"
	CategoryTechnical     Category = "technical_health"
	CategoryMedia         Category = "media_accessibility"
	CategorySchema        Category = "schema_structured_data"
	CategoryAIOptimized   Category = "ai_optimization"
)

// Categories lists the rubric groups in report order.
func Categories() []Category {
	return []Category{
		CategoryContent,
		CategoryTechnical,
		CategoryMedia,
		CategorySchema,
		CategoryAIOptimized,
	}
}

// ChecklistItem is one evaluated rubric rule for a single page.
type ChecklistItem struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   Category       `json:"category"`
	Weight     float64        `json:"weight"`
	Passed     bool           `json:"passed"`
	Details    string         `json:"details,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Severity grades an Issue.
type Severity string

// Issue severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is a concrete problem synthesized from a failed high-signal check.
type Issue struct {
	ID          string   `json:"id,omitempty"`
	PageID      string   `json:"page_id,omitempty"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
	FixPriority int      `json:"fix_priority"`
	Diagnostic  string   `json:"diagnostic,omitempty"`
}

// EffortLevel estimates implementation effort for a Recommendation.
type EffortLevel string

// Recommendation effort levels.
const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// Recommendation is an independent improvement suggestion; it may fire
// even when the related checks pass.
type Recommendation struct {
	Category       Category    `json:"category"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Implementation string      `json:"implementation"`
	Effort         EffortLevel `json:"effort_level"`
	PriorityScore  int         `json:"priority_score"`
}

// RenderingMode describes where a page's meaningful content originates.
type RenderingMode string

// Rendering modes produced by the classifier.
const (
	RenderingSSR    RenderingMode = "SSR"
	RenderingCSR    RenderingMode = "CSR"
	RenderingHybrid RenderingMode = "HYBRID"
)

// RenderingClassification is the heuristic verdict for one page.
type RenderingClassification struct {
	Mode       RenderingMode `json:"mode"`
	Confidence int           `json:"confidence"`
	Indicators []string      `json:"indicators,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// AnalysisResult is the per-page scoring bundle. It is recomputed
// wholesale for a page, never patched.
type AnalysisResult struct {
	OverallScore    int                     `json:"overall_score"`
	WeightedScore   float64                 `json:"weighted_score"`
	CategoryScores  map[Category]int        `json:"category_scores"`
	Rendering       RenderingClassification `json:"rendering"`
	SSRPenalty      int                     `json:"ssr_penalty"`
	Issues          []Issue                 `json:"issues"`
	Recommendations []Recommendation        `json:"recommendations"`
	Checklist       []ChecklistItem         `json:"checklist"`
}

// PageRow is the persisted form of an analyzed page.
type PageRow struct {
	ID           string        `json:"id"`
	JobID        string        `json:"job_id"`
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	Score        int           `json:"score"`
	Rendering    RenderingMode `json:"rendering_mode"`
	SnapshotURI  string        `json:"snapshot_uri,omitempty"`
	ContentHash  string        `json:"content_hash,omitempty"`
	AnalyzedAt   time.Time     `json:"analyzed_at"`
	Analysis     AnalysisResult `json:"analysis"`
}

// Report is returned by the results endpoint for a completed audit.
type Report struct {
	Job    Job       `json:"job"`
	Pages  []PageRow `json:"pages"`
	Issues []Issue   `json:"issues"`
}

// Progress is the externally visible state of a job.
type Progress struct {
	Status          JobStatus `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
}
