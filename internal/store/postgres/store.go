// Package postgres implements audit.ResultStore on PostgreSQL via pgx.
//
// Schema (see deploy/schema.sql):
//
//	sites(id, owner_id, root_domain, created_at)          unique (owner_id, root_domain)
//	audit_jobs(id, site_id, status, provider_job_id, ...)
//	audit_pages(id, job_id, url, title, score, ...)       unique (job_id, url)
//	page_issues(id, page_id, severity, category, ...)
//
// Page analysis is stored as a JSONB document; the row carries only the
// columns the report queries filter or sort on.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seolytics/aeo-audit/internal/audit"
)

const uniqueViolation = "23505"

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements audit.ResultStore.
type Store struct {
	pool  dbConn
	ids   audit.IDGenerator
	clock audit.Clock
}

// New connects a pool and builds a Store.
func New(ctx context.Context, cfg Config, ids audit.IDGenerator, clock audit.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, ids: ids, clock: clock}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbConn, ids audit.IDGenerator, clock audit.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, ids: ids, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) UpsertSite(ctx context.Context, ownerID, rootDomain string) (audit.Site, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return audit.Site{}, err
	}
	site := audit.Site{OwnerID: ownerID, RootDomain: rootDomain}
	err = s.pool.QueryRow(ctx, `
INSERT INTO sites (id, owner_id, root_domain, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_id, root_domain) DO UPDATE SET root_domain = EXCLUDED.root_domain
RETURNING id, created_at`,
		id, ownerID, rootDomain, s.clock.Now(),
	).Scan(&site.ID, &site.CreatedAt)
	if err != nil {
		return audit.Site{}, fmt.Errorf("upsert site: %w", err)
	}
	return site, nil
}

func (s *Store) CreateJob(ctx context.Context, job audit.Job) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO audit_jobs (id, site_id, status, provider_job_id, started_at, completed_at, total_pages, overall_score, error_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.SiteID, job.Status, job.ProviderJobID, job.StartedAt,
		job.CompletedAt, job.TotalPages, job.OverallScore, job.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (audit.Job, error) {
	var job audit.Job
	err := s.pool.QueryRow(ctx, `
SELECT id, site_id, status, provider_job_id, started_at, completed_at, total_pages, overall_score, error_text
FROM audit_jobs WHERE id = $1`, jobID,
	).Scan(&job.ID, &job.SiteID, &job.Status, &job.ProviderJobID, &job.StartedAt,
		&job.CompletedAt, &job.TotalPages, &job.OverallScore, &job.ErrorText)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Job{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job audit.Job) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE audit_jobs
SET status = $2, provider_job_id = $3, completed_at = $4, total_pages = $5, overall_score = $6, error_text = $7
WHERE id = $1`,
		job.ID, job.Status, job.ProviderJobID, job.CompletedAt,
		job.TotalPages, job.OverallScore, job.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// MarkProcessing is the compare-and-set guard against concurrent page
// processing; only one caller observes a row change.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE audit_jobs SET status = $2
WHERE id = $1 AND status IN ($3, $4)`,
		jobID, audit.StatusProcessing, audit.StatusPending, audit.StatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SavePage(ctx context.Context, page audit.PageRow) (string, error) {
	if page.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return "", err
		}
		page.ID = id
	}
	analysis, err := json.Marshal(page.Analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO audit_pages (id, job_id, url, title, score, rendering_mode, snapshot_uri, content_hash, analyzed_at, analysis)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		page.ID, page.JobID, page.URL, page.Title, page.Score, page.Rendering,
		page.SnapshotURI, page.ContentHash, page.AnalyzedAt, analysis,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", audit.ErrDuplicatePage
		}
		return "", fmt.Errorf("insert page: %w", err)
	}
	return page.ID, nil
}

func (s *Store) SaveIssues(ctx context.Context, pageID string, issues []audit.Issue) error {
	for _, issue := range issues {
		id := issue.ID
		if id == "" {
			generated, err := s.ids.NewID()
			if err != nil {
				return err
			}
			id = generated
		}
		_, err := s.pool.Exec(ctx, `
INSERT INTO page_issues (id, page_id, severity, category, title, description, impact, fix_priority, diagnostic)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, pageID, issue.Severity, issue.Category, issue.Title,
			issue.Description, issue.Impact, issue.FixPriority, issue.Diagnostic,
		)
		if err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}
	return nil
}

func (s *Store) UpdateJobStats(ctx context.Context, jobID string, totalPages, overallScore int) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE audit_jobs SET total_pages = $2, overall_score = $3 WHERE id = $1`,
		jobID, totalPages, overallScore,
	)
	if err != nil {
		return fmt.Errorf("update job stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, jobID string) (audit.Report, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return audit.Report{}, err
	}
	report := audit.Report{Job: job}

	rows, err := s.pool.Query(ctx, `
SELECT id, job_id, url, title, score, rendering_mode, snapshot_uri, content_hash, analyzed_at, analysis
FROM audit_pages WHERE job_id = $1 ORDER BY url`, jobID)
	if err != nil {
		return audit.Report{}, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var page audit.PageRow
		var analysis []byte
		if err := rows.Scan(&page.ID, &page.JobID, &page.URL, &page.Title, &page.Score,
			&page.Rendering, &page.SnapshotURI, &page.ContentHash, &page.AnalyzedAt, &analysis); err != nil {
			return audit.Report{}, fmt.Errorf("scan page: %w", err)
		}
		if len(analysis) > 0 {
			if err := json.Unmarshal(analysis, &page.Analysis); err != nil {
				return audit.Report{}, fmt.Errorf("decode analysis: %w", err)
			}
		}
		report.Pages = append(report.Pages, page)
	}
	if err := rows.Err(); err != nil {
		return audit.Report{}, fmt.Errorf("iterate pages: %w", err)
	}

	issueRows, err := s.pool.Query(ctx, `
SELECT i.id, i.page_id, i.severity, i.category, i.title, i.description, i.impact, i.fix_priority, i.diagnostic
FROM page_issues i
JOIN audit_pages p ON p.id = i.page_id
WHERE p.job_id = $1
ORDER BY i.fix_priority DESC`, jobID)
	if err != nil {
		return audit.Report{}, fmt.Errorf("select issues: %w", err)
	}
	defer issueRows.Close()
	for issueRows.Next() {
		var issue audit.Issue
		if err := issueRows.Scan(&issue.ID, &issue.PageID, &issue.Severity, &issue.Category,
			&issue.Title, &issue.Description, &issue.Impact, &issue.FixPriority, &issue.Diagnostic); err != nil {
			return audit.Report{}, fmt.Errorf("scan issue: %w", err)
		}
		report.Issues = append(report.Issues, issue)
	}
	if err := issueRows.Err(); err != nil {
		return audit.Report{}, fmt.Errorf("iterate issues: %w", err)
	}
	return report, nil
}
