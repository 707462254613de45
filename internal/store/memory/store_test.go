package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seolytics/aeo-audit/internal/audit"
	systemclock "github.com/seolytics/aeo-audit/internal/clock/system"
	"github.com/seolytics/aeo-audit/internal/id/uuid"
)

func newStore() *Store {
	return New(uuid.New(), systemclock.New())
}

func TestUpsertSiteIdempotent(t *testing.T) {
	t.Parallel()
	s := newStore()

	first, err := s.UpsertSite(context.Background(), "owner-1", "example.com")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertSite(context.Background(), "owner-1", "example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := s.UpsertSite(context.Background(), "owner-2", "example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()
	s := newStore()

	job := audit.Job{ID: "job-1", SiteID: "site-1", Status: audit.StatusPending, StartedAt: time.Now()}
	require.NoError(t, s.CreateJob(context.Background(), job))

	got, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, audit.StatusPending, got.Status)

	got.Status = audit.StatusStarted
	require.NoError(t, s.UpdateJob(context.Background(), got))

	_, err = s.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestMarkProcessingWinsOnce(t *testing.T) {
	t.Parallel()
	s := newStore()
	require.NoError(t, s.CreateJob(context.Background(), audit.Job{ID: "job-1", Status: audit.StatusStarted}))

	won, err := s.MarkProcessing(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, won)

	again, err := s.MarkProcessing(context.Background(), "job-1")
	require.NoError(t, err)
	require.False(t, again)
}

func TestMarkProcessingSkipsTerminalJobs(t *testing.T) {
	t.Parallel()
	s := newStore()
	require.NoError(t, s.CreateJob(context.Background(), audit.Job{ID: "job-1", Status: audit.StatusFailed}))

	won, err := s.MarkProcessing(context.Background(), "job-1")
	require.NoError(t, err)
	require.False(t, won)
}

func TestSavePageRejectsDuplicateURL(t *testing.T) {
	t.Parallel()
	s := newStore()

	id, err := s.SavePage(context.Background(), audit.PageRow{JobID: "job-1", URL: "https://example.com/"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.SavePage(context.Background(), audit.PageRow{JobID: "job-1", URL: "https://example.com/"})
	require.ErrorIs(t, err, audit.ErrDuplicatePage)

	// Same URL under a different job is a distinct row.
	_, err = s.SavePage(context.Background(), audit.PageRow{JobID: "job-2", URL: "https://example.com/"})
	require.NoError(t, err)
}

func TestGetReportAggregatesPagesAndIssues(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", Status: audit.StatusCompleted}))

	idB, err := s.SavePage(ctx, audit.PageRow{JobID: "job-1", URL: "https://example.com/b", Score: 40})
	require.NoError(t, err)
	idA, err := s.SavePage(ctx, audit.PageRow{JobID: "job-1", URL: "https://example.com/a", Score: 80})
	require.NoError(t, err)

	require.NoError(t, s.SaveIssues(ctx, idB, []audit.Issue{
		{Title: "minor", FixPriority: 2},
		{Title: "major", FixPriority: 9},
	}))
	require.NoError(t, s.SaveIssues(ctx, idA, []audit.Issue{{Title: "mid", FixPriority: 5}}))

	report, err := s.GetReport(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, report.Pages, 2)
	require.Equal(t, "https://example.com/a", report.Pages[0].URL)

	require.Len(t, report.Issues, 3)
	require.Equal(t, "major", report.Issues[0].Title)
	require.Equal(t, idB, report.Issues[0].PageID)
	require.Equal(t, "minor", report.Issues[2].Title)

	_, err = s.GetReport(ctx, "missing")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestUpdateJobStats(t *testing.T) {
	t.Parallel()
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, audit.Job{ID: "job-1", Status: audit.StatusProcessing}))

	require.NoError(t, s.UpdateJobStats(ctx, "job-1", 7, 82))
	job, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, 7, job.TotalPages)
	require.Equal(t, 82, job.OverallScore)
}
