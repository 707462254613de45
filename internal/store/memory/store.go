// Package memory provides an in-memory audit.ResultStore for tests and
// single-process development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Store keeps all audit records in memory. Safe for concurrent use.
type Store struct {
	ids   audit.IDGenerator
	clock audit.Clock

	mu     sync.RWMutex
	sites  map[string]audit.Site // keyed by ownerID+"\x00"+rootDomain
	jobs   map[string]audit.Job
	pages  map[string][]audit.PageRow // keyed by job id
	issues map[string][]audit.Issue   // keyed by page id
}

// New builds an empty Store.
func New(ids audit.IDGenerator, clock audit.Clock) *Store {
	return &Store{
		ids:    ids,
		clock:  clock,
		sites:  make(map[string]audit.Site),
		jobs:   make(map[string]audit.Job),
		pages:  make(map[string][]audit.PageRow),
		issues: make(map[string][]audit.Issue),
	}
}

func (s *Store) UpsertSite(ctx context.Context, ownerID, rootDomain string) (audit.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerID + "\x00" + rootDomain
	if site, ok := s.sites[key]; ok {
		return site, nil
	}
	id, err := s.ids.NewID()
	if err != nil {
		return audit.Site{}, err
	}
	site := audit.Site{
		ID:         id,
		OwnerID:    ownerID,
		RootDomain: rootDomain,
		CreatedAt:  s.clock.Now(),
	}
	s.sites[key] = site
	return site, nil
}

func (s *Store) CreateJob(ctx context.Context, job audit.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (audit.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.Job{}, audit.ErrNotFound
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job audit.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return audit.ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, audit.ErrNotFound
	}
	if job.Status != audit.StatusPending && job.Status != audit.StatusStarted {
		return false, nil
	}
	job.Status = audit.StatusProcessing
	s.jobs[jobID] = job
	return true, nil
}

func (s *Store) SavePage(ctx context.Context, page audit.PageRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.pages[page.JobID] {
		if existing.URL == page.URL {
			return "", audit.ErrDuplicatePage
		}
	}
	if page.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return "", err
		}
		page.ID = id
	}
	s.pages[page.JobID] = append(s.pages[page.JobID], page)
	return page.ID, nil
}

func (s *Store) SaveIssues(ctx context.Context, pageID string, issues []audit.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range issues {
		if issue.ID == "" {
			id, err := s.ids.NewID()
			if err != nil {
				return err
			}
			issue.ID = id
		}
		issue.PageID = pageID
		s.issues[pageID] = append(s.issues[pageID], issue)
	}
	return nil
}

func (s *Store) UpdateJobStats(ctx context.Context, jobID string, totalPages, overallScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.TotalPages = totalPages
	job.OverallScore = overallScore
	s.jobs[jobID] = job
	return nil
}

func (s *Store) GetReport(ctx context.Context, jobID string) (audit.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.Report{}, audit.ErrNotFound
	}
	pages := make([]audit.PageRow, len(s.pages[jobID]))
	copy(pages, s.pages[jobID])
	sort.Slice(pages, func(i, j int) bool { return pages[i].URL < pages[j].URL })

	var issues []audit.Issue
	for _, page := range pages {
		issues = append(issues, s.issues[page.ID]...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].FixPriority > issues[j].FixPriority
	})
	return audit.Report{Job: job, Pages: pages, Issues: issues}, nil
}
