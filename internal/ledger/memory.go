package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/media-screener/internal/rubric"
)

// MemoryStore is an in-process Store used when no database is configured and
// by tests. Records do not survive a restart.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*AnalysisJob
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*AnalysisJob)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// CreateJob records a new job in the processing state with merge semantics.
func (s *MemoryStore) CreateJob(_ context.Context, id string, meta JobMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job, ok := s.jobs[id]
	if !ok {
		job = &AnalysisJob{
			ID:            id,
			CreatedAt:     now,
			PublishStatus: PublishNotApplicable,
		}
		s.jobs[id] = job
	}
	job.Status = StatusProcessing
	job.FileName = meta.FileName
	job.FileSize = meta.FileSize
	job.MIMEType = meta.MIMEType
	job.UpdatedAt = now
	return nil
}

// MarkDone transitions a processing job to done and attaches the report.
func (s *MemoryStore) MarkDone(_ context.Context, id string, result *rubric.Report, qualifies bool, threshold float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return ErrAlreadyTerminal
	}
	job.Status = StatusDone
	job.Result = result
	job.QualifiesForPublish = qualifies
	job.ScoreThreshold = threshold
	if qualifies {
		job.PublishStatus = PublishPending
	} else {
		job.PublishStatus = PublishNotApplicable
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkError transitions a processing job to error with a message.
func (s *MemoryStore) MarkError(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return ErrAlreadyTerminal
	}
	job.Status = StatusError
	job.Error = message
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdatePublish writes the publish sub-state without touching analysis fields.
func (s *MemoryStore) UpdatePublish(_ context.Context, id string, update PublishUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.PublishStatus = update.Status
	job.PublishLink = update.Link
	job.PublishRemoteID = update.RemoteID
	job.PublishError = update.Error
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the job record for id, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}
