// Package ledger provides the durable per-job status record for analysis
// jobs. A job is created in the processing state, transitions exactly once to
// done or error, and carries an orthogonal publish sub-lifecycle driven by the
// publish gate.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/media-screener/internal/rubric"
)

// Status is the analysis-phase lifecycle state of a job.
type Status string

// Analysis states
const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// PublishStatus is the publish-phase sub-lifecycle state of a job.
type PublishStatus string

// Publish states
const (
	PublishNotApplicable PublishStatus = "not_applicable"
	PublishPending       PublishStatus = "pending"
	PublishUploading     PublishStatus = "uploading"
	PublishUploaded      PublishStatus = "uploaded"
	PublishError         PublishStatus = "error"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates no job exists for the requested id.
	ErrNotFound = errors.New("analysis job not found")
	// ErrAlreadyTerminal indicates a terminal write was attempted on a job
	// that already left the processing state.
	ErrAlreadyTerminal = errors.New("analysis job already reached a terminal state")
)

// JobMetadata describes the ingested payload. The payload itself is never
// persisted.
type JobMetadata struct {
	FileName string
	FileSize int64
	MIMEType string
}

// AnalysisJob is the durable record for one analysis request.
type AnalysisJob struct {
	ID        string         `json:"id"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	FileName  string         `json:"file_name"`
	FileSize  int64          `json:"file_size"`
	MIMEType  string         `json:"mime_type"`
	Result    *rubric.Report `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`

	QualifiesForPublish bool    `json:"qualifies_for_publish"`
	ScoreThreshold      float64 `json:"score_threshold"`

	PublishStatus   PublishStatus `json:"publish_status"`
	PublishLink     string        `json:"publish_link,omitempty"`
	PublishRemoteID string        `json:"publish_remote_id,omitempty"`
	PublishError    string        `json:"publish_error,omitempty"`
}

// PublishUpdate carries one publish sub-state write.
type PublishUpdate struct {
	Status   PublishStatus
	Link     string
	RemoteID string
	Error    string
}

// Store is the read/write contract the pipeline needs from the job ledger.
// Writes for a single job are issued strictly in order by the single
// execution driving that job; implementations only need per-record write
// ordering, not cross-record transactions.
type Store interface {
	// CreateJob records a new job in the processing state. The write has
	// merge semantics: repeating it only overwrites the supplied fields.
	CreateJob(ctx context.Context, id string, meta JobMetadata) error
	// MarkDone transitions a processing job to done with its report.
	MarkDone(ctx context.Context, id string, result *rubric.Report, qualifies bool, threshold float64) error
	// MarkError transitions a processing job to error with a message.
	MarkError(ctx context.Context, id string, message string) error
	// UpdatePublish writes the publish sub-state, independent of the
	// analysis terminal state.
	UpdatePublish(ctx context.Context, id string, update PublishUpdate) error
	// Get returns the job record, or ErrNotFound.
	Get(ctx context.Context, id string) (*AnalysisJob, error)
	// Close releases the underlying store.
	Close()
}
