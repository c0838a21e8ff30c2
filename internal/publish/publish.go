// Package publish implements the threshold-gated publishing workflow: a pure
// eligibility check plus a second, independent upload to the publishing
// provider, recorded in the job ledger's publish sub-lifecycle.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/media-screener/internal/ledger"
)

// Metadata describes the entry created at the publishing provider.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	Privacy     string
	MIMEType    string
}

// Result is the canonical descriptor of a published entry.
type Result struct {
	RemoteID string
	Link     string
}

// Uploader transfers a payload to the publishing provider. Unlike staging,
// this upload is synchronous end to end and is never polled for readiness.
type Uploader interface {
	Upload(ctx context.Context, payload []byte, meta Metadata) (*Result, error)
}

// Qualifies reports whether a score meets the publish threshold.
func Qualifies(score, threshold float64) bool {
	return score >= threshold
}

// ErrNotConfigured indicates no publishing provider credentials were supplied.
var ErrNotConfigured = errors.New("publishing is not configured")

// EligibilityError reports a publish attempt on a job whose score did not
// meet the threshold recorded at evaluation time.
type EligibilityError struct {
	Score     float64
	Threshold float64
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("job does not qualify for publishing: score %.1f is below threshold %.1f", e.Score, e.Threshold)
}

// AlreadyPublishedError reports a publish attempt on a job that has already
// been uploaded. It carries the existing link so callers can surface it.
type AlreadyPublishedError struct {
	Link string
}

func (e *AlreadyPublishedError) Error() string {
	return fmt.Sprintf("job is already published at %s", e.Link)
}

// Gate checks publish eligibility and performs the upload.
type Gate struct {
	store    ledger.Store
	uploader Uploader
}

// NewGate creates a publish gate. A nil uploader means publishing is not
// configured; Publish then fails with ErrNotConfigured before any ledger write.
func NewGate(store ledger.Store, uploader Uploader) *Gate {
	return &Gate{store: store, uploader: uploader}
}

// Configured reports whether a publishing provider is wired in.
func (g *Gate) Configured() bool {
	return g.uploader != nil
}

// Publish uploads the payload for an eligible job and records the outcome.
// Preconditions are checked in order: the job must exist, must qualify for
// publishing, and must not already be published. Upload failures are recorded
// in the publish sub-state and surfaced to the caller; they never touch the
// analysis-phase fields.
func (g *Gate) Publish(ctx context.Context, jobID string, payload []byte, meta Metadata) (*Result, error) {
	if g.uploader == nil {
		return nil, ErrNotConfigured
	}

	job, err := g.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !job.QualifiesForPublish {
		score := 0.0
		if job.Result != nil {
			score = job.Result.Score
		}
		return nil, &EligibilityError{Score: score, Threshold: job.ScoreThreshold}
	}

	if job.PublishStatus == ledger.PublishUploaded {
		return nil, &AlreadyPublishedError{Link: job.PublishLink}
	}

	if err := g.store.UpdatePublish(ctx, jobID, ledger.PublishUpdate{Status: ledger.PublishUploading}); err != nil {
		return nil, fmt.Errorf("failed to record publish start: %w", err)
	}

	result, err := g.uploader.Upload(ctx, payload, meta)
	if err != nil {
		if recordErr := g.store.UpdatePublish(ctx, jobID, ledger.PublishUpdate{
			Status: ledger.PublishError,
			Error:  err.Error(),
		}); recordErr != nil {
			return nil, fmt.Errorf("publish upload failed (%v); additionally failed to record it: %w", err, recordErr)
		}
		return nil, fmt.Errorf("publish upload failed: %w", err)
	}

	if err := g.store.UpdatePublish(ctx, jobID, ledger.PublishUpdate{
		Status:   ledger.PublishUploaded,
		Link:     result.Link,
		RemoteID: result.RemoteID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record publish result: %w", err)
	}

	return result, nil
}
