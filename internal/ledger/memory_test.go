package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/media-screener/internal/rubric"
)

func sampleReport(score float64) *rubric.Report {
	return &rubric.Report{
		Score:   score,
		Summary: "fine",
		Findings: []rubric.Finding{
			{Rule: "hook", Verdict: "pass"},
		},
	}
}

func TestMemoryStore_CreateThenGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	meta := JobMetadata{FileName: "clip.mp4", FileSize: 1024, MIMEType: "video/mp4"}
	require.NoError(t, store.CreateJob(ctx, "v1", meta))

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Equal(t, "clip.mp4", job.FileName)
	assert.Equal(t, int64(1024), job.FileSize)
	assert.Equal(t, PublishNotApplicable, job.PublishStatus)
	assert.Nil(t, job.Result)
	assert.False(t, job.UpdatedAt.IsZero())
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateIsMergeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{FileName: "a.mp4"}))
	first, err := store.Get(ctx, "v1")
	require.NoError(t, err)

	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{FileName: "b.mp4"}))
	second, err := store.Get(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created_at must survive a retried create")
	assert.Equal(t, "b.mp4", second.FileName)
	assert.Equal(t, StatusProcessing, second.Status)
}

func TestMemoryStore_MarkDone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{}))

	require.NoError(t, store.MarkDone(ctx, "v1", sampleReport(85), true, 10))

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, 85.0, job.Result.Score)
	assert.True(t, job.QualifiesForPublish)
	assert.Equal(t, 10.0, job.ScoreThreshold)
	assert.Equal(t, PublishPending, job.PublishStatus)
	assert.Empty(t, job.Error)
}

func TestMemoryStore_MarkDoneBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{}))

	require.NoError(t, store.MarkDone(ctx, "v1", sampleReport(5), false, 10))

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, job.QualifiesForPublish)
	assert.Equal(t, PublishNotApplicable, job.PublishStatus)
}

func TestMemoryStore_MarkError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{}))

	require.NoError(t, store.MarkError(ctx, "v1", "staging timed out"))

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, job.Status)
	assert.Equal(t, "staging timed out", job.Error)
	assert.Nil(t, job.Result)
}

func TestMemoryStore_TerminalTransitionHappensOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{}))

	require.NoError(t, store.MarkDone(ctx, "v1", sampleReport(50), true, 10))

	assert.ErrorIs(t, store.MarkDone(ctx, "v1", sampleReport(60), true, 10), ErrAlreadyTerminal)
	assert.ErrorIs(t, store.MarkError(ctx, "v1", "late failure"), ErrAlreadyTerminal)

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, 50.0, job.Result.Score)
	assert.Empty(t, job.Error)
}

func TestMemoryStore_TerminalWriteOnMissingJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	assert.ErrorIs(t, store.MarkDone(ctx, "ghost", sampleReport(50), false, 10), ErrNotFound)
	assert.ErrorIs(t, store.MarkError(ctx, "ghost", "boom"), ErrNotFound)
}

func TestMemoryStore_UpdatePublishLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{}))
	require.NoError(t, store.MarkDone(ctx, "v1", sampleReport(85), true, 10))

	require.NoError(t, store.UpdatePublish(ctx, "v1", PublishUpdate{Status: PublishUploading}))
	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, PublishUploading, job.PublishStatus)

	require.NoError(t, store.UpdatePublish(ctx, "v1", PublishUpdate{
		Status:   PublishUploaded,
		Link:     "https://www.youtube.com/watch?v=xyz",
		RemoteID: "xyz",
	}))
	job, err = store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, PublishUploaded, job.PublishStatus)
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz", job.PublishLink)
	assert.Equal(t, "xyz", job.PublishRemoteID)

	// Publish writes must not disturb analysis-phase fields.
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, 85.0, job.Result.Score)
}

func TestMemoryStore_UpdatePublishMissingJob(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdatePublish(context.Background(), "ghost", PublishUpdate{Status: PublishUploading})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "v1", JobMetadata{FileName: "clip.mp4"}))

	job, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	job.FileName = "mutated.mp4"

	again, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", again.FileName)
}
