package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/media-screener/internal/ledger"
	"github.com/jonathan/media-screener/internal/llm"
	"github.com/jonathan/media-screener/internal/pipeline"
	"github.com/jonathan/media-screener/internal/publish"
	"github.com/jonathan/media-screener/internal/rubric"
	"github.com/jonathan/media-screener/internal/staging"
)

// stubStager always stages and activates immediately.
type stubStager struct {
	stageErr error
	releases int
}

func (s *stubStager) Stage(_ context.Context, _ []byte, mimeType, _ string) (*staging.Descriptor, error) {
	if s.stageErr != nil {
		return nil, s.stageErr
	}
	return &staging.Descriptor{RemoteID: "files/x", RemoteURI: "uri://x", MIMEType: mimeType, State: staging.StatePending}, nil
}

func (s *stubStager) AwaitActive(_ context.Context, desc *staging.Descriptor, _, _ time.Duration) (*staging.Descriptor, error) {
	desc.State = staging.StateActive
	return desc, nil
}

func (s *stubStager) Release(_ context.Context, desc *staging.Descriptor) {
	if desc != nil && desc.RemoteID != "" {
		s.releases++
	}
}

// stubClient returns one fixed JSON response for every model.
type stubClient struct {
	response string
	err      error
}

func (c *stubClient) GenerateContent(_ context.Context, _, _ string) (string, error) {
	return c.response, c.err
}

func (c *stubClient) GenerateJSON(_ context.Context, _, _ string) (string, error) {
	return c.response, c.err
}

func (c *stubClient) GenerateFileJSON(_ context.Context, _ string, _ llm.FileRef, _ string) (string, error) {
	return c.response, c.err
}

func (c *stubClient) Close() error { return nil }

type stubUploader struct {
	calls  int
	result *publish.Result
	err    error
}

func (u *stubUploader) Upload(_ context.Context, _ []byte, _ publish.Metadata) (*publish.Result, error) {
	u.calls++
	return u.result, u.err
}

func testServer(t *testing.T, stager pipeline.Stager, client llm.Client, uploader publish.Uploader) (*Server, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	opts := pipeline.Options{
		Candidates:             []string{"primary", "fallback"},
		ScoreThreshold:         10,
		Rubric:                 rubric.Default(),
		StagingTransferTimeout: time.Second,
		ReadinessTimeout:       time.Second,
		PollInterval:           time.Millisecond,
		EvaluationTimeout:      time.Second,
	}
	s := &Server{
		store:          store,
		pipeline:       pipeline.New(stager, client, store, opts),
		gate:           publish.NewGate(store, uploader),
		llmClient:      client,
		candidates:     opts.Candidates,
		maxUploadBytes: 1 << 20,
	}
	return s, store
}

// videoRequest builds a multipart request with a video part and extra fields.
func videoRequest(t *testing.T, url string, payload []byte, mimeType string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}

	if payload != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
		header.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

const goodReport = `{"score": 85, "summary": "solid", "findings": [{"rule": "hook", "verdict": "pass"}]}`

func TestHandleAnalyze_Success(t *testing.T) {
	stager := &stubStager{}
	s, store := testServer(t, stager, &stubClient{response: goodReport}, nil)

	req := videoRequest(t, "/analyses", []byte("videobytes"), "video/mp4", map[string]string{"analysis_id": "v1"})
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "v1", body["analysis_id"])
	assert.Equal(t, 85.0, body["score"])
	assert.Equal(t, true, body["qualifies_for_publish"])

	job, err := store.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDone, job.Status)
	assert.Equal(t, "clip.mp4", job.FileName)
	assert.Equal(t, 1, stager.releases)
}

func TestHandleAnalyze_MissingID(t *testing.T) {
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)

	req := videoRequest(t, "/analyses", []byte("videobytes"), "video/mp4", nil)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "analysis_id")
	_, err := store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ledger.ErrNotFound, "no ledger record may exist for a rejected request")
}

func TestHandleAnalyze_MissingFile(t *testing.T) {
	s, _ := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)

	req := videoRequest(t, "/analyses", nil, "", map[string]string{"analysis_id": "v1"})
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "video file is required")
}

func TestHandleAnalyze_WrongMIME(t *testing.T) {
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)

	req := videoRequest(t, "/analyses", []byte("%PDF-"), "application/pdf", map[string]string{"analysis_id": "v1"})
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "video/")
	_, err := store.Get(context.Background(), "v1")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestHandleAnalyze_OversizePayload(t *testing.T) {
	s, _ := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)
	s.maxUploadBytes = 64

	req := videoRequest(t, "/analyses", bytes.Repeat([]byte("x"), 256), "video/mp4", map[string]string{"analysis_id": "v1"})
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit")
}

func TestHandleAnalyze_PipelineFailure(t *testing.T) {
	stager := &stubStager{stageErr: &staging.TransferError{Cause: errors.New("connection reset")}}
	s, store := testServer(t, stager, &stubClient{response: goodReport}, nil)

	req := videoRequest(t, "/analyses", []byte("videobytes"), "video/mp4", map[string]string{"analysis_id": "v1"})
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection reset")

	job, err := store.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusError, job.Status)
}

func TestHandleGetAnalysis(t *testing.T) {
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)
	require.NoError(t, store.CreateJob(context.Background(), "v1", ledger.JobMetadata{FileName: "clip.mp4"}))

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/analyses/v1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "v1", body["id"])
	assert.Equal(t, string(ledger.StatusProcessing), body["status"])
}

func TestHandleGetAnalysis_NotFound(t *testing.T) {
	s, _ := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/analyses/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePublish_Success(t *testing.T) {
	uploader := &stubUploader{result: &publish.Result{RemoteID: "yt1", Link: "https://www.youtube.com/watch?v=yt1"}}
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, uploader)
	seedDone(t, store, "v1", 85, 10)

	req := videoRequest(t, "/analyses/v1/publish", []byte("videobytes"), "video/mp4", map[string]string{"title": "My clip"})
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "https://www.youtube.com/watch?v=yt1", body["publish_link"])
	assert.Equal(t, "yt1", body["publish_remote_id"])
	assert.Equal(t, 1, uploader.calls)
}

func TestHandlePublish_Ineligible(t *testing.T) {
	uploader := &stubUploader{}
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, uploader)
	seedDone(t, store, "v1", 5, 10)

	req := videoRequest(t, "/analyses/v1/publish", []byte("videobytes"), "video/mp4", nil)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 5.0, body["score"])
	assert.Equal(t, 10.0, body["threshold"])
	assert.Zero(t, uploader.calls)
}

func TestHandlePublish_Conflict(t *testing.T) {
	uploader := &stubUploader{}
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, uploader)
	seedDone(t, store, "v1", 85, 10)
	require.NoError(t, store.UpdatePublish(context.Background(), "v1", ledger.PublishUpdate{
		Status: ledger.PublishUploaded,
		Link:   "https://www.youtube.com/watch?v=existing",
	}))

	req := videoRequest(t, "/analyses/v1/publish", []byte("videobytes"), "video/mp4", nil)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://www.youtube.com/watch?v=existing", body["publish_link"])
	assert.Zero(t, uploader.calls)
}

func TestHandlePublish_NotFound(t *testing.T) {
	s, _ := testServer(t, &stubStager{}, &stubClient{response: goodReport}, &stubUploader{})

	req := videoRequest(t, "/analyses/ghost/publish", []byte("videobytes"), "video/mp4", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePublish_NotConfigured(t *testing.T) {
	s, store := testServer(t, &stubStager{}, &stubClient{response: goodReport}, nil)
	seedDone(t, store, "v1", 85, 10)

	req := videoRequest(t, "/analyses/v1/publish", []byte("videobytes"), "video/mp4", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer(t, &stubStager{}, &stubClient{response: goodReport}, &stubUploader{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []any{"primary", "fallback"}, body["models"])
	assert.Equal(t, true, body["publish_enabled"])
}

func seedDone(t *testing.T, store ledger.Store, id string, score, threshold float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, id, ledger.JobMetadata{FileName: id + ".mp4", MIMEType: "video/mp4"}))
	report := &rubric.Report{Score: score, Summary: "reviewed"}
	require.NoError(t, store.MarkDone(ctx, id, report, publish.Qualifies(score, threshold), threshold))
}
