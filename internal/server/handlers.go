package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/jonathan/media-screener/internal/ledger"
	"github.com/jonathan/media-screener/internal/pipeline"
	"github.com/jonathan/media-screener/internal/publish"
)

// multipartMemoryLimit is the in-memory buffer for multipart parsing; larger
// parts spill to temp files.
const multipartMemoryLimit = 32 << 20

// AnalyzeResponse represents the response for POST /analyses
type AnalyzeResponse struct {
	OK                  bool    `json:"ok"`
	AnalysisID          string  `json:"analysis_id"`
	Score               float64 `json:"score"`
	QualifiesForPublish bool    `json:"qualifies_for_publish"`
}

// PublishResponse represents the response for POST /analyses/{id}/publish
type PublishResponse struct {
	OK              bool   `json:"ok"`
	PublishLink     string `json:"publish_link"`
	PublishRemoteID string `json:"publish_remote_id"`
}

// HealthResponse represents the response for GET /health
type HealthResponse struct {
	Status         string   `json:"status"`
	Models         []string `json:"models"`
	PublishEnabled bool     `json:"publish_enabled"`
}

// readPayload validates and reads the uploaded video part from a multipart
// request. All validation happens before any pipeline or provider work.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartMemoryLimit)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("payload exceeds the %d MB limit", s.maxUploadBytes>>20))
			return nil, "", "", false
		}
		s.errorResponse(w, http.StatusBadRequest, "Invalid multipart request: "+err.Error())
		return nil, "", "", false
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "video file is required")
		return nil, "", "", false
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "video/") {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unsupported media type %q: a video/* payload is required", mimeType))
		return nil, "", "", false
	}
	if header.Size > s.maxUploadBytes {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("payload exceeds the %d MB limit", s.maxUploadBytes>>20))
		return nil, "", "", false
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read payload: "+err.Error())
		return nil, "", "", false
	}

	return payload, mimeType, header.Filename, true
}

// handleAnalyze ingests a payload and synchronously runs the full analysis
// pipeline. The ledger record is created before the pipeline starts, so
// clients polling GET /analyses/{id} can observe the processing state.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	payload, mimeType, fileName, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	jobID := r.FormValue("analysis_id")
	if jobID == "" {
		s.errorResponse(w, http.StatusBadRequest, "analysis_id is required")
		return
	}

	outcome, err := s.pipeline.Run(r.Context(), pipeline.Input{
		JobID:    jobID,
		Payload:  payload,
		FileName: fileName,
		MIMEType: mimeType,
	})
	if err != nil {
		log.Printf("Analysis %s failed: %v", jobID, err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, AnalyzeResponse{
		OK:                  true,
		AnalysisID:          jobID,
		Score:               outcome.Report.Score,
		QualifiesForPublish: outcome.Qualifies,
	})
}

// handleGetAnalysis returns the ledger record for a job
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.errorResponse(w, http.StatusBadRequest, "analysis id is required")
		return
	}

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "analysis not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Ledger error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, job)
}

// handlePublish runs the publish gate for a completed analysis
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.errorResponse(w, http.StatusBadRequest, "analysis id is required")
		return
	}

	payload, mimeType, fileName, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	meta := publish.Metadata{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Privacy:     r.FormValue("privacy"),
		MIMEType:    mimeType,
	}
	if tags := r.FormValue("tags"); tags != "" {
		meta.Tags = strings.Split(tags, ",")
	}
	if meta.Title == "" {
		meta.Title = fileName
	}

	result, err := s.gate.Publish(r.Context(), id, payload, meta)
	if err != nil {
		s.publishError(w, id, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, PublishResponse{
		OK:              true,
		PublishLink:     result.Link,
		PublishRemoteID: result.RemoteID,
	})
}

// publishError maps publish-gate failures onto HTTP statuses with their
// explanatory fields.
func (s *Server) publishError(w http.ResponseWriter, id string, err error) {
	var (
		eligErr     *publish.EligibilityError
		conflictErr *publish.AlreadyPublishedError
	)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "analysis not found")
	case errors.As(err, &eligErr):
		s.jsonResponse(w, http.StatusForbidden, map[string]any{
			"error":     eligErr.Error(),
			"score":     eligErr.Score,
			"threshold": eligErr.Threshold,
		})
	case errors.As(err, &conflictErr):
		s.jsonResponse(w, http.StatusConflict, map[string]any{
			"error":        conflictErr.Error(),
			"publish_link": conflictErr.Link,
		})
	case errors.Is(err, publish.ErrNotConfigured):
		s.errorResponse(w, http.StatusServiceUnavailable, publish.ErrNotConfigured.Error())
	default:
		log.Printf("Publish %s failed: %v", id, err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// handleHealth returns server health plus the configured model candidates
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Models:         s.candidates,
		PublishEnabled: s.gate.Configured(),
	})
}
