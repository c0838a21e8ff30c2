// Package server provides the HTTP REST API for the media screener.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/jonathan/media-screener/internal/config"
	"github.com/jonathan/media-screener/internal/ledger"
	"github.com/jonathan/media-screener/internal/llm"
	"github.com/jonathan/media-screener/internal/pipeline"
	"github.com/jonathan/media-screener/internal/publish"
	"github.com/jonathan/media-screener/internal/rubric"
	"github.com/jonathan/media-screener/internal/staging"
)

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	store          ledger.Store
	pipeline       *pipeline.Pipeline
	gate           *publish.Gate
	llmClient      llm.Client
	candidates     []string
	maxUploadBytes int64
}

// New creates a new server instance from the loaded configuration.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := ledger.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	stager := staging.NewClient(gemini.Raw())
	pipe := pipeline.New(stager, gemini, store, pipeline.Options{
		Candidates:             cfg.Candidates(),
		ScoreThreshold:         cfg.ScoreThreshold,
		Rubric:                 rubric.Default(),
		StagingTransferTimeout: cfg.StagingTransferTimeout(),
		ReadinessTimeout:       cfg.ReadinessTimeout(),
		PollInterval:           cfg.PollInterval(),
		EvaluationTimeout:      cfg.EvaluationTimeout(),
	})

	var uploader publish.Uploader
	if cfg.YouTubeCredentials != "" {
		yt, err := publish.NewYouTubeUploader(ctx, option.WithCredentialsFile(cfg.YouTubeCredentials))
		if err != nil {
			gemini.Close()
			store.Close()
			return nil, fmt.Errorf("failed to create publish uploader: %w", err)
		}
		uploader = yt
	} else {
		log.Printf("No publish credentials configured; publish endpoint disabled")
	}

	s := &Server{
		store:          store,
		pipeline:       pipe,
		gate:           publish.NewGate(store, uploader),
		llmClient:      gemini,
		candidates:     cfg.Candidates(),
		maxUploadBytes: cfg.MaxUploadBytes(),
	}

	mux := s.routes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  15 * time.Minute, // large payload uploads
		WriteTimeout: 30 * time.Minute, // pipeline runs synchronously
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyses", s.handleAnalyze)
	mux.HandleFunc("GET /analyses/{id}", s.handleGetAnalysis)
	mux.HandleFunc("POST /analyses/{id}/publish", s.handlePublish)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := s.llmClient.Close(); err != nil {
		log.Printf("Warning: failed to close LLM client: %v", err)
	}
	s.store.Close()
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
