package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/media-screener/internal/rubric"
)

// PostgresStore implements Store on a PostgreSQL connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and ensures the schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_jobs (
			id                    TEXT PRIMARY KEY,
			status                TEXT NOT NULL DEFAULT 'processing',
			file_name             TEXT NOT NULL DEFAULT '',
			file_size             BIGINT NOT NULL DEFAULT 0,
			mime_type             TEXT NOT NULL DEFAULT '',
			result                JSONB,
			error                 TEXT NOT NULL DEFAULT '',
			qualifies_for_publish BOOLEAN NOT NULL DEFAULT FALSE,
			score_threshold       DOUBLE PRECISION NOT NULL DEFAULT 0,
			publish_status        TEXT NOT NULL DEFAULT 'not_applicable',
			publish_link          TEXT NOT NULL DEFAULT '',
			publish_remote_id     TEXT NOT NULL DEFAULT '',
			publish_error         TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

// CreateJob records a new job in the processing state. Re-running the write
// for the same id only overwrites the fields supplied here.
func (s *PostgresStore) CreateJob(ctx context.Context, id string, meta JobMetadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, status, file_name, file_size, mime_type, publish_status)
		 VALUES ($1, 'processing', $2, $3, $4, 'not_applicable')
		 ON CONFLICT (id) DO UPDATE
		 SET status = 'processing', file_name = $2, file_size = $3, mime_type = $4, updated_at = NOW()`,
		id, meta.FileName, meta.FileSize, meta.MIMEType,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	return nil
}

// MarkDone transitions a processing job to done and attaches the report.
func (s *PostgresStore) MarkDone(ctx context.Context, id string, result *rubric.Report, qualifies bool, threshold float64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal report for job %s: %w", id, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = 'done', result = $2, qualifies_for_publish = $3, score_threshold = $4,
		     publish_status = CASE WHEN $3 THEN 'pending' ELSE 'not_applicable' END,
		     updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		id, resultJSON, qualifies, threshold,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", id, err)
	}
	return s.checkTerminalWrite(ctx, id, tag.RowsAffected())
}

// MarkError transitions a processing job to error with a message.
func (s *PostgresStore) MarkError(ctx context.Context, id string, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = 'error', error = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s errored: %w", id, err)
	}
	return s.checkTerminalWrite(ctx, id, tag.RowsAffected())
}

// UpdatePublish writes the publish sub-state without touching analysis fields.
func (s *PostgresStore) UpdatePublish(ctx context.Context, id string, update PublishUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET publish_status = $2, publish_link = $3, publish_remote_id = $4, publish_error = $5,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, string(update.Status), update.Link, update.RemoteID, update.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to update publish state for job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the job record for id, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*AnalysisJob, error) {
	var (
		job        AnalysisJob
		resultJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, file_name, file_size, mime_type, result, error,
		        qualifies_for_publish, score_threshold,
		        publish_status, publish_link, publish_remote_id, publish_error,
		        created_at, updated_at
		 FROM analysis_jobs WHERE id = $1`,
		id,
	).Scan(
		&job.ID, &job.Status, &job.FileName, &job.FileSize, &job.MIMEType, &resultJSON, &job.Error,
		&job.QualifiesForPublish, &job.ScoreThreshold,
		&job.PublishStatus, &job.PublishLink, &job.PublishRemoteID, &job.PublishError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	if len(resultJSON) > 0 {
		var report rubric.Report
		if err := json.Unmarshal(resultJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report for job %s: %w", id, err)
		}
		job.Result = &report
	}
	return &job, nil
}

// checkTerminalWrite distinguishes a missing job from an already-terminal one
// after a zero-row terminal update.
func (s *PostgresStore) checkTerminalWrite(ctx context.Context, id string, rows int64) error {
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_jobs WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyTerminal
}
