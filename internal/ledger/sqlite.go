package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonathan/media-screener/internal/rubric"
)

// SQLiteStore implements Store on a local SQLite file. It exists for local
// development and single-host deployments where running Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed ledger at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_jobs (
			id                    TEXT PRIMARY KEY,
			status                TEXT NOT NULL DEFAULT 'processing',
			file_name             TEXT NOT NULL DEFAULT '',
			file_size             INTEGER NOT NULL DEFAULT 0,
			mime_type             TEXT NOT NULL DEFAULT '',
			result                TEXT,
			error                 TEXT NOT NULL DEFAULT '',
			qualifies_for_publish INTEGER NOT NULL DEFAULT 0,
			score_threshold       REAL NOT NULL DEFAULT 0,
			publish_status        TEXT NOT NULL DEFAULT 'not_applicable',
			publish_link          TEXT NOT NULL DEFAULT '',
			publish_remote_id     TEXT NOT NULL DEFAULT '',
			publish_error         TEXT NOT NULL DEFAULT '',
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

func sqliteNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateJob records a new job in the processing state with merge semantics.
func (s *SQLiteStore) CreateJob(ctx context.Context, id string, meta JobMetadata) error {
	now := sqliteNow()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_jobs (id, status, file_name, file_size, mime_type, publish_status, created_at, updated_at)
		 VALUES (?, 'processing', ?, ?, ?, 'not_applicable', ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET status = 'processing', file_name = excluded.file_name, file_size = excluded.file_size,
		     mime_type = excluded.mime_type, updated_at = excluded.updated_at`,
		id, meta.FileName, meta.FileSize, meta.MIMEType, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	return nil
}

// MarkDone transitions a processing job to done and attaches the report.
func (s *SQLiteStore) MarkDone(ctx context.Context, id string, result *rubric.Report, qualifies bool, threshold float64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal report for job %s: %w", id, err)
	}

	publishStatus := PublishNotApplicable
	if qualifies {
		publishStatus = PublishPending
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs
		 SET status = 'done', result = ?, qualifies_for_publish = ?, score_threshold = ?,
		     publish_status = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(resultJSON), qualifies, threshold, string(publishStatus), sqliteNow(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", id, err)
	}
	return s.checkTerminalWrite(ctx, id, res)
}

// MarkError transitions a processing job to error with a message.
func (s *SQLiteStore) MarkError(ctx context.Context, id string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs
		 SET status = 'error', error = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		message, sqliteNow(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s errored: %w", id, err)
	}
	return s.checkTerminalWrite(ctx, id, res)
}

// UpdatePublish writes the publish sub-state without touching analysis fields.
func (s *SQLiteStore) UpdatePublish(ctx context.Context, id string, update PublishUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs
		 SET publish_status = ?, publish_link = ?, publish_remote_id = ?, publish_error = ?, updated_at = ?
		 WHERE id = ?`,
		string(update.Status), update.Link, update.RemoteID, update.Error, sqliteNow(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update publish state for job %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update publish state for job %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the job record for id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*AnalysisJob, error) {
	var (
		job                  AnalysisJob
		resultJSON           sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, file_name, file_size, mime_type, result, error,
		        qualifies_for_publish, score_threshold,
		        publish_status, publish_link, publish_remote_id, publish_error,
		        created_at, updated_at
		 FROM analysis_jobs WHERE id = ?`,
		id,
	).Scan(
		&job.ID, &job.Status, &job.FileName, &job.FileSize, &job.MIMEType, &resultJSON, &job.Error,
		&job.QualifiesForPublish, &job.ScoreThreshold,
		&job.PublishStatus, &job.PublishLink, &job.PublishRemoteID, &job.PublishError,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	if resultJSON.Valid && resultJSON.String != "" {
		var report rubric.Report
		if err := json.Unmarshal([]byte(resultJSON.String), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report for job %s: %w", id, err)
		}
		job.Result = &report
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for job %s: %w", id, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for job %s: %w", id, err)
	}
	return &job, nil
}

func (s *SQLiteStore) checkTerminalWrite(ctx context.Context, id string, res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check terminal write for job %s: %w", id, err)
	}
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_jobs WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyTerminal
}
