package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS ocr_jobs (
	job_id        TEXT PRIMARY KEY,
	job_type      TEXT NOT NULL,
	status        TEXT NOT NULL,
	result_text   TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status ON ocr_jobs (status);
`

// SQLiteLedger stores job records in a sqlite database.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a sqlite-backed ledger at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection to
	// avoid SQLITE_BUSY under concurrent job updates.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Create(ctx context.Context, record *Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ocr_jobs (job_id, job_type, status, result_text, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.JobID, record.JobType, string(record.Status),
		record.ResultText, record.Error, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", record.JobID, err)
	}
	return nil
}

func (l *SQLiteLedger) Get(ctx context.Context, jobID string) (*Record, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT job_id, job_type, status, result_text, error_message, created_at, updated_at
		 FROM ocr_jobs WHERE job_id = ?`, jobID)
	return scanRecord(row)
}

func (l *SQLiteLedger) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT job_id, job_type, status, result_text, error_message, created_at, updated_at
		FROM ocr_jobs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateStatus transitions a job's status. The guarded UPDATE refuses to
// touch rows already in a terminal state, which makes retried writes
// idempotent: a completed or failed job never regresses.
func (l *SQLiteLedger) UpdateStatus(ctx context.Context, jobID string, status Status, resultText, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE ocr_jobs
		 SET status = ?,
		     result_text = CASE WHEN ? != '' THEN ? ELSE result_text END,
		     error_message = CASE WHEN ? != '' THEN ? ELSE error_message END,
		     updated_at = ?
		 WHERE job_id = ? AND status NOT IN (?, ?)`,
		string(status),
		resultText, resultText,
		errMsg, errMsg,
		time.Now().UTC(),
		jobID, string(StatusCompleted), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the job is already terminal (fine) or it doesn't exist.
		if _, err := l.Get(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var record Record
	var status string
	err := s.Scan(&record.JobID, &record.JobType, &status,
		&record.ResultText, &record.Error, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job record: %w", err)
	}
	record.Status = Status(status)
	return &record, nil
}
