package batches

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"row-analyzer/internal/analysis"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new batch.
func (r *PGRepo) Create(ctx context.Context, batch Batch) error {
	const query = `
INSERT INTO batches (id, user_id, status, row_count, rows, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	rows, err := marshalJSONB(batch.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	rowCount := batch.RowCount
	if rowCount == 0 {
		rowCount = len(batch.Rows)
	}
	updatedAt := batch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = batch.CreatedAt
	}
	_, err = r.DB.ExecContext(ctx, query,
		batch.ID,
		batch.UserID,
		batch.Status,
		rowCount,
		rows,
		batch.CreatedAt,
		updatedAt,
	)
	return err
}

// GetByID returns a batch by ID, including rows and outcomes.
func (r *PGRepo) GetByID(ctx context.Context, batchID string) (Batch, error) {
	const query = `
SELECT id, user_id, status, row_count, rows, outcomes, summary, result_key, error_message,
       created_at, started_at, completed_at, updated_at
FROM batches
WHERE id = $1
LIMIT 1`
	var b Batch
	var rows, outcomes, summary sql.NullString
	var resultKey, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, batchID).Scan(
		&b.ID,
		&b.UserID,
		&b.Status,
		&b.RowCount,
		&rows,
		&outcomes,
		&summary,
		&resultKey,
		&errorMessage,
		&b.CreatedAt,
		&startedAt,
		&completedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	if rows.Valid {
		if err := json.Unmarshal([]byte(rows.String), &b.Rows); err != nil {
			return Batch{}, fmt.Errorf("decode rows for batch %s: %w", batchID, err)
		}
	}
	if outcomes.Valid {
		if err := json.Unmarshal([]byte(outcomes.String), &b.Outcomes); err != nil {
			return Batch{}, fmt.Errorf("decode outcomes for batch %s: %w", batchID, err)
		}
	}
	if err := applyNullable(&b, summary, resultKey, errorMessage, startedAt, completedAt); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// ListByUser returns a user's batches newest first, without rows or outcomes.
// A zero limit returns every batch after offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Batch, error) {
	const query = `
SELECT id, user_id, status, row_count, summary, result_key, error_message,
       created_at, started_at, completed_at, updated_at
FROM batches
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	if offset < 0 {
		offset = 0
	}
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rs, err := r.DB.QueryContext(ctx, query, userID, limitArg, offset)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := make([]Batch, 0)
	for rs.Next() {
		var b Batch
		var summary, resultKey, errorMessage sql.NullString
		var startedAt, completedAt sql.NullTime
		if err := rs.Scan(
			&b.ID,
			&b.UserID,
			&b.Status,
			&b.RowCount,
			&summary,
			&resultKey,
			&errorMessage,
			&b.CreatedAt,
			&startedAt,
			&completedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := applyNullable(&b, summary, resultKey, errorMessage, startedAt, completedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rs.Err()
}

// MarkProcessing moves a queued or processing batch to processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, batchID string, startedAt time.Time) error {
	const query = `
UPDATE batches
SET status = $2, started_at = COALESCE(started_at, $3), updated_at = $3
WHERE id = $1 AND status IN ($4, $2)`
	res, err := r.DB.ExecContext(ctx, query, batchID, StatusProcessing, startedAt, StatusQueued)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM batches WHERE id = $1`, batchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyFinished
}

// Complete stores the outcomes and summary and marks the batch completed.
func (r *PGRepo) Complete(ctx context.Context, batchID string, outcomes []analysis.Outcome, summary analysis.Summary, resultKey string, completedAt time.Time) error {
	const query = `
UPDATE batches
SET status = $2, outcomes = $3, summary = $4, result_key = $5, error_message = NULL,
    completed_at = $6, updated_at = $6
WHERE id = $1`
	outcomesPayload, err := marshalJSONB(outcomes)
	if err != nil {
		return fmt.Errorf("encode outcomes: %w", err)
	}
	summaryPayload, err := marshalJSONB(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return r.execOne(ctx, query, batchID, StatusCompleted, outcomesPayload, summaryPayload, nullString(resultKey), completedAt)
}

// Fail marks the batch failed.
func (r *PGRepo) Fail(ctx context.Context, batchID, message string, completedAt time.Time) error {
	const query = `
UPDATE batches
SET status = $2, error_message = $3, completed_at = $4, updated_at = $4
WHERE id = $1`
	return r.execOne(ctx, query, batchID, StatusFailed, message, completedAt)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func applyNullable(b *Batch, summary, resultKey, errorMessage sql.NullString, startedAt, completedAt sql.NullTime) error {
	if summary.Valid {
		var s analysis.Summary
		if err := json.Unmarshal([]byte(summary.String), &s); err != nil {
			return fmt.Errorf("decode summary for batch %s: %w", b.ID, err)
		}
		b.Summary = &s
	}
	if resultKey.Valid {
		b.ResultKey = resultKey.String
	}
	if errorMessage.Valid {
		b.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		b.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return nil
}

func marshalJSONB(value any) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(value)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
