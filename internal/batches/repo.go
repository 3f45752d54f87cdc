package batches

import (
	"context"
	"time"

	"row-analyzer/internal/analysis"
)

// Repo defines persistence operations for batches.
type Repo interface {
	Create(ctx context.Context, batch Batch) error
	GetByID(ctx context.Context, batchID string) (Batch, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Batch, error)
	// MarkProcessing moves a queued or processing batch to processing. A
	// finished batch yields ErrAlreadyFinished.
	MarkProcessing(ctx context.Context, batchID string, startedAt time.Time) error
	Complete(ctx context.Context, batchID string, outcomes []analysis.Outcome, summary analysis.Summary, resultKey string, completedAt time.Time) error
	Fail(ctx context.Context, batchID, message string, completedAt time.Time) error
}
