package batches

import (
	"context"
	"sort"
	"sync"
	"time"

	"row-analyzer/internal/analysis"
)

// MemoryRepo stores batches in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Batch
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Batch)}
}

// Create stores the batch.
func (r *MemoryRepo) Create(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch.RowCount == 0 {
		batch.RowCount = len(batch.Rows)
	}
	if batch.UpdatedAt.IsZero() {
		batch.UpdatedAt = batch.CreatedAt
	}
	r.byID[batch.ID] = batch
	return nil
}

// GetByID returns a batch by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, batchID string) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.byID[batchID]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return batch, nil
}

// ListByUser returns a user's batches newest first, without rows or outcomes.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	items := make([]Batch, 0)
	for _, b := range r.byID {
		if b.UserID == userID {
			b.Rows = nil
			b.Outcomes = nil
			items = append(items, b)
		}
	}
	r.mu.RUnlock()

	if offset >= len(items) {
		return []Batch{}, nil
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], nil
}

// MarkProcessing sets the batch to processing, keeping the first start time.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, batchID string, startedAt time.Time) error {
	return r.update(ctx, batchID, func(b *Batch) error {
		if b.Finished() {
			return ErrAlreadyFinished
		}
		b.Status = StatusProcessing
		if b.StartedAt == nil {
			b.StartedAt = &startedAt
		}
		b.UpdatedAt = startedAt
		return nil
	})
}

// Complete stores the outcomes and marks the batch completed.
func (r *MemoryRepo) Complete(ctx context.Context, batchID string, outcomes []analysis.Outcome, summary analysis.Summary, resultKey string, completedAt time.Time) error {
	return r.update(ctx, batchID, func(b *Batch) error {
		b.Status = StatusCompleted
		b.Outcomes = append([]analysis.Outcome(nil), outcomes...)
		b.Summary = &summary
		b.ResultKey = resultKey
		b.ErrorMessage = ""
		b.CompletedAt = &completedAt
		b.UpdatedAt = completedAt
		return nil
	})
}

// Fail marks the batch failed with message.
func (r *MemoryRepo) Fail(ctx context.Context, batchID, message string, completedAt time.Time) error {
	return r.update(ctx, batchID, func(b *Batch) error {
		b.Status = StatusFailed
		b.ErrorMessage = message
		b.CompletedAt = &completedAt
		b.UpdatedAt = completedAt
		return nil
	})
}

func (r *MemoryRepo) update(ctx context.Context, batchID string, apply func(*Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.byID[batchID]
	if !ok {
		return ErrNotFound
	}
	if err := apply(&batch); err != nil {
		return err
	}
	r.byID[batchID] = batch
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
