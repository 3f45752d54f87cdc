package batches

import (
	"context"
	"errors"
	"testing"
	"time"

	"row-analyzer/internal/analysis"
)

func TestMemoryRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, Batch{
		ID:        "b1",
		UserID:    "u",
		Status:    StatusQueued,
		Rows:      []analysis.Request{{ID: "r1"}, {ID: "r2"}},
		CreatedAt: created,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := created.Add(time.Second)
	if err := repo.MarkProcessing(ctx, "b1", first); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := repo.MarkProcessing(ctx, "b1", first.Add(time.Minute)); err != nil {
		t.Fatalf("MarkProcessing again: %v", err)
	}

	done := created.Add(time.Hour)
	outcomes := []analysis.Outcome{{ID: "r1"}, {ID: "r2"}}
	if err := repo.Complete(ctx, "b1", outcomes, analysis.Summarize(outcomes), "key", done); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	b, err := repo.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if b.Status != StatusCompleted || b.RowCount != 2 || len(b.Outcomes) != 2 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	if b.StartedAt == nil || !b.StartedAt.Equal(first) {
		t.Fatalf("expected first start time kept, got %v", b.StartedAt)
	}
	if b.Summary == nil || b.Summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", b.Summary)
	}

	if err := repo.MarkProcessing(ctx, "b1", done); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
	if err := repo.Fail(ctx, "missing", "x", done); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, Batch{
			ID:        id,
			UserID:    "u",
			Status:    StatusQueued,
			Rows:      []analysis.Request{{ID: "r"}},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, Batch{ID: "other", UserID: "v", CreatedAt: base}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := repo.ListByUser(ctx, "u", 2, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("unexpected page: %+v", list)
	}
	if list[0].Rows != nil {
		t.Fatalf("expected rows stripped from listing")
	}

	list, err = repo.ListByUser(ctx, "u", 0, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("unexpected offset page: %+v", list)
	}

	list, err = repo.ListByUser(ctx, "u", 10, 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty page, got %+v err=%v", list, err)
	}
}
