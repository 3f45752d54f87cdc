package batches

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"row-analyzer/internal/analysis"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

var batchColumns = []string{
	"id", "user_id", "status", "row_count", "rows", "outcomes", "summary", "result_key", "error_message",
	"created_at", "started_at", "completed_at", "updated_at",
}

func TestPGRepoCreateStoresRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := Batch{
		ID:        "batch-1",
		UserID:    "guest:abc",
		Status:    StatusQueued,
		Rows:      []analysis.Request{{ID: "r1", PrimaryText: "a", Included: true}},
		CreatedAt: created,
	}

	mock.ExpectExec("INSERT INTO batches").
		WithArgs("batch-1", "guest:abc", StatusQueued, 1, sqlmock.AnyArg(), created, created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), batch); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSON(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)

	rows := sqlmock.NewRows(batchColumns).AddRow(
		"batch-1", "guest:abc", StatusCompleted, 1,
		`[{"id":"r1","primaryText":"a","secondaryText":"","selected":true}]`,
		`[{"id":"r1","result":{"predictedClass":1,"probability0":0.2,"probability1":0.8},"rawOutput":"x","processingTime":1.5,"attempts":1}]`,
		`{"total":1,"analyzed":1,"flagged":1}`,
		"batches/batch-1/results.json", nil,
		created, created, completed, completed,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM batches")).WithArgs("batch-1").WillReturnRows(rows)

	b, err := repo.GetByID(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(b.Rows) != 1 || b.Rows[0].ID != "r1" || !b.Rows[0].Included {
		t.Fatalf("unexpected rows: %+v", b.Rows)
	}
	if len(b.Outcomes) != 1 || b.Outcomes[0].Result.PredictedClass != 1 {
		t.Fatalf("unexpected outcomes: %+v", b.Outcomes)
	}
	if b.Summary == nil || b.Summary.Flagged != 1 {
		t.Fatalf("unexpected summary: %+v", b.Summary)
	}
	if b.ResultKey != "batches/batch-1/results.json" {
		t.Fatalf("unexpected result key %q", b.ResultKey)
	}
	if b.ErrorMessage != "" {
		t.Fatalf("expected empty error message, got %q", b.ErrorMessage)
	}
	if b.CompletedAt == nil || !b.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected completedAt %v", b.CompletedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM batches").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListByUserUnlimited(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "status", "row_count", "summary", "result_key", "error_message",
		"created_at", "started_at", "completed_at", "updated_at",
	}).
		AddRow("b2", "u", StatusFailed, 3, nil, nil, "boom", created.Add(time.Hour), nil, nil, created.Add(time.Hour)).
		AddRow("b1", "u", StatusQueued, 2, nil, nil, nil, created, nil, nil, created)
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs("u", nil, 0).WillReturnRows(rows)

	list, err := repo.ListByUser(context.Background(), "u", 0, -5)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b2" || list[1].RowCount != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].ErrorMessage != "boom" {
		t.Fatalf("expected error message, got %q", list[0].ErrorMessage)
	}
}

func TestPGRepoMarkProcessing(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("updates queued batch", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE batches").
			WithArgs("b1", StatusProcessing, started, StatusQueued).
			WillReturnResult(sqlmock.NewResult(0, 1))
		if err := repo.MarkProcessing(context.Background(), "b1", started); err != nil {
			t.Fatalf("MarkProcessing: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("ExpectationsWereMet: %v", err)
		}
	})

	t.Run("finished batch", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE batches").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM batches").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))
		if err := repo.MarkProcessing(context.Background(), "b1", started); !errors.Is(err, ErrAlreadyFinished) {
			t.Fatalf("expected ErrAlreadyFinished, got %v", err)
		}
	})

	t.Run("missing batch", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE batches").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM batches").WithArgs("b1").WillReturnError(sql.ErrNoRows)
		if err := repo.MarkProcessing(context.Background(), "b1", started); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPGRepoCompleteAndFail(t *testing.T) {
	repo, mock := newMockRepo(t)
	done := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE batches").
		WithArgs("b1", StatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), nil, done).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Complete(context.Background(), "b1", nil, analysis.Summary{}, "", done); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	mock.ExpectExec("UPDATE batches").
		WithArgs("b2", StatusFailed, "run batch: boom", done).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Fail(context.Background(), "b2", "run batch: boom", done); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
