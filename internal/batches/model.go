package batches

import (
	"time"

	"row-analyzer/internal/analysis"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Batch is a stored set of rows analyzed by the worker.
type Batch struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	Status       string             `json:"status"`
	RowCount     int                `json:"rowCount"`
	Rows         []analysis.Request `json:"rows,omitempty"`
	Outcomes     []analysis.Outcome `json:"results,omitempty"`
	Summary      *analysis.Summary  `json:"summary,omitempty"`
	ResultKey    string             `json:"resultKey,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	StartedAt    *time.Time         `json:"startedAt,omitempty"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Finished reports whether the batch reached a terminal status.
func (b Batch) Finished() bool {
	return b.Status == StatusCompleted || b.Status == StatusFailed
}
