package batches

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"row-analyzer/internal/analysis"
	"row-analyzer/internal/queue"
	"row-analyzer/internal/shared/storage/object"
	"row-analyzer/internal/shared/telemetry"
)

const (
	DefaultMaxRows = 1000

	resultsContentType = "application/json"
	progressBuffer     = 64
)

// ErrNoResults is returned when a batch has no exported result document.
var ErrNoResults = errors.New("results not available")

// Service contains business logic for batches.
type Service struct {
	Repo         Repo
	Store        object.ObjectStore
	Queue        queue.Client
	Orchestrator *analysis.Orchestrator
	MaxRows      int
	Now          func() time.Time
	NewID        func() string

	wg sync.WaitGroup
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) maxRows() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return DefaultMaxRows
}

// Validate checks a submission before any work starts.
func (s *Service) Validate(reqs []analysis.Request) error {
	if len(reqs) == 0 {
		return invalid("rows", "at least one row is required")
	}
	if limit := s.maxRows(); len(reqs) > limit {
		return invalid("rows", "at most %d rows are allowed, got %d", limit, len(reqs))
	}
	seen := make(map[string]int, len(reqs))
	for i, r := range reqs {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return invalid(fmt.Sprintf("rows[%d].id", i), "id is required")
		}
		if prev, ok := seen[id]; ok {
			return invalid(fmt.Sprintf("rows[%d].id", i), "duplicate id %q (also rows[%d])", id, prev)
		}
		seen[id] = i
	}
	return nil
}

// Create stores a queued batch and hands it to the job queue, or to a
// background goroutine when no queue is configured.
func (s *Service) Create(ctx context.Context, userID string, reqs []analysis.Request) (Batch, error) {
	if userID == "" {
		return Batch{}, errors.New("userID is required")
	}
	if err := s.Validate(reqs); err != nil {
		return Batch{}, err
	}

	now := s.now()
	batch := Batch{
		ID:        s.newID(),
		UserID:    userID,
		Status:    StatusQueued,
		RowCount:  len(reqs),
		Rows:      append([]analysis.Request(nil), reqs...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, batch); err != nil {
		return Batch{}, fmt.Errorf("store batch: %w", err)
	}
	s.logStatus(ctx, batch, StatusQueued, "none->queued", nil)

	if s.Queue != nil {
		msg := queue.NewMessage(batch.ID, requestIDFromContext(ctx), now)
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.fail(ctx, batch, StatusQueued, fmt.Errorf("enqueue: %w", err), nil)
			return Batch{}, fmt.Errorf("enqueue batch %s: %w", batch.ID, err)
		}
		return batch, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processAsync(backgroundWithRequestID(ctx), batch)
	}()
	return batch, nil
}

// Wait blocks until batches started in the background have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) processAsync(ctx context.Context, batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, batch, StatusProcessing, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	if err := s.ProcessBatch(ctx, batch.ID); err != nil {
		telemetry.Error("batch.process.error", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"batch_id":   batch.ID,
			"error":      sanitizeError(err),
		})
	}
}

// ProcessBatch runs a stored batch through the orchestrator and records the
// outcome. Finished batches are skipped, so redelivered jobs are harmless.
// Cancellation leaves the batch in processing for a later retry.
func (s *Service) ProcessBatch(ctx context.Context, batchID string) error {
	if batchID == "" {
		return errors.New("batchID is required")
	}
	if s.Orchestrator == nil {
		return errors.New("orchestrator not configured")
	}

	batch, err := s.Repo.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("batch lookup id=%s: %w", batchID, err)
	}
	if batch.Finished() {
		telemetry.Info("batch.skip", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"batch_id":   batch.ID,
			"status":     batch.Status,
		})
		return nil
	}

	startedAt := s.now()
	if err := s.Repo.MarkProcessing(ctx, batchID, startedAt); err != nil {
		if errors.Is(err, ErrAlreadyFinished) {
			return nil
		}
		return fmt.Errorf("set processing id=%s: %w", batchID, err)
	}
	s.logStatus(ctx, batch, StatusProcessing, batch.Status+"->processing", nil)

	events := make(chan analysis.Event, progressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.logProgress(ctx, batch, events)
	}()
	outcomes, runErr := s.Orchestrator.RunBatch(ctx, batch.Rows, events)
	<-drained

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(runErr, ctxErr) {
			telemetry.Warn("batch.interrupted", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"batch_id":   batch.ID,
				"error":      sanitizeError(runErr),
			})
			return fmt.Errorf("process batch %s: %w", batchID, runErr)
		}
		s.fail(ctx, batch, StatusProcessing, runErr, &startedAt)
		return fmt.Errorf("process batch %s: %w", batchID, runErr)
	}

	summary := analysis.Summarize(outcomes)
	resultKey := s.exportResults(ctx, batch, outcomes, summary)
	completedAt := s.now()
	if err := s.Repo.Complete(ctx, batchID, outcomes, summary, resultKey, completedAt); err != nil {
		s.fail(ctx, batch, StatusProcessing, fmt.Errorf("store results: %w", err), &startedAt)
		return fmt.Errorf("store results id=%s: %w", batchID, err)
	}
	s.logStatus(ctx, batch, StatusCompleted, "processing->completed", map[string]any{
		"duration_ms": durationMs(startedAt, completedAt),
		"analyzed":    summary.Analyzed,
		"errors":      summary.Errors,
		"flagged":     summary.Flagged,
	})
	return nil
}

// Stream runs rows live, sending progress on events until it is closed.
// Nothing is persisted.
func (s *Service) Stream(ctx context.Context, reqs []analysis.Request, events chan<- analysis.Event) ([]analysis.Outcome, error) {
	if s.Orchestrator == nil {
		if events != nil {
			close(events)
		}
		return nil, errors.New("orchestrator not configured")
	}
	return s.Orchestrator.RunBatch(ctx, reqs, events)
}

// Analyze runs rows synchronously and returns the outcomes with their summary.
func (s *Service) Analyze(ctx context.Context, reqs []analysis.Request) ([]analysis.Outcome, analysis.Summary, error) {
	if err := s.Validate(reqs); err != nil {
		return nil, analysis.Summary{}, err
	}
	if s.Orchestrator == nil {
		return nil, analysis.Summary{}, errors.New("orchestrator not configured")
	}
	outcomes, err := s.Orchestrator.Run(ctx, reqs)
	if err != nil {
		return nil, analysis.Summary{}, err
	}
	return outcomes, analysis.Summarize(outcomes), nil
}

// Get returns a batch owned by userID. Batches of other users are reported as not found.
func (s *Service) Get(ctx context.Context, userID, batchID string) (Batch, error) {
	if batchID == "" {
		return Batch{}, errors.New("batchID is required")
	}
	batch, err := s.Repo.GetByID(ctx, batchID)
	if err != nil {
		return Batch{}, err
	}
	if batch.UserID != userID {
		return Batch{}, ErrNotFound
	}
	return batch, nil
}

// List returns a user's batches ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Batch, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// OpenResults opens the exported result document of a completed batch.
func (s *Service) OpenResults(ctx context.Context, userID, batchID string) (io.ReadCloser, error) {
	batch, err := s.Get(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	if s.Store == nil || batch.ResultKey == "" {
		return nil, ErrNoResults
	}
	rc, err := s.Store.Open(ctx, batch.ResultKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNoResults
		}
		return nil, err
	}
	return rc, nil
}

// ResultKey is the object key of a batch's exported results.
func ResultKey(batchID string) string {
	return "batches/" + batchID + "/results.json"
}

type resultDocument struct {
	BatchID     string             `json:"batchId"`
	UserID      string             `json:"userId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Summary     analysis.Summary   `json:"summary"`
	Results     []analysis.Outcome `json:"results"`
}

// exportResults writes the result document and returns its key. Export
// failures are logged and yield an empty key.
func (s *Service) exportResults(ctx context.Context, batch Batch, outcomes []analysis.Outcome, summary analysis.Summary) string {
	if s.Store == nil {
		return ""
	}
	payload, err := json.Marshal(resultDocument{
		BatchID:     batch.ID,
		UserID:      batch.UserID,
		GeneratedAt: s.now(),
		Summary:     summary,
		Results:     outcomes,
	})
	if err != nil {
		telemetry.Warn("batch.export.failed", map[string]any{"batch_id": batch.ID, "error": sanitizeError(err)})
		return ""
	}
	key := ResultKey(batch.ID)
	if _, err := s.Store.Put(ctx, key, resultsContentType, bytes.NewReader(payload)); err != nil {
		telemetry.Warn("batch.export.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"batch_id":   batch.ID,
			"key":        key,
			"error":      sanitizeError(err),
		})
		return ""
	}
	return key
}

func (s *Service) logProgress(ctx context.Context, batch Batch, events <-chan analysis.Event) {
	resolved := 0
	total := 0
	for ev := range events {
		switch ev.Kind {
		case analysis.EventStatus:
			total = ev.Total
		case analysis.EventRowComplete, analysis.EventRowError, analysis.EventRowProcessing:
			resolved++
			telemetry.Info("batch.progress", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"batch_id":   batch.ID,
				"row_id":     ev.ID,
				"event":      string(ev.Kind),
				"resolved":   resolved,
				"total":      total,
			})
		}
	}
}

func (s *Service) fail(ctx context.Context, batch Batch, from string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := s.now()
	if updateErr := s.Repo.Fail(context.Background(), batch.ID, msg, completedAt); updateErr != nil {
		telemetry.Error("batch.fail.update", map[string]any{
			"batch_id": batch.ID,
			"error":    sanitizeError(updateErr),
			"cause":    msg,
		})
	}
	fields := map[string]any{"error": msg}
	if startedAt != nil {
		fields["duration_ms"] = durationMs(*startedAt, completedAt)
	}
	s.logStatus(ctx, batch, StatusFailed, from+"->failed", fields)
}

func (s *Service) logStatus(ctx context.Context, batch Batch, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           batch.UserID,
		"batch_id":          batch.ID,
		"rows":              batch.RowCount,
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if status == StatusFailed {
		telemetry.Error("batch.status", fields)
		return
	}
	telemetry.Info("batch.status", fields)
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
