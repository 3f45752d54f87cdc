package batches

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"row-analyzer/internal/analysis"
	"row-analyzer/internal/shared/server/middleware"
	"row-analyzer/internal/shared/server/respond"
	"row-analyzer/internal/shared/telemetry"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	streamBuffer     = 16
)

// Handler wires HTTP handlers to the batches service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis and batch routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/analyze/stream", h.analyzeStream)
	rg.POST("/batches", h.createBatch)
	rg.GET("/batches", h.listBatches)
	rg.GET("/batches/:id", h.getBatch)
	rg.GET("/batches/:id/results", h.downloadResults)
}

// bindRows decodes and validates the request body, writing the error
// response itself when it fails.
func (h *Handler) bindRows(c *gin.Context) ([]analysis.Request, bool) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", []map[string]string{
			{"field": "body", "issue": err.Error()},
		})
		return nil, false
	}
	reqs := body.requests()
	c.Set("rowCount", len(reqs))
	if err := h.Svc.Validate(reqs); err != nil {
		writeValidation(c, err)
		return nil, false
	}
	return reqs, true
}

func writeValidation(c *gin.Context, err error) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid rows", []map[string]string{
		{"field": verr.Field, "issue": verr.Issue},
	})
	return true
}

func (h *Handler) analyze(c *gin.Context) {
	reqs, ok := h.bindRows(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	outcomes, summary, err := h.Svc.Analyze(ctx, reqs)
	if err != nil {
		if writeValidation(c, err) {
			return
		}
		respond.Error(c, http.StatusBadGateway, ErrorCodeInternal, "analysis failed", nil)
		return
	}
	respond.OK(c, analyzeResponse{Results: outcomes, Summary: summary})
}

// analyzeStream sends one server-sent event per progress event, named after
// the event kind. The connection stays open until the batch completes; a
// client disconnect cancels the remaining rows.
func (h *Handler) analyzeStream(c *gin.Context) {
	reqs, ok := h.bindRows(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	events := make(chan analysis.Event, streamBuffer)
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, runErr = h.Svc.Stream(ctx, reqs, events)
	}()

	respond.StreamHeaders(c)
	c.Status(http.StatusOK)
	for ev := range events {
		respond.Event(c, string(ev.Kind), ev)
	}
	<-done

	if runErr != nil && ctx.Err() == nil {
		telemetry.Error("analysis.stream.failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"rows":       len(reqs),
			"error":      sanitizeError(runErr),
		})
		respond.Event(c, "error", gin.H{"type": "error", "message": sanitizeError(runErr)})
	}
}

func (h *Handler) createBatch(c *gin.Context) {
	reqs, ok := h.bindRows(c)
	if !ok {
		return
	}
	userID := middleware.UserIDFromContext(c)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	batch, err := h.Svc.Create(ctx, userID, reqs)
	if err != nil {
		if writeValidation(c, err) {
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to create batch", nil)
		return
	}
	c.Set(middleware.BatchIDKey, batch.ID)
	respond.Accepted(c, createBatchResponse{
		BatchID:  batch.ID,
		Status:   batch.Status,
		RowCount: batch.RowCount,
	})
}

func (h *Handler) getBatch(c *gin.Context) {
	batchID := c.Param("id")
	c.Set(middleware.BatchIDKey, batchID)

	batch, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), batchID)
	if err != nil {
		h.writeLookupError(c, err, "failed to fetch batch")
		return
	}

	resp := gin.H{
		"batchId":   batch.ID,
		"status":    batch.Status,
		"rowCount":  batch.RowCount,
		"createdAt": batch.CreatedAt,
	}
	if batch.StartedAt != nil {
		resp["startedAt"] = batch.StartedAt
	}
	if batch.CompletedAt != nil {
		resp["completedAt"] = batch.CompletedAt
	}
	switch batch.Status {
	case StatusCompleted:
		resp["results"] = batch.Outcomes
		resp["summary"] = batch.Summary
		resp["resultsAvailable"] = batch.ResultKey != ""
	case StatusFailed:
		resp["error"] = batch.ErrorMessage
	}
	respond.OK(c, resp)
}

func (h *Handler) listBatches(c *gin.Context) {
	limit := defaultListLimit
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	batches, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list batches", nil)
		return
	}

	items := make([]batchListItem, 0, len(batches))
	for _, b := range batches {
		item := batchListItem{
			BatchID:   b.ID,
			Status:    b.Status,
			RowCount:  b.RowCount,
			Summary:   b.Summary,
			Error:     b.ErrorMessage,
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
		}
		if b.CompletedAt != nil {
			item.CompletedAt = b.CompletedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}
	respond.OK(c, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) downloadResults(c *gin.Context) {
	batchID := c.Param("id")
	c.Set(middleware.BatchIDKey, batchID)

	rc, err := h.Svc.OpenResults(c.Request.Context(), middleware.UserIDFromContext(c), batchID)
	if err != nil {
		if errors.Is(err, ErrNoResults) {
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "results not available", nil)
			return
		}
		h.writeLookupError(c, err, "failed to open results")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", resultsContentType)
	c.Header("Content-Disposition", `attachment; filename="`+batchID+`-results.json"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("batch.results.copy", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"batch_id":   batchID,
			"error":      sanitizeError(err),
		})
	}
}

func (h *Handler) writeLookupError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "batch not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, msg, nil)
}
