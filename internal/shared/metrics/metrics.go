package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	batchesTotal        atomic.Uint64
	rowsStartedTotal    atomic.Uint64
	rowsCompletedTotal  atomic.Uint64
	rowsFailedTotal     atomic.Uint64
	rowsProcessingTotal atomic.Uint64
	rowsRetriedTotal    atomic.Uint64

	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsUnrecoverableTotal atomic.Uint64

	rowDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 300000, 600000})
)

// IncBatchesStarted counts a batch handed to the orchestrator.
func IncBatchesStarted() {
	batchesTotal.Add(1)
}

// IncRowsStarted counts a row picked up by a worker.
func IncRowsStarted() {
	rowsStartedTotal.Add(1)
}

// IncRowsCompleted counts a row resolved with a classification.
func IncRowsCompleted() {
	rowsCompletedTotal.Add(1)
}

// IncRowsFailed counts a row resolved with an error.
func IncRowsFailed() {
	rowsFailedTotal.Add(1)
}

// IncRowsProcessing counts a row the classifier accepted without a result.
func IncRowsProcessing() {
	rowsProcessingTotal.Add(1)
}

// IncRowsRetried counts a retry attempt.
func IncRowsRetried() {
	rowsRetriedTotal.Add(1)
}

// IncJobsReceived counts a batch job pulled from the queue.
func IncJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobsCompleted counts a batch job processed and acknowledged.
func IncJobsCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobsFailed counts a batch job left on the queue for redelivery.
func IncJobsFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobsDeletedUnrecoverable counts malformed jobs dropped from the queue.
func IncJobsDeletedUnrecoverable() {
	jobsUnrecoverableTotal.Add(1)
}

// ObserveRowDurationMs records a row's processing time in milliseconds.
func ObserveRowDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	rowDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_batches_total", "Total batches started", batchesTotal.Load())
	writeCounter(&buf, "analysis_rows_started_total", "Total rows picked up by a worker", rowsStartedTotal.Load())
	writeCounter(&buf, "analysis_rows_completed_total", "Total rows classified", rowsCompletedTotal.Load())
	writeCounter(&buf, "analysis_rows_failed_total", "Total rows resolved with an error", rowsFailedTotal.Load())
	writeCounter(&buf, "analysis_rows_processing_total", "Total rows accepted without a result", rowsProcessingTotal.Load())
	writeCounter(&buf, "analysis_rows_retried_total", "Total row retry attempts", rowsRetriedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Total batch jobs received from the queue", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Total batch jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Total batch jobs failed and left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_deleted_unrecoverable_total", "Total malformed batch jobs deleted", jobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "analysis_row_duration_ms", "Row processing time in milliseconds", rowDuration.Snapshot())
	return buf.String()
}

// histogram keeps per-bucket counts; cumulation happens at render time.
type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
