package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"row-analyzer/internal/classifier"
	"row-analyzer/internal/shared/metrics"
	"row-analyzer/internal/shared/telemetry"
)

const processingRawOutput = "Processing: request accepted by classifier"

// RetryPolicy bounds the attempts made for one request.
// Attempt a (a > 0) is preceded by a delay of a*BaseDelay.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

type disposition int

const (
	dispositionSuccess disposition = iota
	dispositionAccepted
	dispositionRetry
	dispositionFatal
)

func classifyStatus(code int) disposition {
	switch {
	case code == http.StatusAccepted:
		return dispositionAccepted
	case code >= 500 || code == http.StatusTooManyRequests:
		return dispositionRetry
	case code >= 200 && code < 300:
		return dispositionSuccess
	default:
		return dispositionFatal
	}
}

type retrier struct {
	client classifier.Client
	parser *Parser
	policy RetryPolicy
	events emitter
	sleep  func(context.Context, time.Duration) error
	now    func() time.Time
}

// attempt runs the request against the classifier until it succeeds, is
// accepted, fails permanently, or runs out of attempts. It returns the outcome
// together with the event kind that reports it.
func (r *retrier) attempt(ctx context.Context, req Request, text string, started time.Time) (Outcome, EventKind) {
	maxAttempts := r.policy.MaxRetries + 1
	failure := ""

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			r.events.rowRetry(req.ID, attempt+1, maxAttempts)
			metrics.IncRowsRetried()
			telemetry.Warn("analysis.row.retry", map[string]any{
				"row_id":       req.ID,
				"attempt":      attempt + 1,
				"max_attempts": maxAttempts,
				"reason":       failure,
			})
			if err := r.sleep(ctx, time.Duration(attempt)*r.policy.BaseDelay); err != nil {
				return errorOutcome(req, fmt.Sprintf("batch cancelled after %d attempts: %v", attempt, err), r.elapsed(started), attempt), EventRowError
			}
		}

		resp, err := r.call(ctx, text)
		if err != nil {
			if errors.Is(err, classifier.ErrNotConfigured) {
				return errorOutcome(req, classifier.ErrNotConfigured.Error(), r.elapsed(started), attempt+1), EventRowError
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errorOutcome(req, fmt.Sprintf("batch cancelled after %d attempts: %v", attempt+1, ctxErr), r.elapsed(started), attempt+1), EventRowError
			}
			failure = fmt.Sprintf("Request error after %d attempts: %s", maxAttempts, sanitizeError(err))
			continue
		}

		switch classifyStatus(resp.StatusCode) {
		case dispositionRetry:
			failure = fmt.Sprintf("Server error %d after %d attempts", resp.StatusCode, maxAttempts)
			continue
		case dispositionFatal:
			return errorOutcome(req, fmt.Sprintf("HTTP %d", resp.StatusCode), r.elapsed(started), attempt+1), EventRowError
		case dispositionAccepted:
			out := newOutcome(req)
			out.Result = Classification{PredictedClass: ClassProcessing}
			out.RawOutput = processingRawOutput
			out.ProcessingTime = r.elapsed(started)
			out.Attempts = attempt + 1
			return out, EventRowProcessing
		default:
			result, strategy := r.parser.ParseWith(resp.Body)
			if strategy == "default" {
				telemetry.Warn("analysis.row.unparsed", map[string]any{
					"row_id":   req.ID,
					"body_len": len(resp.Body),
				})
			}
			out := newOutcome(req)
			out.Result = result
			out.RawOutput = resp.Body
			out.ProcessingTime = r.elapsed(started)
			out.Attempts = attempt + 1
			return out, EventRowComplete
		}
	}

	return errorOutcome(req, failure, r.elapsed(started), maxAttempts), EventRowError
}

func (r *retrier) call(ctx context.Context, text string) (classifier.Response, error) {
	callCtx := ctx
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}
	return r.client.Classify(callCtx, text)
}

func (r *retrier) elapsed(started time.Time) float64 {
	d := r.now().Sub(started).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
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
