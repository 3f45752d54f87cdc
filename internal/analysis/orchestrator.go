package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"row-analyzer/internal/classifier"
	"row-analyzer/internal/shared/metrics"
	"row-analyzer/internal/shared/telemetry"
)

const (
	DefaultConcurrencyLimit = 5
	DefaultStaggerInterval  = 1000 * time.Millisecond
	DefaultMaxRetries       = 3
	DefaultRetryBaseDelay   = 10 * time.Second
	DefaultAttemptTimeout   = 600 * time.Second

	noInputRawOutput = "No justification text provided"
)

// Config controls batch scheduling and retry behavior. Start from
// DefaultConfig; a zero MaxRetries means a single attempt.
type Config struct {
	ConcurrencyLimit int
	StaggerInterval  time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	AttemptTimeout   time.Duration
	ConfidenceAdjust bool
	Labels           Labels
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: DefaultConcurrencyLimit,
		StaggerInterval:  DefaultStaggerInterval,
		MaxRetries:       DefaultMaxRetries,
		RetryBaseDelay:   DefaultRetryBaseDelay,
		AttemptTimeout:   DefaultAttemptTimeout,
		ConfidenceAdjust: true,
		Labels:           DefaultLabels(),
	}
}

func (c Config) normalized() Config {
	if c.ConcurrencyLimit < 1 {
		c.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if c.StaggerInterval < 0 {
		c.StaggerInterval = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.Labels.Primary == "" {
		c.Labels.Primary = DefaultPrimaryLabel
	}
	if c.Labels.Secondary == "" {
		c.Labels.Secondary = DefaultSecondaryLabel
	}
	return c
}

// Orchestrator is the single entry point for running a batch of rows.
type Orchestrator struct {
	cfg      Config
	client   classifier.Client
	parser   *Parser
	adjuster Adjuster
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	dispatch dispatchFunc
}

type dispatchFunc func(ctx context.Context, reqs []Request, runner Runner) ([]Outcome, error)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithParser replaces the response parser.
func WithParser(p *Parser) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithAdjuster replaces the confidence adjuster, regardless of Config.ConfidenceAdjust.
func WithAdjuster(a Adjuster) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.adjuster = a
		}
	}
}

// WithSleeper replaces the backoff sleep between attempts.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithClock replaces the time source used for processing times and events.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// withDispatch replaces the row dispatcher.
func withDispatch(fn dispatchFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.dispatch = fn
		}
	}
}

// New builds an Orchestrator. A nil client behaves as an unconfigured endpoint.
func New(cfg Config, client classifier.Client, opts ...Option) *Orchestrator {
	if client == nil {
		client = classifier.Unconfigured{}
	}
	cfg = cfg.normalized()
	o := &Orchestrator{
		cfg:    cfg,
		client: client,
		parser: DefaultParser(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	o.dispatch = Dispatcher{Limit: cfg.ConcurrencyLimit, Stagger: cfg.StaggerInterval}.Dispatch
	if cfg.ConfidenceAdjust {
		o.adjuster = NewBandAdjuster(nil)
	} else {
		o.adjuster = NoopAdjuster{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the normalized configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Run is RunBatch without progress events.
func (o *Orchestrator) Run(ctx context.Context, reqs []Request) ([]Outcome, error) {
	return o.RunBatch(ctx, reqs, nil)
}

// RunBatch processes the included requests and returns their outcomes in
// input order. Progress is sent on events, which is closed before RunBatch
// returns; the caller must keep receiving until then. A nil channel disables
// progress events.
//
// A dispatch failure after at least one row has run to completion is logged
// and the outcomes are returned with a nil error. Rows the dispatcher gave up
// on without running them do not count. Cancellation of ctx is always
// reported, together with the outcomes produced so far.
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []Request, events chan<- Event) ([]Outcome, error) {
	if events != nil {
		defer close(events)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	selected := Selected(reqs)
	total := len(selected)
	em := emitter{ch: events, now: o.now}
	started := o.now()

	em.emit(Event{Kind: EventStatus, Total: total, Message: fmt.Sprintf("Starting analysis for %d rows", total)})
	metrics.IncBatchesStarted()
	telemetry.Info("analysis.batch.start", map[string]any{
		"rows":        total,
		"submitted":   len(reqs),
		"concurrency": o.cfg.ConcurrencyLimit,
		"stagger_ms":  o.cfg.StaggerInterval.Milliseconds(),
		"max_retries": o.cfg.MaxRetries,
	})

	runner := &rowRunner{
		orch:   o,
		events: em,
		retry: &retrier{
			client: o.client,
			parser: o.parser,
			policy: RetryPolicy{
				MaxRetries:     o.cfg.MaxRetries,
				BaseDelay:      o.cfg.RetryBaseDelay,
				AttemptTimeout: o.cfg.AttemptTimeout,
			},
			events: em,
			sleep:  o.sleep,
			now:    o.now,
		},
	}

	outcomes, err := o.dispatch(ctx, selected, runner)

	em.emit(Event{Kind: EventComplete, Total: total, Message: fmt.Sprintf("Analysis complete for %d rows", total)})

	fields := map[string]any{
		"rows":        total,
		"resolved":    runner.resolved.Load(),
		"completed":   runner.completed.Load(),
		"duration_ms": float64(o.now().Sub(started).Microseconds()) / 1000.0,
	}
	if err != nil {
		fields["error"] = sanitizeError(err)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			telemetry.Warn("analysis.batch.cancelled", fields)
			return outcomes, err
		}
		if runner.completed.Load() > 0 {
			telemetry.Warn("analysis.batch.partial", fields)
			return outcomes, nil
		}
		telemetry.Error("analysis.batch.failed", fields)
		return nil, fmt.Errorf("run batch: %w", err)
	}
	telemetry.Info("analysis.batch.complete", fields)
	return outcomes, nil
}

// rowRunner carries one batch's per-row pipeline.
type rowRunner struct {
	orch   *Orchestrator
	events emitter
	retry  *retrier

	// resolved counts rows reported as row_complete or row_error.
	resolved atomic.Int64
	// completed counts the subset of resolved rows that went through Run.
	completed atomic.Int64
}

func (r *rowRunner) Run(ctx context.Context, req Request) Outcome {
	started := r.orch.now()
	r.events.rowStart(req.ID)
	metrics.IncRowsStarted()

	text := req.CombinedText(r.orch.cfg.Labels)
	if text == "" {
		out := newOutcome(req)
		out.Result = Classification{PredictedClass: 0, Probability0: 1.0, Probability1: 0.0}
		out.RawOutput = noInputRawOutput
		out.ProcessingTime = r.retry.elapsed(started)
		return r.finish(EventRowComplete, out)
	}

	out, kind := r.retry.attempt(ctx, req, text, started)
	return r.finish(kind, out)
}

func (r *rowRunner) finish(kind EventKind, out Outcome) Outcome {
	out = r.resolve(kind, out)
	if kind.Terminal() {
		r.completed.Add(1)
	}
	return out
}

func (r *rowRunner) Abandon(req Request, cause error) Outcome {
	out := errorOutcome(req, fmt.Sprintf("row not processed: %s", sanitizeError(cause)), 0, 0)
	return r.resolve(EventRowError, out)
}

func (r *rowRunner) resolve(kind EventKind, out Outcome) Outcome {
	fields := map[string]any{
		"row_id":          out.ID,
		"attempts":        out.Attempts,
		"processing_time": out.ProcessingTime,
	}
	switch kind {
	case EventRowComplete:
		out = r.orch.adjuster.Adjust(out)
		metrics.IncRowsCompleted()
		fields["predicted_class"] = out.Result.PredictedClass
		fields["probability_0"] = out.Result.Probability0
		fields["probability_1"] = out.Result.Probability1
		telemetry.Info("analysis.row.complete", fields)
	case EventRowProcessing:
		metrics.IncRowsProcessing()
		telemetry.Info("analysis.row.processing", fields)
	default:
		kind = EventRowError
		metrics.IncRowsFailed()
		fields["error"] = out.Error
		telemetry.Error("analysis.row.error", fields)
	}
	metrics.ObserveRowDurationMs(out.ProcessingTime * 1000)
	if kind.Terminal() {
		r.resolved.Add(1)
	}
	r.events.rowResolved(kind, out)
	return out
}
