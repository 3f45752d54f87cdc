package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner processes a single request for the Dispatcher.
type Runner interface {
	// Run processes req to a terminal or processing outcome. It must not panic
	// across rows; the Dispatcher recovers and calls Abandon if it does.
	Run(ctx context.Context, req Request) Outcome
	// Abandon resolves a request that will not be run, with the reason.
	Abandon(req Request, cause error) Outcome
}

// Dispatcher runs requests through a bounded pool with staggered launches.
type Dispatcher struct {
	// Limit caps how many requests are being worked on at once.
	Limit int
	// Stagger delays the launch of request i until i*Stagger after dispatch start.
	Stagger time.Duration
}

// Dispatch runs every request and returns their outcomes in input order.
// Rows that were never launched, because ctx ended or the dispatch loop
// failed, are resolved through runner.Abandon. The returned error is the
// cancellation or dispatch failure, if any; outcomes are always complete.
func (d Dispatcher) Dispatch(ctx context.Context, reqs []Request, runner Runner) (outcomes []Outcome, err error) {
	outcomes = make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return outcomes, nil
	}

	limit := d.Limit
	if limit < 1 {
		limit = DefaultConcurrencyLimit
	}
	var g errgroup.Group
	g.SetLimit(limit)

	start := time.Now()
	launched := 0
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("dispatch: %v", rec)
			}
		}()
		for i, req := range reqs {
			ready := start.Add(time.Duration(i) * d.Stagger)
			if werr := sleepContext(ctx, time.Until(ready)); werr != nil {
				return
			}
			g.Go(func() error {
				outcomes[i] = runIsolated(ctx, runner, req)
				return nil
			})
			launched++
		}
	}()
	_ = g.Wait()

	if err == nil {
		err = ctx.Err()
	}
	if launched < len(reqs) {
		cause := err
		if cause == nil {
			cause = fmt.Errorf("dispatch stopped early")
		}
		for i := launched; i < len(reqs); i++ {
			outcomes[i] = runner.Abandon(reqs[i], cause)
		}
	}
	return outcomes, err
}

func runIsolated(ctx context.Context, runner Runner, req Request) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = runner.Abandon(req, fmt.Errorf("row panic: %v", rec))
		}
	}()
	if err := ctx.Err(); err != nil {
		return runner.Abandon(req, err)
	}
	return runner.Run(ctx, req)
}
