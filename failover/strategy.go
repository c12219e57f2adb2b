// Package failover implements the retry/backoff engine: given a
// Strategy and an operation, retry on a classified-retryable error per
// this module's algorithm, recomputing the remaining deadline before
// each sleep. Grounded on x/mongo/driverx/driver.go's
// Retryable(err)/RetryMode pattern, generalized from its fixed
// retry-once-or-retry-until-deadline modes into the single
// (initial_delay, retries, delay_factor) parameterization this module names.
package failover

import (
	"context"
	"time"

	"github.com/corewire/mongodrv/internal/logger"
	"github.com/corewire/mongodrv/mongoerr"
)

// Strategy is the (initial_delay, retries, delay_factor) triple the
// retry algorithm is parameterized on. DelayFactor(attempt) scales
// InitialDelay for the attempt'th retry (attempt counts from 1).
type Strategy struct {
	InitialDelay time.Duration
	Retries      int
	DelayFactor  func(attempt int) int
}

// Linear returns a DelayFactor implementing a "factor=n->2n" backoff
// shape.
func Linear(multiplier int) func(attempt int) int {
	return func(attempt int) int { return attempt * multiplier }
}

// Operation is the retried unit of work.
type Operation[T any] func(ctx context.Context) (T, error)

// Execute runs operation, retrying on a mongoerr.Retryable error per
// this module's loop:
//
//	attempt = 0
//	loop:
//	  try operation()
//	  on success: return
//	  on non-retryable error: return error
//	  on retryable error:
//	    attempt += 1
//	    if attempt > strategy.retries: return error
//	    sleep(strategy.initial_delay * strategy.delay_factor(attempt))
//
// Before each sleep, the remaining context deadline is checked; if
// there isn't enough budget left for the computed delay, Execute
// returns mongoerr.Timeout immediately instead of sleeping past the
// deadline, per this module's "Timeouts" rule.
func Execute[T any](ctx context.Context, strategy Strategy, log *logger.Logger, op Operation[T]) (T, error) {
	var attempt int
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !mongoerr.Retryable(err) {
			var zero T
			return zero, err
		}

		attempt++
		if attempt > strategy.Retries {
			var zero T
			return zero, err
		}

		delay := strategy.InitialDelay * time.Duration(strategy.DelayFactor(attempt))

		if dl, ok := ctx.Deadline(); ok {
			if time.Until(dl) < delay {
				var zero T
				return zero, mongoerr.Timeout{Cause: err}
			}
		}

		logRetry(log, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, mongoerr.Cancelled{Cause: ctx.Err()}
		}
	}
}

func logRetry(log *logger.Logger, attempt int, delay time.Duration, cause error) {
	if log == nil {
		return
	}
	log.Print(logger.LevelDebug, logger.FailoverRetryMessage{
		Attempt: attempt,
		Delay:   delay.String(),
		Cause:   cause.Error(),
	})
}
