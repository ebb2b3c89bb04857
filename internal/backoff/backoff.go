// Package backoff retries transient collaborator failures with capped
// exponential delays. Only errors tagged as microservice failures are
// retried; validation, processing, and resource errors surface immediately.
package backoff

import (
	"context"
	"log/slog"
	"time"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Executor retries an operation with exponentially growing delays. Attempts
// are unbounded by count; an optional MaxElapsed ceiling bounds total time.
type Executor struct {
	// Base is the first retry delay. Each subsequent delay doubles.
	Base time.Duration
	// Max caps the delay between attempts.
	Max time.Duration
	// MaxElapsed, when positive, bounds the total time spent retrying.
	// Zero means retry until the context is cancelled.
	MaxElapsed time.Duration
	// OnAttempt, when set, is invoked before each sleep with the attempt
	// number (1-based), the upcoming delay, and the error that triggered
	// the retry.
	OnAttempt func(attempt int, delay time.Duration, err error)

	// now and sleep are overridable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an executor with the given base and cap.
func New(base, max time.Duration) *Executor {
	return &Executor{Base: base, Max: max}
}

// FromDurations builds an executor from configured second counts.
func FromDurations(baseSeconds, maxSeconds, ceilingSeconds int) *Executor {
	return &Executor{
		Base:       time.Duration(baseSeconds) * time.Second,
		Max:        time.Duration(maxSeconds) * time.Second,
		MaxElapsed: time.Duration(ceilingSeconds) * time.Second,
	}
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// context is cancelled, or the elapsed ceiling is exceeded.
func (e *Executor) Execute(ctx context.Context, logger *slog.Logger, operation string, op func(ctx context.Context) error) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := e.now
	if clock == nil {
		clock = time.Now
	}
	wait := e.sleep
	if wait == nil {
		wait = sleepContext
	}

	start := clock()
	delay := e.Base
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !services.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if e.MaxElapsed > 0 && clock().Sub(start)+delay > e.MaxElapsed {
			return services.Wrap(services.ErrMicroservice, "", operation, "retry budget exhausted", err)
		}
		if e.OnAttempt != nil {
			e.OnAttempt(attempt, delay, err)
		}
		logger.Warn("retrying after transient failure",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if waitErr := wait(ctx, delay); waitErr != nil {
			return err
		}
		delay *= 2
		if e.Max > 0 && delay > e.Max {
			delay = e.Max
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
