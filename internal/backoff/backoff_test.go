package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipper/internal/services"
)

// fakeClock drives the executor without real sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func newTestExecutor(base, max, ceiling time.Duration) (*Executor, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	exec := &Executor{
		Base:       base,
		Max:        max,
		MaxElapsed: ceiling,
		now:        clock.Now,
		sleep:      clock.Sleep,
	}
	return exec, clock
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	exec, _ := newTestExecutor(time.Second, 10*time.Second, 0)
	calls := 0
	err := exec.Execute(context.Background(), nil, "probe", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
}

func TestExecuteRetriesTransientUntilSuccess(t *testing.T) {
	exec, _ := newTestExecutor(2*time.Second, 300*time.Second, 0)
	var delays []time.Duration
	exec.OnAttempt = func(_ int, delay time.Duration, _ error) {
		delays = append(delays, delay)
	}
	calls := 0
	transient := services.Wrap(services.ErrMicroservice, "analyzing_audio", "transcribe", "connection refused", nil)
	err := exec.Execute(context.Background(), nil, "transcribe", func(context.Context) error {
		calls++
		if calls < 4 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("delay[%d] = %v, want %v", i, delays[i], d)
		}
	}
}

func TestExecuteCapsDelay(t *testing.T) {
	exec, _ := newTestExecutor(2*time.Second, 5*time.Second, 0)
	var delays []time.Duration
	exec.OnAttempt = func(_ int, delay time.Duration, _ error) {
		delays = append(delays, delay)
	}
	calls := 0
	err := exec.Execute(context.Background(), nil, "download", func(context.Context) error {
		calls++
		if calls < 5 {
			return services.Wrap(services.ErrMicroservice, "", "download", "timeout", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	// 2, 4, then capped at 5.
	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("delay[%d] = %v, want %v", i, delays[i], d)
		}
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	exec, _ := newTestExecutor(time.Second, 10*time.Second, 0)
	calls := 0
	fatal := services.Wrap(services.ErrValidation, "downloading_candidates", "validate", "zero frames", nil)
	err := exec.Execute(context.Background(), nil, "validate", func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute returned %v, want validation error", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error retried %d times", calls)
	}
}

func TestExecuteHonorsElapsedCeiling(t *testing.T) {
	exec, _ := newTestExecutor(10*time.Second, 100*time.Second, 25*time.Second)
	calls := 0
	err := exec.Execute(context.Background(), nil, "search", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrMicroservice, "", "search", "unavailable", nil)
	})
	if !errors.Is(err, services.ErrMicroservice) {
		t.Fatalf("Execute returned %v, want microservice error", err)
	}
	// 10s then 20s would exceed the 25s budget: two op calls, one sleep.
	if calls != 2 {
		t.Fatalf("op called %d times, want 2", calls)
	}
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	exec, _ := newTestExecutor(time.Second, 10*time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := exec.Execute(ctx, nil, "probe", func(context.Context) error {
		calls++
		cancel()
		return services.Wrap(services.ErrMicroservice, "", "probe", "reset", nil)
	})
	if !errors.Is(err, services.ErrMicroservice) {
		t.Fatalf("Execute returned %v, want the last transient error", err)
	}
	if calls != 1 {
		t.Fatalf("op called %d times after cancellation, want 1", calls)
	}
}
