package failover_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corewire/mongodrv/failover"
	"github.com/corewire/mongodrv/mongoerr"
)

func TestExecuteSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	result, err := failover.Execute(context.Background(), failover.Strategy{
		InitialDelay: time.Millisecond,
		Retries:      3,
		DelayFactor:  failover.Linear(2),
	}, nil, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestExecuteNonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	_, err := failover.Execute(context.Background(), failover.Strategy{
		InitialDelay: time.Millisecond,
		Retries:      5,
		DelayFactor:  failover.Linear(2),
	}, nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, mongoerr.InvalidArgument{Reason: "bad"}
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
}

func TestExecuteAccumulatesDelaysPerFactor(t *testing.T) {
	var observed []int
	factor := func(attempt int) int {
		n := attempt * 2
		observed = append(observed, n)
		return n
	}

	strategy := failover.Strategy{
		InitialDelay: time.Microsecond, // keep the test fast; shape of accumulation is what's under test
		Retries:      20,
		DelayFactor:  factor,
	}

	calls := 0
	_, err := failover.Execute(context.Background(), strategy, nil, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, mongoerr.NetworkError{Cause: errors.New("unavailable")}
	})
	if err == nil {
		t.Fatalf("expected terminal error after exhausting retries")
	}
	if calls != 21 {
		t.Fatalf("expected 1 initial try + 20 retries = 21 calls, got %d", calls)
	}

	want := []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34, 36, 38, 40}
	if len(observed) != len(want) {
		t.Fatalf("expected %d recorded delays, got %d", len(want), len(observed))
	}
	for i, w := range want {
		if observed[i] != w {
			t.Fatalf("delay[%d] = %d, want %d", i, observed[i], w)
		}
	}
}

func TestExecuteReturnsTimeoutWhenDeadlineInsufficient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	strategy := failover.Strategy{
		InitialDelay: time.Second, // first retry delay far exceeds the context deadline
		Retries:      3,
		DelayFactor:  failover.Linear(1),
	}

	_, err := failover.Execute(ctx, strategy, nil, func(ctx context.Context) (int, error) {
		return 0, mongoerr.NetworkError{Cause: errors.New("down")}
	})

	var timeout mongoerr.Timeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected mongoerr.Timeout, got %v (%T)", err, err)
	}
}

func TestExecuteCancellationDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	strategy := failover.Strategy{
		InitialDelay: 50 * time.Millisecond,
		Retries:      5,
		DelayFactor:  failover.Linear(1),
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := failover.Execute(ctx, strategy, nil, func(ctx context.Context) (int, error) {
		return 0, mongoerr.NetworkError{Cause: errors.New("down")}
	})

	var cancelled mongoerr.Cancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected mongoerr.Cancelled, got %v (%T)", err, err)
	}
}
