package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelforge/internal/poller"
)

func recordingSleep(calls *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*calls = append(*calls, d)
		return ctx.Err()
	}
}

func TestPollReturnsOnFirstSuccess(t *testing.T) {
	var sleeps []time.Duration
	p := poller.Poller{Interval: 2 * time.Second, MaxAttempts: 30, Sleep: recordingSleep(&sleeps)}

	got, err := poller.Poll(context.Background(), p, func(ctx context.Context, attempt int) (poller.Status, string, error) {
		return poller.StatusSucceeded, "https://example.com/transcript.json", nil
	})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if got != "https://example.com/transcript.json" {
		t.Fatalf("unexpected result %q", got)
	}
	if len(sleeps) != 0 {
		t.Fatalf("expected no waits before first check, got %v", sleeps)
	}
}

func TestPollWaitsBetweenRunningChecks(t *testing.T) {
	var sleeps []time.Duration
	var states []poller.State
	p := poller.Poller{
		Interval:    time.Second,
		MaxAttempts: 5,
		Sleep:       recordingSleep(&sleeps),
		OnState:     func(s poller.State, _ int) { states = append(states, s) },
	}

	got, err := poller.Poll(context.Background(), p, func(ctx context.Context, attempt int) (poller.Status, int, error) {
		if attempt < 3 {
			return poller.StatusRunning, 0, nil
		}
		return poller.StatusSucceeded, attempt, nil
	})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if got != 3 {
		t.Fatalf("result = %d, want 3", got)
	}
	if len(sleeps) != 2 || sleeps[0] != time.Second {
		t.Fatalf("unexpected sleeps %v", sleeps)
	}
	if states[0] != poller.StateSubmitted || states[len(states)-1] != poller.StateSucceeded {
		t.Fatalf("unexpected states %v", states)
	}
}

func TestPollStopsOnFailure(t *testing.T) {
	calls := 0
	reason := errors.New("audio unreadable")
	_, err := poller.Poll(context.Background(), poller.Poller{Interval: time.Hour, MaxAttempts: 30},
		func(ctx context.Context, attempt int) (poller.Status, string, error) {
			calls++
			return poller.StatusFailed, "", reason
		})
	if !errors.Is(err, poller.ErrTaskFailed) || !errors.Is(err, reason) {
		t.Fatalf("expected task failure with reason, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single check, got %d", calls)
	}
}

func TestPollSurfacesCheckErrors(t *testing.T) {
	boom := errors.New("http 500")
	_, err := poller.Poll(context.Background(), poller.Poller{Interval: time.Hour, MaxAttempts: 3},
		func(ctx context.Context, attempt int) (poller.Status, string, error) {
			return poller.StatusRunning, "", boom
		})
	if !errors.Is(err, boom) || errors.Is(err, poller.ErrTaskFailed) {
		t.Fatalf("expected raw check error, got %v", err)
	}
}

func TestPollTimesOutWithinBudget(t *testing.T) {
	const attempts = 5
	const interval = 10 * time.Millisecond
	var states []poller.State
	p := poller.Poller{Interval: interval, MaxAttempts: attempts, OnState: func(s poller.State, _ int) { states = append(states, s) }}

	calls := 0
	start := time.Now()
	_, err := poller.Poll(context.Background(), p, func(ctx context.Context, attempt int) (poller.Status, string, error) {
		calls++
		return poller.StatusRunning, "", nil
	})
	elapsed := time.Since(start)

	if !errors.Is(err, poller.ErrTimedOut) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if calls != attempts {
		t.Fatalf("calls = %d, want %d", calls, attempts)
	}
	// attempts-1 waits; allow generous scheduling slack below the hard budget.
	if elapsed >= attempts*interval+200*time.Millisecond {
		t.Fatalf("polling took %v, budget %v", elapsed, attempts*interval)
	}
	if states[len(states)-1] != poller.StateTimedOut {
		t.Fatalf("unexpected final state %v", states[len(states)-1])
	}
}

func TestPollIsPreemptedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := poller.Poller{Interval: time.Hour, MaxAttempts: 10}

	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(ctx, p, func(ctx context.Context, attempt int) (poller.Status, string, error) {
			return poller.StatusRunning, "", nil
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll was not preempted by cancellation")
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := poller.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := poller.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep returned %v", err)
	}
}
