// Package poller drives "submit, then poll by id" remote jobs to completion on
// a fixed interval with a hard attempt cap.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is what a single status check reports about the remote job.
type Status int

const (
	StatusRunning Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "running"
	}
}

// State is the poller's own lifecycle state.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

var (
	// ErrTaskFailed is returned when the remote job reports failure.
	ErrTaskFailed = errors.New("remote task failed")
	// ErrTimedOut is returned when MaxAttempts checks pass without a terminal status.
	ErrTimedOut = errors.New("remote task polling timed out")
)

// Check queries the job once. attempt is 1-based. Returning an error with a
// non-failed status aborts polling with that error; with StatusFailed the
// error is attached to ErrTaskFailed as the failure reason.
type Check[R any] func(ctx context.Context, attempt int) (Status, R, error)

// Poller holds the polling schedule.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep overrides the wait between checks. It must return ctx.Err() when
	// ctx is done first.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnState observes lifecycle transitions.
	OnState func(state State, attempt int)
}

// Poll runs check immediately and then every Interval until it reports a
// terminal status, MaxAttempts checks have run, or ctx is done. No wait
// follows the final attempt.
func Poll[R any](ctx context.Context, p Poller, check Check[R]) (R, error) {
	var zero R
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	p.notify(StateSubmitted, 0)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		p.notify(StatePolling, attempt)
		status, result, err := check(ctx, attempt)
		switch {
		case status == StatusFailed:
			p.notify(StateFailed, attempt)
			if err != nil {
				return zero, fmt.Errorf("%w: %w", ErrTaskFailed, err)
			}
			return zero, ErrTaskFailed
		case err != nil:
			return zero, err
		case status == StatusSucceeded:
			p.notify(StateSucceeded, attempt)
			return result, nil
		}
		if attempt == attempts {
			break
		}
		if err := p.sleep(ctx, p.Interval); err != nil {
			return zero, err
		}
	}

	p.notify(StateTimedOut, attempts)
	return zero, fmt.Errorf("%w after %d attempts", ErrTimedOut, attempts)
}

func (p Poller) notify(state State, attempt int) {
	if p.OnState != nil {
		p.OnState(state, attempt)
	}
}

func (p Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
