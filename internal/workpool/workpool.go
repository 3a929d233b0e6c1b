package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit is used when Options.Limit is not positive.
const DefaultLimit = 10

// Worker processes one item. index is the item's position in the input.
type Worker[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Options tunes a Run call.
type Options[T, R any] struct {
	// Limit caps the number of unsettled worker calls.
	Limit int
	// Fallback converts a worker failure into a result. When nil the zero
	// value of R is stored.
	Fallback func(index int, item T, err error) R
	// OnSettled is called once per settled item, after its result is stored.
	// Calls are serialized and completed increases by one each time.
	OnSettled func(completed, total int)
}

// Run processes items with at most opts.Limit workers in flight and returns a
// slice aligned with items. Once ctx is done no further items are admitted;
// running items finish and Run returns the partial results with ctx.Err().
func Run[T, R any](ctx context.Context, items []T, opts Options[T, R], worker Worker[T, R]) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, ctx.Err()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	slots := semaphore.NewWeighted(int64(limit))

	var (
		group     errgroup.Group
		mu        sync.Mutex
		completed int
	)
	settle := func(index int, result R) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = result
		completed++
		if opts.OnSettled != nil {
			opts.OnSettled(completed, len(items))
		}
	}

	var admitErr error
	for i := range items {
		// Acquire may succeed on a done context when a slot is free.
		if err := ctx.Err(); err != nil {
			admitErr = err
			break
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			admitErr = err
			break
		}
		index, item := i, items[i]
		group.Go(func() error {
			defer slots.Release(1)
			result, err := worker(ctx, index, item)
			if err != nil {
				if opts.Fallback != nil {
					result = opts.Fallback(index, item, err)
				} else {
					var zero R
					result = zero
				}
			}
			settle(index, result)
			return nil
		})
	}

	_ = group.Wait()
	if admitErr != nil {
		return results, admitErr
	}
	return results, ctx.Err()
}
