// Package fanout provides a bounded concurrent map over a slice of items.
// One item's failure never aborts its siblings; every item gets exactly one
// result-or-error slot in the output.
package fanout

import (
	"context"
	"sync"
)

// Result is the outcome of applying the function to a single item.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Map applies fn to every item with at most limit goroutines in flight.
// Results are returned in item order. A limit below 1 falls back to 1.
// Cancellation is observed between items: already-started calls run to
// completion, not-yet-started items fail with the context error.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Result[T, R] {
	if limit < 1 {
		limit = 1
	}

	results := make([]Result[T, R], len(items))
	semaphore := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()

			results[i].Item = item

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}
			defer func() { <-semaphore }()

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}

			results[i].Value, results[i].Err = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return results
}
