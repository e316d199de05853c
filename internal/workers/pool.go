// Package workers runs independent numerical jobs (permutation rounds,
// per-batch prior fits) on a bounded set of goroutines.
package workers

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Run executes fn(ctx, i) for every i in [0, n) with at most limit jobs in
// flight. The first error cancels the context handed to the remaining jobs
// and is returned. Results must be written to per-index slots by fn, so the
// outcome never depends on scheduling order.
func Run(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) error {
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Limiter bounds how much matrix work runs at once across callers; each job
// acquires a weight proportional to its footprint.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
}

// NewLimiter creates a limiter with total capacity
func NewLimiter(capacity int64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(capacity), capacity: capacity}
}

// Do runs fn once weight units are available. Weights above capacity are clamped
// so oversized jobs run alone instead of blocking forever.
func (l *Limiter) Do(ctx context.Context, weight int64, fn func() error) error {
	if weight < 1 {
		weight = 1
	}
	if weight > l.capacity {
		weight = l.capacity
	}
	if err := l.sem.Acquire(ctx, weight); err != nil {
		return fmt.Errorf("waiting for compute capacity: %w", err)
	}
	defer l.sem.Release(weight)
	return fn()
}

// Capacity returns the total weight the limiter admits
func (l *Limiter) Capacity() int64 {
	return l.capacity
}
