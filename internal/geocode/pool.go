package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/geolock/internal/metrics"
	"github.com/ukydev/geolock/internal/models"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent lookups when no size is given.
const DefaultWorkers = 4

// Pool runs resolver calls on a bounded set of background workers. Callers
// get a Future back immediately and wait on it without blocking their own loop
// beyond the wait itself.
type Pool struct {
	resolver Resolver
	sem      *semaphore.Weighted
}

// NewPool creates a pool allowing at most workers concurrent lookups.
func NewPool(r Resolver, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{resolver: r, sem: semaphore.NewWeighted(int64(workers))}
}

// Future is the pending result of a submitted lookup.
type Future struct {
	done chan struct{}
	addr models.ResolvedAddress
	err  error
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the lookup finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) (models.ResolvedAddress, error) {
	select {
	case <-f.done:
		return f.addr, f.err
	case <-ctx.Done():
		return models.ResolvedAddress{}, ctx.Err()
	}
}

// Submit schedules a lookup of c.
func (p *Pool) Submit(ctx context.Context, c models.Coordinate) *Future {
	f := &Future{done: make(chan struct{})}
	go p.run(ctx, c, f)
	return f
}

// Resolve submits a lookup and waits for it.
func (p *Pool) Resolve(ctx context.Context, c models.Coordinate) (models.ResolvedAddress, error) {
	return p.Submit(ctx, c).Wait(ctx)
}

func (p *Pool) run(ctx context.Context, c models.Coordinate, f *Future) {
	defer close(f.done)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		f.err = &ResolutionError{Kind: KindUnavailable, Coordinate: c, Err: err}
		return
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			f.err = &ResolutionError{Kind: KindUnavailable, Coordinate: c, Err: fmt.Errorf("resolver panic: %v", r)}
		}
	}()

	start := time.Now()
	f.addr, f.err = p.resolver.Reverse(ctx, c)
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())

	result := "success"
	if f.err != nil {
		result = string(KindOf(f.err))
		if result == "" {
			result = "error"
		}
	}
	metrics.ResolveTotal.WithLabelValues(result).Inc()
}
