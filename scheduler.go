package hashdag

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler bounds the number of concurrent recursive edit branches, per
// spec.md §5's "fan out up to 8 ways per node, gated by a fixed worker
// budget" requirement. It wraps golang.org/x/sync/errgroup for fork/join
// and golang.org/x/sync/semaphore.Weighted for the budget, the same pair
// vendored (for an unrelated purpose) under
// onflow-atree's go.sum-adjacent corpus and moby-moby's buildkit
// resolver/limited package.
type Scheduler struct {
	parallelism int64
	sem         *semaphore.Weighted
}

// NewScheduler returns a Scheduler admitting at most parallelism
// concurrently running branches. parallelism <= 0 is treated as 1.
func NewScheduler(parallelism int) *Scheduler {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Scheduler{
		parallelism: int64(parallelism),
		sem:         semaphore.NewWeighted(int64(parallelism)),
	}
}

// Parallelism returns the configured concurrency budget.
func (s *Scheduler) Parallelism() int { return int(s.parallelism) }

// schedulerTokenKey is the context key under which Fork stashes the
// release func for the worker token (if any) the calling goroutine is
// currently holding, so a nested Fork call can give it up before it
// blocks on its own join.
type schedulerTokenKey struct{}

// Fork runs fns, each under the scheduler's semaphore, and waits for all
// to finish, returning the first non-nil error. The context handed to
// each fn comes from errgroup.WithContext and is cancelled as soon as
// one fn fails: fns still waiting for a worker token then return the
// context error without running, while fns already running are not
// interrupted. A single fn is run inline on the calling goroutine,
// without taking a worker token.
//
// If ctx was handed down from an enclosing Fork call, the goroutine
// invoking this Fork is itself holding a worker token acquired by that
// outer call. That token is released before this call starts its own
// join: a recursive fan-out whose breadth at some level reaches the
// parallelism budget would otherwise have every branch holding a token
// while blocked waiting for its own children to acquire one, and none
// would ever become available.
func (s *Scheduler) Fork(ctx context.Context, fns ...func(context.Context) error) error {
	if len(fns) == 1 {
		return fns[0](ctx)
	}
	if release, ok := ctx.Value(schedulerTokenKey{}).(func()); ok {
		release()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			var released bool
			release := func() {
				if !released {
					released = true
					s.sem.Release(1)
				}
			}
			defer release()
			return fn(context.WithValue(gctx, schedulerTokenKey{}, release))
		})
	}
	return g.Wait()
}
