package hashdag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerForkRunsAllTasks(t *testing.T) {
	s := NewScheduler(4)
	var count atomic.Int32

	fns := make([]func(context.Context) error, 8)
	for i := range fns {
		fns[i] = func(context.Context) error {
			count.Add(1)
			return nil
		}
	}

	err := s.Fork(context.Background(), fns...)
	require.NoError(t, err)
	require.Equal(t, int32(8), count.Load())
}

func TestSchedulerForkPropagatesFirstError(t *testing.T) {
	s := NewScheduler(2)
	boom := errors.New("boom")

	fns := []func(context.Context) error{
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
		func(context.Context) error { return nil },
	}

	err := s.Fork(context.Background(), fns...)
	require.ErrorIs(t, err, boom)
}

func TestSchedulerForkSingleRunsInline(t *testing.T) {
	s := NewScheduler(1)
	ran := false
	err := s.Fork(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestNewSchedulerClampsNonPositiveParallelism(t *testing.T) {
	s := NewScheduler(0)
	require.Equal(t, 1, s.Parallelism())
}

// TestSchedulerForkNestedBreadthDoesNotDeadlock recurses a fixed number
// of levels, forking 8 ways at every level, with a parallelism budget far
// smaller than the breadth. A goroutine that held its worker token across
// its own nested join would exhaust the budget on the first level and
// hang forever waiting for grandchildren that can never acquire one; this
// must complete.
func TestSchedulerForkNestedBreadthDoesNotDeadlock(t *testing.T) {
	s := NewScheduler(2)
	var leaves atomic.Int32

	var recurse func(ctx context.Context, depth int) error
	recurse = func(ctx context.Context, depth int) error {
		if depth == 0 {
			leaves.Add(1)
			return nil
		}
		fns := make([]func(context.Context) error, 8)
		for i := 0; i < 8; i++ {
			fns[i] = func(ctx context.Context) error {
				return recurse(ctx, depth-1)
			}
		}
		return s.Fork(ctx, fns...)
	}

	done := make(chan error, 1)
	go func() { done <- recurse(context.Background(), 3) }()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Equal(t, int32(8*8*8), leaves.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Fork deadlocked on nested breadth exceeding parallelism")
	}
}
