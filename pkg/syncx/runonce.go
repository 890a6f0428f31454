// Package syncx has small concurrency helpers that don't exist in sync.
package syncx

import (
	"context"
	"sync"
	"time"
)

// DefaultRunOnceTimeout is how long concurrent callers wait for the running
// call before giving up and running the task themselves.
const DefaultRunOnceTimeout = time.Second

// BestEffortRunOnceTask collapses concurrent invocations of a task into one.
//
// The first caller of Run executes the task. Anyone calling Run while that
// execution is in flight waits for it and gets the same result. If the wait
// exceeds the timeout the waiter runs the task on its own, so it is only
// "best effort" once.
type BestEffortRunOnceTask[T any] struct {
	timeout time.Duration
	fn      func(context.Context) T

	mu  sync.Mutex
	cur *round[T]
}

type round[T any] struct {
	done  chan struct{}
	value T
	ok    bool
}

// NewBestEffortRunOnceTask returns a task running fn. A non-positive timeout
// means DefaultRunOnceTimeout.
func NewBestEffortRunOnceTask[T any](timeout time.Duration, fn func(context.Context) T) *BestEffortRunOnceTask[T] {
	if timeout <= 0 {
		timeout = DefaultRunOnceTimeout
	}
	return &BestEffortRunOnceTask[T]{timeout: timeout, fn: fn}
}

// Run executes the task or joins an in-flight execution. The bool is false
// when no result could be obtained: the running call panicked or ctx ended
// while waiting.
func (t *BestEffortRunOnceTask[T]) Run(ctx context.Context) (T, bool) {
	t.mu.Lock()
	if r := t.cur; r != nil {
		t.mu.Unlock()
		return t.wait(ctx, r)
	}

	r := &round[T]{done: make(chan struct{})}
	t.cur = r
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.cur = nil
		t.mu.Unlock()
		close(r.done)
	}()

	r.value = t.fn(ctx)
	r.ok = true
	return r.value, true
}

func (t *BestEffortRunOnceTask[T]) wait(ctx context.Context, r *round[T]) (T, bool) {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return r.value, r.ok
	case <-timer.C:
		// Running call is stuck, do it ourselves.
		return t.fn(ctx), true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}
