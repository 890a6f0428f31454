package syncx_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/syncx"
	"github.com/stretchr/testify/require"
)

func TestBestEffortRunOnceTask_CollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})

	task := syncx.NewBestEffortRunOnceTask(time.Second, func(context.Context) int {
		n := calls.Add(1)
		<-release
		return int(n)
	})

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)

	// First caller grabs the round.
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, ok := task.Run(context.Background())
		require.True(t, ok)
		results[0] = v
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	for i := 1; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, ok := task.Run(context.Background())
			require.True(t, ok)
			results[i] = v
		}(i)
	}

	// Give the waiters a moment to queue up on the gate before letting go.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.Equal(t, 1, r)
	}
}

func TestBestEffortRunOnceTask_WaiterRunsAfterTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	block := make(chan struct{})
	defer close(block)

	task := syncx.NewBestEffortRunOnceTask(10*time.Millisecond, func(context.Context) int {
		n := calls.Add(1)
		if n == 1 {
			<-block
		}
		return int(n)
	})

	go task.Run(context.Background())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	v, ok := task.Run(context.Background())
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestBestEffortRunOnceTask_SequentialCallsRunAgain(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	task := syncx.NewBestEffortRunOnceTask(0, func(context.Context) int32 {
		return calls.Add(1)
	})

	a, _ := task.Run(context.Background())
	b, _ := task.Run(context.Background())
	require.Equal(t, int32(1), a)
	require.Equal(t, int32(2), b)
}

func TestBestEffortRunOnceTask_PanicYieldsNoResult(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	task := syncx.NewBestEffortRunOnceTask(time.Second, func(context.Context) string {
		if calls.Add(1) > 1 {
			return "late"
		}
		close(started)
		<-release
		panic("boom")
	})

	go func() {
		defer func() { _ = recover() }()
		task.Run(context.Background())
	}()
	<-started

	done := make(chan bool)
	go func() {
		_, ok := task.Run(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	require.False(t, <-done)
}
