package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DoReturnsTaskResult(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	assert.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))

	want := errors.New("quota exceeded")
	err := p.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestPool_RecoversPanic(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	err := p.Do(context.Background(), func(context.Context) error {
		panic("sheet handle gone")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "sheet handle gone")

	// The slot is released after a panic.
	assert.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, int64(0), p.InFlight())
}

func TestPool_Closed(t *testing.T) {
	p := NewPool(1)
	p.Close()
	p.Close()

	called := false
	err := p.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.False(t, called)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const limit = 3
	p := NewPool(limit)
	defer p.Close()

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestPool_ContextCancelledWhileWaitingForSlot(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := p.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	close(release)
}

func TestPool_CloseWaitsForRunningTasks(t *testing.T) {
	p := NewPool(2)

	started := make(chan struct{})
	var finished atomic.Bool
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		})
	}()
	<-started

	p.Close()
	assert.True(t, finished.Load())
}

func TestPool_ShutdownGivesUpOnStuckTask(t *testing.T) {
	p := NewPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.ErrorIs(t, p.Do(context.Background(), func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestPool_ShutdownWithoutTasks(t *testing.T) {
	p := NewPool(1)
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewPool_DefaultLimit(t *testing.T) {
	assert.Equal(t, int64(DefaultMaxInFlight), NewPool(0).Limit())
	assert.Equal(t, int64(5), NewPool(5).Limit())
}
