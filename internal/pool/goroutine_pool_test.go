package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoroutinePool_RunsTasks(t *testing.T) {
	p := NewGoroutinePool(Config{Workers: 3, QueueSize: 10})

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	p.Close(true)

	assert.Equal(t, int32(10), n.Load())
	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Completed)
}

func TestGoroutinePool_Full(t *testing.T) {
	p := NewGoroutinePool(Config{Workers: 1, QueueSize: 1})
	defer p.Close(false)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))

	err := p.Submit(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)
	close(release)
}

func TestGoroutinePool_PanicAndFailure(t *testing.T) {
	p := NewGoroutinePool(Config{Workers: 1, QueueSize: 4})
	require.NoError(t, p.Submit(func(ctx context.Context) error { panic("kaboom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { return errors.New("nope") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))
	p.Close(true)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestGoroutinePool_CloseCancelsRunning(t *testing.T) {
	p := NewGoroutinePool(Config{Workers: 1, QueueSize: 1})

	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	<-started

	done := make(chan struct{})
	go func() {
		p.Close(false)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close(false) did not return")
	}
	assert.True(t, cancelled.Load())
	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestGoroutinePool_TaskTimeout(t *testing.T) {
	p := NewGoroutinePool(Config{Workers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond})
	errCh := make(chan error, 1)
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}))
	p.Close(true)
	assert.ErrorIs(t, <-errCh, context.DeadlineExceeded)
}
