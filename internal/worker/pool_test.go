package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Workers:         2,
		QueueSize:       8,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		AttemptTimeout:  time.Second,
	}
}

func startPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p := NewPool(cfg)
	p.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})
	return p
}

func TestPool_RunsTask(t *testing.T) {
	p := startPool(t, testConfig())

	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "once", Run: func(context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestPool_RetriesUntilSuccess(t *testing.T) {
	p := startPool(t, testConfig())

	var calls atomic.Int32
	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "flaky", MaxTries: 5, Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("gateway unavailable")
		}
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_PermanentErrorStopsRetries(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	p := startPool(t, cfg)

	var calls atomic.Int32
	require.NoError(t, p.Submit(Task{Name: "bad-token", MaxTries: 5, Run: func(context.Context) error {
		calls.Add(1)
		return backoff.Permanent(errors.New("token not registered"))
	}}))

	// A second task on the single worker only runs after the first finished.
	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "marker", Run: func(context.Context) error {
		close(done)
		return nil
	}}))
	<-done
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_SubmitQueueFull(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1})
	// Not started: nothing drains the queue.
	require.NoError(t, p.Submit(Task{Name: "a", Run: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, p.Submit(Task{Name: "b", Run: func(context.Context) error { return nil }}), ErrQueueFull)
}

func TestPool_StopDrainsAndRejects(t *testing.T) {
	p := NewPool(testConfig())
	p.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(Task{Name: "drain", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	assert.Equal(t, int32(4), ran.Load())
	assert.ErrorIs(t, p.Submit(Task{Name: "late", Run: func(context.Context) error { return nil }}), ErrPoolStopped)
}
