package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *blockingRunner) RunCycle(ctx context.Context) (Report, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return Report{CycleID: "test"}, nil
}

func TestScheduler_SkipsTriggerWhileRunning(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	recorder := newFakeRecorder()
	scheduler := NewScheduler(runner, time.Hour, quietLogger(), recorder)

	ctx := context.Background()
	require.True(t, scheduler.Trigger(ctx))
	assert.True(t, scheduler.Running())
	assert.False(t, scheduler.Trigger(ctx))
	assert.Equal(t, 1, recorder.skips())

	close(runner.release)
	require.Eventually(t, func() bool { return !scheduler.Running() }, time.Second, 5*time.Millisecond)

	assert.True(t, scheduler.Trigger(ctx))
	require.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunStartsImmediatelyAndStopsOnCancel(t *testing.T) {
	runner := &blockingRunner{}
	scheduler := NewScheduler(runner, time.Hour, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunTicks(t *testing.T) {
	runner := &blockingRunner{}
	scheduler := NewScheduler(runner, 10*time.Millisecond, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_SetRunner(t *testing.T) {
	first := &blockingRunner{}
	second := &blockingRunner{}
	scheduler := NewScheduler(first, time.Hour, quietLogger(), nil)

	scheduler.SetRunner(second)
	require.True(t, scheduler.Trigger(context.Background()))
	require.Eventually(t, func() bool { return second.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.calls.Load())
}
