package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestScheduler_PausedFireIsSkipped(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Minute, func(context.Context) error {
		runs.Add(1)
		return nil
	}, testLogger())
	ctx := context.Background()

	s.Pause()
	assert.True(t, s.Paused())
	assert.False(t, s.fire(ctx))

	s.Resume()
	assert.True(t, s.fire(ctx))

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(1), s.Skipped())
	assert.Equal(t, int64(1), s.Fired())
}

func TestScheduler_BusyFireIsSkipped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	s := New(time.Minute, func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}, testLogger())
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- s.fire(ctx) }()
	<-started

	assert.False(t, s.fire(ctx))
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(1), s.Skipped())
}

func TestScheduler_PauseFromInsideTick(t *testing.T) {
	var s *Scheduler
	var runs atomic.Int32
	s = New(time.Minute, func(ctx context.Context) error {
		runs.Add(1)
		s.Pause()
		defer s.Resume()
		assert.False(t, s.fire(ctx))
		return nil
	}, testLogger())

	assert.True(t, s.fire(context.Background()))
	assert.False(t, s.Paused())
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_JobErrorDoesNotStop(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Minute, func(context.Context) error {
		runs.Add(1)
		return errors.New("rpc unavailable")
	}, testLogger())

	assert.True(t, s.fire(context.Background()))
	assert.True(t, s.fire(context.Background()))
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_RunFiresImmediately(t *testing.T) {
	ticked := make(chan struct{}, 1)
	s := New(time.Hour, func(context.Context) error {
		select {
		case ticked <- struct{}{}:
		default:
		}
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not fire")
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int64(1), s.Fired())
}

func TestScheduler_CancelledContextDoesNotFire(t *testing.T) {
	s := New(time.Minute, func(context.Context) error {
		t.Fatal("job ran after cancel")
		return nil
	}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.fire(ctx))
}
