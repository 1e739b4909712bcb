package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flusherFunc func(ctx context.Context) int

func (f flusherFunc) FlushDirty(ctx context.Context) int { return f(ctx) }

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeExpiredSessions(ctx context.Context) (int64, error) { return f(ctx) }

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestScheduleFlush_Runs(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	require.NoError(t, s.ScheduleFlush(10*time.Millisecond, flusherFunc(func(context.Context) int {
		calls.Add(1)
		return 1
	})))

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduleSessionCleanup_ErrorDoesNotStopJob(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	require.NoError(t, s.ScheduleSessionCleanup(10*time.Millisecond, purgerFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, errors.New("db down")
	})))

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := newTestScheduler(t)
	started := make(chan struct{})
	var once atomic.Bool
	require.NoError(t, s.Every("blocking", 10*time.Millisecond, func(ctx context.Context) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}
	require.NoError(t, s.Stop())
}

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s := newTestScheduler(t)
	defer func() { _ = s.Stop() }()
	assert.Error(t, s.Every("never", 0, func(context.Context) {}))
}
