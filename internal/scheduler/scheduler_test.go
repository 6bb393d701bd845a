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

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New("UTC", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { <-s.Stop().Done() })
	return s
}

func noop(context.Context) error { return nil }

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t)
	assert.Error(t, s.AddJob("sync", "every tuesday-ish", noop))
	assert.Empty(t, s.ListJobs())
}

func TestAddJob_ListAndReplace(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()

	require.NoError(t, s.AddJob("sync", "@every 6h", noop))
	require.NoError(t, s.AddJob("cleanup", "0 3 * * *", noop))
	require.NoError(t, s.AddJob("sync", "@every 1h", noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "cleanup", jobs[0].Name)
	assert.Equal(t, "sync", jobs[1].Name)
	assert.WithinDuration(t, time.Now().Add(time.Hour), jobs[1].NextRun, 5*time.Second)

	s.RemoveJob("cleanup")
	assert.Len(t, s.ListJobs(), 1)
}

func TestScheduledJobRuns(t *testing.T) {
	s := newTestScheduler(t)
	ran := make(chan struct{}, 1)

	require.NoError(t, s.AddJob("tick", "@every 1s", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)
	boom := errors.New("boom")

	var deadline time.Time
	err := s.RunNow(context.Background(), "sync", func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestStopCancelsRunningJob(t *testing.T) {
	s, err := New("UTC", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunNow(context.Background(), "sync", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	<-s.Stop().Done()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
}

func TestRunNow_RefusesOverlap(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunNow(context.Background(), "sync", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := s.RunNow(context.Background(), "sync", noop)
	assert.ErrorIs(t, err, ErrJobRunning)

	// A different job name is not blocked.
	assert.NoError(t, s.RunNow(context.Background(), "other", noop))

	close(release)
	require.NoError(t, <-done)

	// Once the first run returns, the name is free again.
	assert.NoError(t, s.RunNow(context.Background(), "sync", noop))
}

func TestScheduledTickSkipsWhileRunNowHoldsJob(t *testing.T) {
	s := newTestScheduler(t)

	var ticks atomic.Int32
	require.NoError(t, s.AddJob("sync", "@every 1s", func(context.Context) error {
		ticks.Add(1)
		return nil
	}))

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- s.RunNow(context.Background(), "sync", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	s.Start()
	time.Sleep(2500 * time.Millisecond)
	assert.Zero(t, ticks.Load(), "a tick ran while RunNow held the job")

	close(release)
	require.NoError(t, <-done)
}

func TestRunNow_CallerContextCancels(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunNow(ctx, "sync", func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
