package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New("UTC", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func noop(context.Context) error { return nil }

func TestInvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob("stats", "*/30 * * * *", noop))
	require.NoError(t, s.AddJob("sweep", "0 * * * *", noop))
	assert.Error(t, s.AddJob("broken", "not a schedule", noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "stats", jobs[0].Name)
	assert.Equal(t, "sweep", jobs[1].Name)

	s.RemoveJob("stats")
	assert.Len(t, s.ListJobs(), 1)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	ran := false
	require.NoError(t, s.RunNow(context.Background(), "sweep", func(ctx context.Context) error {
		ran = true
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow(context.Background(), "sweep", func(context.Context) error { return boom }), boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddJob("sweep", "@every 1h", noop))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
