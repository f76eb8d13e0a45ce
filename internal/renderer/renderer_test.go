package renderer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r := New(config.Default().Renderer, t.TempDir(), nil, discardLogger())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRender_RejectsNegativeStart(t *testing.T) {
	r := newTestRenderer(t)

	files, err := r.Render(context.Background(), "https://twitter.com/a/status/1", "p", types.Range{Start: -1, Stop: 5, Step: 1})

	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "thread range should have positive start", err.Error())
	assert.Empty(t, files)
	assert.Nil(t, r.browserCtx, "browser must not be started")
}

func TestRender_RejectsNonPositiveStep(t *testing.T) {
	r := newTestRenderer(t)

	for _, step := range []int{-1, 0} {
		_, err := r.Render(context.Background(), "https://twitter.com/a/status/1", "p", types.Range{Start: 5, Stop: 1, Step: step})

		var rangeErr *InvalidRangeError
		require.True(t, errors.As(err, &rangeErr), "step %d", step)
		assert.Equal(t, "thread range should have positive step", err.Error())
	}
	assert.Nil(t, r.browserCtx, "browser must not be started")
}

func TestRender_AfterClose(t *testing.T) {
	r := newTestRenderer(t)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Render(context.Background(), "https://twitter.com/a/status/1", "p", types.NewRange(0, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestElementNotFoundError(t *testing.T) {
	err := error(&ElementNotFoundError{Index: 3})
	var notFound *ElementNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 3, notFound.Index)
	assert.Equal(t, "thread element 3 not found", err.Error())
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	write := func(name string, modTime time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
		require.NoError(t, os.Chtimes(path, modTime, modTime))
		return path
	}

	stale1 := write("a-0.png", old)
	stale2 := write("a-1.PNG", old)
	fresh := write("b-0.png", time.Now())
	other := write("notes.txt", old)

	result, err := SweepStale(dir, time.Hour, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Removed: 2, Bytes: 20}, result)

	assert.NoFileExists(t, stale1)
	assert.NoFileExists(t, stale2)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestSweepStale_MissingDir(t *testing.T) {
	result, err := SweepStale(filepath.Join(t.TempDir(), "nope"), time.Hour, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
}
