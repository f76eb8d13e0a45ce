package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SweepResult summarizes a sweep of stale render artifacts
type SweepResult struct {
	Removed int
	Bytes   int64
}

// SweepStale removes PNG files in dir older than maxAge. Files are normally
// deleted right after publishing; this catches what a crash left behind.
func SweepStale(dir string, maxAge time.Duration, logger *slog.Logger) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to read render dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		result.Removed++
		result.Bytes += info.Size()
	}

	if result.Removed > 0 {
		logger.Info("swept stale render artifacts",
			"removed", result.Removed,
			"freed", humanize.Bytes(uint64(result.Bytes)),
			"older_than", humanize.RelTime(cutoff, time.Now(), "ago", "from now"),
		)
	}

	return result, errors.Join(errs...)
}
