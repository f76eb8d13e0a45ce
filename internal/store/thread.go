package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/hopperbot/internal/types"
)

// IndexedEntry is a thread index row together with the time it was written.
type IndexedEntry struct {
	types.ThreadEntry
	CreatedAt time.Time `json:"created_at"`
}

// PutThreadEntry records that a source tweet has been published. An entry
// for the same source tweet is never replaced; a second write returns
// ErrDuplicateKey.
func (s *Store) PutThreadEntry(ctx context.Context, e types.ThreadEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tweets (tweet_id, tweet_index, reblog_id, blogname)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tweet_id) DO NOTHING
	`, e.SourceID, e.Offset, e.PublishedID, e.Destination)
	if err != nil {
		return fmt.Errorf("failed to insert thread entry %d: %w", e.SourceID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert thread entry %d: %w", e.SourceID, err)
	}
	if n == 0 {
		return fmt.Errorf("thread entry %d: %w", e.SourceID, ErrDuplicateKey)
	}

	return nil
}

// GetThreadEntry looks up the entry for a source tweet. The bool is false
// when the tweet has never been published.
func (s *Store) GetThreadEntry(ctx context.Context, sourceID int64) (types.ThreadEntry, bool, error) {
	e := types.ThreadEntry{SourceID: sourceID}
	err := s.db.QueryRowContext(ctx, `
		SELECT tweet_index, reblog_id, blogname FROM tweets WHERE tweet_id = ?
	`, sourceID).Scan(&e.Offset, &e.PublishedID, &e.Destination)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ThreadEntry{}, false, nil
	}
	if err != nil {
		return types.ThreadEntry{}, false, fmt.Errorf("failed to read thread entry %d: %w", sourceID, err)
	}
	return e, true, nil
}

// ListThreadEntries returns the most recently written entries first
func (s *Store) ListThreadEntries(ctx context.Context, limit int) ([]IndexedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tweet_id, tweet_index, reblog_id, blogname, created_at
		FROM tweets
		ORDER BY created_at DESC, tweet_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread entries: %w", err)
	}
	defer rows.Close()

	var entries []IndexedEntry
	for rows.Next() {
		var e IndexedEntry
		if err := rows.Scan(&e.SourceID, &e.Offset, &e.PublishedID, &e.Destination, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountThreadEntries returns the number of published source tweets
func (s *Store) CountThreadEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	return n, err
}
