package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ibeckermayer/hopperbot/internal/people"
)

// AddPerson registers the person behind a Twitter user id. Like thread
// entries, an existing mapping is never replaced.
func (s *Store) AddPerson(ctx context.Context, twitterID int64, p people.Person) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO twitter_names (twitter_id, person) VALUES (?, ?)
		ON CONFLICT(twitter_id) DO NOTHING
	`, twitterID, p.Encode())
	if err != nil {
		return fmt.Errorf("failed to add person %d: %w", twitterID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to add person %d: %w", twitterID, err)
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", twitterID, ErrDuplicateKey)
	}
	return nil
}

// GetPerson looks up a single person
func (s *Store) GetPerson(ctx context.Context, twitterID int64) (people.Person, bool, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `SELECT person FROM twitter_names WHERE twitter_id = ?`, twitterID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return people.Person{}, false, nil
	}
	if err != nil {
		return people.Person{}, false, fmt.Errorf("failed to read person %d: %w", twitterID, err)
	}

	p, err := people.Parse(encoded)
	if err != nil {
		return people.Person{}, false, fmt.Errorf("twitter_names row %d: %w", twitterID, err)
	}
	return p, true, nil
}

// ListPeople returns every registered person keyed by Twitter user id
func (s *Store) ListPeople(ctx context.Context) (map[int64]people.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT twitter_id, person FROM twitter_names`)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]people.Person)
	for rows.Next() {
		var id int64
		var encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return nil, err
		}
		p, err := people.Parse(encoded)
		if err != nil {
			return nil, fmt.Errorf("twitter_names row %d: %w", id, err)
		}
		out[id] = p
	}
	return out, rows.Err()
}

// LoadDirectory reads the whole person table into an in-memory directory
func (s *Store) LoadDirectory(ctx context.Context) (*people.Directory, error) {
	all, err := s.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	return people.NewDirectory(all), nil
}
