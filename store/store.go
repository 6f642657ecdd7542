// Package store is the on-device cache: a sqlite database holding the synced
// copy of events, their child records, purchases and the user profile, plus
// the per-entity sync cursors.
package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *dbx.DB
}

// Open opens (and if needed initializes) the cache database at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := dbx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Health verifies the database is reachable.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.NewQuery("SELECT 1").WithContext(ctx).Row(&one); err != nil {
		return fmt.Errorf("store.Health: %w", err)
	}
	return nil
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.NewQuery(stmt).Execute(); err != nil {
			return err
		}
	}
	return nil
}
