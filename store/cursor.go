package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
)

// GetCursor returns the stored sync cursor for an entity, or nil when the
// entity has never completed a sync (the next pass is a full sync).
func (s *Store) GetCursor(ctx context.Context, entity string) (*time.Time, error) {
	var raw string
	err := s.db.NewQuery("SELECT cursor FROM sync_state WHERE entity = {:entity}").
		Bind(dbx.Params{"entity": entity}).WithContext(ctx).Row(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.GetCursor: %w", err)
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("store.GetCursor: parse %q: %w", raw, err)
	}
	return &t, nil
}

// SetCursor records the cursor for an entity. Only called after the pass's
// transaction committed; a failed pass leaves the previous cursor intact.
func (s *Store) SetCursor(ctx context.Context, entity string, cursor time.Time) error {
	_, err := s.db.NewQuery(`
		INSERT INTO sync_state (entity, cursor) VALUES ({:entity}, {:cursor})
		ON CONFLICT(entity) DO UPDATE SET cursor = excluded.cursor`).
		Bind(dbx.Params{"entity": entity, "cursor": cursor.UTC().Format(timeLayout)}).
		WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store.SetCursor: %w", err)
	}
	return nil
}
