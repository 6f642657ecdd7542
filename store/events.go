package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"memberhub/models"
)

const timeLayout = time.RFC3339Nano

// SyncResult counts the local writes a sync pass actually performed.
type SyncResult struct {
	Upserts int
	Deletes int
}

// Changed reports whether the pass wrote anything.
func (r SyncResult) Changed() bool { return r.Upserts > 0 || r.Deletes > 0 }

type eventRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Summary          string         `db:"summary"`
	Description      string         `db:"description"`
	Location         string         `db:"location"`
	Category         string         `db:"category"`
	ImageURL         string         `db:"image_url"`
	Link             string         `db:"link"`
	StartsAt         sql.NullString `db:"starts_at"`
	UsesPanthi       bool           `db:"uses_panthi"`
	TicketsOpen      sql.NullBool   `db:"tickets_open"`
	RegistrationOpen sql.NullBool   `db:"registration_open"`
	UpdatedAt        string         `db:"updated_at"`
}

func (r *eventRow) toModel() models.Event {
	ev := models.Event{
		ID:          r.ID,
		Title:       r.Title,
		Summary:     r.Summary,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Link:        r.Link,
		UsesPanthi:  r.UsesPanthi,
	}
	ev.StartsAt = parseNullTime(r.StartsAt)
	if r.TicketsOpen.Valid {
		ev.TicketsOpen = models.FlexBool{Value: r.TicketsOpen.Bool, Valid: true}
	}
	if r.RegistrationOpen.Valid {
		ev.RegistrationOpen = models.FlexBool{Value: r.RegistrationOpen.Bool, Valid: true}
	}
	if t, err := time.Parse(timeLayout, r.UpdatedAt); err == nil {
		ev.UpdatedAt = t
	}
	return ev
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func flexToParam(f models.FlexBool) any {
	if !f.Valid {
		return nil
	}
	return f.Value
}

// ApplyEventSync commits one sync pass in a single transaction: upserts the
// changed events (with their child records) keyed by server id, applies
// deletions, and reports what was written. Events whose updated_at matches
// the cached row are skipped entirely, so a repeated pass with no server-side
// changes is a no-op commit.
//
// On a full sync (no cursor) any cached event absent from changed is removed;
// on an incremental sync only server-reported deletions are removed.
func (s *Store) ApplyEventSync(ctx context.Context, changed []models.Event, deletedIDs []string, full bool) (SyncResult, error) {
	var res SyncResult

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		var rows []struct {
			ID        string `db:"id"`
			UpdatedAt string `db:"updated_at"`
		}
		if err := tx.NewQuery("SELECT id, updated_at FROM events").WithContext(ctx).All(&rows); err != nil {
			return fmt.Errorf("load cached events: %w", err)
		}
		existing := make(map[string]string, len(rows))
		for _, r := range rows {
			existing[r.ID] = r.UpdatedAt
		}

		seen := make(map[string]bool, len(changed))
		for i := range changed {
			ev := &changed[i]
			seen[ev.ID] = true

			stamp := ev.UpdatedAt.UTC().Format(timeLayout)
			if prev, ok := existing[ev.ID]; ok && prev == stamp {
				continue
			}
			if err := upsertEvent(ctx, tx, ev, stamp); err != nil {
				return err
			}
			res.Upserts++
		}

		var toDelete []string
		if full {
			for id := range existing {
				if !seen[id] {
					toDelete = append(toDelete, id)
				}
			}
		} else {
			for _, id := range deletedIDs {
				if _, ok := existing[id]; ok {
					toDelete = append(toDelete, id)
				}
			}
		}
		for _, id := range toDelete {
			// Child rows cascade with the parent.
			if _, err := tx.Delete("events", dbx.HashExp{"id": id}).WithContext(ctx).Execute(); err != nil {
				return fmt.Errorf("delete event %s: %w", id, err)
			}
			res.Deletes++
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("store.ApplyEventSync: %w", err)
	}
	return res, nil
}

func upsertEvent(ctx context.Context, tx *dbx.Tx, ev *models.Event, stamp string) error {
	q := tx.NewQuery(`
		INSERT INTO events (id, title, summary, description, location, category,
			image_url, link, starts_at, uses_panthi, tickets_open, registration_open, updated_at)
		VALUES ({:id}, {:title}, {:summary}, {:description}, {:location}, {:category},
			{:image_url}, {:link}, {:starts_at}, {:uses_panthi}, {:tickets_open}, {:registration_open}, {:updated_at})
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			description = excluded.description,
			location = excluded.location,
			category = excluded.category,
			image_url = excluded.image_url,
			link = excluded.link,
			starts_at = excluded.starts_at,
			uses_panthi = excluded.uses_panthi,
			tickets_open = excluded.tickets_open,
			registration_open = excluded.registration_open,
			updated_at = excluded.updated_at`).
		Bind(dbx.Params{
			"id":                ev.ID,
			"title":             ev.Title,
			"summary":           ev.Summary,
			"description":       ev.Description,
			"location":          ev.Location,
			"category":          ev.Category,
			"image_url":         ev.ImageURL,
			"link":              ev.Link,
			"starts_at":         formatNullTime(ev.StartsAt),
			"uses_panthi":       ev.UsesPanthi,
			"tickets_open":      flexToParam(ev.TicketsOpen),
			"registration_open": flexToParam(ev.RegistrationOpen),
			"updated_at":        stamp,
		}).WithContext(ctx)
	if _, err := q.Execute(); err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}
	return replaceChildren(ctx, tx, ev)
}

// replaceChildren rewrites the child records carried on the event payload.
func replaceChildren(ctx context.Context, tx *dbx.Tx, ev *models.Event) error {
	for _, table := range []string{"ticket_types", "panthis", "programs"} {
		if _, err := tx.Delete(table, dbx.HashExp{"event_id": ev.ID}).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("clear %s for event %s: %w", table, ev.ID, err)
		}
	}

	for _, t := range ev.TicketTypes {
		params := dbx.Params{
			"id":       t.ID,
			"event_id": ev.ID,
			"name":     t.Name,
			"price":    t.Price.String(),
		}
		if t.EarlyBirdPrice != nil {
			params["early_bird_price"] = t.EarlyBirdPrice.String()
		}
		if t.EarlyBirdUntil != nil {
			params["early_bird_until"] = t.EarlyBirdUntil.UTC().Format(timeLayout)
		}
		if _, err := tx.Insert("ticket_types", params).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("insert ticket type %s: %w", t.ID, err)
		}
	}
	for _, p := range ev.Panthis {
		params := dbx.Params{"id": p.ID, "event_id": ev.ID, "name": p.Name, "capacity": p.Capacity}
		if _, err := tx.Insert("panthis", params).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("insert panthi %s: %w", p.ID, err)
		}
	}
	for _, p := range ev.Programs {
		params := dbx.Params{"id": p.ID, "event_id": ev.ID, "name": p.Name, "category": p.Category}
		if p.StartsAt != nil {
			params["starts_at"] = p.StartsAt.UTC().Format(timeLayout)
		}
		if _, err := tx.Insert("programs", params).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("insert program %s: %w", p.ID, err)
		}
	}
	return nil
}

// ListEvents returns cached events, optionally filtered by category, dated
// events first in start order.
func (s *Store) ListEvents(ctx context.Context, category string) ([]models.Event, error) {
	stmt := "SELECT * FROM events"
	params := dbx.Params{}
	if category != "" {
		stmt += " WHERE category = {:category}"
		params["category"] = category
	}
	stmt += " ORDER BY starts_at IS NULL, starts_at ASC, title ASC"

	var rows []eventRow
	if err := s.db.NewQuery(stmt).Bind(params).WithContext(ctx).All(&rows); err != nil {
		return nil, fmt.Errorf("store.ListEvents: %w", err)
	}
	events := make([]models.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events, nil
}

// GetEvent returns a cached event with its child records, or nil when the
// id is unknown.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.Select("*").From("events").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store.GetEvent: %w", err)
	}

	ev := row.toModel()
	if err := s.loadChildren(ctx, &ev); err != nil {
		return nil, fmt.Errorf("store.GetEvent: %w", err)
	}
	return &ev, nil
}

func (s *Store) loadChildren(ctx context.Context, ev *models.Event) error {
	var ttRows []struct {
		ID             string         `db:"id"`
		EventID        string         `db:"event_id"`
		Name           string         `db:"name"`
		Price          string         `db:"price"`
		EarlyBirdPrice sql.NullString `db:"early_bird_price"`
		EarlyBirdUntil sql.NullString `db:"early_bird_until"`
	}
	err := s.db.Select("*").From("ticket_types").
		Where(dbx.HashExp{"event_id": ev.ID}).OrderBy("name").WithContext(ctx).All(&ttRows)
	if err != nil {
		return err
	}
	for _, r := range ttRows {
		tt := models.TicketType{ID: r.ID, EventID: r.EventID, Name: r.Name}
		tt.Price, _ = decimal.NewFromString(r.Price)
		if r.EarlyBirdPrice.Valid {
			if d, err := decimal.NewFromString(r.EarlyBirdPrice.String); err == nil {
				tt.EarlyBirdPrice = &d
			}
		}
		tt.EarlyBirdUntil = parseNullTime(r.EarlyBirdUntil)
		ev.TicketTypes = append(ev.TicketTypes, tt)
	}

	err = s.db.Select("*").From("panthis").
		Where(dbx.HashExp{"event_id": ev.ID}).OrderBy("name").WithContext(ctx).All(&ev.Panthis)
	if err != nil {
		return err
	}

	var pgRows []struct {
		ID       string         `db:"id"`
		EventID  string         `db:"event_id"`
		Name     string         `db:"name"`
		Category string         `db:"category"`
		StartsAt sql.NullString `db:"starts_at"`
	}
	err = s.db.Select("*").From("programs").
		Where(dbx.HashExp{"event_id": ev.ID}).OrderBy("name").WithContext(ctx).All(&pgRows)
	if err != nil {
		return err
	}
	for _, r := range pgRows {
		ev.Programs = append(ev.Programs, models.Program{
			ID: r.ID, EventID: r.EventID, Name: r.Name, Category: r.Category,
			StartsAt: parseNullTime(r.StartsAt),
		})
	}
	return nil
}

// CountEvents is used by the health/status surface.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.db.NewQuery("SELECT COUNT(*) FROM events").WithContext(ctx).Row(&n)
	if err != nil {
		return 0, fmt.Errorf("store.CountEvents: %w", err)
	}
	return n, nil
}
