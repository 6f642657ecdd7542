package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvent() models.Event {
	starts := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	early := decimal.NewFromInt(10)
	cutoff := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	return models.Event{
		ID:          "216",
		Title:       "Onam 2025 ",
		Location:    "Community Hall",
		Category:    "festival",
		StartsAt:    &starts,
		UsesPanthi:  true,
		TicketsOpen: models.TrueFlex(),
		UpdatedAt:   updated,
		TicketTypes: []models.TicketType{{
			ID: "tt-1", EventID: "216", Name: "Adult",
			Price: decimal.NewFromInt(20), EarlyBirdPrice: &early, EarlyBirdUntil: &cutoff,
		}},
		Panthis:  []models.Panthi{{ID: "pn-1", EventID: "216", Name: "First Panthi", Capacity: 120}},
		Programs: []models.Program{{ID: "pg-1", EventID: "216", Name: "Thiruvathira", Category: "dance"}},
	}
}

func TestApplyEventSync_FullThenNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := sampleEvent()

	res, err := s.ApplyEventSync(ctx, []models.Event{ev}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserts)
	assert.Equal(t, 0, res.Deletes)
	assert.True(t, res.Changed())

	// Unchanged server response: zero upserts, zero deletes.
	res, err = s.ApplyEventSync(ctx, []models.Event{ev}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserts)
	assert.Equal(t, 0, res.Deletes)
	assert.False(t, res.Changed())

	got, err := s.GetEvent(ctx, "216")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Onam 2025 ", got.Title)
	assert.True(t, got.TicketsOpen.Or(false))
	require.Len(t, got.TicketTypes, 1)
	assert.True(t, got.TicketTypes[0].Price.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, got.TicketTypes[0].EarlyBirdPrice)
	require.Len(t, got.Panthis, 1)
	assert.Equal(t, 120, got.Panthis[0].Capacity)
	require.Len(t, got.Programs, 1)
}

func TestApplyEventSync_UpdatedRecordRewritesChildren(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := sampleEvent()

	_, err := s.ApplyEventSync(ctx, []models.Event{ev}, nil, true)
	require.NoError(t, err)

	ev.UpdatedAt = ev.UpdatedAt.Add(time.Hour)
	ev.Title = "Onam 2025 (updated)"
	ev.Panthis = []models.Panthi{{ID: "pn-2", EventID: "216", Name: "Second Panthi", Capacity: 80}}

	res, err := s.ApplyEventSync(ctx, []models.Event{ev}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserts)

	got, err := s.GetEvent(ctx, "216")
	require.NoError(t, err)
	require.Len(t, got.Panthis, 1)
	assert.Equal(t, "pn-2", got.Panthis[0].ID)
}

func TestApplyEventSync_Deletions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := sampleEvent()
	other := models.Event{ID: "300", Title: "AGM", UpdatedAt: ev.UpdatedAt}

	_, err := s.ApplyEventSync(ctx, []models.Event{ev, other}, nil, true)
	require.NoError(t, err)

	// Incremental: server reports 300 removed.
	res, err := s.ApplyEventSync(ctx, nil, []string{"300", "unknown"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deletes)

	// Full sync with an empty response clears the rest, children included.
	res, err = s.ApplyEventSync(ctx, nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deletes)

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var orphans int
	err = s.db.NewQuery("SELECT COUNT(*) FROM ticket_types").Row(&orphans)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans, "child rows must cascade with the parent")
}

func TestCursorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cur, err := s.GetCursor(ctx, "events")
	require.NoError(t, err)
	assert.Nil(t, cur, "no cursor before the first successful sync")

	now := time.Date(2025, 5, 20, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetCursor(ctx, "events", now))

	cur, err = s.GetCursor(ctx, "events")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.True(t, cur.Equal(now))

	require.NoError(t, s.SetCursor(ctx, "events", now.Add(time.Hour)))
	cur, err = s.GetCursor(ctx, "events")
	require.NoError(t, err)
	assert.True(t, cur.Equal(now.Add(time.Hour)))
}

func TestReplacePurchases_NoOpOnUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []models.PurchaseRecord{
		{
			ID: "p-1", Kind: models.PurchaseTicket, Status: "paid",
			EventID: "216", EventName: "Onam 2025", Quantity: 2,
			Amount:    decimal.NewFromInt(40),
			CreatedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "p-2", Kind: models.PurchaseProgram, Status: "waitlisted",
			EventName: "Christmas 2024", Quantity: 1,
			CreatedAt: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	changed, err := s.ReplacePurchases(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = s.ReplacePurchases(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	// Dropping one record counts as a write.
	changed, err = s.ReplacePurchases(ctx, records[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	list, err := s.ListPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p-1", list[0].ID)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(40)))
}

func TestProfileAndFamilyRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	profile := &models.UserProfile{
		ID: "u-1", Name: "Asha Nair", Phone: "07700 900000",
		Email: "asha@example.org", MembershipExpiry: "31-Dec-2025",
	}
	require.NoError(t, s.SaveProfile(ctx, profile))

	p, err = s.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Asha Nair", p.Name)

	require.NoError(t, s.SetMembershipExpiry(ctx, "2026-12-31"))
	p, _ = s.GetProfile(ctx)
	assert.Equal(t, "2026-12-31", p.MembershipExpiry)

	members := []models.FamilyMember{
		{ID: "f-1", UserID: "u-1", Name: "Anil", Relationship: "spouse"},
		{ID: "f-2", UserID: "u-1", Name: "Meera", Relationship: "daughter"},
	}
	require.NoError(t, s.ReplaceFamily(ctx, "u-1", members))

	got, err := s.ListFamily(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Anil", got[0].Name)
}
