package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/api"
	"memberhub/internal/status"
	"memberhub/models"
	"memberhub/store"
)

type stubEventSource struct {
	delta *api.EventsDelta
	err   error
	calls int
	since []*time.Time
}

func (s *stubEventSource) EventsChangedSince(_ context.Context, since *time.Time) (*api.EventsDelta, error) {
	s.calls++
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, s.err
	}
	return s.delta, nil
}

type stubPurchaseSource struct {
	records []models.PurchaseRecord
	err     error
}

func (s *stubPurchaseSource) Purchases(context.Context) ([]models.PurchaseRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func expectSyncLock(mock redismock.ClientMock, entity string) {
	mock.ExpectSetNX("sync:inprogress:"+entity, "1", syncLockTTL).SetVal(true)
	mock.ExpectDel("sync:inprogress:" + entity).SetVal(1)
}

func syncEvent(id, title string, updatedAt time.Time) models.Event {
	starts := updatedAt.Add(30 * 24 * time.Hour)
	return models.Event{
		ID:        id,
		Title:     title,
		StartsAt:  &starts,
		UpdatedAt: updatedAt,
	}
}

func TestSyncEvents_FullPassAdvancesCursor(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	events := &stubEventSource{delta: &api.EventsDelta{Changed: []models.Event{
		syncEvent("216", "Onam 2025 ", now.Add(-time.Hour)),
		syncEvent("301", "Christmas Carol Night", now.Add(-2*time.Hour)),
	}}}

	svc := NewSyncService(redisClient, st, events, &stubPurchaseSource{})
	svc.Now = func() time.Time { return now }

	expectSyncLock(mock, "events")
	res, err := svc.SyncEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserts)

	// First pass had no cursor: a full sync was requested.
	require.Len(t, events.since, 1)
	assert.Nil(t, events.since[0])

	cursor, err := st.GetCursor(context.Background(), "events")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.False(t, cursor.Before(events.delta.MaxUpdatedAt()),
		"cursor must cover every record the pass persisted")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncEvents_ServerClockAhead(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	ahead := now.Add(3 * time.Minute)

	events := &stubEventSource{delta: &api.EventsDelta{Changed: []models.Event{
		syncEvent("216", "Onam 2025 ", ahead),
	}}}

	svc := NewSyncService(redisClient, st, events, &stubPurchaseSource{})
	svc.Now = func() time.Time { return now }

	expectSyncLock(mock, "events")
	_, err := svc.SyncEvents(context.Background())
	require.NoError(t, err)

	cursor, err := st.GetCursor(context.Background(), "events")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.Equal(ahead), "cursor follows the server's newer stamp")
}

func TestSyncEvents_SecondPassIsIncrementalNoOp(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	events := &stubEventSource{delta: &api.EventsDelta{Changed: []models.Event{
		syncEvent("216", "Onam 2025 ", now.Add(-time.Hour)),
	}}}
	svc := NewSyncService(redisClient, st, events, &stubPurchaseSource{})
	svc.Now = func() time.Time { return now }

	expectSyncLock(mock, "events")
	_, err := svc.SyncEvents(context.Background())
	require.NoError(t, err)

	// Second pass: server reports the same record again; nothing rewrites.
	expectSyncLock(mock, "events")
	res, err := svc.SyncEvents(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed())

	require.Len(t, events.since, 2)
	require.NotNil(t, events.since[1], "second pass carries the stored cursor")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncEvents_APIErrorLeavesCursorUntouched(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()

	events := &stubEventSource{err: errors.New("boom")}
	svc := NewSyncService(redisClient, st, events, &stubPurchaseSource{})

	expectSyncLock(mock, "events")
	_, err := svc.SyncEvents(context.Background())
	require.Error(t, err)

	cursor, err := st.GetCursor(context.Background(), "events")
	require.NoError(t, err)
	assert.Nil(t, cursor, "failed pass must not move the cursor")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncEvents_ConcurrentPassSkipped(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()

	events := &stubEventSource{delta: &api.EventsDelta{}}
	svc := NewSyncService(redisClient, st, events, &stubPurchaseSource{})

	mock.ExpectSetNX("sync:inprogress:events", "1", syncLockTTL).SetVal(false)
	_, err := svc.SyncEvents(context.Background())
	assert.ErrorIs(t, err, status.ErrSyncInProgress)
	assert.Equal(t, 0, events.calls, "skipped pass never hits the network")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncPurchases_Reconciles(t *testing.T) {
	st := newTestStore(t)
	redisClient, mock := redismock.NewClientMock()

	purchases := &stubPurchaseSource{records: []models.PurchaseRecord{
		{ID: "p-1", Kind: models.PurchaseTicket, Status: "paid", EventID: "216", EventName: "Onam 2025 ", Quantity: 2},
	}}
	svc := NewSyncService(redisClient, st, &stubEventSource{}, purchases)

	expectSyncLock(mock, "purchases")
	changed, err := svc.SyncPurchases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// Identical payload again: reconcile writes nothing.
	expectSyncLock(mock, "purchases")
	changed, err = svc.SyncPurchases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
