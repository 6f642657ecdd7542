package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"memberhub/internal/api"
	"memberhub/internal/status"
	"memberhub/models"
	"memberhub/monitoring"
	"memberhub/store"
)

// EventSource is the remote side of the event sync loop.
type EventSource interface {
	EventsChangedSince(ctx context.Context, since *time.Time) (*api.EventsDelta, error)
}

// PurchaseSource is the remote side of the purchase sync loop.
type PurchaseSource interface {
	Purchases(ctx context.Context) ([]models.PurchaseRecord, error)
}

// syncLockTTL bounds how long a crashed pass can block the next one.
const syncLockTTL = 2 * time.Minute

// SyncService keeps the local cache consistent with the remote source of
// truth. One pass per entity runs at a time; a concurrent call is a no-op
// signalled by status.ErrSyncInProgress, not queued.
type SyncService struct {
	Redis     *redis.Client
	Store     *store.Store
	Events    EventSource
	Purchases PurchaseSource

	// Now is replaceable in tests.
	Now func() time.Time
}

func NewSyncService(redisClient *redis.Client, st *store.Store, events EventSource, purchases PurchaseSource) *SyncService {
	return &SyncService{
		Redis:     redisClient,
		Store:     st,
		Events:    events,
		Purchases: purchases,
		Now:       time.Now,
	}
}

func (s *SyncService) acquire(ctx context.Context, entity string) (bool, error) {
	ok, err := s.Redis.SetNX(ctx, "sync:inprogress:"+entity, "1", syncLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("sync: acquire %s flag: %w", entity, err)
	}
	return ok, nil
}

func (s *SyncService) release(ctx context.Context, entity string) {
	if err := s.Redis.Del(ctx, "sync:inprogress:"+entity).Err(); err != nil {
		slog.Warn("sync: release flag failed", "entity", entity, "error", err)
	}
}

// SyncEvents runs one event sync pass. With no stored cursor it performs a
// full sync (locals absent from the response are dropped); with a cursor it
// fetches only strictly newer records and applies server-reported deletions.
// The cursor moves only after the local transaction commits, and never ends
// up behind the newest record the pass touched.
func (s *SyncService) SyncEvents(ctx context.Context) (store.SyncResult, error) {
	ok, err := s.acquire(ctx, "events")
	if err != nil {
		return store.SyncResult{}, err
	}
	if !ok {
		monitoring.TrackSyncPass("events", "skipped")
		return store.SyncResult{}, status.ErrSyncInProgress
	}
	defer s.release(ctx, "events")

	started := s.Now()

	cursor, err := s.Store.GetCursor(ctx, "events")
	if err != nil {
		monitoring.TrackSyncPass("events", "error")
		return store.SyncResult{}, err
	}

	delta, err := s.Events.EventsChangedSince(ctx, cursor)
	if err != nil {
		monitoring.TrackSyncPass("events", "error")
		return store.SyncResult{}, err
	}

	res, err := s.Store.ApplyEventSync(ctx, delta.Changed, delta.DeletedIDs, cursor == nil)
	if err != nil {
		// Transaction rolled back, cursor untouched.
		monitoring.TrackSyncPass("events", "error")
		return store.SyncResult{}, err
	}

	next := s.Now()
	if max := delta.MaxUpdatedAt(); max.After(next) {
		// Server clock ran ahead; the cursor must still cover every
		// record this pass persisted.
		next = max
	}
	if err := s.Store.SetCursor(ctx, "events", next); err != nil {
		monitoring.TrackSyncPass("events", "error")
		return store.SyncResult{}, err
	}

	monitoring.TrackSyncPass("events", "ok")
	monitoring.TrackSyncWrites("events", res.Upserts, res.Deletes)
	monitoring.ObserveSyncDuration("events", s.Now().Sub(started))
	slog.Info("sync: events pass complete",
		"upserts", res.Upserts, "deletes", res.Deletes, "full", cursor == nil)
	return res, nil
}

// SyncPurchases reconciles the purchase history cache with the backend.
func (s *SyncService) SyncPurchases(ctx context.Context) (int, error) {
	ok, err := s.acquire(ctx, "purchases")
	if err != nil {
		return 0, err
	}
	if !ok {
		monitoring.TrackSyncPass("purchases", "skipped")
		return 0, status.ErrSyncInProgress
	}
	defer s.release(ctx, "purchases")

	started := s.Now()

	records, err := s.Purchases.Purchases(ctx)
	if err != nil {
		monitoring.TrackSyncPass("purchases", "error")
		return 0, err
	}

	changed, err := s.Store.ReplacePurchases(ctx, records)
	if err != nil {
		monitoring.TrackSyncPass("purchases", "error")
		return 0, err
	}

	if err := s.Store.SetCursor(ctx, "purchases", s.Now()); err != nil {
		monitoring.TrackSyncPass("purchases", "error")
		return 0, err
	}

	monitoring.TrackSyncPass("purchases", "ok")
	monitoring.ObserveSyncDuration("purchases", s.Now().Sub(started))
	slog.Info("sync: purchases pass complete", "writes", changed)
	return changed, nil
}

// Run drives periodic background syncs until the context is cancelled.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncEvents(ctx); err != nil && err != status.ErrSyncInProgress {
				slog.Error("sync: background events pass failed", "error", err)
			}
			if _, err := s.SyncPurchases(ctx); err != nil && err != status.ErrSyncInProgress {
				slog.Error("sync: background purchases pass failed", "error", err)
			}
		}
	}
}
