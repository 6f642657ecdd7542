package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"memberhub/internal/status"
	"memberhub/models"
	"memberhub/monitoring"
	"memberhub/store"
)

type RegistrationStatus string

const (
	StatusNone       RegistrationStatus = "none"
	StatusRegistered RegistrationStatus = "registered"
	StatusWaitlisted RegistrationStatus = "waitlisted"
)

// StatusResult answers "has this user purchased/registered/waitlisted for
// this event".
type StatusResult struct {
	Status RegistrationStatus     `json:"status"`
	Record *models.PurchaseRecord `json:"record,omitempty"`
}

// statusCacheTTL is the invalidation window for cached per-event results.
const statusCacheTTL = 5 * time.Minute

// PurchaseService resolves per-event registration status from the cached
// purchase history. Matching precedence: exact event-id match first, then a
// trimmed case-insensitive name match for legacy records that carry no event
// id. The name fallback is deliberately no stricter than that.
type PurchaseService struct {
	Redis *redis.Client
	Store *store.Store
	Sync  *SyncService

	// Now is replaceable in tests.
	Now func() time.Time

	mu         sync.Mutex
	byID       map[string]models.PurchaseRecord
	byName     map[string]models.PurchaseRecord
	builtAt    time.Time
	cachedKeys map[string]bool
}

func NewPurchaseService(redisClient *redis.Client, st *store.Store, sync *SyncService) *PurchaseService {
	return &PurchaseService{
		Redis:      redisClient,
		Store:      st,
		Sync:       sync,
		Now:        time.Now,
		cachedKeys: map[string]bool{},
	}
}

func statusCacheKey(eventID string) string {
	return "purchase:status:" + eventID
}

// Status resolves the registration status for an event, serving repeated
// lookups from the redis result cache inside the invalidation window.
func (s *PurchaseService) Status(ctx context.Context, event *models.Event) (*StatusResult, error) {
	key := statusCacheKey(event.ID)

	raw, err := s.Redis.Get(ctx, key).Result()
	if err == nil {
		var res StatusResult
		if jsonErr := json.Unmarshal([]byte(raw), &res); jsonErr == nil {
			monitoring.TrackPurchaseLookup("hit")
			return &res, nil
		}
	} else if err != redis.Nil {
		// A cache outage degrades to index lookups, it does not fail them.
		slog.Warn("purchase: result cache unavailable", "error", err)
	}
	monitoring.TrackPurchaseLookup("miss")

	if err := s.ensureIndex(ctx, false); err != nil {
		return nil, err
	}

	res := s.match(event)

	if raw, err := json.Marshal(res); err == nil {
		if err := s.Redis.Set(ctx, key, raw, statusCacheTTL).Err(); err != nil {
			slog.Warn("purchase: could not cache result", "event", event.ID, "error", err)
		} else {
			s.mu.Lock()
			s.cachedKeys[key] = true
			s.mu.Unlock()
		}
	}
	return res, nil
}

func (s *PurchaseService) match(event *models.Event) *StatusResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[event.ID]
	if !ok {
		rec, ok = s.byName[models.NormalizeEventName(event.Title)]
	}
	if !ok {
		return &StatusResult{Status: StatusNone}
	}

	res := &StatusResult{Record: &rec, Status: StatusRegistered}
	if rec.Waitlisted() {
		res.Status = StatusWaitlisted
	}
	return res
}

// ensureIndex rebuilds the in-memory name/id index from the local cache when
// it is stale or a forced refresh asked for it.
func (s *PurchaseService) ensureIndex(ctx context.Context, force bool) error {
	s.mu.Lock()
	fresh := !force && !s.builtAt.IsZero() && s.Now().Sub(s.builtAt) < statusCacheTTL
	s.mu.Unlock()
	if fresh {
		return nil
	}

	records, err := s.Store.ListPurchases(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]models.PurchaseRecord)
	byName := make(map[string]models.PurchaseRecord)
	for _, rec := range records {
		if !rec.Active() {
			continue
		}
		if rec.EventID != "" {
			byID[rec.EventID] = rec
		}
		if rec.EventName != "" {
			byName[models.NormalizeEventName(rec.EventName)] = rec
		}
	}

	s.mu.Lock()
	s.byID, s.byName = byID, byName
	s.builtAt = s.Now()
	s.mu.Unlock()
	return nil
}

// ForceRefresh re-syncs the purchase history from the backend, rebuilds the
// index and drops every cached per-event result.
func (s *PurchaseService) ForceRefresh(ctx context.Context) error {
	monitoring.TrackPurchaseLookup("refresh")

	if _, err := s.Sync.SyncPurchases(ctx); err != nil && err != status.ErrSyncInProgress {
		return err
	}
	if err := s.ensureIndex(ctx, true); err != nil {
		return err
	}

	s.mu.Lock()
	keys := make([]string, 0, len(s.cachedKeys))
	for k := range s.cachedKeys {
		keys = append(keys, k)
	}
	s.cachedKeys = map[string]bool{}
	s.mu.Unlock()

	if len(keys) > 0 {
		if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
			slog.Warn("purchase: could not drop cached results", "error", err)
		}
	}
	return nil
}

// History returns the cached unified purchase history.
func (s *PurchaseService) History(ctx context.Context) ([]models.PurchaseRecord, error) {
	return s.Store.ListPurchases(ctx)
}
