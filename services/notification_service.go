package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"memberhub/models"
	"memberhub/monitoring"
	"memberhub/store"
)

// Publisher delivers a reminder to the device channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Reminder offsets before an event's start.
const (
	offsetDayBefore = 24 * time.Hour
	offsetSoon      = 90 * time.Minute
)

// maxPendingReminders is the platform's pending-notification horizon; events
// whose reminders fall beyond it are skipped and picked up by a later
// rebuild.
const maxPendingReminders = 64

const notifyStateKey = "notify:state"

type ReminderSettings struct {
	Enabled       bool `json:"enabled"`
	DayBefore     bool `json:"dayBefore"`
	NinetyMinutes bool `json:"ninetyMinutes"`
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{Enabled: true, DayBefore: true, NinetyMinutes: true}
}

type Reminder struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Offset  string    `json:"offset"` // day_before, soon
	FireAt  time.Time `json:"fireAt"`
}

// scheduleState is the persisted fingerprint set plus the pending reminders,
// the whole thing replaced atomically on every rebuild.
type scheduleState struct {
	SettingsFP uint64            `json:"settingsFp"`
	EventFPs   map[string]uint64 `json:"eventFps"`
	Pending    []Reminder        `json:"pending"`
}

// NotificationService schedules the two fixed event reminders without
// redundant rescheduling: the pending set is rebuilt (cancel-all then
// re-add) only when settings changed, event data changed, a pending entry
// went stale, or the pending count no longer matches the expected count.
type NotificationService struct {
	Redis   *redis.Client
	Store   *store.Store
	Pub     Publisher
	Channel string

	// Now is replaceable in tests.
	Now func() time.Time

	mu       sync.Mutex
	settings ReminderSettings
}

func NewNotificationService(redisClient *redis.Client, st *store.Store, pub Publisher, channel string) *NotificationService {
	return &NotificationService{
		Redis:    redisClient,
		Store:    st,
		Pub:      pub,
		Channel:  channel,
		Now:      time.Now,
		settings: DefaultReminderSettings(),
	}
}

func (s *NotificationService) Settings() ReminderSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings stores new settings and repairs the schedule immediately.
func (s *NotificationService) UpdateSettings(ctx context.Context, settings ReminderSettings) (bool, error) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return s.Rebuild(ctx)
}

// Rebuild compares fingerprints against the stored schedule and rewrites the
// pending set only when something requires it. Returns whether a rebuild
// happened.
func (s *NotificationService) Rebuild(ctx context.Context) (bool, error) {
	now := s.Now()
	settings := s.Settings()

	events, err := s.Store.ListEvents(ctx, "")
	if err != nil {
		return false, fmt.Errorf("notify.Rebuild: %w", err)
	}

	expected := computeReminders(events, settings, now)
	eventFPs := fingerprintEvents(events, now)
	settingsFP := fingerprintSettings(settings)

	prev, err := s.loadState(ctx)
	if err != nil {
		return false, err
	}
	if prev != nil && !needsRebuild(prev, settingsFP, eventFPs, expected, now) {
		return false, nil
	}

	next := &scheduleState{SettingsFP: settingsFP, EventFPs: eventFPs, Pending: expected}
	if err := s.saveState(ctx, next); err != nil {
		return false, err
	}

	monitoring.TrackNotificationRebuild()
	monitoring.SetScheduledReminders(len(expected))
	slog.Info("notify: schedule rebuilt", "pending", len(expected))
	return true, nil
}

func needsRebuild(prev *scheduleState, settingsFP uint64, eventFPs map[string]uint64, expected []Reminder, now time.Time) bool {
	if prev.SettingsFP != settingsFP {
		return true
	}
	if len(prev.EventFPs) != len(eventFPs) {
		return true
	}
	for id, fp := range eventFPs {
		if prev.EventFPs[id] != fp {
			return true
		}
	}
	if len(prev.Pending) != len(expected) {
		return true
	}
	for _, r := range prev.Pending {
		if r.FireAt.Before(now) {
			return true
		}
	}
	return false
}

// computeReminders derives the expected pending set: both offsets per dated
// upcoming event, future fire times only, capped at the platform horizon.
func computeReminders(events []models.Event, settings ReminderSettings, now time.Time) []Reminder {
	if !settings.Enabled {
		return nil
	}

	var reminders []Reminder
	for i := range events {
		ev := &events[i]
		if !ev.Upcoming(now) {
			continue
		}
		if settings.DayBefore {
			if fireAt := ev.StartsAt.Add(-offsetDayBefore); fireAt.After(now) {
				reminders = append(reminders, Reminder{
					EventID: ev.ID, Title: ev.Title, Offset: "day_before", FireAt: fireAt,
				})
			}
		}
		if settings.NinetyMinutes {
			if fireAt := ev.StartsAt.Add(-offsetSoon); fireAt.After(now) {
				reminders = append(reminders, Reminder{
					EventID: ev.ID, Title: ev.Title, Offset: "soon", FireAt: fireAt,
				})
			}
		}
	}

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].FireAt.Before(reminders[j].FireAt)
	})
	if len(reminders) > maxPendingReminders {
		reminders = reminders[:maxPendingReminders]
	}
	return reminders
}

// fingerprintEvents covers only events that can still produce a reminder.
func fingerprintEvents(events []models.Event, now time.Time) map[string]uint64 {
	fps := make(map[string]uint64)
	for i := range events {
		ev := &events[i]
		if !ev.Upcoming(now) {
			continue
		}
		fps[ev.ID] = fingerprintEvent(ev)
	}
	return fps
}

// fingerprintEvent hashes identity, title, start and update stamp; any edit
// the user would care about moves at least one of them.
func fingerprintEvent(ev *models.Event) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|", ev.ID, ev.Title)
	if ev.StartsAt != nil {
		fmt.Fprint(h, ev.StartsAt.UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(h, "|%s", ev.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return h.Sum64()
}

func fingerprintSettings(s ReminderSettings) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%t|%t|%t", s.Enabled, s.DayBefore, s.NinetyMinutes)
	return h.Sum64()
}

func (s *NotificationService) loadState(ctx context.Context) (*scheduleState, error) {
	raw, err := s.Redis.Get(ctx, notifyStateKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: load state: %w", err)
	}
	var state scheduleState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// Corrupt state forces a rebuild rather than an error.
		slog.Warn("notify: discarding undecodable schedule state", "error", err)
		return nil, nil
	}
	return &state, nil
}

func (s *NotificationService) saveState(ctx context.Context, state *scheduleState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("notify: encode state: %w", err)
	}
	if err := s.Redis.Set(ctx, notifyStateKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("notify: save state: %w", err)
	}
	return nil
}

// DispatchDue publishes every reminder whose fire time has passed and keeps
// the rest pending. Returns how many were delivered.
func (s *NotificationService) DispatchDue(ctx context.Context) (int, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil || len(state.Pending) == 0 {
		return 0, nil
	}

	now := s.Now()
	var remaining []Reminder
	published := 0
	for _, r := range state.Pending {
		if r.FireAt.After(now) {
			remaining = append(remaining, r)
			continue
		}
		if err := s.Pub.Publish(ctx, s.Channel, r); err != nil {
			slog.Error("notify: publish failed", "event", r.EventID, "error", err)
			remaining = append(remaining, r)
			continue
		}
		published++
	}

	if published > 0 {
		state.Pending = remaining
		if err := s.saveState(ctx, state); err != nil {
			return published, err
		}
		monitoring.SetScheduledReminders(len(remaining))
	}
	return published, nil
}

// Run repairs the schedule and delivers due reminders until the context is
// cancelled.
func (s *NotificationService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Rebuild(ctx); err != nil {
				slog.Error("notify: rebuild failed", "error", err)
			}
			if _, err := s.DispatchDue(ctx); err != nil {
				slog.Error("notify: dispatch failed", "error", err)
			}
		}
	}
}
