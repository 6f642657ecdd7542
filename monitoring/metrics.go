package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_passes_total",
			Help: "Sync passes per entity and outcome",
		},
		[]string{"entity", "status"},
	)

	syncWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_writes_total",
			Help: "Local cache writes performed by sync passes",
		},
		[]string{"entity", "kind"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"entity"},
	)

	notificationRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_rebuilds_total",
			Help: "Full cancel-and-reschedule cycles of the reminder set",
		},
	)

	scheduledReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduled_reminders_total",
			Help: "Currently pending event reminders",
		},
	)

	purchaseLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_status_lookups_total",
			Help: "Purchase-status lookups by cache outcome",
		},
		[]string{"outcome"},
	)
)

func TrackSyncPass(entity, status string) {
	syncPasses.WithLabelValues(entity, status).Inc()
}

func TrackSyncWrites(entity string, upserts, deletes int) {
	if upserts > 0 {
		syncWrites.WithLabelValues(entity, "upsert").Add(float64(upserts))
	}
	if deletes > 0 {
		syncWrites.WithLabelValues(entity, "delete").Add(float64(deletes))
	}
}

func ObserveSyncDuration(entity string, d time.Duration) {
	syncDuration.WithLabelValues(entity).Observe(d.Seconds())
}

func TrackNotificationRebuild() {
	notificationRebuilds.Inc()
}

func SetScheduledReminders(n int) {
	scheduledReminders.Set(float64(n))
}

// TrackPurchaseLookup records a lookup outcome: hit, miss or refresh.
func TrackPurchaseLookup(outcome string) {
	purchaseLookups.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
