// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesPosted    prometheus.Counter
	SystemMessages    prometheus.Counter
	CleanupRuns       prometheus.Counter
	CleanupSkipped    prometheus.Counter
	PresenceEvictions prometheus.Counter
	GuestbookEntries  prometheus.Counter

	// Gauges
	ActiveUsersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesPosted = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_posted_total", Help: "Number of chat messages appended to the log"})
		SystemMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_system_messages_total", Help: "Number of synthesized join/leave system messages"})
		CleanupRuns = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_cleanup_runs_total", Help: "Number of presence cleanup passes that acquired the lock"})
		CleanupSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_cleanup_skipped_total", Help: "Number of cleanup passes skipped because the lock was contended"})
		PresenceEvictions = promauto.NewCounter(prometheus.CounterOpts{Name: "presence_evictions_total", Help: "Number of nicknames evicted by timeout"})
		GuestbookEntries = promauto.NewCounter(prometheus.CounterOpts{Name: "guestbook_entries_total", Help: "Number of guestbook entries accepted"})
		ActiveUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "presence_active_users", Help: "Current number of registered nicknames"})
	})
}

// SetActiveUsers records the current presence registry size.
func SetActiveUsers(n int) {
	if ActiveUsersGauge != nil {
		ActiveUsersGauge.Set(float64(n))
	}
}

// IncMessagesPosted counts a user-posted chat message.
func IncMessagesPosted() {
	if MessagesPosted != nil {
		MessagesPosted.Inc()
	}
}

// IncSystemMessages counts a synthesized system message.
func IncSystemMessages() {
	if SystemMessages != nil {
		SystemMessages.Inc()
	}
}

// IncCleanupRun counts a cleanup pass that acquired the lock.
func IncCleanupRun() {
	if CleanupRuns != nil {
		CleanupRuns.Inc()
	}
}

// IncCleanupSkipped counts a cleanup pass that found the lock contended.
func IncCleanupSkipped() {
	if CleanupSkipped != nil {
		CleanupSkipped.Inc()
	}
}

// AddEvictions counts nicknames evicted by timeout.
func AddEvictions(n int) {
	if PresenceEvictions != nil && n > 0 {
		PresenceEvictions.Add(float64(n))
	}
}

// IncGuestbookEntries counts an accepted guestbook entry.
func IncGuestbookEntries() {
	if GuestbookEntries != nil {
		GuestbookEntries.Inc()
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
