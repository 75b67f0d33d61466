// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles      prometheus.Counter
	EventsProcessed prometheus.Counter
	EventsDropped   prometheus.Counter
	SessionsStarted prometheus.Counter
	SessionsClosed  prometheus.Counter
	RemindersSent   prometheus.Counter
	LevelUps        prometheus.Counter
	MessagesSent    prometheus.Counter
	MessagesFailed  prometheus.Counter
	PersistFailures prometheus.Counter

	// Histograms (seconds)
	CycleDuration prometheus.Observer

	// Gauges
	ActiveSessionsGauge prometheus.Gauge
	DispatchDepthGauge  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "study_poll_cycles_total", Help: "Number of completed poll cycles"})
		EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "study_events_processed_total", Help: "Number of chat events run through the state machine"})
		EventsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "study_events_dropped_total", Help: "Number of malformed chat events dropped"})
		SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "study_sessions_started_total", Help: "Number of sessions created or resumed"})
		SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{Name: "study_sessions_closed_total", Help: "Number of sessions closed by an end command"})
		RemindersSent = promauto.NewCounter(prometheus.CounterOpts{Name: "study_reminders_sent_total", Help: "Number of long-session reminder messages enqueued"})
		LevelUps = promauto.NewCounter(prometheus.CounterOpts{Name: "study_level_ups_total", Help: "Number of game mode level-ups"})
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "study_messages_sent_total", Help: "Number of outbound chat messages delivered"})
		MessagesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "study_messages_failed_total", Help: "Number of outbound chat messages that failed to send"})
		PersistFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "study_persist_failures_total", Help: "Number of repository writes that failed"})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "study_cycle_duration_seconds", Help: "Poll cycle duration seconds", Buckets: prometheus.DefBuckets})
		ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "study_active_sessions", Help: "Current number of active study sessions"})
		DispatchDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "study_dispatch_queue_depth", Help: "Current number of queued outbound messages"})
	})
}

// SetActiveSessions records the current active session count.
func SetActiveSessions(n int) {
	if ActiveSessionsGauge != nil {
		ActiveSessionsGauge.Set(float64(n))
	}
}

// SetDispatchDepth records the current outbound queue depth.
func SetDispatchDepth(n int) {
	if DispatchDepthGauge != nil {
		DispatchDepthGauge.Set(float64(n))
	}
}

// MessageSent increments the delivered-message counter.
func MessageSent() {
	if MessagesSent != nil {
		MessagesSent.Inc()
	}
}

// MessageSendFailed increments the failed-message counter.
func MessageSendFailed() {
	if MessagesFailed != nil {
		MessagesFailed.Inc()
	}
}

// CountEvent increments the processed-event counter.
func CountEvent() {
	if EventsProcessed != nil {
		EventsProcessed.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
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
