package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	suggestions     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	events          *prometheus.CounterVec
}

// Snapshot is a cumulative view of the main counters, served on
// GET /v1/metrics/summary.
type Snapshot struct {
	MutationsApplied    float64 `json:"mutationsApplied"`
	MutationsRejected   float64 `json:"mutationsRejected"`
	NotificationsOK     float64 `json:"notificationsSuccess"`
	NotificationsFailed float64 `json:"notificationsError"`
	SuggestionCacheRate float64 `json:"suggestionCacheHitRate"`
	EventsPublished     float64 `json:"eventsPublished"`
	EventsFailed        float64 `json:"eventsFailed"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_mutations_total",
				Help: "Ledger mutations by entity, operation and outcome.",
			},
			[]string{"entity", "op", "outcome"},
		),
		adapterDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zenith_adapter_duration_seconds",
				Help:    "Duration of persistence adapter calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_notifications_total",
				Help: "Notifications enqueued by severity.",
			},
			[]string{"severity"},
		),
		suggestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_suggestions_total",
				Help: "Category suggestions by source.",
			},
			[]string{"source"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_events_total",
				Help: "Ledger events handed to the publisher, by result.",
			},
			[]string{"result"},
		),
	}
}

// RecordMutation counts one coordinator transition.
// outcome is "applied" or "rejected".
func (m *Metrics) RecordMutation(entity, op, outcome string) {
	m.mutations.WithLabelValues(entity, op, outcome).Inc()
}

// RecordAdapterDuration records the duration of an adapter call.
func (m *Metrics) RecordAdapterDuration(op string, d time.Duration) {
	m.adapterDuration.WithLabelValues(op).Observe(d.Seconds())
}

// IncrNotification counts an enqueued notification.
func (m *Metrics) IncrNotification(severity string) {
	m.notifications.WithLabelValues(severity).Inc()
}

// IncrSuggestion counts a suggestion answered by source (model, cache, fallback).
func (m *Metrics) IncrSuggestion(source string) {
	m.suggestions.WithLabelValues(source).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrEvent counts a publish attempt ("ok" or "error").
func (m *Metrics) IncrEvent(result string) {
	m.events.WithLabelValues(result).Inc()
}

// Snapshot gathers the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	hits := getCounterValue(m.cacheHits, "suggestion")
	misses := getCounterValue(m.cacheMisses, "suggestion")
	rate := float64(0)
	if hits+misses > 0 {
		rate = hits / (hits + misses)
	}

	return Snapshot{
		MutationsApplied:    sumCounter(m.mutations, "outcome", "applied"),
		MutationsRejected:   sumCounter(m.mutations, "outcome", "rejected"),
		NotificationsOK:     getCounterValue(m.notifications, "success"),
		NotificationsFailed: getCounterValue(m.notifications, "error"),
		SuggestionCacheRate: rate,
		EventsPublished:     getCounterValue(m.events, "ok"),
		EventsFailed:        getCounterValue(m.events, "error"),
	}
}

// getCounterValue extracts the current float64 value from a single-label CounterVec.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounter adds every series of cv whose label name has the given value.
func sumCounter(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				total += m.Counter.GetValue()
			}
		}
	}
	return total
}
