/*
Package metrics exposes engine and HTTP metrics to Prometheus.

Metrics implements discipline.Observer, so one instance passed to
discipline.WithObserver counts every replay, its rejected violations,
its transitions and every hit of the catch-up cap. The snapshot
scheduler publishes tier headcounts through SetTierCounts.

A nil *Metrics is valid and records nothing.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

const namespace = "points_engine"

type Metrics struct {
	registry *prometheus.Registry

	replays          prometheus.Counter
	replayEvents     prometheus.Histogram
	rejected         prometheus.Counter
	futureViolations prometheus.Counter
	transitions      *prometheus.CounterVec
	catchUpCapped    prometheus.Counter
	tierHeadcount    *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Total state replays computed.",
		}),
		replayEvents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_event_log_entries",
			Help:      "Event log length per replay.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_violations_total",
			Help:      "Violations excluded from a replay because their date did not parse.",
		}),
		futureViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "future_violations_total",
			Help:      "Violations dated after the replay's as-of date.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Tier transitions emitted by replays, by event type.",
		}, []string{"type"}),
		catchUpCapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catch_up_capped_total",
			Help:      "Replays whose catch-up loop stopped at the iteration cap.",
		}),
		tierHeadcount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "employees_by_tier",
			Help:      "Employees per tier at the last snapshot refresh.",
		}, []string{"tier"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.replays,
		m.replayEvents,
		m.rejected,
		m.futureViolations,
		m.transitions,
		m.catchUpCapped,
		m.tierHeadcount,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// =============================================================================
// discipline.Observer
// =============================================================================

var _ discipline.Observer = (*Metrics)(nil)

func (m *Metrics) ReplayCompleted(res discipline.Result) {
	if m == nil {
		return
	}
	m.replays.Inc()
	m.replayEvents.Observe(float64(len(res.EventLog)))
	m.rejected.Add(float64(len(res.Rejected)))
	m.futureViolations.Add(float64(res.FutureViolations))
	for _, ev := range res.EventLog {
		switch ev.Type {
		case discipline.EventDemotion, discipline.EventPromotion,
			discipline.EventPromotionPoints, discipline.EventFreezeSkip:
			m.transitions.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}

func (m *Metrics) CatchUpCapped(generic.TimePoint, int) {
	if m == nil {
		return
	}
	m.catchUpCapped.Inc()
}

// SetTierCounts replaces the headcount gauges. Tiers absent from counts
// are set to zero.
func (m *Metrics) SetTierCounts(counts map[discipline.TierName]int) {
	if m == nil {
		return
	}
	for _, tier := range discipline.TierOrder {
		m.tierHeadcount.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
}

// =============================================================================
// HTTP
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labelled by the chi
// route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
