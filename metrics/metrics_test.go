package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/metrics"
)

func TestObserver_CountsReplays(t *testing.T) {
	// GIVEN: An engine observed by Metrics
	// WHEN: Replaying a history with a demotion and a bad date
	// THEN: Replay, transition and rejection counters move

	m := metrics.New()
	e, err := discipline.NewEngine(discipline.DefaultConfig(), discipline.WithObserver(m))
	require.NoError(t, err)

	e.ComputeState([]discipline.Violation{
		{Date: "2025-01-01", Type: "No Call No Show"},
		{Date: "garbage", Type: "Call Out"},
	}, generic.MustParseDate("2025-01-05"))

	expected := `
# HELP points_engine_transitions_total Tier transitions emitted by replays, by event type.
# TYPE points_engine_transitions_total counter
points_engine_transitions_total{type="demotion"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "points_engine_transitions_total"))

	expected = `
# HELP points_engine_rejected_violations_total Violations excluded from a replay because their date did not parse.
# TYPE points_engine_rejected_violations_total counter
points_engine_rejected_violations_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "points_engine_rejected_violations_total"))
}

func TestSetTierCounts_ZeroFillsMissingTiers(t *testing.T) {
	m := metrics.New()
	m.SetTierCounts(map[discipline.TierName]int{discipline.TierGood: 4})

	n, err := testutil.GatherAndCount(m.Registry(), "points_engine_employees_by_tier")
	require.NoError(t, err)
	assert.Equal(t, len(discipline.TierOrder), n)
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/employees/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/employees/e-42", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `points_engine_http_requests_total{route="/employees/{id}",status="418"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ReplayCompleted(discipline.Result{})
		m.CatchUpCapped(generic.TimePoint{}, 1)
		m.SetTierCounts(nil)
	})
}
