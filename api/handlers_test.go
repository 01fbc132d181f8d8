package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/metrics"
	"github.com/warp/points-engine/report"
	"github.com/warp/points-engine/store/sqlite"
)

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, h.LoadPolicies(context.Background()))
	return h, NewRouter(h, DefaultRouterOptions())
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createEmployee(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: id, Name: "Test " + id, HireDate: "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_CreateGetList(t *testing.T) {
	_, router := setupTestHandler(t)

	createEmployee(t, router, "e1")

	rec := do(t, router, http.MethodGet, "/api/employees/e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[EmployeeDTO](t, rec)
	assert.Equal(t, "Test e1", emp.Name)
	assert.Equal(t, "2024-06-01", emp.HireDate)

	rec = do(t, router, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EmployeeDTO](t, rec), 1)

	rec = do(t, router, http.MethodGet, "/api/employees/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/employees", `{"id": "x"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// VIOLATIONS
// =============================================================================

func TestViolations_RecordAndList(t *testing.T) {
	// GIVEN: An employee
	// WHEN: Recording a batch, then the same tardy again on the same day
	// THEN: The batch is stored and the duplicate is a 409

	_, router := setupTestHandler(t)
	createEmployee(t, router, "e1")

	rec := do(t, router, http.MethodPost, "/api/employees/e1/violations", CreateViolationsRequest{
		Violations: []ViolationInput{
			{Date: "2025-01-06", Type: "Tardy (1-5 min)", IdempotencyKey: "k1"},
			{Date: "2025-01-07T09:15:00Z", Type: "callout", ShiftCovered: true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/employees/e1/violations", CreateViolationsRequest{
		Violations: []ViolationInput{{Date: "2025-01-06", Type: "tardy 1-5"}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/employees/e1/violations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vs := decode[[]ViolationDTO](t, rec)
	require.Len(t, vs, 2)
	assert.Equal(t, string(discipline.CallOut), vs[1].Type)
	assert.Equal(t, "2025-01-07", vs[1].Date)
	assert.True(t, vs[1].ShiftCovered)
	assert.Equal(t, "k1", vs[0].IdempotencyKey)
}

func TestViolations_Errors(t *testing.T) {
	_, router := setupTestHandler(t)
	createEmployee(t, router, "e1")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"unknown employee", "/api/employees/nobody/violations",
			CreateViolationsRequest{Violations: []ViolationInput{{Date: "2025-01-06", Type: "Call Out"}}}, http.StatusNotFound},
		{"empty batch", "/api/employees/e1/violations",
			CreateViolationsRequest{}, http.StatusBadRequest},
		{"bad date", "/api/employees/e1/violations",
			CreateViolationsRequest{Violations: []ViolationInput{{Date: "2025-13-45", Type: "Call Out"}}}, http.StatusBadRequest},
		{"duplicate in batch", "/api/employees/e1/violations",
			CreateViolationsRequest{Violations: []ViolationInput{
				{Date: "2025-01-06", Type: "Call Out"},
				{Date: "2025-01-06", Type: "call out"},
			}}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// STATE
// =============================================================================

func TestGetState_ReplaysWithActivePolicy(t *testing.T) {
	// GIVEN: Five minor tardies in January
	// WHEN: Reading state on Jan 21
	// THEN: Escalated penalties leave 130 under the standard policy

	_, router := setupTestHandler(t)
	createEmployee(t, router, "e1")

	var in []ViolationInput
	for _, d := range []string{"2025-01-06", "2025-01-08", "2025-01-13", "2025-01-15", "2025-01-20"} {
		in = append(in, ViolationInput{Date: d, Type: "Tardy (1-5 min)"})
	}
	rec := do(t, router, http.MethodPost, "/api/employees/e1/violations", CreateViolationsRequest{Violations: in})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/employees/e1/state?as_of=2025-01-21", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[StateResponse](t, rec)

	assert.Equal(t, "e1", state.EmployeeID)
	assert.Equal(t, factory.StandardPolicyID, state.PolicyID)
	assert.Equal(t, "130", state.Points.String())
	assert.Equal(t, discipline.TierGood, state.Tier)
	assert.Equal(t, generic.MustParseDate("2025-01-21"), state.AsOf)
	assert.Len(t, state.EventLog, 6)

	rec = do(t, router, http.MethodGet, "/api/employees/e1/state?as_of=someday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/employees/nobody/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetQuarterStart(t *testing.T) {
	h, router := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), mustScenario(t, "tardy-escalation")))

	rec := do(t, router, http.MethodGet, "/api/employees/emp-tardy/quarters/2025-Q1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q1 := decode[StateResponse](t, rec)
	assert.Equal(t, generic.MustParseDate("2025-01-01"), q1.AsOf)
	assert.Equal(t, "150", q1.Points.String())
	assert.Len(t, q1.EventLog, 1)

	rec = do(t, router, http.MethodGet, "/api/employees/emp-tardy/quarters/2025-Q2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q2 := decode[StateResponse](t, rec)
	assert.Equal(t, generic.MustParseDate("2025-04-01"), q2.AsOf)
	assert.Equal(t, discipline.TierGood, q2.Tier)

	rec = do(t, router, http.MethodGet, "/api/employees/emp-tardy/quarters/2025-Q5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHealth(t *testing.T) {
	// GIVEN: The consecutive callouts scenario
	// WHEN: Reading the health check at the scenario date
	// THEN: The Educational excursion is still open and sticky DA is stage 1

	h, router := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), mustScenario(t, "consecutive-callouts")))

	rec := do(t, router, http.MethodGet, "/api/employees/emp-callout/health?as_of=2025-04-20", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	health := decode[report.Health](t, rec)

	assert.Equal(t, discipline.TierEducational, health.Tier)
	assert.Equal(t, 1, health.StickyDAIndex)
	require.Len(t, health.Cycles, 1)
	assert.Nil(t, health.Cycles[0].ReturnedGood)
	require.Len(t, health.Windows, 3)
	assert.Equal(t, 1, health.Windows[0].Violations)
}

func TestGetDashboard_Team(t *testing.T) {
	h, router := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), mustScenario(t, "team")))

	rec := do(t, router, http.MethodGet, "/api/dashboard?as_of=2025-04-20", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := decode[report.Dashboard](t, rec)

	assert.Equal(t, 2, dash.TierCounts[discipline.TierGood])
	assert.Equal(t, 2, dash.TierCounts[discipline.TierEducational])
	assert.Equal(t, 0, dash.TierCounts[discipline.TierTermination])
	require.Len(t, dash.Employees, 4)
	assert.Equal(t, "emp-callout", dash.Employees[0].EmployeeID)
	assert.True(t, dash.Employees[1].Frozen, dash.Employees[1].EmployeeID)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicies_CreateActivateAndReplay(t *testing.T) {
	// GIVEN: The seeded presets and a no-show on file
	// WHEN: Storing and activating a stricter policy
	// THEN: New replays use it and the old policy is no longer active

	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	policies := decode[[]PolicyDTO](t, rec)
	require.Len(t, policies, 2)

	createEmployee(t, router, "e1")
	rec = do(t, router, http.MethodPost, "/api/employees/e1/violations", CreateViolationsRequest{
		Violations: []ViolationInput{{Date: "2025-01-06", Type: "NCNS"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/policies", `{
		"config": {"id": "strict", "name": "Strict", "no_show_penalty": 60},
		"activate": true
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PolicyDTO](t, rec)
	assert.Equal(t, 1, created.Version)
	assert.True(t, created.Active)
	assert.Equal(t, float64(60), created.Config.NoShowPenalty)

	rec = do(t, router, http.MethodGet, "/api/employees/e1/state?as_of=2025-01-07", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[StateResponse](t, rec)
	assert.Equal(t, "strict", state.PolicyID)
	assert.Equal(t, discipline.TierCoaching, state.Tier)

	rec = do(t, router, http.MethodGet, "/api/policies/"+factory.StandardPolicyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[PolicyDTO](t, rec).Active)

	rec = do(t, router, http.MethodPost, "/api/policies/"+factory.StandardPolicyID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/employees/e1/state?as_of=2025-01-07", nil)
	assert.Equal(t, discipline.TierEducational, decode[StateResponse](t, rec).Tier)
}

func TestPolicies_Errors(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/policies", `{"config": {"name": "no id"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/policies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/policies/missing/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SNAPSHOTS / ADMIN
// =============================================================================

func TestRefreshSnapshots_WritesRowsAndGauge(t *testing.T) {
	h, router := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), mustScenario(t, "team")))

	rec := do(t, router, http.MethodPost, "/api/snapshots/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[map[string]int](t, rec)["refreshed"])

	rec = do(t, router, http.MethodGet, "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snaps := decode[[]SnapshotDTO](t, rec)
	require.Len(t, snaps, 4)
	assert.Equal(t, factory.StandardPolicyID, snaps[0].PolicyID)

	// Long after every scenario date, everyone has recovered to Good.
	rec = do(t, router, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `points_engine_employees_by_tier{tier="Good"} 4`)
}

func TestHealthEndpoint(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, factory.StandardPolicyID, body["policy_id"])
}

func TestResetDatabase_ReseedsPolicies(t *testing.T) {
	h, router := setupTestHandler(t)
	createEmployee(t, router, "e1")

	rec := do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	employees, err := h.Store.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Empty(t, employees)

	active, err := h.Store.ActivePolicy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, factory.StandardPolicyID, active.ID)
}

func TestNewRouter_NilMetrics(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	h := NewHandler(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, h.LoadPolicies(context.Background()))
	router := NewRouter(h, DefaultRouterOptions())

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/metrics", nil).Code)
	assert.True(t, strings.HasPrefix(do(t, router, http.MethodGet, "/api/employees", nil).Body.String(), "["))
}
