/*
scenarios.go - Reproduction scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built histories that populate the database with the cases
  supervisors most often ask about. Each scenario resets the database,
  seeds the preset policies, creates employees and records violations
  through the ViolationLedger, exactly as the API would.

AVAILABLE SCENARIOS:
  idle-promotion:       Two drops then recovery one tier per 30 idle days
  yo-yo-freeze:         Third drop out of Good within a year freezes promotions
  consecutive-callouts: A run of daily callouts costs one callout, then a surge
  tardy-escalation:     Monthly tardy escalation and its rollover
  team:                 All of the above as one team, for the dashboard

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "yo-yo-freeze"}

  Then view each employee with ?as_of= set to the scenario's as_of.

ADDING NEW SCENARIOS:
  1. Add an entry to the scenarios slice
  2. List its employees and violations

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/presets.go: Preset policies
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioEmployee struct {
	employee   sqlite.Employee
	violations []discipline.Violation
}

type scenario struct {
	ScenarioDTO
	employees []scenarioEmployee
}

var (
	idleEmployee = scenarioEmployee{
		employee: sqlite.Employee{ID: "emp-idle", Name: "Idris Idle", Department: "Warehouse"},
		violations: []discipline.Violation{
			{Date: "2025-01-10", Type: string(discipline.NoCallNoShow)},
			{Date: "2025-01-11", Type: string(discipline.NoCallNoShow)},
		},
	}

	yoyoEmployee = scenarioEmployee{
		employee: sqlite.Employee{ID: "emp-yoyo", Name: "Yolanda Yoyo", Department: "Warehouse"},
		violations: []discipline.Violation{
			{Date: "2025-01-01", Type: string(discipline.NoCallNoShow)},
			{Date: "2025-02-05", Type: string(discipline.NoCallNoShow)},
			{Date: "2025-03-12", Type: string(discipline.NoCallNoShow)},
		},
	}

	calloutEmployee = scenarioEmployee{
		employee: sqlite.Employee{ID: "emp-callout", Name: "Cal Calloway", Department: "Front Desk"},
		violations: []discipline.Violation{
			{Date: "2025-03-03", Type: string(discipline.CallOut)},
			{Date: "2025-03-04", Type: string(discipline.CallOut)},
			{Date: "2025-03-05", Type: string(discipline.CallOut)},
			{Date: "2025-03-06", Type: string(discipline.CallOut)},
			{Date: "2025-03-07", Type: string(discipline.CallOut)},
			{Date: "2025-03-20", Type: string(discipline.CallOut), ShiftCovered: true},
			{Date: "2025-04-15", Type: string(discipline.CallOut)},
		},
	}

	tardyEmployee = scenarioEmployee{
		employee: sqlite.Employee{ID: "emp-tardy", Name: "Tara Tardy", Department: "Front Desk"},
		violations: []discipline.Violation{
			{Date: "2025-01-06", Type: string(discipline.TardyMinor)},
			{Date: "2025-01-08", Type: string(discipline.TardyMinor)},
			{Date: "2025-01-13", Type: string(discipline.TardyMinor)},
			{Date: "2025-01-15", Type: string(discipline.TardyMinor)},
			{Date: "2025-01-20", Type: string(discipline.TardyMinor)},
			{Date: "2025-02-03", Type: string(discipline.TardyMinor)},
		},
	}
)

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "idle-promotion",
			Name:        "Idle Promotion",
			Description: "Two no-shows drop Good to Coaching; 30 idle days each promote to Educational, then Good",
			AsOf:        "2025-03-12",
		},
		employees: []scenarioEmployee{idleEmployee},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "yo-yo-freeze",
			Name:        "Yo-Yo Freeze",
			Description: "Third drop out of Good within a year freezes time promotions for 90 days",
			AsOf:        "2025-06-10",
		},
		employees: []scenarioEmployee{yoyoEmployee},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "consecutive-callouts",
			Name:        "Consecutive Callouts",
			Description: "Five daily callouts cost one callout; a covered shift is free; the next callout surges",
			AsOf:        "2025-04-20",
		},
		employees: []scenarioEmployee{calloutEmployee},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "tardy-escalation",
			Name:        "Tardy Escalation",
			Description: "Repeated minor tardies escalate 2, 3, 5, 5, 5 within a month and restart next month",
			AsOf:        "2025-02-04",
		},
		employees: []scenarioEmployee{tardyEmployee},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "team",
			Name:        "Team Dashboard",
			Description: "All scenario employees together",
			AsOf:        "2025-04-20",
		},
		employees: []scenarioEmployee{idleEmployee, yoyoEmployee, calloutEmployee, tardyEmployee},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scenario": s.ScenarioDTO,
	})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.reset(ctx); err != nil {
		return err
	}

	for _, se := range s.employees {
		if err := h.Store.SaveEmployee(ctx, se.employee); err != nil {
			return err
		}

		recs := make([]generic.Record, 0, len(se.violations))
		for _, v := range se.violations {
			rec, err := discipline.NewRecord(generic.EntityID(se.employee.ID), v)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.ID, err)
			}
			rec.IdempotencyKey = fmt.Sprintf("scenario:%s:%s", s.ID, uuid.NewString())
			rec.CreatedBy = "scenario:" + s.ID
			recs = append(recs, rec)
		}
		if err := h.Ledger.AppendBatch(ctx, recs); err != nil {
			return fmt.Errorf("scenario %s: %w", s.ID, err)
		}
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", "scenario", s.ID, "employees", len(s.employees))
	return nil
}
