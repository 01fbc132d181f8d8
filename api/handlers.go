/*
handlers.go - HTTP API handlers for the attendance points service

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine, the report package and
  the store. Nothing here computes points: every state is a fresh replay
  of the stored violations under the active policy.

ENDPOINTS:
  Employees:
    GET    /api/employees                        List all employees
    POST   /api/employees                        Create or update employee
    GET    /api/employees/{id}                   Get employee details

  Violations:
    GET    /api/employees/{id}/violations        Stored history
    POST   /api/employees/{id}/violations        Record violations (batch)

  State:
    GET    /api/employees/{id}/state?as_of=      Replay result with event log
    GET    /api/employees/{id}/quarters/{q}      State at the start of quarter q
    GET    /api/employees/{id}/health?as_of=     Health-check report
    GET    /api/dashboard?as_of=                 Tier counts and summaries

  Policies:
    GET    /api/policies                         Latest version of each policy
    POST   /api/policies                         Store a new version
    GET    /api/policies/{id}                    Latest version of one policy
    POST   /api/policies/{id}/activate           Make it the active policy

  Snapshots:
    GET    /api/snapshots                        Cached states
    POST   /api/snapshots/refresh                Recompute now

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - PolicyFactory: JSON to EngineConfig conversion
  - Cached engine for the active policy

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Employee or policy not found
  - 409: Duplicate violation or idempotency key
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Deploy behind a gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Reproduction scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/metrics"
	"github.com/warp/points-engine/report"
	"github.com/warp/points-engine/store/sqlite"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Ledger        *discipline.ViolationLedger
	PolicyFactory *factory.PolicyFactory
	Metrics       *metrics.Metrics
	Logger        *slog.Logger

	mu           sync.RWMutex
	engine       *discipline.Engine
	activePolicy sqlite.PolicyRecord

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store. m and logger may
// be nil.
func NewHandler(store *sqlite.Store, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:         store,
		Ledger:        discipline.NewViolationLedger(store),
		PolicyFactory: factory.NewPolicyFactory(),
		Metrics:       m,
		Logger:        logger,
	}
}

// LoadPolicies builds the engine for the active policy. An empty database
// is seeded with the preset policies and the standard one is activated.
func (h *Handler) LoadPolicies(ctx context.Context) error {
	active, err := h.Store.ActivePolicy(ctx)
	if errors.Is(err, generic.ErrPolicyNotFound) {
		if err := h.seedPolicies(ctx); err != nil {
			return err
		}
		active, err = h.Store.ActivatePolicy(ctx, factory.StandardPolicyID)
	}
	if err != nil {
		return err
	}
	return h.useActive(*active)
}

func (h *Handler) seedPolicies(ctx context.Context) error {
	for _, doc := range []string{factory.StandardPolicyJSON(), factory.QuarterlyPolicyJSON()} {
		p, err := h.PolicyFactory.ParsePolicy(doc)
		if err != nil {
			return err
		}
		if _, err := h.Store.SavePolicy(ctx, sqlite.PolicyRecord{ID: p.ID, Name: p.Name, ConfigJSON: doc}); err != nil {
			return err
		}
	}
	return nil
}

// useActive swaps the cached engine for one built from rec.
func (h *Handler) useActive(rec sqlite.PolicyRecord) error {
	policy, err := h.PolicyFactory.ParsePolicy(rec.ConfigJSON)
	if err != nil {
		return fmt.Errorf("active policy %s v%d: %w", rec.ID, rec.Version, err)
	}

	opts := []discipline.Option{discipline.WithLogger(h.Logger)}
	if h.Metrics != nil {
		opts = append(opts, discipline.WithObserver(h.Metrics))
	}
	engine, err := discipline.NewEngine(policy.Config, opts...)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.engine = engine
	h.activePolicy = rec
	h.mu.Unlock()

	h.Logger.Info("active policy loaded", "policy_id", rec.ID, "version", rec.Version)
	return nil
}

// activeEngine returns the engine and the policy it was built from.
func (h *Handler) activeEngine() (*discipline.Engine, sqlite.PolicyRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.engine == nil {
		return nil, sqlite.PolicyRecord{}, fmt.Errorf("no engine loaded: %w", generic.ErrPolicyNotFound)
	}
	return h.engine, h.activePolicy, nil
}

// replay loads an employee's history and computes its state. The employee
// must exist.
func (h *Handler) replay(ctx context.Context, employeeID string, fn func(*discipline.Engine, []discipline.Violation) discipline.Result) (StateResponse, error) {
	if _, err := h.Store.GetEmployee(ctx, employeeID); err != nil {
		return StateResponse{}, err
	}
	engine, policy, err := h.activeEngine()
	if err != nil {
		return StateResponse{}, err
	}
	vs, err := h.Ledger.Violations(ctx, generic.EntityID(employeeID))
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{
		EmployeeID:    employeeID,
		PolicyID:      policy.ID,
		PolicyVersion: policy.Version,
		Result:        fn(engine, vs),
	}, nil
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := sqlite.Employee{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
	}
	if req.HireDate != "" {
		hireDate, err := generic.ParseCalendarDate(req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date", err)
			return
		}
		emp.HireDate = hireDate
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func toEmployeeDTO(e sqlite.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// VIOLATION HANDLERS
// =============================================================================

// ListViolations returns the stored history in insertion order.
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	recs, err := h.Ledger.Records(r.Context(), generic.EntityID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load violations", err)
		return
	}

	dtos := make([]ViolationDTO, len(recs))
	for i, rec := range recs {
		v := discipline.ViolationFromRecord(rec)
		dtos[i] = ViolationDTO{
			ID:                     v.ID,
			Date:                   v.Date,
			Type:                   v.Type,
			ShiftCovered:           v.ShiftCovered,
			ProtectedAbsence:       v.ProtectedAbsence,
			ProtectedAbsenceReason: v.ProtectedAbsenceReason,
			Reason:                 rec.Reason,
			IdempotencyKey:         rec.IdempotencyKey,
			CreatedBy:              rec.CreatedBy,
			CreatedAt:              rec.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateViolations records a batch of violations. The batch is rejected as
// a whole when any entry is invalid or a duplicate.
func (h *Handler) CreateViolations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateViolationsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Violations) == 0 {
		writeError(w, http.StatusBadRequest, "violations must not be empty", nil)
		return
	}
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	recs := make([]generic.Record, 0, len(req.Violations))
	for i, in := range req.Violations {
		rec, err := discipline.NewRecord(generic.EntityID(id), discipline.Violation{
			ID:                     in.ID,
			Date:                   in.Date,
			Type:                   in.Type,
			ShiftCovered:           in.ShiftCovered,
			ProtectedAbsence:       in.ProtectedAbsence,
			ProtectedAbsenceReason: in.ProtectedAbsenceReason,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("violations[%d] is invalid", i), err)
			return
		}
		rec.Reason = in.Reason
		rec.IdempotencyKey = in.IdempotencyKey
		rec.CreatedBy = in.CreatedBy
		recs = append(recs, rec)
	}

	if err := h.Ledger.AppendBatch(r.Context(), recs); err != nil {
		writeDomainError(w, "Failed to record violations", err)
		return
	}

	h.Logger.Info("violations recorded", "employee_id", id, "count", len(recs))

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = string(rec.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"employee_id": id, "ids": ids})
}

// =============================================================================
// STATE HANDLERS
// =============================================================================

// GetState replays the employee's history up to as_of (default today).
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}
	resp, err := h.replay(r.Context(), chi.URLParam(r, "id"), func(e *discipline.Engine, vs []discipline.Violation) discipline.Result {
		return e.StateAsOf(vs, asOf)
	})
	if err != nil {
		writeDomainError(w, "Failed to compute state", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetQuarterStart returns the state at the first day of the quarter, from
// violations strictly before it.
func (h *Handler) GetQuarterStart(w http.ResponseWriter, r *http.Request) {
	q, err := generic.ParseQuarter(chi.URLParam(r, "quarter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quarter (use YYYY-Qn)", err)
		return
	}
	resp, err := h.replay(r.Context(), chi.URLParam(r, "id"), func(e *discipline.Engine, vs []discipline.Violation) discipline.Result {
		return e.QuarterlyStart(q, vs)
	})
	if err != nil {
		writeDomainError(w, "Failed to compute quarter start", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHealth returns the health-check report.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	resp, err := h.replay(r.Context(), id, func(e *discipline.Engine, vs []discipline.Violation) discipline.Result {
		return e.StateAsOf(vs, asOf)
	})
	if err != nil {
		writeDomainError(w, "Failed to compute health", err)
		return
	}
	writeJSON(w, http.StatusOK, report.BuildHealth(id, resp.Result))
}

// GetDashboard replays every employee and aggregates the results.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}
	rows, resolved, err := h.summaries(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, report.BuildDashboard(resolved, rows))
}

// summaries replays every employee at asOf. resolved is the as-of date the
// engine actually used (today when asOf is zero).
func (h *Handler) summaries(ctx context.Context, asOf generic.TimePoint) (rows []report.Summary, resolved generic.TimePoint, err error) {
	engine, _, err := h.activeEngine()
	if err != nil {
		return nil, asOf, err
	}
	employees, err := h.Store.ListEmployees(ctx)
	if err != nil {
		return nil, asOf, err
	}

	resolved = asOf
	rows = make([]report.Summary, 0, len(employees))
	for _, emp := range employees {
		vs, err := h.Ledger.Violations(ctx, generic.EntityID(emp.ID))
		if err != nil {
			return nil, asOf, err
		}
		res := engine.StateAsOf(vs, asOf)
		resolved = res.AsOf
		rows = append(rows, report.Summarize(emp.ID, emp.Name, res))
	}
	return rows, resolved, nil
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns the latest version of every policy.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = toPolicyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy validates and stores a new policy version.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Validate by parsing
	policy, err := h.PolicyFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy configuration", err)
		return
	}

	configJSON, _ := json.Marshal(factory.ToJSON(policy.ID, policy.Name, policy.Config))
	record, err := h.Store.SavePolicy(r.Context(), sqlite.PolicyRecord{
		ID:         policy.ID,
		Name:       policy.Name,
		ConfigJSON: string(configJSON),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create policy", err)
		return
	}

	if req.Activate {
		active, err := h.activate(r.Context(), record.ID)
		if err != nil {
			writeDomainError(w, "Failed to activate policy", err)
			return
		}
		record = *active
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(record))
}

// GetPolicy returns the latest version of a policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	record, err := h.Store.GetPolicy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get policy", err)
		return
	}
	_, active, _ := h.activeEngine()
	record.Active = active.ID == record.ID && active.Version == record.Version
	writeJSON(w, http.StatusOK, toPolicyDTO(*record))
}

// ActivatePolicy makes the latest version of a policy the active one.
func (h *Handler) ActivatePolicy(w http.ResponseWriter, r *http.Request) {
	record, err := h.activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to activate policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*record))
}

func (h *Handler) activate(ctx context.Context, id string) (*sqlite.PolicyRecord, error) {
	record, err := h.Store.ActivatePolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.useActive(*record); err != nil {
		return nil, err
	}
	return record, nil
}

func toPolicyDTO(p sqlite.PolicyRecord) PolicyDTO {
	var config factory.PolicyJSON
	json.Unmarshal([]byte(p.ConfigJSON), &config)
	return PolicyDTO{
		ID:        p.ID,
		Name:      p.Name,
		Version:   p.Version,
		Active:    p.Active,
		Config:    config,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// ListSnapshots returns the cached states written by the scheduler.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots", err)
		return
	}

	dtos := make([]SnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = SnapshotDTO{
			EmployeeID:    s.EmployeeID,
			PolicyID:      s.PolicyID,
			PolicyVersion: s.PolicyVersion,
			AsOf:          s.AsOf.String(),
			Points:        s.Points,
			Tier:          s.Tier,
			DAStage:       discipline.DAStageLabel(s.DAStageIndex),
			ComputedAt:    s.ComputedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RefreshSnapshots recomputes every snapshot immediately.
func (h *Handler) RefreshSnapshots(w http.ResponseWriter, r *http.Request) {
	n, err := RefreshSnapshots(r.Context(), h)
	if err != nil {
		writeDomainError(w, "Failed to refresh snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"refreshed": n})
}

// =============================================================================
// ADMIN
// =============================================================================

// Health reports database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
		return
	}
	_, policy, _ := h.activeEngine()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"policy_id":      policy.ID,
		"policy_version": policy.Version,
	})
}

// ResetDatabase clears all data and re-seeds the preset policies.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return h.LoadPolicies(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err), errors.Is(err, discipline.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// asOfParam parses ?as_of=. Absent means zero (the engine picks today).
func asOfParam(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return generic.TimePoint{}, true
	}
	asOf, err := generic.ParseCalendarDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return generic.TimePoint{}, false
	}
	return asOf, true
}
