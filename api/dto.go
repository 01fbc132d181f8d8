/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the storage rows from the external API contract. Engine and report
  outputs (discipline.Result, report.Health, report.Dashboard) already
  carry JSON tags and are returned as they are.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:   EmployeeDTO, CreateEmployeeRequest
  Violations: ViolationInput, CreateViolationsRequest, ViolationDTO
  State:      StateResponse
  Policy:     PolicyDTO, CreatePolicyRequest (wrap factory.PolicyJSON)
  Snapshots:  SnapshotDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/factory"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	HireDate   string `json:"hire_date,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request body for creating an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	HireDate   string `json:"hire_date"` // YYYY-MM-DD, optional
}

// =============================================================================
// VIOLATIONS
// =============================================================================

// ViolationInput is one violation in a create request.
type ViolationInput struct {
	ID                     string `json:"id,omitempty"`
	Date                   string `json:"date"`
	Type                   string `json:"type"`
	ShiftCovered           bool   `json:"shift_covered,omitempty"`
	ProtectedAbsence       bool   `json:"protected_absence,omitempty"`
	ProtectedAbsenceReason string `json:"protected_absence_reason,omitempty"`
	Reason                 string `json:"reason,omitempty"`
	IdempotencyKey         string `json:"idempotency_key,omitempty"`
	CreatedBy              string `json:"created_by,omitempty"`
}

// CreateViolationsRequest records one or more violations atomically.
type CreateViolationsRequest struct {
	Violations []ViolationInput `json:"violations"`
}

// ViolationDTO is a stored violation.
type ViolationDTO struct {
	ID                     string `json:"id"`
	Date                   string `json:"date"`
	Type                   string `json:"type"`
	ShiftCovered           bool   `json:"shift_covered"`
	ProtectedAbsence       bool   `json:"protected_absence"`
	ProtectedAbsenceReason string `json:"protected_absence_reason,omitempty"`
	Reason                 string `json:"reason,omitempty"`
	IdempotencyKey         string `json:"idempotency_key,omitempty"`
	CreatedBy              string `json:"created_by,omitempty"`
	CreatedAt              string `json:"created_at"`
}

// =============================================================================
// STATE
// =============================================================================

// StateResponse is a replay result tagged with the policy that produced it.
type StateResponse struct {
	EmployeeID    string `json:"employee_id"`
	PolicyID      string `json:"policy_id"`
	PolicyVersion int    `json:"policy_version"`
	discipline.Result
}

// =============================================================================
// POLICIES
// =============================================================================

// PolicyDTO represents a stored policy version.
type PolicyDTO struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Version   int                `json:"version"`
	Active    bool               `json:"active"`
	Config    factory.PolicyJSON `json:"config"`
	CreatedAt string             `json:"created_at,omitempty"`
}

// CreatePolicyRequest stores a new policy version.
type CreatePolicyRequest struct {
	Config   factory.PolicyJSON `json:"config"`
	Activate bool               `json:"activate"`
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SnapshotDTO is a cached state row written by the snapshot scheduler.
type SnapshotDTO struct {
	EmployeeID    string          `json:"employee_id"`
	PolicyID      string          `json:"policy_id"`
	PolicyVersion int             `json:"policy_version"`
	AsOf          string          `json:"as_of"`
	Points        decimal.Decimal `json:"points"`
	Tier          string          `json:"tier"`
	DAStage       string          `json:"da_stage"`
	ComputedAt    string          `json:"computed_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a reproduction scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AsOf        string `json:"as_of"` // the date the scenario is meant to be viewed at
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the error body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
