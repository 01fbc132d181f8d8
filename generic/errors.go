/*
errors.go - Centralized error types for the generic layer

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Parse errors - Dates and quarter keys that cannot be understood
  2. Ledger errors - Record persistence failures
  3. Lookup errors - Missing employees or policies

USAGE:
    if errors.Is(err, generic.ErrInvalidDate) {
        // exclude the record, keep replaying the rest
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - discipline/ledger.go: Wraps these errors with domain context
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date representation cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidQuarterKey is returned for quarter keys other than "YYYY-Qn".
	ErrInvalidQuarterKey = errors.New("invalid quarter key")

	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateViolation is returned when the same violation type is
	// recorded twice for one employee on one calendar day.
	ErrDuplicateViolation = errors.New("duplicate violation on same day")

	// ErrRecordFailed is returned when a record cannot be persisted.
	ErrRecordFailed = errors.New("record failed")

	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError describes a date that could not be normalized.
type InvalidDateError struct {
	Input  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// DuplicateRecordError reports a same-day duplicate at the generic layer.
type DuplicateRecordError struct {
	EntityID   EntityID
	Date       TimePoint
	Kind       string
	ExistingID RecordID
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("%s already recorded for %s on %s (record: %s)",
		e.Kind, e.EntityID, e.Date, e.ExistingID)
}

func (e *DuplicateRecordError) Unwrap() error {
	return ErrDuplicateViolation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidQuarterKey) ||
		errors.Is(err, ErrDuplicateViolation) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateViolation) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrEntityNotFound)
}
