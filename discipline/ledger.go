/*
ledger.go - Violation ledger with same-day duplicate enforcement

PURPOSE:
  Wraps the generic record ledger with the attendance rule that one
  employee cannot receive the same violation type twice on one calendar
  day. A double-submitted form or a re-imported spreadsheet row would
  otherwise be billed twice by the replay.

  Different types on the same day are fine (a tardy and a shift pickup).

MAPPING:
  Violation.Type             -> Record.Kind (canonical when recognized)
  Violation.Date / At        -> Record.RawDate (YYYY-MM-DD)
  ShiftCovered               -> Record.Flags["shift_covered"]
  ProtectedAbsence           -> Record.Flags["protected_absence"]
  ProtectedAbsenceReason     -> Record.Reason

WHAT IT CHECKS:
  1. Single Append: Is this type already recorded on this day?
  2. Batch Append: Are there duplicates within the batch?
  3. Batch Append: Do any batch items conflict with existing records?

  Stores implementing generic.DayIndex are asked directly; otherwise the
  employee's history is loaded and scanned.

SEE ALSO:
  - generic/ledger.go: Base ledger and idempotency keys
  - store/sqlite/sqlite.go: Unique (employee, day, kind) index
*/
package discipline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/points-engine/generic"
)

const (
	FlagShiftCovered     = "shift_covered"
	FlagProtectedAbsence = "protected_absence"
)

// ViolationLedger is the write path for violation history.
type ViolationLedger struct {
	inner generic.Ledger
	store generic.Store
	index generic.DayIndex // nil when the store has no day index
}

func NewViolationLedger(store generic.Store) *ViolationLedger {
	l := &ViolationLedger{
		inner: generic.NewLedger(store),
		store: store,
	}
	if idx, ok := store.(generic.DayIndex); ok {
		l.index = idx
	}
	return l
}

// =============================================================================
// CONVERSION
// =============================================================================

// NewRecord converts a violation into a storable record. The date must
// resolve; the stored RawDate is the normalized day.
func NewRecord(employeeID generic.EntityID, v Violation) (generic.Record, error) {
	day, err := v.CalendarDate()
	if err != nil {
		return generic.Record{}, err
	}
	kind := v.Type
	if t, ok := CanonicalType(v.Type); ok {
		kind = string(t)
	}
	id := v.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := generic.Record{
		ID:        generic.RecordID(id),
		EntityID:  employeeID,
		RawDate:   day.String(),
		Kind:      kind,
		Reason:    v.ProtectedAbsenceReason,
		CreatedAt: time.Now().UTC(),
	}
	if v.ShiftCovered || v.ProtectedAbsence {
		rec.Flags = map[string]bool{
			FlagShiftCovered:     v.ShiftCovered,
			FlagProtectedAbsence: v.ProtectedAbsence,
		}
	}
	return rec, nil
}

// ViolationFromRecord is the inverse of NewRecord.
func ViolationFromRecord(rec generic.Record) Violation {
	return Violation{
		ID:                     string(rec.ID),
		Date:                   rec.RawDate,
		Type:                   rec.Kind,
		ShiftCovered:           rec.Flag(FlagShiftCovered),
		ProtectedAbsence:       rec.Flag(FlagProtectedAbsence),
		ProtectedAbsenceReason: rec.Reason,
	}
}

// =============================================================================
// CORE OPERATIONS
// =============================================================================

// Append writes one record, rejecting same-day duplicates.
func (l *ViolationLedger) Append(ctx context.Context, rec generic.Record) error {
	day, err := rec.Date()
	if err != nil {
		return err
	}
	if err := l.checkExisting(ctx, rec, day); err != nil {
		return err
	}
	return l.wrapStoreError(l.inner.Append(ctx, rec), rec, day)
}

// AppendBatch writes records atomically after checking the batch against
// itself and against stored history.
func (l *ViolationLedger) AppendBatch(ctx context.Context, recs []generic.Record) error {
	seen := make(map[string]generic.RecordID, len(recs))
	for _, rec := range recs {
		day, err := rec.Date()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s|%s|%s", rec.EntityID, rec.Kind, day)
		if existing, dup := seen[key]; dup {
			return &DuplicateViolationError{
				EmployeeID: rec.EntityID,
				Date:       day,
				Type:       rec.Kind,
				ExistingID: existing,
				InBatch:    true,
			}
		}
		seen[key] = rec.ID

		if err := l.checkExisting(ctx, rec, day); err != nil {
			return err
		}
	}
	if err := l.inner.AppendBatch(ctx, recs); err != nil {
		var dup *generic.DuplicateRecordError
		if errors.As(err, &dup) {
			return &DuplicateViolationError{
				EmployeeID: dup.EntityID,
				Date:       dup.Date,
				Type:       dup.Kind,
				ExistingID: dup.ExistingID,
			}
		}
		return err
	}
	return nil
}

// Records returns the employee's records in calendar order.
func (l *ViolationLedger) Records(ctx context.Context, employeeID generic.EntityID) ([]generic.Record, error) {
	return l.inner.Records(ctx, employeeID)
}

// Violations returns the employee's history as engine input.
func (l *ViolationLedger) Violations(ctx context.Context, employeeID generic.EntityID) ([]Violation, error) {
	recs, err := l.inner.Records(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]Violation, len(recs))
	for i, rec := range recs {
		out[i] = ViolationFromRecord(rec)
	}
	return out, nil
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func (l *ViolationLedger) checkExisting(ctx context.Context, rec generic.Record, day generic.TimePoint) error {
	if l.index != nil {
		id, found, err := l.index.FindOnDay(ctx, rec.EntityID, rec.Kind, day)
		if err != nil {
			return fmt.Errorf("failed to check same-day violations: %w", err)
		}
		if found {
			return &DuplicateViolationError{EmployeeID: rec.EntityID, Date: day, Type: rec.Kind, ExistingID: id}
		}
		return nil
	}

	existing, err := l.store.Load(ctx, rec.EntityID)
	if err != nil {
		return fmt.Errorf("failed to check same-day violations: %w", err)
	}
	for _, e := range existing {
		if e.Kind != rec.Kind {
			continue
		}
		if d, err := e.Date(); err == nil && d.Equal(day) {
			return &DuplicateViolationError{EmployeeID: rec.EntityID, Date: day, Type: rec.Kind, ExistingID: e.ID}
		}
	}
	return nil
}

// wrapStoreError maps the store's unique-index failure to the domain error.
func (l *ViolationLedger) wrapStoreError(err error, rec generic.Record, day generic.TimePoint) error {
	var dup *generic.DuplicateRecordError
	if errors.As(err, &dup) {
		return &DuplicateViolationError{
			EmployeeID: rec.EntityID,
			Date:       day,
			Type:       rec.Kind,
			ExistingID: dup.ExistingID,
		}
	}
	return err
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// DuplicateViolationError is returned when the same violation type is
// recorded twice for one employee on one day.
type DuplicateViolationError struct {
	EmployeeID generic.EntityID
	Date       generic.TimePoint
	Type       string
	ExistingID generic.RecordID
	InBatch    bool
}

func (e *DuplicateViolationError) Error() string {
	if e.InBatch {
		return fmt.Sprintf("duplicate violation in request: %s on %s included twice", e.Type, e.Date)
	}
	return fmt.Sprintf("violation already recorded: %s on %s (record: %s)", e.Type, e.Date, e.ExistingID)
}

func (e *DuplicateViolationError) Unwrap() error {
	return generic.ErrDuplicateViolation
}
