/*
Package generic provides the domain-agnostic primitives of the points engine.

PURPOSE:
  This package contains the types that do not know anything about tiers,
  callouts or disciplinary stages: calendar days, periods, an append-only
  record ledger and the error vocabulary. The discipline package builds the
  replay engine on top of them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: An immutable, dated entry in an employee's history
  - EntityID / RecordID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Records are never modified; history is replayed
  2. Calendar days: Records carry a day, never an instant
  3. Type Safety: Strong typing for IDs prevents mixing entity/record IDs
  4. Auditability: Every record has a kind, reason and idempotency key

SEE ALSO:
  - time.go: TimePoint and ParseCalendarDate
  - ledger.go: Record persistence interface
*/
package generic

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type RecordID string

// =============================================================================
// RECORD - Atomic entry in an entity's history
// =============================================================================

// Record is a stored history entry. RawDate keeps the caller's original
// date text so that replay can re-run normalization (and report the same
// parse failures) instead of trusting a value decoded once at write time.
type Record struct {
	ID       RecordID
	EntityID EntityID
	RawDate  string
	Kind     string

	// Flags carried verbatim for the domain layer.
	Flags  map[string]bool
	Reason string

	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt time.Time
}

// Flag returns the named flag, false when absent.
func (r Record) Flag(name string) bool {
	return r.Flags[name]
}

// Date parses RawDate.
func (r Record) Date() (TimePoint, error) {
	return ParseCalendarDate(r.RawDate)
}
