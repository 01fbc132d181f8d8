/*
store.go - Persistence interface for history records

PURPOSE:
  Defines the interface between the domain logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): Single record write
  - AppendBatch(): Atomic multi-record write
  - NO Update() or Delete() method exists

IDEMPOTENCY:
  Every write may include an idempotency key. If the key already exists,
  the write is rejected. This prevents duplicate violations from network
  retries or a double-submitted form.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// Store handles persistence of records.
type Store interface {
	// Append persists a record. Returns error if idempotency key exists.
	Append(ctx context.Context, rec Record) error

	// AppendBatch persists multiple records atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, recs []Record) error

	// Load returns all records for an entity in insertion order.
	Load(ctx context.Context, entityID EntityID) ([]Record, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// DayIndex is implemented by stores that can answer same-day lookups
// without loading the whole history.
type DayIndex interface {
	// FindOnDay returns the id of a record of kind on day, if one exists.
	FindOnDay(ctx context.Context, entityID EntityID, kind string, day TimePoint) (RecordID, bool, error)
}
