/*
ledger.go - Append-only record log

PURPOSE:
  The Ledger is the immutable source of truth for an employee's history.
  Point balances, tiers and disciplinary stages are never stored as
  authoritative values; they are always computed by replaying records.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update. EVER.
  2. IMMUTABLE: Once written, records cannot be modified
  3. IDEMPOTENT: Same idempotency key = same record (no duplicates)

SEE ALSO:
  - store.go: Low-level persistence interface
  - discipline/ledger.go: Domain-specific wrapper with same-day duplicate checks
*/
package generic

import (
	"context"
	"sort"
)

// Ledger is the source of truth for all history records.
type Ledger interface {
	// Append adds a record. Fails if idempotency key exists.
	Append(ctx context.Context, rec Record) error

	// AppendBatch adds multiple records atomically.
	AppendBatch(ctx context.Context, recs []Record) error

	// Records returns every record for the entity, ordered by calendar day.
	// Records whose date does not parse are returned last, in insertion order,
	// so callers can still report them.
	Records(ctx context.Context, entityID EntityID) ([]Record, error)

	// RecordsInRange returns records whose day is within [from, to].
	RecordsInRange(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Record, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, rec Record) error {
	if rec.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, rec.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, rec)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, recs []Record) error {
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.IdempotencyKey == "" {
			continue
		}
		if seen[rec.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[rec.IdempotencyKey] = true

		exists, err := l.Store.Exists(ctx, rec.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, recs)
}

func (l *DefaultLedger) Records(ctx context.Context, entityID EntityID) ([]Record, error) {
	recs, err := l.Store.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	SortRecords(recs)
	return recs, nil
}

func (l *DefaultLedger) RecordsInRange(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Record, error) {
	recs, err := l.Records(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := recs[:0:0]
	for _, rec := range recs {
		day, err := rec.Date()
		if err != nil {
			continue
		}
		if (Period{Start: from, End: to}).Contains(day) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SortRecords orders records by calendar day, keeping insertion order for
// ties. Unparseable dates sink to the end.
func SortRecords(recs []Record) {
	type keyed struct {
		rec Record
		day TimePoint
		ok  bool
	}
	ks := make([]keyed, len(recs))
	for i, r := range recs {
		d, err := r.Date()
		ks[i] = keyed{rec: r, day: d, ok: err == nil}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].day.Before(ks[j].day)
	})
	for i := range ks {
		recs[i] = ks[i].rec
	}
}
