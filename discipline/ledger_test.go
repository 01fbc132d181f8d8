package discipline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/generic/store"
)

// loadOnlyStore hides the memory store's DayIndex so the scan path runs.
type loadOnlyStore struct{ generic.Store }

func mustRecord(t *testing.T, emp generic.EntityID, v discipline.Violation) generic.Record {
	t.Helper()
	rec, err := discipline.NewRecord(emp, v)
	require.NoError(t, err)
	return rec
}

func TestViolationLedger_SameDaySameTypeRejected(t *testing.T) {
	for name, st := range map[string]generic.Store{
		"day index": store.NewMemory(),
		"scan":      loadOnlyStore{store.NewMemory()},
	} {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A callout recorded on Mar 10
			// WHEN: Recording another callout on Mar 10 (different spelling)
			// THEN: DuplicateViolationError; a tardy the same day is fine

			ctx := context.Background()
			ledger := discipline.NewViolationLedger(st)

			require.NoError(t, ledger.Append(ctx, mustRecord(t, "emp-1", discipline.Violation{
				ID: "v1", Date: "2025-03-10", Type: "Call Out",
			})))

			err := ledger.Append(ctx, mustRecord(t, "emp-1", discipline.Violation{
				ID: "v2", Date: "2025-03-10T09:00:00Z", Type: "Callout",
			}))
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrDuplicateViolation)
			assert.True(t, generic.IsConflict(err))

			var dup *discipline.DuplicateViolationError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, generic.RecordID("v1"), dup.ExistingID)
			assert.False(t, dup.InBatch)

			require.NoError(t, ledger.Append(ctx, mustRecord(t, "emp-1", discipline.Violation{
				ID: "v3", Date: "2025-03-10", Type: "Tardy (1-5 min)",
			})))
			require.NoError(t, ledger.Append(ctx, mustRecord(t, "emp-2", discipline.Violation{
				ID: "v4", Date: "2025-03-10", Type: "Call Out",
			})))
		})
	}
}

func TestViolationLedger_BatchDuplicates(t *testing.T) {
	ctx := context.Background()
	ledger := discipline.NewViolationLedger(store.NewMemory())

	err := ledger.AppendBatch(ctx, []generic.Record{
		mustRecord(t, "emp-1", discipline.Violation{ID: "a", Date: "2025-03-10", Type: "Call Out"}),
		mustRecord(t, "emp-1", discipline.Violation{ID: "b", Date: "2025-03-10", Type: "call out"}),
	})
	var dup *discipline.DuplicateViolationError
	require.True(t, errors.As(err, &dup))
	assert.True(t, dup.InBatch)

	recs, err := ledger.Records(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestViolationLedger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger := discipline.NewViolationLedger(store.NewMemory())

	require.NoError(t, ledger.AppendBatch(ctx, []generic.Record{
		mustRecord(t, "emp-1", discipline.Violation{
			ID: "p", Date: "2025-03-12", Type: "Call Out",
			ProtectedAbsence: true, ProtectedAbsenceReason: "jury duty",
		}),
		mustRecord(t, "emp-1", discipline.Violation{ID: "c", Date: "03/11/2025", Type: "NCNS"}),
	}))

	got, err := ledger.Violations(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "2025-03-11", got[0].Date)
	assert.Equal(t, string(discipline.NoCallNoShow), got[0].Type)

	assert.True(t, got[1].ProtectedAbsence)
	assert.False(t, got[1].ShiftCovered)
	assert.Equal(t, "jury duty", got[1].ProtectedAbsenceReason)
}

func TestNewRecord(t *testing.T) {
	_, err := discipline.NewRecord("emp-1", discipline.Violation{Date: "soon", Type: "Call Out"})
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	rec, err := discipline.NewRecord("emp-1", discipline.Violation{Date: "2025-01-01", Type: "Dress Code"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID, "ids are generated when absent")
	assert.Equal(t, "Dress Code", rec.Kind, "unknown types are stored verbatim")
}
