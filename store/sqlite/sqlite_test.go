package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, emp string, v discipline.Violation) generic.Record {
	t.Helper()
	rec, err := discipline.NewRecord(generic.EntityID(emp), v)
	require.NoError(t, err)
	return rec
}

func TestStore_AppendAndLoadInInsertionOrder(t *testing.T) {
	// GIVEN: Three violations appended out of date order
	// WHEN: Loading the employee
	// THEN: Records come back in insertion order with flags intact

	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, record(t, "e1", discipline.Violation{Date: "2025-03-01", Type: "Call Out", ShiftCovered: true})))
	require.NoError(t, s.Append(ctx, record(t, "e1", discipline.Violation{Date: "2025-01-01", Type: "Tardy (1-5 min)"})))
	require.NoError(t, s.Append(ctx, record(t, "e2", discipline.Violation{Date: "2025-01-01", Type: "Tardy (1-5 min)"})))

	recs, err := s.Load(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2025-03-01", recs[0].RawDate)
	assert.True(t, recs[0].Flag(discipline.FlagShiftCovered))
	assert.Equal(t, "2025-01-01", recs[1].RawDate)

	counts, err := s.CountViolations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["e1"])
	assert.Equal(t, 1, counts["e2"])
}

func TestStore_SameDayDuplicateRejected(t *testing.T) {
	// GIVEN: A tardy stored on 2025-01-06
	// WHEN: The same type is appended for the same day
	// THEN: The unique index rejects it and reports the existing record

	ctx := context.Background()
	s := newStore(t)

	first := record(t, "e1", discipline.Violation{Date: "2025-01-06", Type: "Tardy (1-5 min)"})
	require.NoError(t, s.Append(ctx, first))

	err := s.Append(ctx, record(t, "e1", discipline.Violation{Date: "2025-01-06T14:00:00Z", Type: "Tardy 1-5"}))
	require.ErrorIs(t, err, generic.ErrDuplicateViolation)
	var dup *generic.DuplicateRecordError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)

	id, ok, err := s.FindOnDay(ctx, "e1", string(discipline.TardyMinor), generic.MustParseDate("2025-01-06"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.ID, id)
}

func TestStore_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := record(t, "e1", discipline.Violation{Date: "2025-01-06", Type: "Call Out"})
	a.IdempotencyKey = "k1"
	require.NoError(t, s.Append(ctx, a))

	b := record(t, "e1", discipline.Violation{Date: "2025-01-09", Type: "Call Out"})
	b.IdempotencyKey = "k1"
	assert.ErrorIs(t, s.Append(ctx, b), generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_AppendBatchIsAtomic(t *testing.T) {
	// GIVEN: A batch whose last record duplicates the first
	// WHEN: Appending it
	// THEN: Nothing is stored

	ctx := context.Background()
	s := newStore(t)

	err := s.AppendBatch(ctx, []generic.Record{
		record(t, "e1", discipline.Violation{Date: "2025-01-06", Type: "Call Out"}),
		record(t, "e1", discipline.Violation{Date: "2025-01-07", Type: "Call Out"}),
		record(t, "e1", discipline.Violation{Date: "2025-01-06", Type: "Call Out"}),
	})
	require.ErrorIs(t, err, generic.ErrDuplicateViolation)

	recs, err := s.Load(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_UnparseableDateIsStored(t *testing.T) {
	// GIVEN: A record whose date text does not parse
	// WHEN: Appended twice (no day to constrain)
	// THEN: Both are kept so replay reports them as rejected

	ctx := context.Background()
	s := newStore(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Append(ctx, generic.Record{EntityID: "e1", RawDate: "not-a-date", Kind: "Call Out"}))
	}

	l := discipline.NewViolationLedger(s)
	vs, err := l.Violations(ctx, "e1")
	require.NoError(t, err)
	res, err := discipline.ComputeState(vs, discipline.DefaultConfig(), generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	assert.Len(t, res.Rejected, 2)
}

func TestStore_Employees(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetEmployee(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)

	require.NoError(t, s.SaveEmployee(ctx, sqlite.Employee{ID: "e2", Name: "Bea", HireDate: generic.MustParseDate("2023-05-01")}))
	require.NoError(t, s.SaveEmployee(ctx, sqlite.Employee{ID: "e1", Name: "Ana"}))
	require.NoError(t, s.SaveEmployee(ctx, sqlite.Employee{ID: "e1", Name: "Ana Maria", Department: "Ops"}))

	emp, err := s.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", emp.Name)
	assert.Equal(t, "Ops", emp.Department)

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e1", all[0].ID)
	assert.Equal(t, generic.MustParseDate("2023-05-01"), all[1].HireDate)
}

func TestStore_PolicyVersionsAndActivation(t *testing.T) {
	// GIVEN: Two saves of one policy and one of another
	// WHEN: Activating each in turn
	// THEN: Versions increment and exactly one policy is active

	ctx := context.Background()
	s := newStore(t)

	_, err := s.ActivePolicy(ctx)
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)

	v1, err := s.SavePolicy(ctx, sqlite.PolicyRecord{ID: "std", Name: "Standard", ConfigJSON: `{"id":"std"}`})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	v2, err := s.SavePolicy(ctx, sqlite.PolicyRecord{ID: "std", Name: "Standard", ConfigJSON: `{"id":"std","max_points":150}`})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	_, err = s.SavePolicy(ctx, sqlite.PolicyRecord{ID: "qtr", Name: "Quarterly", ConfigJSON: `{"id":"qtr"}`})
	require.NoError(t, err)

	active, err := s.ActivatePolicy(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)

	_, err = s.ActivatePolicy(ctx, "qtr")
	require.NoError(t, err)
	active, err = s.ActivePolicy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "qtr", active.ID)

	list, err := s.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, p := range list {
		assert.Equal(t, p.ID == "qtr", p.Active, p.ID)
	}

	_, err = s.ActivatePolicy(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	snap, err := s.GetSnapshot(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, s.SaveSnapshot(ctx, sqlite.SnapshotRecord{
		EmployeeID: "e1", PolicyID: "std", PolicyVersion: 1,
		AsOf: generic.MustParseDate("2025-02-01"), Points: decimal.NewFromInt(130),
		Tier: "Good", ResultJSON: "{}",
	}))
	require.NoError(t, s.SaveSnapshot(ctx, sqlite.SnapshotRecord{
		EmployeeID: "e1", PolicyID: "std", PolicyVersion: 1,
		AsOf: generic.MustParseDate("2025-03-01"), Points: decimal.RequireFromString("97.5"),
		Tier: "Coaching", DAStageIndex: 1, ResultJSON: "{}",
	}))

	snap, err = s.GetSnapshot(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "97.5", snap.Points.String())
	assert.Equal(t, "Coaching", snap.Tier)
	assert.Equal(t, generic.MustParseDate("2025-03-01"), snap.AsOf)

	all, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.Reset(ctx))
	all, err = s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
