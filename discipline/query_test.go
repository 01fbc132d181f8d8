package discipline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

func TestStateAsOf_Idempotent(t *testing.T) {
	// GIVEN: A fixed history and target date
	// WHEN: Queried twice
	// THEN: Identical results; nothing depends on the wall clock

	e := newEngine(t, discipline.DefaultConfig())
	history := []discipline.Violation{
		viol("a", "2024-11-02", discipline.CallOut),
		viol("b", "2024-11-20", discipline.CallOut),
		viol("c", "2024-12-01", discipline.TardyMajor),
		viol("d", "2025-01-05", discipline.ShiftPickup),
		viol("e", "2025-03-01", discipline.NoCallNoShow),
	}

	first := e.StateAsOf(history, day("2025-01-10"))
	second := e.StateAsOf(history, day("2025-01-10"))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.FutureViolations)
}

func TestQuarterlyStart(t *testing.T) {
	// GIVEN: A no-show in late March, violations on and after Apr 1
	// WHEN: Asking for the Q2 starting state
	// THEN: Only the March history counts, projected to Apr 1

	e := newEngine(t, discipline.DefaultConfig())
	history := []discipline.Violation{
		viol("mar", "2025-03-20", discipline.NoCallNoShow),
		viol("apr1", "2025-04-01", discipline.CallOut),
		viol("apr2", "2025-04-02", discipline.CallOut),
		viol("bad", "??", discipline.CallOut),
	}

	q, err := generic.ParseQuarter("2025-Q2")
	require.NoError(t, err)
	res := e.QuarterlyStart(q, history)

	assert.Equal(t, day("2025-04-01"), res.AsOf)
	assert.Equal(t, discipline.TierEducational, res.Tier)
	assertPoints(t, 125, res.Points)
	assert.Equal(t, 0, res.FutureViolations)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "bad", res.Rejected[0].Violation.ID)
}

func TestPointsAt_ScansForward(t *testing.T) {
	cfg := discipline.DefaultConfig()
	cfg.NoShowPenalty = pts(60)
	e := newEngine(t, cfg)
	res := e.ComputeState([]discipline.Violation{
		viol("n1", "2025-01-10", discipline.NoCallNoShow),
	}, day("2025-03-11"))

	_, ok := discipline.PointsAt(res.EventLog, day("2025-01-09"))
	assert.False(t, ok)

	p, ok := discipline.PointsAt(res.EventLog, day("2025-01-10"))
	require.True(t, ok)
	assertPoints(t, 100, p, "after the demotion reset")

	p, _ = discipline.PointsAt(res.EventLog, day("2025-02-20"))
	assertPoints(t, 125, p)

	p, _ = discipline.PointsAt(res.EventLog, day("2025-12-31"))
	assert.True(t, p.Equal(res.Points))

	tier, ok := discipline.TierAt(res.EventLog, day("2025-01-15"))
	require.True(t, ok)
	assert.Equal(t, discipline.TierCoaching, tier)
}
