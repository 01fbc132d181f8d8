package discipline_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

func normalized(t *testing.T, v discipline.Violation) discipline.NormalizedViolation {
	t.Helper()
	out, rejected := discipline.Normalize([]discipline.Violation{v})
	require.Empty(t, rejected)
	require.Len(t, out, 1)
	return out[0]
}

func TestComputeDelta_TardyTableOverflow(t *testing.T) {
	cfg := discipline.DefaultConfig()
	v := normalized(t, viol("x", "2025-01-02", discipline.TardySevere))

	tests := []struct {
		prior int
		want  int64
	}{
		{0, -15}, {1, -20}, {2, -25}, {3, -25}, {10, -25},
	}
	for _, tt := range tests {
		st := discipline.EngineState{Counters: map[discipline.ViolationType]int{discipline.TardySevere: tt.prior}}
		d := discipline.ComputeDelta(v, st, cfg)
		assertPoints(t, tt.want, d.Amount, "prior %d", tt.prior)
		require.NotNil(t, d.Escalation)
		assert.Equal(t, tt.prior+1, d.Escalation.Count)
	}
}

func TestComputeDelta_MissingTableFallsBack(t *testing.T) {
	// GIVEN: A config with no table for the moderate band
	// WHEN: Pricing a moderate tardy
	// THEN: The built-in default table applies instead of failing

	cfg := discipline.DefaultConfig()
	delete(cfg.TardyPenaltyTables, discipline.TardyModerate)

	v := normalized(t, viol("x", "2025-01-02", discipline.TardyModerate))
	d := discipline.ComputeDelta(v, discipline.EngineState{}, cfg)
	assertPoints(t, -5, d.Amount)
}

func TestComputeDelta_Callouts(t *testing.T) {
	cfg := discipline.DefaultConfig()
	prev := generic.MustParseDate("2025-01-01")

	standard := discipline.ComputeDelta(normalized(t, viol("a", "2025-01-01", discipline.CallOut)), discipline.EngineState{}, cfg)
	assertPoints(t, -15, standard.Amount)
	assert.False(t, standard.Surge)

	surge := discipline.ComputeDelta(normalized(t, viol("b", "2025-01-20", discipline.CallOut)),
		discipline.EngineState{LastCalloutDate: &prev}, cfg)
	assertPoints(t, -30, surge.Amount)
	assert.True(t, surge.Surge)

	consecutive := normalized(t, viol("c", "2025-01-02", discipline.CallOut))
	consecutive.Consecutive = true
	waived := discipline.ComputeDelta(consecutive, discipline.EngineState{LastCalloutDate: &prev}, cfg)
	assert.True(t, waived.Amount.IsZero())
	assert.True(t, waived.Waived)
	assert.False(t, waived.Surge)
}

func TestComputeDelta_InfoCases(t *testing.T) {
	cfg := discipline.DefaultConfig()

	for name, v := range map[string]discipline.Violation{
		"unknown":   {Date: "2025-01-01", Type: "Badge Lost"},
		"covered":   {Date: "2025-01-01", Type: "Call Out", ShiftCovered: true},
		"protected": {Date: "2025-01-01", Type: "Tardy (1-5 min)", ProtectedAbsence: true},
	} {
		d := discipline.ComputeDelta(normalized(t, v), discipline.EngineState{}, cfg)
		assert.True(t, d.Info, name)
		assert.True(t, d.Amount.IsZero(), name)
		assert.Nil(t, d.Escalation, name)
	}
}

func TestComputeDelta_PositiveAndNoShow(t *testing.T) {
	cfg := discipline.DefaultConfig()
	cfg.PositiveAdjustments = map[discipline.ViolationType]decimal.Decimal{
		discipline.ShiftPickup: decimal.RequireFromString("7.5"),
	}
	cfg = cfg.WithDefaults()

	d := discipline.ComputeDelta(normalized(t, viol("p", "2025-01-01", discipline.ShiftPickup)), discipline.EngineState{}, cfg)
	assert.True(t, decimal.RequireFromString("7.5").Equal(d.Amount))

	d = discipline.ComputeDelta(normalized(t, viol("e", "2025-01-01", discipline.EarlyArrival)), discipline.EngineState{}, cfg)
	assertPoints(t, 1, d.Amount)

	d = discipline.ComputeDelta(normalized(t, viol("n", "2025-01-01", discipline.NoCallNoShow)), discipline.EngineState{}, cfg)
	assertPoints(t, -40, d.Amount)
}
