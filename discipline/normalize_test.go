package discipline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-engine/discipline"
)

func TestCanonicalType_Aliases(t *testing.T) {
	cases := map[string]discipline.ViolationType{
		"Callout":           discipline.CallOut,
		"Call Out":          discipline.CallOut,
		"  call   out ":     discipline.CallOut,
		"NCNS":              discipline.NoCallNoShow,
		"Tardy (1-5 min)":   discipline.TardyMinor,
		"tardy 30+":         discipline.TardySevere,
		"Shift Pick Up":     discipline.ShiftPickup,
		"Early Arrival":     discipline.EarlyArrival,
		"Tardy (12-29 min)": discipline.TardyMajor,
	}
	for raw, want := range cases {
		got, ok := discipline.CanonicalType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := discipline.CanonicalType("Dress Code")
	assert.False(t, ok)
}

func TestNormalize_SortsStablyAndResolvesNativeDates(t *testing.T) {
	// GIVEN: Mixed text and native dates, two entries on the same day
	// WHEN: Normalizing
	// THEN: Chronological order with input order kept inside a day

	in := []discipline.Violation{
		{ID: "late", Date: "2025-03-05", Type: "Callout"},
		{ID: "native", At: time.Date(2025, time.March, 1, 22, 0, 0, 0, time.UTC), Type: "Tardy (1-5 min)"},
		{ID: "sameday-1", Date: "2025-03-03", Type: "Early Arrival"},
		{ID: "sameday-2", Date: "2025-03-03T17:00:00Z", Type: "Shift Pickup"},
	}
	out, rejected := discipline.Normalize(in)
	require.Empty(t, rejected)

	ids := make([]string, len(out))
	for i, v := range out {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"native", "sameday-1", "sameday-2", "late"}, ids)
	assert.Equal(t, discipline.CallOut, out[3].Kind)
	assert.Equal(t, "Callout", out[3].Type, "raw type is kept")
}

func TestGroupConsecutiveCallouts_Pairwise(t *testing.T) {
	// GIVEN: A 3-day run, a gap of two days, then another callout
	// WHEN: Grouping
	// THEN: Run days 2 and 3 are consecutive; the post-gap callout is not

	out, _ := discipline.Normalize([]discipline.Violation{
		{ID: "d1", Date: "2025-04-01", Type: "Call Out"},
		{ID: "d2", Date: "2025-04-02", Type: "Call Out"},
		{ID: "tardy", Date: "2025-04-02", Type: "Tardy (1-5 min)"},
		{ID: "d3", Date: "2025-04-03", Type: "Call Out"},
		{ID: "d5", Date: "2025-04-05", Type: "Call Out"},
		{ID: "d6", Date: "2025-04-06", Type: "Callout"},
	})

	got := map[string]bool{}
	for _, v := range out {
		got[v.ID] = v.Consecutive
	}
	assert.Equal(t, map[string]bool{
		"d1": false, "d2": true, "tardy": false, "d3": true, "d5": false, "d6": true,
	}, got)
}

func TestGroupConsecutiveCallouts_CoveredNotInChain(t *testing.T) {
	out, _ := discipline.Normalize([]discipline.Violation{
		{ID: "a", Date: "2025-04-01", Type: "Call Out"},
		{ID: "covered", Date: "2025-04-02", Type: "Call Out", ShiftCovered: true},
		{ID: "b", Date: "2025-04-03", Type: "Call Out"},
	})

	require.Len(t, out, 3)
	assert.True(t, out[1].Excluded)
	assert.False(t, out[1].Consecutive)
	assert.False(t, out[2].Consecutive)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []discipline.Violation{
		{ID: "b", Date: "2025-04-02", Type: "Call Out"},
		{ID: "a", Date: "2025-04-01", Type: "Call Out"},
	}
	discipline.Normalize(in)
	assert.Equal(t, "b", in[0].ID)
}
