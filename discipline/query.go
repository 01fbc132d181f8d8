package discipline

import (
	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// QUERY ADAPTERS
// =============================================================================

// StateAsOf replays violations on or before target with target as "now".
// The output depends only on its inputs.
func (e *Engine) StateAsOf(violations []Violation, target generic.TimePoint) Result {
	return e.ComputeState(violations, target)
}

// QuarterlyStart is the state an employee enters quarter q with: the
// replay of everything strictly before the quarter's first day, projected
// to that day. Violations with unresolvable dates are reported in
// Result.Rejected and carry no history.
func (e *Engine) QuarterlyStart(q generic.Quarter, violations []Violation) Result {
	start := q.Start()
	before := make([]Violation, 0, len(violations))
	for _, v := range violations {
		day, err := v.CalendarDate()
		if err == nil && !day.Before(start) {
			continue
		}
		before = append(before, v)
	}
	return e.ComputeState(before, start)
}

// PointsAt reconstructs the balance at the end of day from an event log
// by scanning forward from the initial entry. ok is false when the log
// starts after day.
func PointsAt(log []EventLogEntry, day generic.TimePoint) (points decimal.Decimal, ok bool) {
	for _, ev := range log {
		if ev.Date.After(day) {
			break
		}
		points = ev.Points
		ok = true
	}
	return points, ok
}

// TierAt is PointsAt for the tier.
func TierAt(log []EventLogEntry, day generic.TimePoint) (tier TierName, ok bool) {
	for _, ev := range log {
		if ev.Date.After(day) {
			break
		}
		tier = ev.Tier
		ok = true
	}
	return tier, ok
}
