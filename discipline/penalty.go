package discipline

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// PENALTY CALCULATOR
// =============================================================================

// Delta is the priced effect of one violation. Amount is signed:
// deductions are negative, bonuses positive.
type Delta struct {
	Amount decimal.Decimal

	// Info is set for entries that carry no cost and must not touch
	// counters or the callout chain (unknown, covered, protected).
	Info bool

	// Surge is set for callouts priced at the surge rate.
	Surge bool

	// Waived is set for consecutive callouts.
	Waived bool

	// Escalation is the counter value used to price a tardy.
	Escalation *Escalation

	Reason string
}

// ComputeDelta prices v against the accumulated state. It does not
// modify st; the caller applies counters from the returned Escalation.
// st.Counters must already be rolled over for v's escalation period.
func ComputeDelta(v NormalizedViolation, st EngineState, cfg EngineConfig) Delta {
	switch {
	case v.Kind == UnknownType:
		return Delta{Info: true, Reason: fmt.Sprintf("unrecognized violation type %q", v.Type)}
	case v.ProtectedAbsence:
		reason := "protected absence"
		if v.ProtectedAbsenceReason != "" {
			reason += ": " + v.ProtectedAbsenceReason
		}
		return Delta{Info: true, Reason: reason}
	case v.ShiftCovered:
		return Delta{Info: true, Reason: "shift covered"}
	}

	switch {
	case v.Kind.IsCallout():
		return calloutDelta(v, st, cfg)

	case v.Kind.IsTardy():
		tbl := cfg.TardyPenaltyTables[v.Kind]
		if len(tbl) == 0 {
			tbl = defaultTardyTables[v.Kind]
		}
		count := st.Counters[v.Kind] + 1
		idx := count
		if idx > len(tbl) {
			idx = len(tbl)
		}
		return Delta{
			Amount:     tbl[idx-1].Neg(),
			Escalation: &Escalation{Type: v.Kind, Count: count},
			Reason:     fmt.Sprintf("%s occurrence %d", v.Kind, count),
		}

	case v.Kind == NoCallNoShow:
		return Delta{Amount: cfg.NoShowPenalty.Neg(), Reason: string(NoCallNoShow)}

	case v.Kind.IsPositive():
		return Delta{Amount: cfg.PositiveAdjustments[v.Kind], Reason: string(v.Kind)}
	}

	return Delta{Info: true, Reason: fmt.Sprintf("no pricing rule for %q", v.Kind)}
}

// Consecutive takes precedence over surge.
func calloutDelta(v NormalizedViolation, st EngineState, cfg EngineConfig) Delta {
	if v.Consecutive {
		return Delta{Amount: decimal.Zero, Waived: true, Reason: "consecutive call out waived"}
	}
	if st.LastCalloutDate != nil &&
		generic.DaysBetween(*st.LastCalloutDate, v.Day) <= cfg.SurgeLookbackDays {
		return Delta{
			Amount: cfg.CalloutSurgePenalty.Neg(),
			Surge:  true,
			Reason: fmt.Sprintf("call out surge (previous %s)", st.LastCalloutDate),
		}
	}
	return Delta{Amount: cfg.CalloutStandardPenalty.Neg(), Reason: "call out"}
}

// clampPoints applies the ceiling. There is no floor.
func clampPoints(points, ceiling decimal.Decimal) decimal.Decimal {
	if points.GreaterThan(ceiling) {
		return ceiling
	}
	return points
}
