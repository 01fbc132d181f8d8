package discipline

import (
	"fmt"

	"github.com/warp/points-engine/generic"
)

// =============================================================================
// TIME PROJECTOR - catch-up over idle stabilization windows
// =============================================================================

// catchUp advances st to ref one stabilization window at a time:
//
//	while ref - tierStart >= window:
//	    cand = tierStart + window
//	    frozen(cand)  -> freeze_skip
//	    at Good       -> reset to max, DA 0
//	    otherwise     -> promote one level to its reset target
//	    tierStart = cand
//
// The loop stops after MaxCatchUpIterations; capped reports that it did.
func (e *Engine) catchUp(prev EngineState, ref generic.TimePoint) (st EngineState, entries []EventLogEntry, capped bool) {
	st = prev.clone()
	window := e.cfg.StabilizationWindowDays
	top := len(e.tiers) - 1

	for iter := 0; generic.DaysBetween(st.TierStartDate, ref) >= window; iter++ {
		if iter >= e.cfg.MaxCatchUpIterations {
			return st, entries, true
		}
		cand := st.TierStartDate.AddDays(window)
		start := st.Points

		if until, frozen := frozenAt(st.Drops, cand); frozen {
			st.TierStartDate = cand
			entries = append(entries, entry(st, cand, EventFreezeSkip, start,
				fmt.Sprintf("promotion skipped: frozen until %s", until)))
			continue
		}

		if st.Tier.Level == top {
			st.Points = e.cfg.MaxPoints
			st.DAStageIndex = 0
			st.TierStartDate = cand
			entries = append(entries, entry(st, cand, EventReset, start,
				fmt.Sprintf("%d days in %s, reset to %s", window, st.Tier.Name, st.Points)))
			continue
		}

		from := st.Tier
		st.Tier = e.tiers[from.Level+1]
		st.Points = st.Tier.ResetTarget
		st.Counters = map[ViolationType]int{}
		if st.Tier.Level == top {
			st.DAStageIndex = 0
		}
		st.TierStartDate = cand

		e.logger.Debug("tier promotion by time",
			"date", cand.String(),
			"from", from.Name,
			"to", st.Tier.Name)

		entries = append(entries, entry(st, cand, EventPromotion, start,
			fmt.Sprintf("%d days stable, promoted %s -> %s", window, from.Name, st.Tier.Name)))
	}
	return st, entries, false
}

// frozenAt returns the latest freeze end covering day.
func frozenAt(drops []DropRecord, day generic.TimePoint) (generic.TimePoint, bool) {
	var until generic.TimePoint
	found := false
	for _, d := range drops {
		if d.freezes(day) {
			if !found || d.FreezeUntil.After(until) {
				until = *d.FreezeUntil
			}
			found = true
		}
	}
	return until, found
}
