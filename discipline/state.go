/*
state.go - Tier/DA State Machine

PURPOSE:
  EngineState is the replay accumulator. It is a value: every transition
  takes a state and returns a new one plus the log entries it produced,
  so the replay is a fold over the sorted violations.

TRANSITIONS (after the delta is applied and clamped):
  - Demotion (new level < current level):
      points forced to the new tier's reset target, all counters cleared,
      tier start = violation day, DA ratchets, drop recorded, freeze
      checked for drops out of Good
  - Promotion via points (new level > current level):
      tier and tier start switch, counters cleared; points stand unless
      ResetOnPointsPromotion is set
  - Same level: nothing beyond the delta

DA RATCHET:
  On demotion: da = min(MaxDAStage, max(da+1, MaxDAStage-newLevel)).
  da returns to 0 only when the tier returns to Good.

SEE ALSO:
  - penalty.go: ComputeDelta
  - projector.go: time-based transitions
*/
package discipline

import (
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// EngineState exists only while a replay runs.
type EngineState struct {
	Points        decimal.Decimal
	Tier          Tier
	TierStartDate generic.TimePoint
	DAStageIndex  int

	// Counters holds tardy occurrences per band inside CounterPeriod.
	Counters      map[ViolationType]int
	CounterPeriod generic.Period

	// LastCalloutDate includes waived callouts.
	LastCalloutDate   *generic.TimePoint
	ProcessedCallouts []generic.TimePoint
	Drops             []DropRecord
}

func (s EngineState) clone() EngineState {
	s.Counters = maps.Clone(s.Counters)
	if s.Counters == nil {
		s.Counters = map[ViolationType]int{}
	}
	if s.LastCalloutDate != nil {
		d := *s.LastCalloutDate
		s.LastCalloutDate = &d
	}
	s.ProcessedCallouts = append([]generic.TimePoint(nil), s.ProcessedCallouts...)
	s.Drops = append([]DropRecord(nil), s.Drops...)
	return s
}

func (e *Engine) initialState(seed generic.TimePoint) EngineState {
	top := e.tiers[len(e.tiers)-1]
	return EngineState{
		Points:        e.cfg.MaxPoints,
		Tier:          top,
		TierStartDate: seed,
		Counters:      map[ViolationType]int{},
	}
}

// entry builds a log line stamped with the state's tier and DA stage.
func entry(st EngineState, day generic.TimePoint, typ EventType, start decimal.Decimal, details string) EventLogEntry {
	return EventLogEntry{
		Date:         day,
		Type:         typ,
		Tier:         st.Tier.Name,
		StartPoints:  start,
		Points:       st.Points,
		Change:       st.Points.Sub(start),
		Details:      details,
		DAStatus:     DAStageLabel(st.DAStageIndex),
		DAStageIndex: st.DAStageIndex,
	}
}

// step processes one violation. It assumes catch-up to v.Day already ran.
func (e *Engine) step(prev EngineState, v NormalizedViolation) (EngineState, []EventLogEntry) {
	st := prev.clone()

	if !st.CounterPeriod.Contains(v.Day) {
		st.Counters = map[ViolationType]int{}
		st.CounterPeriod = e.escalation.PeriodFor(v.Day)
	}

	delta := ComputeDelta(v, st, e.cfg)
	if delta.Info {
		ev := entry(st, v.Day, EventInfo, st.Points, delta.Reason)
		ev.ViolationID = v.ID
		ev.ViolationType = v.Kind
		return st, []EventLogEntry{ev}
	}

	if v.Kind.IsCallout() {
		day := v.Day
		st.LastCalloutDate = &day
		st.ProcessedCallouts = append(st.ProcessedCallouts, day)
	}
	if delta.Escalation != nil {
		st.Counters[delta.Escalation.Type] = delta.Escalation.Count
	}

	start := st.Points
	st.Points = clampPoints(start.Add(delta.Amount), e.cfg.MaxPoints)

	details := fmt.Sprintf("%s: %s", v.Kind, delta.Reason)
	if delta.Waived {
		details = fmt.Sprintf("%s: waived (consecutive)", v.Kind)
	}
	ev := entry(st, v.Day, EventViolation, start, details)
	ev.Escalation = delta.Escalation
	ev.ViolationID = v.ID
	ev.ViolationType = v.Kind
	entries := []EventLogEntry{ev}

	next := tierFor(e.tiers, st.Points)
	switch {
	case next.Level < st.Tier.Level:
		var demotion EventLogEntry
		st, demotion = e.demote(st, next, v.Day)
		entries = append(entries, demotion)
	case next.Level > st.Tier.Level:
		var promotion EventLogEntry
		st, promotion = e.promoteByPoints(st, next, v.Day)
		entries = append(entries, promotion)
	}
	return st, entries
}

func (e *Engine) demote(st EngineState, to Tier, day generic.TimePoint) (EngineState, EventLogEntry) {
	from := st.Tier
	start := st.Points

	st.Tier = to
	st.Points = to.ResetTarget
	st.Counters = map[ViolationType]int{}
	st.TierStartDate = day
	st.DAStageIndex = min(MaxDAStage, max(st.DAStageIndex+1, daTargetFor(to)))

	drop := DropRecord{
		Date:             day,
		FromTier:         from.Name,
		ToTier:           to.Name,
		FromGoodStanding: from.Level == len(e.tiers)-1,
	}
	details := fmt.Sprintf("demoted %s -> %s, reset to %s", from.Name, to.Name, to.ResetTarget)
	if drop.FromGoodStanding && e.goodDropsInWindow(st.Drops, day)+1 >= e.cfg.FreezeTriggerCount {
		until := day.AddDays(e.cfg.FreezeDurationDays)
		drop.FreezeUntil = &until
		details += fmt.Sprintf("; promotions frozen until %s", until)
	}
	st.Drops = append(st.Drops, drop)

	e.logger.Debug("tier demotion",
		"date", day.String(),
		"from", from.Name,
		"to", to.Name,
		"da_stage", st.DAStageIndex,
		"frozen", drop.FreezeUntil != nil)

	ev := entry(st, day, EventDemotion, start, details)
	return st, ev
}

// goodDropsInWindow counts prior drops out of Good within the trailing
// freeze lookback of day.
func (e *Engine) goodDropsInWindow(drops []DropRecord, day generic.TimePoint) int {
	n := 0
	for _, d := range drops {
		if !d.FromGoodStanding {
			continue
		}
		age := generic.DaysBetween(d.Date, day)
		if age >= 0 && age <= e.cfg.FreezeLookbackDays {
			n++
		}
	}
	return n
}

func (e *Engine) promoteByPoints(st EngineState, to Tier, day generic.TimePoint) (EngineState, EventLogEntry) {
	from := st.Tier
	start := st.Points

	st.Tier = to
	st.TierStartDate = day
	st.Counters = map[ViolationType]int{}
	if e.cfg.ResetOnPointsPromotion {
		st.Points = to.ResetTarget
	}
	if to.Level == len(e.tiers)-1 {
		st.DAStageIndex = 0
	}

	e.logger.Debug("tier promotion by points",
		"date", day.String(),
		"from", from.Name,
		"to", to.Name)

	ev := entry(st, day, EventPromotionPoints, start,
		fmt.Sprintf("promoted %s -> %s by points", from.Name, to.Name))
	return st, ev
}
