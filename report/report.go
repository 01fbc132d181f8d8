/*
Package report turns replay results into health-check and dashboard data.

PURPOSE:
  The engine answers "where does this employee stand". Supervisors also ask
  "how did they get here": what happened in the last 30/60/90 days, how
  many times they fell out of Good Standing and came back, and the most
  severe stage reached in the current excursion. This package derives
  those answers from a discipline.Result without replaying anything.

KEY CONCEPTS:
  - Sticky DA: highest DA stage since the last Good Standing entry, found
    by scanning the log backwards through demotions
  - Activity window: violations and point movement in (asOf-N, asOf]
  - Cycle: one excursion out of Good, closed when Good is reached again
  - Dashboard: per-tier counts plus one summary row per employee

INVARIANT:
  Read-only. Nothing here feeds back into the engine.

SEE ALSO:
  - discipline/engine.go: Result and EventLogEntry
  - api/handlers.go: /health and /dashboard endpoints
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

// DefaultWindows are the activity windows shown on the health check.
var DefaultWindows = []int{30, 60, 90}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Window is the activity inside one trailing window.
type Window struct {
	Days         int             `json:"days"`
	Violations   int             `json:"violations"`
	PointsLost   decimal.Decimal `json:"points_lost"`
	PointsGained decimal.Decimal `json:"points_gained"`
}

// Cycle is one excursion out of Good Standing.
type Cycle struct {
	LeftGood     generic.TimePoint   `json:"left_good"`
	ReturnedGood *generic.TimePoint  `json:"returned_good,omitempty"`
	LowestTier   discipline.TierName `json:"lowest_tier"`
	Demotions    int                 `json:"demotions"`
	HighestDA    int                 `json:"highest_da_stage_index"`
}

// Open reports whether the employee has not yet returned to Good.
func (c Cycle) Open() bool { return c.ReturnedGood == nil }

// Health is the health-check view of one employee.
type Health struct {
	EmployeeID    string              `json:"employee_id"`
	AsOf          generic.TimePoint   `json:"as_of"`
	Points        decimal.Decimal     `json:"points"`
	Tier          discipline.TierName `json:"tier"`
	DAStage       string              `json:"da_stage"`
	StickyDA      string              `json:"sticky_da"`
	StickyDAIndex int                 `json:"sticky_da_index"`
	TierStartDate generic.TimePoint   `json:"tier_start_date"`

	FrozenUntil *generic.TimePoint `json:"frozen_until,omitempty"`

	Windows []Window `json:"windows"`
	Cycles  []Cycle  `json:"cycles"`

	Rejected         int  `json:"rejected"`
	FutureViolations int  `json:"future_violations"`
	CatchUpCapped    bool `json:"catch_up_capped,omitempty"`
}

// BuildHealth derives the health check from a replay result.
func BuildHealth(employeeID string, res discipline.Result) Health {
	sticky := StickyDA(res.EventLog)
	h := Health{
		EmployeeID:       employeeID,
		AsOf:             res.AsOf,
		Points:           res.Points,
		Tier:             res.Tier,
		DAStage:          res.DAStage,
		StickyDA:         discipline.DAStageLabel(sticky),
		StickyDAIndex:    sticky,
		TierStartDate:    res.TierStartDate,
		Windows:          ActivityWindows(res.EventLog, res.AsOf, DefaultWindows...),
		Cycles:           Cycles(res.EventLog),
		Rejected:         len(res.Rejected),
		FutureViolations: res.FutureViolations,
		CatchUpCapped:    res.CatchUpCapped,
	}
	for _, d := range res.DropHistory {
		if d.FreezeUntil == nil || !res.AsOf.Before(*d.FreezeUntil) || res.AsOf.Before(d.Date) {
			continue
		}
		if h.FrozenUntil == nil || d.FreezeUntil.After(*h.FrozenUntil) {
			until := *d.FreezeUntil
			h.FrozenUntil = &until
		}
	}
	return h
}

// StickyDA returns the highest DA stage index since the last entry in Good
// Standing. Zero when the log ends in Good Standing.
func StickyDA(log []discipline.EventLogEntry) int {
	highest := 0
	for i := len(log) - 1; i >= 0; i-- {
		ev := log[i]
		if ev.DAStageIndex == 0 {
			break
		}
		highest = max(highest, ev.DAStageIndex)
	}
	return highest
}

// ActivityWindows summarizes violation entries dated in (asOf-d, asOf] for
// each d. Demotion resets are not counted as gains.
func ActivityWindows(log []discipline.EventLogEntry, asOf generic.TimePoint, days ...int) []Window {
	out := make([]Window, 0, len(days))
	for _, d := range days {
		w := Window{Days: d, PointsLost: decimal.Zero, PointsGained: decimal.Zero}
		from := asOf.AddDays(-d)
		for _, ev := range log {
			if !ev.Date.After(from) || ev.Date.After(asOf) {
				continue
			}
			switch ev.Type {
			case discipline.EventViolation:
				w.Violations++
				if ev.Change.IsNegative() {
					w.PointsLost = w.PointsLost.Add(ev.Change.Neg())
				} else {
					w.PointsGained = w.PointsGained.Add(ev.Change)
				}
			case discipline.EventReset, discipline.EventPromotion, discipline.EventPromotionPoints:
				if ev.Change.IsPositive() {
					w.PointsGained = w.PointsGained.Add(ev.Change)
				}
			}
		}
		out = append(out, w)
	}
	return out
}

// Cycles lists every excursion out of Good in log order.
func Cycles(log []discipline.EventLogEntry) []Cycle {
	var cycles []Cycle
	var cur *Cycle
	for _, ev := range log {
		switch {
		case ev.Type == discipline.EventDemotion:
			if cur == nil {
				cycles = append(cycles, Cycle{LeftGood: ev.Date, LowestTier: ev.Tier})
				cur = &cycles[len(cycles)-1]
			}
			cur.Demotions++
			if tierLevel(ev.Tier) < tierLevel(cur.LowestTier) {
				cur.LowestTier = ev.Tier
			}
			cur.HighestDA = max(cur.HighestDA, ev.DAStageIndex)
		case cur != nil && ev.Tier == discipline.TierGood:
			day := ev.Date
			cur.ReturnedGood = &day
			cur = nil
		}
	}
	return cycles
}

func tierLevel(name discipline.TierName) int {
	for i, t := range discipline.TierOrder {
		if t == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Summary is one dashboard row.
type Summary struct {
	EmployeeID   string              `json:"employee_id"`
	Name         string              `json:"name,omitempty"`
	Points       decimal.Decimal     `json:"points"`
	Tier         discipline.TierName `json:"tier"`
	DAStage      string              `json:"da_stage"`
	DAStageIndex int                 `json:"da_stage_index"`
	StickyDA     string              `json:"sticky_da"`
	Violations90 int                 `json:"violations_90d"`
	Frozen       bool                `json:"frozen,omitempty"`
}

// Summarize builds the dashboard row for one replay.
func Summarize(employeeID, name string, res discipline.Result) Summary {
	h := BuildHealth(employeeID, res)
	s := Summary{
		EmployeeID:   employeeID,
		Name:         name,
		Points:       res.Points,
		Tier:         res.Tier,
		DAStage:      res.DAStage,
		DAStageIndex: res.DAStageIndex,
		StickyDA:     h.StickyDA,
		Frozen:       h.FrozenUntil != nil,
	}
	for _, w := range h.Windows {
		if w.Days == 90 {
			s.Violations90 = w.Violations
		}
	}
	return s
}

// Dashboard is the team-wide view.
type Dashboard struct {
	AsOf       generic.TimePoint           `json:"as_of"`
	TierCounts map[discipline.TierName]int `json:"tier_counts"`
	Employees  []Summary                   `json:"employees"`
}

// BuildDashboard counts employees per tier (every tier present, zero when
// empty) and orders rows from lowest points up.
func BuildDashboard(asOf generic.TimePoint, rows []Summary) Dashboard {
	d := Dashboard{
		AsOf:       asOf,
		TierCounts: make(map[discipline.TierName]int, len(discipline.TierOrder)),
		Employees:  append([]Summary(nil), rows...),
	}
	for _, t := range discipline.TierOrder {
		d.TierCounts[t] = 0
	}
	for _, r := range rows {
		d.TierCounts[r.Tier]++
	}
	sort.SliceStable(d.Employees, func(i, j int) bool {
		a, b := d.Employees[i], d.Employees[j]
		if !a.Points.Equal(b.Points) {
			return a.Points.LessThan(b.Points)
		}
		return a.EmployeeID < b.EmployeeID
	})
	return d
}
