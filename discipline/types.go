/*
Package discipline implements the attendance point and tier replay engine.

PURPOSE:
  An employee's point balance, disciplinary tier and disciplinary action
  (DA) stage are never stored. They are derived by replaying the
  employee's violation history in calendar order:

    Normalizer -> (Penalty Calculator <-> Tier/DA State Machine <-> Time Projector)

  producing a final snapshot plus an append-only event log.

KEY CONCEPTS IN THIS FILE (types.go):
  - ViolationType: canonical violation vocabulary plus legacy aliases
  - Violation: externally owned input record
  - Tier: static disciplinary standing band
  - EventLogEntry: one line of the audit trail
  - DropRecord: one demotion, used by the promotion freeze

SEE ALSO:
  - config.go: EngineConfig and defaults
  - engine.go: ComputeState
  - query.go: StateAsOf, QuarterlyStart, PointsAt
*/
package discipline

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// VIOLATION TYPES
// =============================================================================

// ViolationType is a canonical violation tag.
type ViolationType string

const (
	TardyMinor    ViolationType = "Tardy (1-5 min)"
	TardyModerate ViolationType = "Tardy (6-11 min)"
	TardyMajor    ViolationType = "Tardy (12-29 min)"
	TardySevere   ViolationType = "Tardy (30+ min)"
	CallOut       ViolationType = "Call Out"
	NoCallNoShow  ViolationType = "No Call No Show"
	EarlyArrival  ViolationType = "Early Arrival"
	ShiftPickup   ViolationType = "Shift Pickup"

	// UnknownType marks a tag outside the vocabulary. It replays as a no-op.
	UnknownType ViolationType = ""
)

// TardyBands lists the tardy types from least to most severe.
var TardyBands = []ViolationType{TardyMinor, TardyModerate, TardyMajor, TardySevere}

var canonicalTypes = []ViolationType{
	TardyMinor, TardyModerate, TardyMajor, TardySevere,
	CallOut, NoCallNoShow, EarlyArrival, ShiftPickup,
}

// Legacy spellings seen in historical data. Keys are lowercased with
// whitespace collapsed.
var typeAliases = map[string]ViolationType{
	"callout":         CallOut,
	"call-out":        CallOut,
	"call out":        CallOut,
	"call off":        CallOut,
	"sick call":       CallOut,
	"tardy 1-5":       TardyMinor,
	"tardy (1-5)":     TardyMinor,
	"tardy 1-5 min":   TardyMinor,
	"tardy 6-11":      TardyModerate,
	"tardy (6-11)":    TardyModerate,
	"tardy 6-11 min":  TardyModerate,
	"tardy 12-29":     TardyMajor,
	"tardy (12-29)":   TardyMajor,
	"tardy 12-29 min": TardyMajor,
	"tardy 30+":       TardySevere,
	"tardy (30+)":     TardySevere,
	"tardy 30+ min":   TardySevere,
	"ncns":            NoCallNoShow,
	"no show":         NoCallNoShow,
	"no-show":         NoCallNoShow,
	"no call/no show": NoCallNoShow,
	"early arrive":    EarlyArrival,
	"early":           EarlyArrival,
	"shift pick up":   ShiftPickup,
	"shift pick-up":   ShiftPickup,
	"picked up shift": ShiftPickup,
}

func init() {
	for _, t := range canonicalTypes {
		typeAliases[aliasKey(string(t))] = t
	}
}

func aliasKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CanonicalType maps a raw tag (canonical or legacy alias) to its canonical
// type. ok is false for unrecognized tags.
func CanonicalType(raw string) (t ViolationType, ok bool) {
	t, ok = typeAliases[aliasKey(raw)]
	return t, ok
}

func (t ViolationType) IsTardy() bool {
	switch t {
	case TardyMinor, TardyModerate, TardyMajor, TardySevere:
		return true
	}
	return false
}

func (t ViolationType) IsCallout() bool  { return t == CallOut }
func (t ViolationType) IsPositive() bool { return t == EarlyArrival || t == ShiftPickup }
func (t ViolationType) IsKnown() bool    { return t != UnknownType }

// =============================================================================
// VIOLATION - Input record
// =============================================================================

// Violation is one history entry as the caller holds it. Date is the
// textual form; At is the native form. When both are set Date wins.
type Violation struct {
	ID                     string    `json:"id,omitempty"`
	Date                   string    `json:"date,omitempty"`
	At                     time.Time `json:"-"`
	Type                   string    `json:"type"`
	ShiftCovered           bool      `json:"shift_covered,omitempty"`
	ProtectedAbsence       bool      `json:"protected_absence,omitempty"`
	ProtectedAbsenceReason string    `json:"protected_absence_reason,omitempty"`
}

// CalendarDate resolves the violation's calendar day.
func (v Violation) CalendarDate() (generic.TimePoint, error) {
	if v.Date != "" {
		return generic.ParseCalendarDate(v.Date)
	}
	if !v.At.IsZero() {
		return generic.DateOf(v.At), nil
	}
	return generic.TimePoint{}, &generic.InvalidDateError{Input: "", Reason: "violation has no date"}
}

// RejectedViolation is a violation that could not enter the replay.
type RejectedViolation struct {
	Violation Violation `json:"violation"`
	Error     string    `json:"error"`
	err       error
}

// Err returns the underlying error (an *generic.InvalidDateError today).
func (r RejectedViolation) Err() error { return r.err }

// =============================================================================
// TIERS
// =============================================================================

type TierName string

const (
	TierTermination TierName = "Termination"
	TierFinal       TierName = "Final"
	TierSevere      TierName = "Severe"
	TierCoaching    TierName = "Coaching"
	TierEducational TierName = "Educational"
	TierGood        TierName = "Good"
)

// TierOrder lists tiers by level, index == level.
var TierOrder = []TierName{TierTermination, TierFinal, TierSevere, TierCoaching, TierEducational, TierGood}

// Tier is one standing band. Termination ignores MinPoints (no lower
// bound); Good has no upper bound below MaxPoints.
type Tier struct {
	Name        TierName        `json:"name"`
	Level       int             `json:"level"`
	MinPoints   decimal.Decimal `json:"min_points"`
	ResetTarget decimal.Decimal `json:"reset_target"`
}

// =============================================================================
// DA STAGES
// =============================================================================

const MaxDAStage = 5

var daStageLabels = [...]string{
	"Good Standing",
	"Educational Stage",
	"Coaching",
	"Severe",
	"Final",
	"Termination",
}

// DAStageLabel names a DA stage index, clamping out-of-range values.
func DAStageLabel(index int) string {
	if index < 0 {
		index = 0
	}
	if index > MaxDAStage {
		index = MaxDAStage
	}
	return daStageLabels[index]
}

// daTargetFor is the stage a tier implies on its own.
func daTargetFor(t Tier) int {
	return MaxDAStage - t.Level
}

// =============================================================================
// EVENT LOG
// =============================================================================

type EventType string

const (
	EventInitial         EventType = "initial"
	EventViolation       EventType = "violation"
	EventDemotion        EventType = "demotion"
	EventPromotion       EventType = "promotion"
	EventPromotionPoints EventType = "promotion_points"
	EventReset           EventType = "reset"
	EventFreezeSkip      EventType = "freeze_skip"
	EventInfo            EventType = "info"
)

// Escalation records the occurrence counter used to price a tardy.
type Escalation struct {
	Type  ViolationType `json:"type"`
	Count int           `json:"count"`
}

// EventLogEntry is one line of the audit trail. Points is the balance
// after the entry; scanning forward from the initial entry therefore gives
// the balance at any instant.
type EventLogEntry struct {
	Date          generic.TimePoint `json:"date"`
	Type          EventType         `json:"type"`
	Tier          TierName          `json:"tier"`
	StartPoints   decimal.Decimal   `json:"start_points"`
	Points        decimal.Decimal   `json:"points"`
	Change        decimal.Decimal   `json:"change"`
	Details       string            `json:"details"`
	DAStatus      string            `json:"da_status"`
	DAStageIndex  int               `json:"da_stage_index"`
	Escalation    *Escalation       `json:"escalation,omitempty"`
	ViolationID   string            `json:"violation_id,omitempty"`
	ViolationType ViolationType     `json:"violation_type,omitempty"`
}

// DropRecord is one demotion. FreezeUntil is set when this demotion
// triggered the promotion freeze.
type DropRecord struct {
	Date             generic.TimePoint  `json:"date"`
	FromTier         TierName           `json:"from_tier"`
	ToTier           TierName           `json:"to_tier"`
	FromGoodStanding bool               `json:"from_good_standing"`
	FreezeUntil      *generic.TimePoint `json:"freeze_until,omitempty"`
}

// freezes reports whether day falls inside this record's freeze window.
func (d DropRecord) freezes(day generic.TimePoint) bool {
	return d.FreezeUntil != nil && day.AfterOrEqual(d.Date) && day.Before(*d.FreezeUntil)
}
