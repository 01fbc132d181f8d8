package discipline

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// ENGINE CONFIG
// =============================================================================

// TierThreshold defines membership (MinPoints) and the balance assigned on
// entering the tier (ResetTarget).
type TierThreshold struct {
	MinPoints   decimal.Decimal `json:"min_points"`
	ResetTarget decimal.Decimal `json:"reset_target"`
}

// EngineConfig is immutable for the lifetime of an Engine. Penalties are
// positive magnitudes; the engine subtracts them. Zero values are replaced
// by DefaultConfig values in WithDefaults.
type EngineConfig struct {
	MaxPoints decimal.Decimal

	TardyPenaltyTables     map[ViolationType][]decimal.Decimal
	CalloutStandardPenalty decimal.Decimal
	CalloutSurgePenalty    decimal.Decimal
	SurgeLookbackDays      int
	NoShowPenalty          decimal.Decimal
	PositiveAdjustments    map[ViolationType]decimal.Decimal

	TierThresholds map[TierName]TierThreshold

	StabilizationWindowDays int
	FreezeDurationDays      int
	FreezeTriggerCount      int
	FreezeLookbackDays      int

	// EscalationPeriod is when tardy counters roll over: monthly or quarterly.
	EscalationPeriod generic.PeriodType

	// ResetOnPointsPromotion forces the new tier's reset target when a
	// positive adjustment lifts the employee into a higher tier.
	ResetOnPointsPromotion bool

	// MaxCatchUpIterations bounds each catch-up run.
	MaxCatchUpIterations int

	// TargetDate overrides "now" for point-in-time queries.
	TargetDate generic.TimePoint

	// ResetEffectiveDate drops history before this day.
	ResetEffectiveDate generic.TimePoint

	// Location decides which calendar day "now" is. Nil means time.Local.
	Location *time.Location
}

func pts(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func table(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = pts(v)
	}
	return out
}

// defaultTardyTables is also the fallback for bands missing from a config.
var defaultTardyTables = map[ViolationType][]decimal.Decimal{
	TardyMinor:    table(2, 3, 5, 5),
	TardyModerate: table(5, 8, 10, 10),
	TardyMajor:    table(8, 10, 15, 15),
	TardySevere:   table(15, 20, 25),
}

// DefaultConfig returns the standard 150-point policy.
func DefaultConfig() EngineConfig {
	tables := make(map[ViolationType][]decimal.Decimal, len(defaultTardyTables))
	for k, v := range defaultTardyTables {
		tables[k] = append([]decimal.Decimal(nil), v...)
	}
	return EngineConfig{
		MaxPoints:              pts(150),
		TardyPenaltyTables:     tables,
		CalloutStandardPenalty: pts(15),
		CalloutSurgePenalty:    pts(30),
		SurgeLookbackDays:      60,
		NoShowPenalty:          pts(40),
		PositiveAdjustments: map[ViolationType]decimal.Decimal{
			EarlyArrival: pts(1),
			ShiftPickup:  pts(5),
		},
		TierThresholds: map[TierName]TierThreshold{
			TierGood:        {MinPoints: pts(126), ResetTarget: pts(150)},
			TierEducational: {MinPoints: pts(101), ResetTarget: pts(125)},
			TierCoaching:    {MinPoints: pts(76), ResetTarget: pts(100)},
			TierSevere:      {MinPoints: pts(51), ResetTarget: pts(75)},
			TierFinal:       {MinPoints: pts(26), ResetTarget: pts(50)},
			TierTermination: {MinPoints: decimal.Zero, ResetTarget: pts(25)},
		},
		StabilizationWindowDays: 30,
		FreezeDurationDays:      90,
		FreezeTriggerCount:      3,
		FreezeLookbackDays:      365,
		EscalationPeriod:        generic.PeriodMonthly,
		MaxCatchUpIterations:    1200,
	}
}

// WithDefaults fills every unset field from DefaultConfig. Maps are merged
// per key so a partial table set keeps the built-in tables for other bands.
func (c EngineConfig) WithDefaults() EngineConfig {
	def := DefaultConfig()

	if c.MaxPoints.IsZero() {
		c.MaxPoints = def.MaxPoints
	}
	c.TardyPenaltyTables = mergeTables(c.TardyPenaltyTables, def.TardyPenaltyTables)
	if c.CalloutStandardPenalty.IsZero() {
		c.CalloutStandardPenalty = def.CalloutStandardPenalty
	}
	if c.CalloutSurgePenalty.IsZero() {
		c.CalloutSurgePenalty = def.CalloutSurgePenalty
	}
	if c.SurgeLookbackDays <= 0 {
		c.SurgeLookbackDays = def.SurgeLookbackDays
	}
	if c.NoShowPenalty.IsZero() {
		c.NoShowPenalty = def.NoShowPenalty
	}

	adj := make(map[ViolationType]decimal.Decimal, len(def.PositiveAdjustments))
	for k, v := range def.PositiveAdjustments {
		adj[k] = v
	}
	for k, v := range c.PositiveAdjustments {
		adj[k] = v
	}
	c.PositiveAdjustments = adj

	tiers := make(map[TierName]TierThreshold, len(def.TierThresholds))
	for k, v := range def.TierThresholds {
		tiers[k] = v
	}
	for k, v := range c.TierThresholds {
		tiers[k] = v
	}
	c.TierThresholds = tiers

	if c.StabilizationWindowDays <= 0 {
		c.StabilizationWindowDays = def.StabilizationWindowDays
	}
	if c.FreezeDurationDays <= 0 {
		c.FreezeDurationDays = def.FreezeDurationDays
	}
	if c.FreezeTriggerCount <= 0 {
		c.FreezeTriggerCount = def.FreezeTriggerCount
	}
	if c.FreezeLookbackDays <= 0 {
		c.FreezeLookbackDays = def.FreezeLookbackDays
	}
	if c.EscalationPeriod == "" {
		c.EscalationPeriod = def.EscalationPeriod
	}
	if c.MaxCatchUpIterations <= 0 {
		c.MaxCatchUpIterations = def.MaxCatchUpIterations
	}
	return c
}

func mergeTables(in, def map[ViolationType][]decimal.Decimal) map[ViolationType][]decimal.Decimal {
	out := make(map[ViolationType][]decimal.Decimal, len(def))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range in {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

// Validate checks the tier ladder. Call on a config that went through
// WithDefaults.
func (c EngineConfig) Validate() error {
	if !c.MaxPoints.IsPositive() {
		return fmt.Errorf("%w: max points must be positive", ErrInvalidConfig)
	}
	for _, name := range TierOrder {
		if _, ok := c.TierThresholds[name]; !ok {
			return fmt.Errorf("%w: missing tier %s", ErrInvalidConfig, name)
		}
	}
	for level := 2; level < len(TierOrder); level++ {
		lo := c.TierThresholds[TierOrder[level-1]]
		hi := c.TierThresholds[TierOrder[level]]
		if !hi.MinPoints.GreaterThan(lo.MinPoints) {
			return fmt.Errorf("%w: %s threshold %s must exceed %s threshold %s",
				ErrInvalidConfig, TierOrder[level], hi.MinPoints, TierOrder[level-1], lo.MinPoints)
		}
	}
	for _, name := range TierOrder {
		if c.TierThresholds[name].ResetTarget.GreaterThan(c.MaxPoints) {
			return fmt.Errorf("%w: %s reset target exceeds max points", ErrInvalidConfig, name)
		}
	}
	// A reset target must land inside its own tier's band.
	for level, name := range TierOrder {
		th := c.TierThresholds[name]
		if level > 0 && th.ResetTarget.LessThan(th.MinPoints) {
			return fmt.Errorf("%w: %s reset target %s below its threshold %s",
				ErrInvalidConfig, name, th.ResetTarget, th.MinPoints)
		}
		if level < len(TierOrder)-1 {
			next := c.TierThresholds[TierOrder[level+1]]
			if !th.ResetTarget.LessThan(next.MinPoints) {
				return fmt.Errorf("%w: %s reset target %s reaches %s threshold %s",
					ErrInvalidConfig, name, th.ResetTarget, TierOrder[level+1], next.MinPoints)
			}
		}
	}
	switch c.EscalationPeriod {
	case generic.PeriodMonthly, generic.PeriodQuarterly:
	default:
		return fmt.Errorf("%w: escalation period %q", ErrInvalidConfig, c.EscalationPeriod)
	}
	return nil
}

// Tiers returns the ladder ordered by level (index == level).
func (c EngineConfig) Tiers() []Tier {
	out := make([]Tier, len(TierOrder))
	for level, name := range TierOrder {
		th := c.TierThresholds[name]
		out[level] = Tier{Name: name, Level: level, MinPoints: th.MinPoints, ResetTarget: th.ResetTarget}
	}
	return out
}

// tierFor finds the highest tier whose threshold points reaches.
func tierFor(tiers []Tier, points decimal.Decimal) Tier {
	for level := len(tiers) - 1; level > 0; level-- {
		if points.GreaterThanOrEqual(tiers[level].MinPoints) {
			return tiers[level]
		}
	}
	return tiers[0]
}
