/*
Package factory provides JSON to Go point policy conversion.

PURPOSE:
  Converts JSON policy documents into discipline.EngineConfig values so
  that penalty tables, tier thresholds and windows can change without a
  deploy. HR edits a document, the server stores it as a new policy
  version, and activating that version changes every later replay.

JSON SCHEMA:
  {
    "id": "points-2025",
    "name": "2025 Attendance Points",
    "max_points": 150,
    "escalation_period": "monthly",
    "tardy_penalties": {
      "Tardy (1-5 min)": [2, 3, 5, 5]
    },
    "callout": {"standard": 15, "surge": 30, "surge_lookback_days": 60},
    "no_show_penalty": 40,
    "positive_adjustments": {"Early Arrival": 1, "Shift Pickup": 5},
    "tiers": {
      "Good": {"min_points": 126, "reset_target": 150}
    },
    "stabilization_window_days": 30,
    "freeze": {"duration_days": 90, "trigger_count": 3, "lookback_days": 365},
    "reset_on_points_promotion": false,
    "reset_effective_date": "2025-01-01"
  }

  Every field is optional; missing values come from
  discipline.DefaultConfig. Violation type keys accept legacy aliases.

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(jsonString)
  engine, err := discipline.NewEngine(policy.Config)

SEE ALSO:
  - discipline/config.go: EngineConfig and defaults
  - store/sqlite/sqlite.go: versioned policy storage
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a point policy.
type PolicyJSON struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	MaxPoints        float64 `json:"max_points,omitempty"`
	EscalationPeriod string  `json:"escalation_period,omitempty"` // monthly, quarterly

	TardyPenalties      map[string][]float64 `json:"tardy_penalties,omitempty"`
	Callout             *CalloutJSON         `json:"callout,omitempty"`
	NoShowPenalty       float64              `json:"no_show_penalty,omitempty"`
	PositiveAdjustments map[string]float64   `json:"positive_adjustments,omitempty"`

	Tiers map[string]TierJSON `json:"tiers,omitempty"`

	StabilizationWindowDays int         `json:"stabilization_window_days,omitempty"`
	Freeze                  *FreezeJSON `json:"freeze,omitempty"`

	ResetOnPointsPromotion bool   `json:"reset_on_points_promotion,omitempty"`
	MaxCatchUpIterations   int    `json:"max_catch_up_iterations,omitempty"`
	ResetEffectiveDate     string `json:"reset_effective_date,omitempty"`
}

// CalloutJSON is callout pricing.
type CalloutJSON struct {
	Standard          float64 `json:"standard,omitempty"`
	Surge             float64 `json:"surge,omitempty"`
	SurgeLookbackDays int     `json:"surge_lookback_days,omitempty"`
}

// TierJSON is one tier's threshold and reset target.
type TierJSON struct {
	MinPoints   float64 `json:"min_points"`
	ResetTarget float64 `json:"reset_target"`
}

// FreezeJSON configures the repeated-drop promotion freeze.
type FreezeJSON struct {
	DurationDays int `json:"duration_days,omitempty"`
	TriggerCount int `json:"trigger_count,omitempty"`
	LookbackDays int `json:"lookback_days,omitempty"`
}

// Policy is a parsed, validated policy document.
type Policy struct {
	ID     string
	Name   string
	Config discipline.EngineConfig
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to engine configs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses and validates a JSON policy document.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*Policy, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("%w: policy id is required", discipline.ErrInvalidConfig)
	}

	cfg := discipline.EngineConfig{
		MaxPoints:               decimal.NewFromFloat(pj.MaxPoints),
		NoShowPenalty:           decimal.NewFromFloat(pj.NoShowPenalty),
		StabilizationWindowDays: pj.StabilizationWindowDays,
		EscalationPeriod:        generic.PeriodType(pj.EscalationPeriod),
		ResetOnPointsPromotion:  pj.ResetOnPointsPromotion,
		MaxCatchUpIterations:    pj.MaxCatchUpIterations,
	}

	if len(pj.TardyPenalties) > 0 {
		cfg.TardyPenaltyTables = make(map[discipline.ViolationType][]decimal.Decimal, len(pj.TardyPenalties))
		for raw, values := range pj.TardyPenalties {
			t, err := violationType(raw)
			if err != nil {
				return nil, err
			}
			if !t.IsTardy() {
				return nil, fmt.Errorf("%w: %q is not a tardy band", discipline.ErrInvalidConfig, raw)
			}
			tbl := make([]decimal.Decimal, len(values))
			for i, v := range values {
				tbl[i] = decimal.NewFromFloat(v)
			}
			cfg.TardyPenaltyTables[t] = tbl
		}
	}

	if pj.Callout != nil {
		cfg.CalloutStandardPenalty = decimal.NewFromFloat(pj.Callout.Standard)
		cfg.CalloutSurgePenalty = decimal.NewFromFloat(pj.Callout.Surge)
		cfg.SurgeLookbackDays = pj.Callout.SurgeLookbackDays
	}

	if len(pj.PositiveAdjustments) > 0 {
		cfg.PositiveAdjustments = make(map[discipline.ViolationType]decimal.Decimal, len(pj.PositiveAdjustments))
		for raw, v := range pj.PositiveAdjustments {
			t, err := violationType(raw)
			if err != nil {
				return nil, err
			}
			if !t.IsPositive() {
				return nil, fmt.Errorf("%w: %q is not a positive adjustment", discipline.ErrInvalidConfig, raw)
			}
			cfg.PositiveAdjustments[t] = decimal.NewFromFloat(v)
		}
	}

	if len(pj.Tiers) > 0 {
		cfg.TierThresholds = make(map[discipline.TierName]discipline.TierThreshold, len(pj.Tiers))
		for raw, tj := range pj.Tiers {
			name, err := tierName(raw)
			if err != nil {
				return nil, err
			}
			cfg.TierThresholds[name] = discipline.TierThreshold{
				MinPoints:   decimal.NewFromFloat(tj.MinPoints),
				ResetTarget: decimal.NewFromFloat(tj.ResetTarget),
			}
		}
	}

	if pj.Freeze != nil {
		cfg.FreezeDurationDays = pj.Freeze.DurationDays
		cfg.FreezeTriggerCount = pj.Freeze.TriggerCount
		cfg.FreezeLookbackDays = pj.Freeze.LookbackDays
	}

	if pj.ResetEffectiveDate != "" {
		d, err := generic.ParseCalendarDate(pj.ResetEffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("reset_effective_date: %w", err)
		}
		cfg.ResetEffectiveDate = d
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{ID: pj.ID, Name: pj.Name, Config: cfg}, nil
}

// ToJSON renders an engine config as a complete policy document.
func ToJSON(id, name string, cfg discipline.EngineConfig) PolicyJSON {
	cfg = cfg.WithDefaults()
	pj := PolicyJSON{
		ID:               id,
		Name:             name,
		MaxPoints:        cfg.MaxPoints.InexactFloat64(),
		EscalationPeriod: string(cfg.EscalationPeriod),
		TardyPenalties:   make(map[string][]float64, len(cfg.TardyPenaltyTables)),
		Callout: &CalloutJSON{
			Standard:          cfg.CalloutStandardPenalty.InexactFloat64(),
			Surge:             cfg.CalloutSurgePenalty.InexactFloat64(),
			SurgeLookbackDays: cfg.SurgeLookbackDays,
		},
		NoShowPenalty:           cfg.NoShowPenalty.InexactFloat64(),
		PositiveAdjustments:     make(map[string]float64, len(cfg.PositiveAdjustments)),
		Tiers:                   make(map[string]TierJSON, len(cfg.TierThresholds)),
		StabilizationWindowDays: cfg.StabilizationWindowDays,
		Freeze: &FreezeJSON{
			DurationDays: cfg.FreezeDurationDays,
			TriggerCount: cfg.FreezeTriggerCount,
			LookbackDays: cfg.FreezeLookbackDays,
		},
		ResetOnPointsPromotion: cfg.ResetOnPointsPromotion,
		MaxCatchUpIterations:   cfg.MaxCatchUpIterations,
	}
	for t, tbl := range cfg.TardyPenaltyTables {
		values := make([]float64, len(tbl))
		for i, v := range tbl {
			values[i] = v.InexactFloat64()
		}
		pj.TardyPenalties[string(t)] = values
	}
	for t, v := range cfg.PositiveAdjustments {
		pj.PositiveAdjustments[string(t)] = v.InexactFloat64()
	}
	for name, th := range cfg.TierThresholds {
		pj.Tiers[string(name)] = TierJSON{
			MinPoints:   th.MinPoints.InexactFloat64(),
			ResetTarget: th.ResetTarget.InexactFloat64(),
		}
	}
	if !cfg.ResetEffectiveDate.IsZero() {
		pj.ResetEffectiveDate = cfg.ResetEffectiveDate.String()
	}
	return pj
}

// =============================================================================
// HELPERS
// =============================================================================

func violationType(raw string) (discipline.ViolationType, error) {
	t, ok := discipline.CanonicalType(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown violation type %q", discipline.ErrInvalidConfig, raw)
	}
	return t, nil
}

func tierName(raw string) (discipline.TierName, error) {
	for _, name := range discipline.TierOrder {
		if string(name) == raw {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown tier %q", discipline.ErrInvalidConfig, raw)
}
