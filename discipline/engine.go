/*
engine.go - Replay orchestration

PURPOSE:
  ComputeState replays an employee's violation history into a snapshot
  plus an append-only event log:

    normalize -> truncate to [ResetEffectiveDate, asOf] -> group callouts
    initial entry at the seed day
    for each violation:
        catch-up to the violation day
        price, apply, transition
    catch-up to asOf

  Nothing is stored between calls. An Engine holds only immutable config,
  so one Engine can serve any number of goroutines.

FAILURE TOLERANCE:
  A violation with an unresolvable date is skipped, reported in
  Result.Rejected and logged at Warn. Unknown types replay as info
  entries. Hitting the catch-up cap sets Result.CatchUpCapped, logs at
  Warn and notifies the Observer. None of these abort the replay.

SEE ALSO:
  - state.go: transitions
  - projector.go: catch-up loop
  - query.go: point-in-time adapters
*/
package discipline

import (
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// Observer receives replay outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ReplayCompleted(res Result)
	CatchUpCapped(asOf generic.TimePoint, iterations int)
}

// Result is the final snapshot of one replay.
type Result struct {
	AsOf          generic.TimePoint `json:"as_of"`
	Points        decimal.Decimal   `json:"points"`
	Tier          TierName          `json:"tier"`
	TierLevel     int               `json:"tier_level"`
	DAStage       string            `json:"da_stage"`
	DAStageIndex  int               `json:"da_stage_index"`
	TierStartDate generic.TimePoint `json:"tier_start_date"`

	EventLog    []EventLogEntry `json:"event_log"`
	DropHistory []DropRecord    `json:"drop_history"`

	Rejected []RejectedViolation `json:"rejected,omitempty"`

	// FutureViolations counts violations dated after AsOf.
	FutureViolations int `json:"future_violations,omitempty"`

	// CatchUpCapped means projected recovery may be understated.
	CatchUpCapped bool `json:"catch_up_capped,omitempty"`
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	cfg        EngineConfig
	tiers      []Tier
	escalation generic.PeriodConfig
	logger     *slog.Logger
	observer   Observer
}

type Option func(*Engine)

// WithLogger sets the engine logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine fills defaults and validates cfg.
func NewEngine(cfg EngineConfig, opts ...Option) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		tiers:      cfg.Tiers(),
		escalation: generic.PeriodConfig{Type: cfg.EscalationPeriod},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// ComputeState is the one-shot form of Engine.ComputeState.
func ComputeState(violations []Violation, cfg EngineConfig, asOf generic.TimePoint) (Result, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return Result{}, err
	}
	return e.ComputeState(violations, asOf), nil
}

// resolveAsOf picks asOf, then the configured target date, then today.
func (e *Engine) resolveAsOf(asOf generic.TimePoint) generic.TimePoint {
	if !asOf.IsZero() {
		return asOf
	}
	if !e.cfg.TargetDate.IsZero() {
		return e.cfg.TargetDate
	}
	return generic.Today(e.cfg.Location)
}

// ComputeState replays violations up to asOf. A zero asOf means the
// configured target date, or today.
func (e *Engine) ComputeState(violations []Violation, asOf generic.TimePoint) Result {
	asOf = e.resolveAsOf(asOf)

	all, rejected := resolve(violations)
	for _, r := range rejected {
		e.logger.Warn("violation rejected",
			"violation_id", r.Violation.ID,
			"type", r.Violation.Type,
			"error", r.Error)
	}

	res := Result{AsOf: asOf, Rejected: rejected}

	window := make([]NormalizedViolation, 0, len(all))
	for _, v := range all {
		if !e.cfg.ResetEffectiveDate.IsZero() && v.Day.Before(e.cfg.ResetEffectiveDate) {
			continue
		}
		if v.Day.After(asOf) {
			res.FutureViolations++
			continue
		}
		window = append(window, v)
	}
	window = GroupConsecutiveCallouts(window)

	seed := asOf
	switch {
	case !e.cfg.ResetEffectiveDate.IsZero():
		// A reset dated after asOf leaves an empty history dated asOf.
		if !e.cfg.ResetEffectiveDate.After(asOf) {
			seed = e.cfg.ResetEffectiveDate
		}
	case len(window) > 0:
		seed = window[0].Day
	}

	st := e.initialState(seed)
	log := []EventLogEntry{entry(st, seed, EventInitial, st.Points, "initial state")}

	capped := false
	project := func(ref generic.TimePoint) {
		var entries []EventLogEntry
		var hit bool
		st, entries, hit = e.catchUp(st, ref)
		log = append(log, entries...)
		if hit && !capped {
			capped = true
			e.logger.Warn("catch-up iteration cap reached",
				"as_of", asOf.String(),
				"reference", ref.String(),
				"iterations", e.cfg.MaxCatchUpIterations)
			if e.observer != nil {
				e.observer.CatchUpCapped(asOf, e.cfg.MaxCatchUpIterations)
			}
		}
	}

	for _, v := range window {
		project(v.Day)
		var entries []EventLogEntry
		st, entries = e.step(st, v)
		log = append(log, entries...)
	}
	project(asOf)

	res.Points = st.Points
	res.Tier = st.Tier.Name
	res.TierLevel = st.Tier.Level
	res.DAStageIndex = st.DAStageIndex
	res.DAStage = DAStageLabel(st.DAStageIndex)
	res.TierStartDate = st.TierStartDate
	res.EventLog = log
	res.DropHistory = st.Drops
	res.CatchUpCapped = capped

	if e.observer != nil {
		e.observer.ReplayCompleted(res)
	}
	return res
}
