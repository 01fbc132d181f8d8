/*
normalize.go - Violation Normalizer

PURPOSE:
  Turns the caller's heterogeneous violation list into the canonical,
  chronological sequence the replay consumes:
    1. Resolve the calendar day (text or native form, timezone stable)
    2. Map legacy type aliases to canonical types
    3. Sort by day, keeping input order for same-day entries
    4. Mark consecutive callouts

CONSECUTIVE CALLOUTS:
  A callout exactly one calendar day after the immediately preceding
  billable callout is consecutive. The comparison is pairwise, so a
  three-day run marks days two and three, each against its predecessor.
  Consecutive callouts stay in the sequence; the penalty calculator
  waives them and the log shows them at zero cost.

  Covered and protected callouts never take part in the chain.

SEE ALSO:
  - penalty.go: How Consecutive and Excluded are priced
*/
package discipline

import (
	"sort"

	"github.com/warp/points-engine/generic"
)

// NormalizedViolation is a violation with its day and canonical type
// resolved.
type NormalizedViolation struct {
	Violation

	Day  generic.TimePoint
	Kind ViolationType

	// Excluded marks covered shifts and protected absences.
	Excluded bool

	// Consecutive marks a callout one day after the previous billable one.
	Consecutive bool
}

// Normalize parses, canonicalizes, sorts and groups violations. Entries
// whose date cannot be resolved are returned in rejected, never dropped
// silently. The input slice is not modified.
func Normalize(violations []Violation) (out []NormalizedViolation, rejected []RejectedViolation) {
	out, rejected = resolve(violations)
	return GroupConsecutiveCallouts(out), rejected
}

// resolve is Normalize without the callout grouping. The engine groups
// after truncating to the replay window.
func resolve(violations []Violation) ([]NormalizedViolation, []RejectedViolation) {
	out := make([]NormalizedViolation, 0, len(violations))
	var rejected []RejectedViolation

	for _, v := range violations {
		day, err := v.CalendarDate()
		if err != nil {
			rejected = append(rejected, RejectedViolation{Violation: v, Error: err.Error(), err: err})
			continue
		}
		kind, ok := CanonicalType(v.Type)
		if !ok {
			kind = UnknownType
		}
		out = append(out, NormalizedViolation{
			Violation: v,
			Day:       day,
			Kind:      kind,
			Excluded:  v.ShiftCovered || v.ProtectedAbsence,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out, rejected
}

// GroupConsecutiveCallouts returns a copy of sorted violations with the
// Consecutive mark recomputed.
func GroupConsecutiveCallouts(sorted []NormalizedViolation) []NormalizedViolation {
	out := make([]NormalizedViolation, len(sorted))
	copy(out, sorted)

	var prev *generic.TimePoint
	for i := range out {
		out[i].Consecutive = false
		if out[i].Kind != CallOut || out[i].Excluded {
			continue
		}
		day := out[i].Day
		if prev != nil && generic.DaysBetween(*prev, day) == 1 {
			out[i].Consecutive = true
		}
		prev = &day
	}
	return out
}
