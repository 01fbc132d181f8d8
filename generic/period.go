package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Reset boundary for escalation counters and reporting windows
// =============================================================================

// Period is an inclusive range of calendar days.
//
// Examples:
//   - Month: Mar 1 - Mar 31
//   - Quarter: Apr 1 - Jun 30
//   - Rolling year ending on a date
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodMonthly      PeriodType = "monthly"       // 1st - last day of month
	PeriodQuarterly    PeriodType = "quarterly"     // calendar quarters
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodRolling      PeriodType = "rolling"       // trailing 12 months ending on date
)

// PeriodConfig defines how to calculate periods
type PeriodConfig struct {
	Type PeriodType
}

// PeriodFor returns the period that contains the given date
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodQuarterly:
		return QuarterOf(date).Period()

	case PeriodCalendarYear:
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}

	case PeriodRolling:
		return Period{Start: date.AddYears(-1).AddDays(1), End: date}

	default:
		return Period{
			Start: StartOfMonth(date.Year(), date.Month()),
			End:   EndOfMonth(date.Year(), date.Month()),
		}
	}
}

// SamePeriod reports whether a and b fall in the same period.
func (pc PeriodConfig) SamePeriod(a, b TimePoint) bool {
	return pc.PeriodFor(a).Start.Equal(pc.PeriodFor(b).Start)
}

// =============================================================================
// QUARTER KEYS - "2024-Q3"
// =============================================================================

// Quarter identifies a calendar quarter.
type Quarter struct {
	Year int
	Q    int // 1-4
}

// QuarterOf returns the quarter containing date.
func QuarterOf(date TimePoint) Quarter {
	return Quarter{Year: date.Year(), Q: date.Quarter()}
}

// ParseQuarter accepts "2024-Q3", "2024Q3" and "Q3-2024".
func ParseQuarter(key string) (Quarter, error) {
	s := strings.ToUpper(strings.TrimSpace(key))
	s = strings.ReplaceAll(s, " ", "")

	var yearPart, qPart string
	switch {
	case strings.HasPrefix(s, "Q"):
		parts := strings.SplitN(s, "-", 2)
		if len(parts) != 2 {
			return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarterKey, key)
		}
		qPart, yearPart = parts[0][1:], parts[1]
	default:
		i := strings.Index(s, "Q")
		if i < 4 {
			return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarterKey, key)
		}
		yearPart, qPart = strings.TrimSuffix(s[:i], "-"), s[i+1:]
	}

	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarterKey, key)
	}
	q, err := strconv.Atoi(qPart)
	if err != nil || q < 1 || q > 4 {
		return Quarter{}, fmt.Errorf("%w: %q", ErrInvalidQuarterKey, key)
	}
	return Quarter{Year: year, Q: q}, nil
}

// Start is the first day of the quarter.
func (q Quarter) Start() TimePoint {
	return NewTimePoint(q.Year, time.Month((q.Q-1)*3+1), 1)
}

// End is the last day of the quarter.
func (q Quarter) End() TimePoint {
	return q.Start().AddMonths(3).AddDays(-1)
}

func (q Quarter) Period() Period { return Period{Start: q.Start(), End: q.End()} }

// Previous returns the quarter before q.
func (q Quarter) Previous() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

func (q Quarter) String() string { return fmt.Sprintf("%d-Q%d", q.Year, q.Q) }
