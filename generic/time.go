package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day abstraction (violations happen on days, not instants)
// =============================================================================

// TimePoint is a calendar day. The wrapped time is always midnight UTC of
// that day so that comparisons and arithmetic never cross a day boundary
// because of the runtime's local offset.
type TimePoint struct {
	Time time.Time
}

// NewTimePoint builds the TimePoint for year/month/day.
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
// A native time value keeps the day its producer meant.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in loc (time.Local when nil).
func Today(loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(time.Now().In(loc))
}

// Accepted layouts, tried in order. Anything after the date portion is
// ignored on purpose: "2023-12-07T00:00:00.000Z" is Dec 7 everywhere.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// ParseCalendarDate extracts the calendar day from a date string. The time
// component and any zone designator are discarded rather than converted.
func ParseCalendarDate(input string) (TimePoint, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return TimePoint{}, &InvalidDateError{Input: input, Reason: "empty"}
	}

	// ISO forms: keep only the date before 'T' or ' '.
	if i := strings.IndexAny(s, "T "); i == 10 {
		s = s[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}

	// Last resort: a full RFC3339 value in a different shape (e.g. no 'T').
	if t, err := time.Parse(time.RFC3339Nano, input); err == nil {
		return NewTimePoint(t.Year(), t.Month(), t.Day()), nil
	}

	return TimePoint{}, &InvalidDateError{Input: input, Reason: "unrecognized date format"}
}

// MustParseDate is ParseCalendarDate for literals in tests and fixtures.
func MustParseDate(input string) TimePoint {
	tp, err := ParseCalendarDate(input)
	if err != nil {
		panic(fmt.Sprintf("generic: %v", err))
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }
func (tp TimePoint) Quarter() int      { return (int(tp.Month())-1)/3 + 1 }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format("2006-01-02")
}

// MarshalText renders the day as YYYY-MM-DD.
func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

// UnmarshalText accepts anything ParseCalendarDate does.
func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseCalendarDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween is the signed number of calendar days from -> to.
func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// MaxTimePoint returns the later of a and b.
func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

func StartOfYear(year int) TimePoint                    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month+1, 1).AddDays(-1)
}
