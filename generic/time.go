package generic

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Concrete time abstraction (dates on a loan record)
// =============================================================================

// TimePoint is a date or an instant read from a loan record.
//
// Loan documents were written by several generations of clients, so the
// same field may hold "2025-01-10", an RFC3339 timestamp, a naive
// "2025-01-10 08:00:00" or garbage. Decoding never fails: unparseable text is
// kept in Raw with a zero Time so it survives a read-modify-write cycle and
// derivation code can report it instead of crashing.
type TimePoint struct {
	Time        time.Time
	Granularity Granularity
	Raw         string
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityInstant
)

// Layouts accepted when decoding, most specific first.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

const dayLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

// At wraps an exact instant.
func At(t time.Time) TimePoint {
	return TimePoint{Time: t, Granularity: GranularityInstant}
}

// ParseTimePoint parses s leniently. Empty input yields the zero TimePoint,
// unparseable input yields a malformed TimePoint carrying the raw text.
func ParseTimePoint(s string) TimePoint {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return TimePoint{Time: t, Granularity: GranularityDay}
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimePoint{Time: t, Granularity: GranularityInstant}
		}
	}
	return TimePoint{Raw: s}
}

// Properties
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() && tp.Raw == "" }
func (tp TimePoint) Valid() bool       { return !tp.Time.IsZero() }
func (tp TimePoint) Malformed() bool   { return tp.Time.IsZero() && tp.Raw != "" }
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }

// CalendarDay returns the calendar date the point falls on in loc.
// Date-only points already name a calendar day and ignore loc.
func (tp TimePoint) CalendarDay(loc *time.Location) TimePoint {
	if !tp.Valid() {
		return tp
	}
	t := tp.Time
	if tp.Granularity != GranularityDay && loc != nil {
		t = t.In(loc)
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool  { return tp.normalize().After(other.normalize()) }

func (tp TimePoint) normalize() time.Time {
	if tp.Granularity == GranularityDay {
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
	}
	return tp.Time
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

func (tp TimePoint) String() string {
	switch {
	case tp.Malformed():
		return tp.Raw
	case !tp.Valid():
		return ""
	case tp.Granularity == GranularityDay:
		return tp.Time.Format(dayLayout)
	default:
		return tp.Time.Format(time.RFC3339)
	}
}

// =============================================================================
// JSON
// =============================================================================

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tp.String())
}

// UnmarshalJSON accepts strings, null and unix-millisecond numbers.
// It never returns an error for a bad value.
func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*tp = TimePoint{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*tp = ParseTimePoint(s)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil && ms > 0 {
		*tp = At(time.UnixMilli(ms).UTC())
		return nil
	}
	*tp = TimePoint{Raw: string(data)}
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween counts calendar days from one day-granular point to another.
func DaysBetween(from, to TimePoint) int { return int(to.normalize().Sub(from.normalize()).Hours() / 24) }
