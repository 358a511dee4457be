package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - A span of calendar days
// =============================================================================

// Period is a span between two calendar days. Unlike a time-off period it is
// end-exclusive when counted: a loan taken out and returned on the same day
// spans zero days.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// RangeLayout is the day format used in human-readable range labels.
const RangeLayout = "02 Jan 2006"

const rangeSeparator = " - "

// Valid reports whether both ends are parseable and ordered.
func (p Period) Valid() bool {
	return p.Start.Valid() && p.End.Valid() && !p.End.Before(p.Start)
}

// Days returns the number of calendar days from Start to End.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End)
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Label renders "02 Jan 2025 - 10 Jan 2025".
func (p Period) Label() string {
	return p.Start.Time.Format(RangeLayout) + rangeSeparator + p.End.Time.Format(RangeLayout)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// ParsePeriodLabel is the inverse of Label.
func ParsePeriodLabel(label string) (Period, error) {
	parts := strings.Split(label, rangeSeparator)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	start, err := time.Parse(RangeLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return Period{}, fmt.Errorf("%w: start: %v", ErrInvalidPeriod, err)
	}
	end, err := time.Parse(RangeLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return Period{}, fmt.Errorf("%w: end: %v", ErrInvalidPeriod, err)
	}
	p := Period{
		Start: TimePoint{Time: start, Granularity: GranularityDay},
		End:   TimePoint{Time: end, Granularity: GranularityDay},
	}
	if !p.Valid() {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}
