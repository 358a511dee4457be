package loan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// DURATION
// =============================================================================

// DefaultLocation is the business timezone (WIB, UTC+7). Calendar days are
// counted here, never in the server's local zone.
var DefaultLocation = time.FixedZone("WIB", 7*60*60)

// Duration is the number of calendar days between two dates plus the labels
// shown to users.
type Duration struct {
	Days       int    `json:"days"`
	Label      string `json:"label"`
	RangeLabel string `json:"rangeLabel"`
}

const daysSuffix = " hari"

// CalculateDuration counts calendar days from start to end in loc. The
// count is end-exclusive: the same day twice gives 0. It returns nil when
// either end is not a date or end precedes start.
func CalculateDuration(start, end generic.TimePoint, loc *time.Location) *Duration {
	if !start.Valid() || !end.Valid() {
		return nil
	}
	if loc == nil {
		loc = DefaultLocation
	}
	p := generic.Period{Start: start.CalendarDay(loc), End: end.CalendarDay(loc)}
	if !p.Valid() {
		return nil
	}
	days := p.Days()
	return &Duration{
		Days:       days,
		Label:      DaysLabel(days),
		RangeLabel: p.Label(),
	}
}

// DaysLabel renders "N hari".
func DaysLabel(days int) string {
	return strconv.Itoa(days) + daysSuffix
}

// ParseDaysLabel is the inverse of DaysLabel.
func ParseDaysLabel(label string) (int, error) {
	n, ok := strings.CutSuffix(strings.TrimSpace(label), daysSuffix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", generic.ErrInvalidPeriod, label)
	}
	return strconv.Atoi(n)
}

// DaysFromRangeLabel recovers the day count from a range label.
func DaysFromRangeLabel(label string) (int, error) {
	p, err := generic.ParsePeriodLabel(label)
	if err != nil {
		return 0, err
	}
	return p.Days(), nil
}
