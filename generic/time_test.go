package generic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

func TestParseTimePoint_Layouts(t *testing.T) {
	cases := []struct {
		in      string
		valid   bool
		instant bool
	}{
		{"2025-01-10", true, false},
		{"2025-01-10T08:30:00+07:00", true, true},
		{"2025-01-10T08:30:00.123Z", true, true},
		{"2025-01-10 08:30:00", true, true},
		{"2025-01-10T08:30", true, true},
		{"  2025-01-10  ", true, false},
		{"besok", false, false},
		{"", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			tp := ParseTimePoint(tc.in)
			assert.Equal(t, tc.valid, tp.Valid())
			if tc.valid {
				assert.Equal(t, tc.instant, tp.Granularity == GranularityInstant)
			}
		})
	}
}

func TestParseTimePoint_KeepsGarbage(t *testing.T) {
	tp := ParseTimePoint("secepatnya")

	assert.True(t, tp.Malformed())
	assert.False(t, tp.IsZero())
	assert.Equal(t, "secepatnya", tp.String())

	data, err := json.Marshal(tp)
	require.NoError(t, err)
	assert.JSONEq(t, `"secepatnya"`, string(data))
}

func TestTimePoint_UnmarshalTolerant(t *testing.T) {
	var doc struct {
		A TimePoint `json:"a"`
		B TimePoint `json:"b"`
		C TimePoint `json:"c"`
		D TimePoint `json:"d"`
		E TimePoint `json:"e"`
	}
	raw := `{"a": "2025-01-10", "b": null, "c": 1736467200000, "d": {"seconds": 1}, "e": "nope"}`

	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.True(t, doc.A.Equal(NewTimePoint(2025, time.January, 10)))
	assert.True(t, doc.B.IsZero())
	assert.True(t, doc.C.Valid())
	assert.Equal(t, GranularityInstant, doc.C.Granularity)
	assert.True(t, doc.D.Malformed())
	assert.True(t, doc.E.Malformed())
}

func TestTimePoint_MarshalRoundTripsDays(t *testing.T) {
	in := NewTimePoint(2025, time.March, 3)

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-03-03"`, string(data))

	var out TimePoint
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Equal(in))

	zero, err := json.Marshal(TimePoint{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(zero))
}

func TestCalendarDay_UsesLocationForInstants(t *testing.T) {
	// 2025-01-10 18:30 UTC is already the 11th in WIB
	instant := At(time.Date(2025, time.January, 10, 18, 30, 0, 0, time.UTC))

	assert.True(t, instant.CalendarDay(wib).Equal(NewTimePoint(2025, time.January, 11)))
	assert.True(t, instant.CalendarDay(time.UTC).Equal(NewTimePoint(2025, time.January, 10)))

	day := NewTimePoint(2025, time.January, 10)
	assert.True(t, day.CalendarDay(wib).Equal(day))
}

func TestDaysBetween(t *testing.T) {
	from := NewTimePoint(2025, time.January, 28)

	assert.Equal(t, 0, DaysBetween(from, from))
	assert.Equal(t, 4, DaysBetween(from, NewTimePoint(2025, time.February, 1)))
	assert.Equal(t, -3, DaysBetween(from, NewTimePoint(2025, time.January, 25)))
	assert.True(t, from.AddDays(4).Equal(NewTimePoint(2025, time.February, 1)))
}

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod_LabelRoundTrip(t *testing.T) {
	p := Period{Start: NewTimePoint(2025, time.January, 2), End: NewTimePoint(2025, time.January, 10)}

	label := p.Label()
	assert.Equal(t, "02 Jan 2025 - 10 Jan 2025", label)
	assert.Equal(t, 8, p.Days())

	parsed, err := ParsePeriodLabel(label)
	require.NoError(t, err)
	assert.Equal(t, 8, parsed.Days())
	assert.True(t, parsed.Contains(NewTimePoint(2025, time.January, 5)))
	assert.False(t, parsed.Contains(NewTimePoint(2025, time.January, 11)))
}

func TestParsePeriodLabel_Rejects(t *testing.T) {
	for _, label := range []string{"", "02 Jan 2025", "10 Jan 2025 - 02 Jan 2025", "x - y"} {
		_, err := ParsePeriodLabel(label)
		assert.ErrorIs(t, err, ErrInvalidPeriod, label)
	}
}

// =============================================================================
// MONEY TESTS
// =============================================================================

func TestMoney_Arithmetic(t *testing.T) {
	perDay := NewMoney(5000, CurrencyIDR)

	total := perDay.MulInt(3).Add(NewMoney(500, CurrencyIDR))

	assert.Equal(t, int64(15500), total.IntPart())
	assert.True(t, total.IsPositive())
	assert.True(t, perDay.Zero().IsZero())
	assert.True(t, total.Equal(NewMoney(15500, CurrencyIDR)))
	assert.Equal(t, "15500 IDR", total.String())
}

func TestMoney_JSONIsANumber(t *testing.T) {
	data, err := json.Marshal(NewMoney(15000, CurrencyIDR))
	require.NoError(t, err)
	assert.Equal(t, "15000", string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte("25000"), &m))
	assert.Equal(t, int64(25000), m.IntPart())
}
