package loan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
)

func TestCalculateDuration_SameDayIsZero(t *testing.T) {
	d := loan.CalculateDuration(day(2025, time.January, 5), day(2025, time.January, 5), nil)

	require.NotNil(t, d)
	assert.Equal(t, 0, d.Days)
	assert.Equal(t, "0 hari", d.Label)
	assert.Equal(t, "05 Jan 2025 - 05 Jan 2025", d.RangeLabel)
}

func TestCalculateDuration_Labels(t *testing.T) {
	d := loan.CalculateDuration(day(2025, time.January, 1), day(2025, time.January, 10), nil)

	require.NotNil(t, d)
	assert.Equal(t, 9, d.Days)
	assert.Equal(t, "9 hari", d.Label)
	assert.Equal(t, "01 Jan 2025 - 10 Jan 2025", d.RangeLabel)
}

func TestCalculateDuration_InstantUsesBusinessDay(t *testing.T) {
	// 20:00 UTC on Jan 1 is Jan 2 in WIB.
	start := generic.At(time.Date(2025, time.January, 1, 20, 0, 0, 0, time.UTC))

	d := loan.CalculateDuration(start, day(2025, time.January, 5), nil)

	require.NotNil(t, d)
	assert.Equal(t, 3, d.Days)
	assert.Equal(t, "02 Jan 2025 - 05 Jan 2025", d.RangeLabel)
}

func TestCalculateDuration_InvalidInputsReturnNil(t *testing.T) {
	assert.Nil(t, loan.CalculateDuration(day(2025, time.January, 10), day(2025, time.January, 1), nil))
	assert.Nil(t, loan.CalculateDuration(day(2025, time.January, 1), generic.TimePoint{}, nil))
	assert.Nil(t, loan.CalculateDuration(generic.ParseTimePoint("soon"), day(2025, time.January, 1), nil))
}

func TestCalculateDuration_RangeLabelRoundTrip(t *testing.T) {
	// GIVEN: Several spans, including month and year boundaries
	// WHEN: Re-deriving the day count from the range label
	// THEN: It matches the computed count
	spans := [][2]generic.TimePoint{
		{day(2025, time.January, 1), day(2025, time.January, 1)},
		{day(2025, time.January, 28), day(2025, time.February, 3)},
		{day(2024, time.February, 27), day(2024, time.March, 1)},
		{day(2024, time.December, 30), day(2025, time.January, 2)},
		{generic.At(time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)), day(2025, time.April, 1)},
	}
	for _, span := range spans {
		d := loan.CalculateDuration(span[0], span[1], nil)
		require.NotNil(t, d)

		fromRange, err := loan.DaysFromRangeLabel(d.RangeLabel)
		require.NoError(t, err)
		assert.Equal(t, d.Days, fromRange, d.RangeLabel)

		fromLabel, err := loan.ParseDaysLabel(d.Label)
		require.NoError(t, err)
		assert.Equal(t, d.Days, fromLabel)
	}
}

func TestDaysFromRangeLabel_Malformed(t *testing.T) {
	_, err := loan.DaysFromRangeLabel("yesterday until tomorrow")
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
