package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTo12Hour(t *testing.T) {
	cases := map[string]string{
		"7:40":    "7:40 AM",
		"1:00":    "1:00 PM",
		"12:00":   "12:00 PM",
		"11:15":   "11:15 AM",
		"5:59":    "5:59 PM",
		"6:00":    "6:00 AM",
		"07:40":   "7:40 AM",
		"8":       "8:00 AM",
		"9:5":     "9:05 AM",
		" 10:30 ": "10:30 AM",
		"0:30":    "0:30 AM",
		"13:00":   "13:00 AM",
		"7.40":    "740:00 AM",
		"":        "",
		"noon":    "noon",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatTo12Hour(in), "input %q", in)
	}
}

func TestParseMinutes(t *testing.T) {
	cases := map[string]int{
		"7:40 AM":  7*60 + 40,
		"12:00 PM": 12 * 60,
		"12:15 AM": 15,
		"1:00 PM":  13 * 60,
		"6:00 pm":  18 * 60,
		"9:05AM":   9*60 + 5,
	}
	for in, want := range cases {
		got, err := ParseMinutes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "7:40", "13:00 PM", "7:61 AM", "0:30 AM"} {
		_, err := ParseMinutes(bad)
		assert.Error(t, err, bad)
	}
}

func TestStringOrderingIsNotTimeOrdering(t *testing.T) {
	morning, err := ParseMinutes("7:40 AM")
	require.NoError(t, err)
	afternoon, err := ParseMinutes("1:00 PM")
	require.NoError(t, err)

	assert.True(t, "7:40 AM" > "1:00 PM")
	assert.Less(t, morning, afternoon)
}

func TestIntervalOverlaps(t *testing.T) {
	block, err := NewInterval("7:40 AM", "8:40 AM")
	require.NoError(t, err)

	overlapping, err := NewInterval("8:00 AM", "9:00 AM")
	require.NoError(t, err)
	adjacent, err := NewInterval("8:40 AM", "9:40 AM")
	require.NoError(t, err)

	assert.True(t, block.Overlaps(overlapping))
	assert.True(t, overlapping.Overlaps(block))
	assert.False(t, block.Overlaps(adjacent))
	assert.False(t, adjacent.Overlaps(block))
	assert.True(t, DefaultSchoolDay.Overlaps(block))
}

func TestNewIntervalRejectsInvertedRange(t *testing.T) {
	_, err := NewInterval("9:00 AM", "8:00 AM")
	require.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	iv, err := ParsePeriod("7:40 AM - 8:40 AM", DefaultSchoolDay)
	require.NoError(t, err)
	assert.Equal(t, Interval{Start: 460, End: 520}, iv)

	iv, err = ParsePeriod("whole day", DefaultSchoolDay)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchoolDay, iv)

	_, err = ParsePeriod("7:40 AM", DefaultSchoolDay)
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"7:40":     "7:40 AM",
		"07:40 am": "7:40 AM",
		"1:00 PM":  "1:00 PM",
		"2:30":     "2:30 PM",
	}
	for in, want := range cases {
		got, err := Canonical(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := Canonical("lunch")
	require.Error(t, err)
}

func TestFormatMinutesRoundTrip(t *testing.T) {
	for _, v := range []string{"12:00 AM", "7:05 AM", "12:00 PM", "11:59 PM"} {
		m, err := ParseMinutes(v)
		require.NoError(t, err)
		assert.Equal(t, v, FormatMinutes(m))
	}
}

func TestWeekday(t *testing.T) {
	monday := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, Weekday(monday))
	assert.Equal(t, 5, Weekday(monday.AddDate(0, 0, 4)))
	assert.Equal(t, 7, Weekday(monday.AddDate(0, 0, 6)))
	assert.True(t, IsSchoolDay(Weekday(monday)))
	assert.False(t, IsSchoolDay(Weekday(monday.AddDate(0, 0, 5))))
	assert.Equal(t, "Monday", DayName(1))
	assert.Equal(t, "Sunday", DayName(7))
}
