package timetable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const departmentTimetable = `INDIVIDUAL SCHEDULE OF JUAN PONCE,,,,,
MARIA SANTOS INDIVIDUAL SCHEDULE,,,,,
TIME,MONDAY,TUESDAY,WEDNESDAY,THURSDAY,FRIDAY
6:45-7:40,FLAG CEREMONY,,,,
7:40-8:40,Science 8,Science 8,,Science 8,
12:00-1:00,LUNCH BREAK,Lunch Break,lunch break,LUNCH BREAK,LUNCH BREAK
1:00-2:00,HGP,ARAL,Science 9,,
JUAN DELA CRUZ INDIVIDUAL SCHEDULE,,,,,
TIME,MONDAY,TUESDAY,WEDNESDAY,THURSDAY,FRIDAY
7:40-8:40,7A,7A,,,7A
"9:40 - 10:40",Math 7B,,"Math, 7C",,
,,,,,
3:00-4:00,,,,Homeroom,

9:00-10:00,Late Entry,,,,
`

func scanTimetable(t *testing.T, name string) ScanResult {
	t.Helper()
	rows, err := ReadCSV(strings.NewReader(departmentTimetable))
	require.NoError(t, err)
	return NewScanner(nil, 0).Scan(rows, name)
}

func TestScanLocatesTeacherPastDecoyMarkerRow(t *testing.T) {
	res := scanTimetable(t, "Juan Dela Cruz")

	require.True(t, res.Found)
	assert.Equal(t, "JUAN", res.Token)
	assert.Equal(t, 7, res.NameRow)
	assert.Equal(t, StopBlankRun, res.Stop)
	assert.Equal(t, 12, res.LastRow)
	assert.Equal(t, []Slot{
		{Day: 1, Start: "7:40 AM", End: "8:40 AM", Subject: "7A", Row: 9},
		{Day: 2, Start: "7:40 AM", End: "8:40 AM", Subject: "7A", Row: 9},
		{Day: 5, Start: "7:40 AM", End: "8:40 AM", Subject: "7A", Row: 9},
		{Day: 1, Start: "9:40 AM", End: "10:40 AM", Subject: "Math 7B", Row: 10},
		{Day: 3, Start: "9:40 AM", End: "10:40 AM", Subject: "Math, 7C", Row: 10},
		{Day: 4, Start: "3:00 PM", End: "4:00 PM", Subject: "Homeroom", Row: 12},
	}, res.Slots)
}

func TestScanStopsAtNextSectionAndSkipsIgnoredLabels(t *testing.T) {
	res := scanTimetable(t, "Maria Santos")

	require.True(t, res.Found)
	assert.Equal(t, 1, res.NameRow)
	assert.Equal(t, StopSectionMarker, res.Stop)
	require.Len(t, res.Slots, 4)
	for _, slot := range res.Slots {
		assert.NotEqual(t, "LUNCH BREAK", strings.ToUpper(slot.Subject))
		assert.False(t, IsIgnoredLabel(slot.Subject))
	}
	assert.Equal(t, Slot{Day: 3, Start: "1:00 PM", End: "2:00 PM", Subject: "Science 9", Row: 6}, res.Slots[3])
}

func TestScanNotFound(t *testing.T) {
	res := scanTimetable(t, "Pedro Penduko")
	assert.False(t, res.Found)
	assert.Equal(t, "PEDRO", res.Token)
	assert.Empty(t, res.Slots)

	res = scanTimetable(t, "   ")
	assert.False(t, res.Found)
}

func TestScanProcessesOnlyFirstBlock(t *testing.T) {
	rows := [][]string{
		{"JUAN DELA CRUZ"},
		{"7:40-8:40", "A"},
		{"JUAN DELA CRUZ INDIVIDUAL SCHEDULE"},
		{"9:40-10:40", "B"},
	}
	res := NewScanner(SubstringMatcher, 5).Scan(rows, "Juan")
	require.True(t, res.Found)
	assert.Equal(t, StopSectionMarker, res.Stop)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "A", res.Slots[0].Subject)
}

func TestScanToleratesEarlyBlanksAndRaggedRows(t *testing.T) {
	rows := [][]string{
		{"JUAN"},
		{""},
		{""},
		{"7:40-8:40"},
		{"8:40-9:40", "A", "B"},
	}
	res := NewScanner(nil, 5).Scan(rows, "Juan")
	assert.Equal(t, StopEndOfInput, res.Stop)
	require.Len(t, res.Slots, 2)
	assert.Equal(t, 2, res.Slots[1].Day)
}

func TestScanWithWordMatcherIgnoresPartialNames(t *testing.T) {
	rows := [][]string{
		{"JUANITO REYES"},
		{"7:40-8:40", "X"},
		{"INDIVIDUAL"},
		{"JUAN DELA CRUZ"},
		{"7:40-8:40", "Y"},
	}
	res := NewScanner(WordMatcher, 5).Scan(rows, "Juan")
	require.True(t, res.Found)
	assert.Equal(t, 3, res.NameRow)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "Y", res.Slots[0].Subject)
}

func TestTransitionGuards(t *testing.T) {
	assert.True(t, blankRunExceeded("", 6, 0, 5))
	assert.False(t, blankRunExceeded("", 5, 0, 5))
	assert.False(t, blankRunExceeded("7:40-8:40", 10, 0, 5))

	assert.True(t, hasSectionMarker("Individual Schedule"))
	assert.False(t, hasSectionMarker("7:40-8:40"))

	s := NewScanner(nil, 0)
	assert.True(t, s.isNameRow([]string{"JUAN DELA CRUZ INDIVIDUAL SCHEDULE"}, "JUAN"))
	assert.False(t, s.isNameRow([]string{"INDIVIDUAL SCHEDULE OF JUAN"}, "JUAN"))
	assert.False(t, s.isNameRow([]string{"LUNCH BREAK", "JUAN"}, "JUAN"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "seeking_teacher", SeekingTeacher.String())
	assert.Equal(t, "reading_schedule", ReadingSchedule.String())
	assert.Equal(t, "done", Done.String())
}

func TestScanFuzzyMatcherAcceptsMisspeltLeadingName(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(departmentTimetable))
	require.NoError(t, err)

	res := NewScanner(FuzzyMatcher{MaxDistance: 1}, 0).Scan(rows, "Juam Dela Cruz")
	require.True(t, res.Found)
	assert.Equal(t, 7, res.NameRow)

	res = NewScanner(nil, 0).Scan(rows, "Juam Dela Cruz")
	assert.False(t, res.Found)
}
