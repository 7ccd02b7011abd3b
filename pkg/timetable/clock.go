package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WholeDayPeriod is the period label stored for whole-day absences.
const WholeDayPeriod = "Whole Day"

var (
	nonClockChars = regexp.MustCompile(`[^0-9:]`)
	twelveHour    = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)
)

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether a and b share at least one minute.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (a Interval) String() string {
	return FormatMinutes(a.Start) + " - " + FormatMinutes(a.End)
}

// FormatTo12Hour converts a bare "H:MM" timetable cell into canonical "H:MM AM|PM"
// using the school-day convention: 1-5 and 12 are afternoon, 6-11 are morning.
// Other hour values keep "AM". Input without any digits is returned unchanged.
func FormatTo12Hour(raw string) string {
	if raw == "" {
		return ""
	}
	clean := nonClockChars.ReplaceAllString(raw, "")
	hourPart, minPart, _ := strings.Cut(clean, ":")
	if hourPart == "" {
		return raw
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return raw
	}
	// only the first colon-separated minute group counts
	minPart, _, _ = strings.Cut(minPart, ":")
	switch {
	case minPart == "":
		minPart = "00"
	case len(minPart) == 1:
		minPart = "0" + minPart
	}

	suffix := "AM"
	if (hour >= 1 && hour <= 5) || hour == 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%s %s", hour, minPart, suffix)
}

// ParseMinutes parses a canonical "H:MM AM|PM" value into minutes since midnight.
func ParseMinutes(value string) (int, error) {
	m := twelveHour.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	hour %= 12
	if strings.EqualFold(m[3], "PM") {
		hour += 12
	}
	return hour*60 + minute, nil
}

// FormatMinutes renders minutes since midnight as canonical "H:MM AM|PM".
func FormatMinutes(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	hour, minute := minutes/60, minutes%60
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, suffix)
}

// Canonical normalises a user supplied time. Values carrying AM/PM are re-rendered,
// bare "H:MM" values go through FormatTo12Hour.
func Canonical(value string) (string, error) {
	value = strings.TrimSpace(value)
	if twelveHour.MatchString(value) {
		minutes, err := ParseMinutes(value)
		if err != nil {
			return "", err
		}
		return FormatMinutes(minutes), nil
	}
	formatted := FormatTo12Hour(value)
	if _, err := ParseMinutes(formatted); err != nil {
		return "", err
	}
	return formatted, nil
}

// NewInterval parses canonical start and end values. End must be after start.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseMinutes(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseMinutes(end)
	if err != nil {
		return Interval{}, err
	}
	if e <= s {
		return Interval{}, fmt.Errorf("period %s - %s ends before it starts", start, end)
	}
	return Interval{Start: s, End: e}, nil
}

// FormatPeriod joins canonical start and end into a stored period label.
func FormatPeriod(start, end string) string {
	return start + " - " + end
}

// ParsePeriod splits a stored period label into an interval. WholeDayPeriod maps to wholeDay.
func ParsePeriod(period string, wholeDay Interval) (Interval, error) {
	period = strings.TrimSpace(period)
	if strings.EqualFold(period, WholeDayPeriod) {
		return wholeDay, nil
	}
	start, end, ok := strings.Cut(period, " - ")
	if !ok {
		return Interval{}, fmt.Errorf("invalid period %q", period)
	}
	return NewInterval(start, end)
}

// SchoolDay returns the whole-day window bounded by the given canonical times.
func SchoolDay(from, to string) (Interval, error) {
	return NewInterval(from, to)
}

// DefaultSchoolDay is the 6:00 AM to 6:00 PM window.
var DefaultSchoolDay = Interval{Start: 6 * 60, End: 18 * 60}

// Weekday maps a date to the schedule day number, Monday=1 through Sunday=7.
func Weekday(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsSchoolDay reports whether day is a Monday to Friday schedule day.
func IsSchoolDay(day int) bool {
	return day >= 1 && day <= 5
}

// DayName returns the English weekday name for a schedule day number.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return ""
	}
	return time.Weekday(day % 7).String()
}
