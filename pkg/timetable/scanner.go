package timetable

import (
	"strings"
)

// State is a position of the timetable scanner.
type State int

const (
	SeekingTeacher State = iota
	ReadingSchedule
	Done
)

func (s State) String() string {
	switch s {
	case SeekingTeacher:
		return "seeking_teacher"
	case ReadingSchedule:
		return "reading_schedule"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Stop names the guard that moved the scanner to Done.
type Stop string

const (
	StopEndOfInput    Stop = "end_of_input"
	StopSectionMarker Stop = "section_marker"
	StopBlankRun      Stop = "blank_run"
)

const (
	sectionMarker        = "INDIVIDUAL"
	defaultBlankRowLimit = 5
	weekdayColumns       = 5
)

var ignoredLabels = map[string]struct{}{
	"":              {},
	"FLAG CEREMONY": {},
	"HEALTH BREAK":  {},
	"LUNCH BREAK":   {},
	"TIME":          {},
	"ARAL":          {},
	"HGP":           {},
}

// IsIgnoredLabel reports whether a weekday cell holds a break or filler label.
func IsIgnoredLabel(cell string) bool {
	_, ok := ignoredLabels[strings.ToUpper(strings.TrimSpace(cell))]
	return ok
}

// Slot is one weekday class parsed from a schedule row.
type Slot struct {
	Day     int
	Start   string
	End     string
	Subject string
	Row     int
}

// ScanResult is the outcome of scanning one timetable.
type ScanResult struct {
	Token   string
	Found   bool
	NameRow int
	LastRow int
	Stop    Stop
	Slots   []Slot
}

// Scanner locates one teacher's block in a loosely structured timetable and extracts its slots.
type Scanner struct {
	matcher       NameMatcher
	blankRowLimit int
}

// NewScanner builds a scanner. A nil matcher falls back to SubstringMatcher and a
// non-positive blankRowLimit to 5.
func NewScanner(matcher NameMatcher, blankRowLimit int) *Scanner {
	if matcher == nil {
		matcher = SubstringMatcher
	}
	if blankRowLimit <= 0 {
		blankRowLimit = defaultBlankRowLimit
	}
	return &Scanner{matcher: matcher, blankRowLimit: blankRowLimit}
}

// Scan walks rows once. Only the first matching teacher block is read.
func (s *Scanner) Scan(rows [][]string, teacherName string) ScanResult {
	res := ScanResult{Token: NameToken(teacherName), NameRow: -1, LastRow: -1, Stop: StopEndOfInput}
	if res.Token == "" {
		return res
	}

	state := SeekingTeacher
	for i := 0; i < len(rows) && state != Done; i++ {
		row := rows[i]
		switch state {
		case SeekingTeacher:
			if s.isNameRow(row, res.Token) {
				res.Found = true
				res.NameRow = i
				state = ReadingSchedule
			}
		case ReadingSchedule:
			if stop, ok := s.terminates(row, i, res.NameRow); ok {
				res.Stop = stop
				state = Done
				continue
			}
			res.LastRow = i
			res.Slots = append(res.Slots, scheduleSlots(row, i)...)
		}
	}
	return res
}

// isNameRow is the SeekingTeacher -> ReadingSchedule guard.
func (s *Scanner) isNameRow(row []string, token string) bool {
	text := rowText(row)
	if !s.matcher.Match(text, token) {
		return false
	}
	if strings.Contains(text, sectionMarker) && !s.leadsWith(text, token) {
		return false
	}
	if first := cell(row, 0); first != "" && IsIgnoredLabel(first) {
		return false
	}
	return true
}

// leadsWith reports whether the row text opens with the token. Fuzzy matching also
// accepts a misspelt leading word.
func (s *Scanner) leadsWith(text, token string) bool {
	if strings.HasPrefix(text, token) {
		return true
	}
	fuzzy, ok := s.matcher.(FuzzyMatcher)
	if !ok {
		return false
	}
	lead := words(text)
	return len(lead) > 0 && fuzzy.Match(lead[0], token)
}

// terminates evaluates the ReadingSchedule -> Done guards for row j.
func (s *Scanner) terminates(row []string, j, nameRow int) (Stop, bool) {
	first := cell(row, 0)
	if hasSectionMarker(first) {
		return StopSectionMarker, true
	}
	if blankRunExceeded(first, j, nameRow, s.blankRowLimit) {
		return StopBlankRun, true
	}
	return "", false
}

func hasSectionMarker(first string) bool {
	return strings.Contains(strings.ToUpper(first), sectionMarker)
}

func blankRunExceeded(first string, j, nameRow, limit int) bool {
	return first == "" && j > nameRow+limit
}

// scheduleSlots extracts Monday..Friday classes from a row whose first cell is a time range.
func scheduleSlots(row []string, index int) []Slot {
	startRaw, endRaw, ok := splitRange(cell(row, 0))
	if !ok {
		return nil
	}
	start, end := FormatTo12Hour(startRaw), FormatTo12Hour(endRaw)

	var slots []Slot
	for day := 1; day <= weekdayColumns; day++ {
		subject := cell(row, day)
		if IsIgnoredLabel(subject) {
			continue
		}
		slots = append(slots, Slot{Day: day, Start: start, End: end, Subject: subject, Row: index})
	}
	return slots
}

func splitRange(value string) (string, string, bool) {
	if !strings.Contains(value, "-") {
		return "", "", false
	}
	parts := strings.Split(value, "-")
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func rowText(row []string) string {
	return strings.ToUpper(strings.Join(row, " "))
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
