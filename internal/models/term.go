package models

import "strings"

// Term identifies the school year and semester a timetable belongs to.
type Term struct {
	SchoolYear string `json:"school_year" validate:"required,max=32"`
	Semester   string `json:"semester" validate:"required,max=32"`
}

// IsZero reports whether neither part is set.
func (t Term) IsZero() bool {
	return strings.TrimSpace(t.SchoolYear) == "" && strings.TrimSpace(t.Semester) == ""
}

// Or fills blank parts of t from fallback.
func (t Term) Or(fallback Term) Term {
	if strings.TrimSpace(t.SchoolYear) == "" {
		t.SchoolYear = fallback.SchoolYear
	}
	if strings.TrimSpace(t.Semester) == "" {
		t.Semester = fallback.Semester
	}
	return t
}

func (t Term) String() string {
	return t.SchoolYear + " " + t.Semester
}
