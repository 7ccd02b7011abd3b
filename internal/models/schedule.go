package models

import "time"

// ScheduleBlock is one recurring weekly class of a teacher within a term. SpecificDate
// narrows the block to a single date when set.
type ScheduleBlock struct {
	ID           string     `db:"id" json:"id"`
	TeacherID    string     `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    int        `db:"day_of_week" json:"day_of_week"`
	TimeStart    string     `db:"time_start" json:"time_start"`
	TimeEnd      string     `db:"time_end" json:"time_end"`
	Subject      string     `db:"subject" json:"subject"`
	Department   string     `db:"department" json:"department"`
	SchoolYear   string     `db:"school_year" json:"school_year"`
	Semester     string     `db:"semester" json:"semester"`
	SpecificDate *time.Time `db:"specific_date" json:"specific_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Term returns the block's term.
func (b ScheduleBlock) Term() Term {
	return Term{SchoolYear: b.SchoolYear, Semester: b.Semester}
}

// ScheduleFilter describes query params for listing schedule blocks.
type ScheduleFilter struct {
	TeacherID  string
	Department string
	Term       Term
	DayOfWeek  int
	// On restricts date-specific blocks to this date; recurring blocks always match.
	On *time.Time
}

// DepartmentTeacher is a roster entry derived from schedule blocks.
type DepartmentTeacher struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Classes  int    `db:"classes" json:"classes"`
}

// ImportResult reports the outcome of a timetable import. Failures are carried in
// Success and Message rather than returned as errors.
type ImportResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}
