package dto

import "github.com/noah-isme/substitution-api/internal/models"

// CreateScheduleBlockRequest is a manual timetable entry. Times accept "H:MM" or "H:MM AM|PM".
type CreateScheduleBlockRequest struct {
	DayOfWeek    int    `json:"day_of_week" validate:"required,min=1,max=5"`
	TimeStart    string `json:"time_start" validate:"required"`
	TimeEnd      string `json:"time_end" validate:"required"`
	Subject      string `json:"subject" validate:"required,max=120"`
	Department   string `json:"department" validate:"required,max=120"`
	SchoolYear   string `json:"school_year" validate:"omitempty,max=32"`
	Semester     string `json:"semester" validate:"omitempty,max=32"`
	SpecificDate string `json:"specific_date" validate:"omitempty,datetime=2006-01-02"`
}

// ScheduleQuery filters a teacher's timetable listing.
type ScheduleQuery struct {
	Term       models.Term
	Department string
}

// UpdateRoleRequest promotes or demotes a faculty member.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER"`
}
