package models

import "time"

// RequestStatus captures the coverage request workflow state.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// WholeDaySubject is the subject label of whole-day requests.
const WholeDaySubject = "All Classes (Whole Day)"

// CoverageRequest is a teacher's ask for a substitute. SubstituteID is set exactly when
// the request is approved.
type CoverageRequest struct {
	ID              string        `db:"id" json:"id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	DateNeeded      time.Time     `db:"date_needed" json:"date_needed"`
	Subject         string        `db:"subject" json:"subject"`
	Period          string        `db:"period" json:"period"`
	Status          RequestStatus `db:"status" json:"status"`
	SubstituteID    *string       `db:"substitute_id" json:"substitute_id,omitempty"`
	Reason          *string       `db:"reason" json:"reason,omitempty"`
	ActivityDetails string        `db:"activity_details" json:"activity_details"`
	ActivityFileURL *string       `db:"activity_file_url" json:"activity_file_url,omitempty"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// CoverageRequestView joins the requester and substitute names for listings.
type CoverageRequestView struct {
	CoverageRequest
	TeacherName     string  `db:"teacher_name" json:"teacher_name"`
	TeacherEmail    string  `db:"teacher_email" json:"teacher_email"`
	SubstituteName  *string `db:"substitute_name" json:"substitute_name,omitempty"`
	SubstituteEmail *string `db:"substitute_email" json:"substitute_email,omitempty"`
}

// CoverageRequestFilter constrains listing queries.
type CoverageRequestFilter struct {
	Status       []RequestStatus
	TeacherID    string
	SubstituteID string
	DateFrom     *time.Time
	DateTo       *time.Time
	// Before keeps only requests dated strictly before this day.
	Before   *time.Time
	OrderBy  string
	Page     int
	PageSize int
}

// Commitment is an approved substitution occupying a substitute on a date.
type Commitment struct {
	RequestID    string    `db:"id"`
	SubstituteID string    `db:"substitute_id"`
	DateNeeded   time.Time `db:"date_needed"`
	Period       string    `db:"period"`
}

// RequestStatusCount is one row of the status aggregation.
type RequestStatusCount struct {
	Status RequestStatus `db:"status"`
	Total  int           `db:"total"`
}
