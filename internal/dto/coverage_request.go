package dto

import (
	"io"
	"time"

	"github.com/noah-isme/substitution-api/internal/models"
)

// SubmitCoverageRequest is the teacher's absence form. Either ScheduleID or WholeDay
// must be given.
type SubmitCoverageRequest struct {
	DateNeeded      string `form:"date_needed" json:"date_needed" validate:"required,datetime=2006-01-02"`
	ScheduleID      string `form:"schedule_id" json:"schedule_id" validate:"required_without=WholeDay,max=64"`
	WholeDay        bool   `form:"whole_day" json:"whole_day"`
	Reason          string `form:"reason" json:"reason" validate:"omitempty,max=500"`
	ActivityDetails string `form:"activity_details" json:"activity_details" validate:"required,max=4000"`
}

// Attachment is an optional activity worksheet uploaded with a request.
type Attachment struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// ApproveCoverageRequest assigns a substitute.
type ApproveCoverageRequest struct {
	SubstituteID string `json:"substitute_id" validate:"required"`
}

// RejectCoverageRequest optionally records why a request was declined.
type RejectCoverageRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

// CoverageRequestQuery mirrors supported listing filters.
type CoverageRequestQuery struct {
	Status   []models.RequestStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// QueueItem is a pending request together with the teachers free to cover it.
type QueueItem struct {
	models.CoverageRequestView
	Candidates []models.AvailabilityCandidate `json:"candidates"`
}
