package dto

import (
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

// ImportTimetableRequest asks the scavenger to pull one teacher's block out of an
// uploaded timetable. Term falls back to the active term when blank.
type ImportTimetableRequest struct {
	TeacherID   string           `json:"teacher_id" validate:"required"`
	TeacherName string           `json:"teacher_name" validate:"required"`
	Department  string           `json:"department" validate:"required,max=120"`
	Term        models.Term      `json:"term"`
	Format      timetable.Format `json:"format" validate:"omitempty,oneof=csv xlsx"`
	Content     []byte           `json:"-"`
}

// ImportFileResult reports the outcome for one uploaded file.
type ImportFileResult struct {
	Filename  string `json:"filename"`
	TeacherID string `json:"teacher_id"`
	models.ImportResult
}
