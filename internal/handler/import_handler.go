package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/response"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

const maxTimetableBytes = 5 << 20

type importService interface {
	Import(ctx context.Context, req dto.ImportTimetableRequest, actorID string) models.ImportResult
}

type profileLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ImportHandler accepts timetable uploads.
type ImportHandler struct {
	service  importService
	profiles profileLookup
	term     models.Term
}

// NewImportHandler constructs the handler. profiles resolves teacher names left blank in the form.
func NewImportHandler(svc importService, profiles profileLookup, activeTerm models.Term) *ImportHandler {
	return &ImportHandler{service: svc, profiles: profiles, term: activeTerm}
}

// Bulk godoc
// @Summary Import timetables
// @Description One result per file. teacher_id, teacher_name and department repeat in file order; a single department applies to every file. teacher_name defaults to the profile name.
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Timetable files (.csv or .xlsx)"
// @Param teacher_id formData string true "Teacher id per file"
// @Param teacher_name formData string false "Name as printed in the timetable, per file"
// @Param department formData string true "Department, single or per file"
// @Param year formData string false "School year"
// @Param semester formData string false "Semester"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/imports [post]
func (h *ImportHandler) Bulk(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form required"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}
	teacherIDs := form.Value["teacher_id"]
	if len(teacherIDs) != len(files) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher_id must be given once per file"))
		return
	}
	departments := form.Value["department"]
	if len(departments) != 1 && len(departments) != len(files) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "department must be given once or once per file"))
		return
	}
	names := form.Value["teacher_name"]
	term := models.Term{
		SchoolYear: strings.TrimSpace(c.PostForm("year")),
		Semester:   strings.TrimSpace(c.PostForm("semester")),
	}.Or(h.term)

	results := make([]dto.ImportFileResult, 0, len(files))
	for i, file := range files {
		department := departments[0]
		if len(departments) == len(files) {
			department = departments[i]
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		teacherID := strings.TrimSpace(teacherIDs[i])
		results = append(results, dto.ImportFileResult{
			Filename:     file.Filename,
			TeacherID:    teacherID,
			ImportResult: h.importOne(c.Request.Context(), file, teacherID, name, department, term, principal.ID),
		})
	}
	response.JSON(c, http.StatusOK, results, nil)
}

func (h *ImportHandler) importOne(ctx context.Context, file *multipart.FileHeader, teacherID, name, department string, term models.Term, actorID string) models.ImportResult {
	format, err := timetable.DetectFormat(file.Filename)
	if err != nil {
		return models.ImportResult{Message: fmt.Sprintf("Unsupported file %q. Upload a .csv or .xlsx timetable.", file.Filename)}
	}
	if file.Size > maxTimetableBytes {
		return models.ImportResult{Message: "Timetable file is too large."}
	}
	if strings.TrimSpace(name) == "" && teacherID != "" && h.profiles != nil {
		profile, err := h.profiles.FindByID(ctx, teacherID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.ImportResult{Message: fmt.Sprintf("Teacher %s was not found.", teacherID)}
		case err == nil:
			name = profile.FullName
		}
	}

	src, err := file.Open()
	if err != nil {
		return models.ImportResult{Message: "Could not read the timetable file."}
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, maxTimetableBytes))
	if err != nil {
		return models.ImportResult{Message: "Could not read the timetable file."}
	}

	return h.service.Import(ctx, dto.ImportTimetableRequest{
		TeacherID:   teacherID,
		TeacherName: name,
		Department:  department,
		Term:        term,
		Format:      format,
		Content:     content,
	}, actorID)
}
