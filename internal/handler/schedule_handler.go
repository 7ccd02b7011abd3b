package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, teacherID string, query dto.ScheduleQuery) ([]models.ScheduleBlock, error)
	ForDate(ctx context.Context, teacherID string, date time.Time, term models.Term) ([]models.ScheduleBlock, error)
	Create(ctx context.Context, teacherID string, req dto.CreateScheduleBlockRequest, activeTerm models.Term, actorID string) (*models.ScheduleBlock, error)
	Delete(ctx context.Context, id, actorID string) error
	Departments(ctx context.Context) ([]string, error)
}

// ScheduleHandler manages teacher timetables.
type ScheduleHandler struct {
	service scheduleService
	term    models.Term
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService, activeTerm models.Term) *ScheduleHandler {
	return &ScheduleHandler{service: svc, term: activeTerm}
}

// ListByTeacher godoc
// @Summary List a teacher's timetable
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Param year query string false "School year"
// @Param semester query string false "Semester"
// @Param department query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedules [get]
func (h *ScheduleHandler) ListByTeacher(c *gin.Context) {
	blocks, err := h.service.List(c.Request.Context(), c.Param("id"), dto.ScheduleQuery{
		Term:       resolveTerm(c, h.term),
		Department: strings.TrimSpace(c.Query("department")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// Mine godoc
// @Summary My classes on a date
// @Description Returns the caller's blocks on the weekday of date, for the request form.
// @Tags Schedules
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /me/schedules [get]
func (h *ScheduleHandler) Mine(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	blocks, err := h.service.ForDate(c.Request.Context(), principal.ID, date, resolveTerm(c, h.term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// Create godoc
// @Summary Add a timetable block
// @Description Replaces any block occupying the same day and start time.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.CreateScheduleBlockRequest true "Block"
// @Success 201 {object} response.Envelope
// @Router /teachers/{id}/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateScheduleBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	block, err := h.service.Create(c.Request.Context(), c.Param("id"), req, resolveTerm(c, h.term), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// Delete godoc
// @Summary Delete a timetable block
// @Tags Schedules
// @Param id path string true "Block ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principal.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Departments godoc
// @Summary List departments
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *ScheduleHandler) Departments(c *gin.Context) {
	departments, err := h.service.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}
