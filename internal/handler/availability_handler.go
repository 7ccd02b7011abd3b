package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/pkg/response"
)

type availabilityService interface {
	FindAvailable(ctx context.Context, q models.AvailabilityQuery) ([]models.AvailabilityCandidate, error)
	FindForRequest(ctx context.Context, requestID string, term models.Term) ([]models.AvailabilityCandidate, error)
}

// AvailabilityHandler exposes the substitute matcher.
type AvailabilityHandler struct {
	service availabilityService
	term    models.Term
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService, activeTerm models.Term) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc, term: activeTerm}
}

// Find godoc
// @Summary Teachers free during a window
// @Description Excludes anyone with an overlapping class or approved substitution. Pass "Whole Day" as start or end for the full school day.
// @Tags Admin
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start query string true "Period start, e.g. 9:00 AM"
// @Param end query string true "Period end, e.g. 10:00 AM"
// @Param exclude query string false "Requesting teacher id"
// @Param year query string false "School year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/availability [get]
func (h *AvailabilityHandler) Find(c *gin.Context) {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	candidates, err := h.service.FindAvailable(c.Request.Context(), models.AvailabilityQuery{
		Date:             date,
		PeriodStart:      strings.TrimSpace(c.Query("start")),
		PeriodEnd:        strings.TrimSpace(c.Query("end")),
		ExcludeTeacherID: strings.TrimSpace(c.Query("exclude")),
		Term:             resolveTerm(c, h.term),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Candidates godoc
// @Summary Free substitutes for one request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/requests/{id}/candidates [get]
func (h *AvailabilityHandler) Candidates(c *gin.Context) {
	candidates, err := h.service.FindForRequest(c.Request.Context(), c.Param("id"), resolveTerm(c, h.term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}
