package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/middleware"
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/pkg/response"
)

type rosterService interface {
	Teachers(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, bool, error)
}

// RosterHandler lists department rosters.
type RosterHandler struct {
	service rosterService
	term    models.Term
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(svc rosterService, activeTerm models.Term) *RosterHandler {
	return &RosterHandler{service: svc, term: activeTerm}
}

// Teachers godoc
// @Summary Teachers holding classes in a department
// @Tags Schedules
// @Produce json
// @Param name path string true "Department"
// @Param year query string false "School year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /departments/{name}/teachers [get]
func (h *RosterHandler) Teachers(c *gin.Context) {
	roster, cached, err := h.service.Teachers(c.Request.Context(), c.Param("name"), resolveTerm(c, h.term))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, roster, nil, middleware.ResponseMeta(c))
}
