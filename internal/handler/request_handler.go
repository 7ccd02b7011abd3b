package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/response"
)

const attachmentField = "attachment"

type requestService interface {
	Submit(ctx context.Context, req dto.SubmitCoverageRequest, attachment *dto.Attachment, actor models.Principal) (*models.CoverageRequest, error)
	Mine(ctx context.Context, actorID string, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error)
	History(ctx context.Context, actorID string, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error)
	Substitutions(ctx context.Context, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error)
	Queue(ctx context.Context, query dto.CoverageRequestQuery, term models.Term) ([]dto.QueueItem, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CoverageRequestView, error)
	Approve(ctx context.Context, id string, req dto.ApproveCoverageRequest, reviewer models.Principal, term models.Term) (*models.CoverageRequest, error)
	Reject(ctx context.Context, id string, req dto.RejectCoverageRequest, reviewer models.Principal) (*models.CoverageRequest, error)
}

// RequestHandler serves the coverage request workflow.
type RequestHandler struct {
	service requestService
	term    models.Term
}

// NewRequestHandler constructs the handler. activeTerm is used when a call names no term.
func NewRequestHandler(svc requestService, activeTerm models.Term) *RequestHandler {
	return &RequestHandler{service: svc, term: activeTerm}
}

// Submit godoc
// @Summary Submit a coverage request
// @Description Either schedule_id or whole_day is required. An optional worksheet may be attached.
// @Tags Requests
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param date_needed formData string true "Date (YYYY-MM-DD)"
// @Param schedule_id formData string false "Schedule block id"
// @Param whole_day formData bool false "Whole day absence"
// @Param reason formData string false "Reason"
// @Param activity_details formData string true "Instructions for the substitute"
// @Param attachment formData file false "Activity worksheet"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitCoverageRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	var attachment *dto.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile(attachmentField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attachment"))
			return
		default:
			src, err := fileHeader.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment"))
				return
			}
			defer src.Close()
			attachment = &dto.Attachment{Filename: fileHeader.Filename, Size: fileHeader.Size, Content: src}
		}
	}

	created, err := h.service.Submit(c.Request.Context(), req, attachment, *principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Mine godoc
// @Summary List my coverage requests
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/requests [get]
func (h *RequestHandler) Mine(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := requestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.Mine(c.Request.Context(), principal.ID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// History godoc
// @Summary List past substitutions I covered
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := requestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.History(c.Request.Context(), principal.ID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a coverage request
// @Description Teachers may read their own requests; admins any.
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if principal.Role != models.RoleAdmin && item.TeacherID != principal.ID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Queue godoc
// @Summary Admin review queue
// @Description Defaults to pending requests ordered by date needed, each with its free substitutes.
// @Tags Admin
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Date from"
// @Param to query string false "Date to"
// @Success 200 {object} response.Envelope
// @Router /admin/requests [get]
func (h *RequestHandler) Queue(c *gin.Context) {
	query, err := requestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.Queue(c.Request.Context(), query, resolveTerm(c, h.term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Substitutions godoc
// @Summary Approved substitution schedule
// @Tags Admin
// @Produce json
// @Param from query string false "Date from"
// @Param to query string false "Date to"
// @Success 200 {object} response.Envelope
// @Router /admin/substitutions [get]
func (h *RequestHandler) Substitutions(c *gin.Context) {
	query, err := requestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.Substitutions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Approve godoc
// @Summary Approve a request and assign a substitute
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveCoverageRequest true "Substitute"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, *principal, resolveTerm(c, h.term))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Reject godoc
// @Summary Reject a request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectCoverageRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectCoverageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	updated, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, *principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}
