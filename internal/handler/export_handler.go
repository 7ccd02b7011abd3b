package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/dto"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/response"
	"github.com/noah-isme/substitution-api/pkg/storage"
)

type exportService interface {
	Substitutions(ctx context.Context, format dto.ExportFormat, query dto.CoverageRequestQuery) (*dto.ExportResponse, error)
	Open(token string) (*os.File, storage.DownloadGrant, error)
}

// ExportHandler renders and serves substitution exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Substitutions godoc
// @Summary Export approved substitutions
// @Description Renders the file and returns a signed, expiring download URL.
// @Tags Admin
// @Produce json
// @Param format query string false "csv or pdf"
// @Param from query string false "Date from"
// @Param to query string false "Date to"
// @Success 201 {object} response.Envelope
// @Router /admin/substitutions/export [get]
func (h *ExportHandler) Substitutions(c *gin.Context) {
	query, err := requestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	result, err := h.service.Substitutions(c.Request.Context(), format, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, grant, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	contentType := "text/csv"
	if strings.EqualFold(filepath.Ext(grant.Key), ".pdf") {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(grant.Key)),
		"Cache-Control":       "no-store",
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, headers)
}
