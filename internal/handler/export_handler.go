package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/service"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
	"github.com/noah-isme/pattern-signup-api/pkg/response"
)

type rosterExporter interface {
	Roster(ctx context.Context, query dto.ExportQuery) (*service.ExportResult, error)
}

// ExportHandler streams roster exports.
type ExportHandler struct {
	service rosterExporter
}

// NewExportHandler builds a new handler.
func NewExportHandler(service rosterExporter) *ExportHandler {
	return &ExportHandler{service: service}
}

// Assignments godoc
// @Summary Export approved assignments
// @Tags Admin
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/exports/assignments [get]
func (h *ExportHandler) Assignments(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.service.Roster(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
