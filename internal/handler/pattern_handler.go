package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
	"github.com/noah-isme/pattern-signup-api/pkg/response"
)

type patternCatalog interface {
	List(ctx context.Context, query dto.PatternQuery) ([]dto.PatternView, error)
	Get(ctx context.Context, name string) (*dto.PatternView, error)
}

type availabilitySource interface {
	AvailablePatterns(ctx context.Context) ([]models.Pattern, error)
}

// PatternHandler exposes the public pattern catalog.
type PatternHandler struct {
	catalog   patternCatalog
	available availabilitySource
}

// NewPatternHandler builds a new handler.
func NewPatternHandler(catalog patternCatalog, available availabilitySource) *PatternHandler {
	return &PatternHandler{catalog: catalog, available: available}
}

// List godoc
// @Summary List catalog patterns
// @Tags Patterns
// @Produce json
// @Param status query string false "Display status (available, pending, assigned)"
// @Param q query string false "Name fragment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /patterns [get]
func (h *PatternHandler) List(c *gin.Context) {
	var query dto.PatternQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.catalog.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Available godoc
// @Summary List patterns open for sign-up
// @Description Catalog patterns that are available and have fewer than two pending requests
// @Tags Patterns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /patterns/available [get]
func (h *PatternHandler) Available(c *gin.Context) {
	items, err := h.available.AvailablePatterns(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a catalog pattern
// @Tags Patterns
// @Produce json
// @Param name path string true "Pattern name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /patterns/{name} [get]
func (h *PatternHandler) Get(c *gin.Context) {
	item, err := h.catalog.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
