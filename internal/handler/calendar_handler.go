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

type presentationCalendar interface {
	List(ctx context.Context, query dto.CalendarQuery) ([]dto.CalendarDay, error)
	Schedule(ctx context.Context, patternName string, req dto.ScheduleRequest, actor *models.JWTClaims) (*models.PresentationSlot, error)
	Unschedule(ctx context.Context, patternName string, actor *models.JWTClaims) error
}

// CalendarHandler exposes the presentation calendar.
type CalendarHandler struct {
	service presentationCalendar
}

// NewCalendarHandler builds a new handler.
func NewCalendarHandler(service presentationCalendar) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// List godoc
// @Summary Presentation calendar
// @Tags Calendar
// @Produce json
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) List(c *gin.Context) {
	var query dto.CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	days, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// Schedule godoc
// @Summary Schedule a presentation
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param name path string true "Pattern name"
// @Param payload body dto.ScheduleRequest true "Presentation day"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/calendar/{name} [put]
func (h *CalendarHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	slot, err := h.service.Schedule(c.Request.Context(), c.Param("name"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Unschedule godoc
// @Summary Remove a presentation
// @Tags Admin
// @Security BearerAuth
// @Param name path string true "Pattern name"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/calendar/{name} [delete]
func (h *CalendarHandler) Unschedule(c *gin.Context) {
	if err := h.service.Unschedule(c.Request.Context(), c.Param("name"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
