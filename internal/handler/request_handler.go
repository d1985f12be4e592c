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

type requestWorkflow interface {
	Submit(ctx context.Context, req dto.SubmitPatternRequest) (*models.PatternRequest, error)
	Decide(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.PatternRequest, error)
	ListRequests(ctx context.Context, query dto.RequestQuery) ([]models.PatternRequest, *models.Pagination, error)
	GetRequest(ctx context.Context, id string) (*models.PatternRequest, error)
}

// RequestHandler exposes the sign-up and review endpoints.
type RequestHandler struct {
	service requestWorkflow
}

// NewRequestHandler builds a new handler.
func NewRequestHandler(service requestWorkflow) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit godoc
// @Summary Request a pattern
// @Description Submit a sign-up for a catalog pattern or a custom one; the request starts pending
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPatternRequest true "Sign-up payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	created, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List pattern requests
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param status query []string false "Request status filter" collectionFormat(multi)
// @Param pattern query string false "Pattern name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var query dto.RequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.ListRequests(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a pattern request
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	item, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Decide godoc
// @Summary Approve or reject a pending request
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/decision [post]
func (h *RequestHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	decided, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decided, nil)
}
