package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/middleware"
	"github.com/noah-isme/pattern-signup-api/pkg/response"
)

type boardSource interface {
	Board(ctx context.Context) (*dto.Board, bool, error)
}

// BoardHandler serves the public availability board.
type BoardHandler struct {
	service boardSource
}

// NewBoardHandler builds a new handler.
func NewBoardHandler(service boardSource) *BoardHandler {
	return &BoardHandler{service: service}
}

// Board godoc
// @Summary Public pattern board
// @Description Every pattern with its display status, assigned students and presentation day
// @Tags Board
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /board [get]
func (h *BoardHandler) Board(c *gin.Context) {
	board, hit, err := h.service.Board(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.RecordSnapshot(c, hit, board.GeneratedAt, board.CatalogVersion)
	response.JSON(c, http.StatusOK, board, nil, middleware.Meta(c))
}
