package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pattern-signup-api/internal/middleware"
	"github.com/noah-isme/pattern-signup-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}
