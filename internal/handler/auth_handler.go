package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
	"github.com/noah-isme/dz-manifest-api/pkg/response"
)

// AuthHandler reports the identity behind the bearer token. Tokens are
// issued by the identity provider or cmd/tokengen.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me godoc
// @Summary Current caller
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, gin.H{
		"userId":   claims.UserID,
		"role":     claims.Role,
		"email":    claims.Email,
		"fullName": claims.FullName,
	})
}
