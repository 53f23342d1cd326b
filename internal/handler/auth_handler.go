package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/service"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
	"github.com/safevoice-app/safevoice-api/pkg/response"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Administrator login
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Verify returns the identity behind the presented token.
func (h *AuthHandler) Verify(c *gin.Context) {
	info, err := h.service.Verify(c.Request.Context(), tokenFromHeader(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Logout records the logout action. Tokens are stateless so the client
// simply discards its copy.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), actorFromContext(c))
	response.JSON(c, http.StatusOK, gin.H{"message": "logged out"}, nil)
}

// ChangePassword rotates the caller's own password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	actor := actorFromContext(c)
	if err := h.service.ChangePassword(c.Request.Context(), actor.ID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "password updated"}, nil)
}

func tokenFromHeader(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
