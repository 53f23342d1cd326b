package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safevoice-app/safevoice-api/internal/dto"
	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/service"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
	"github.com/safevoice-app/safevoice-api/pkg/response"
)

// AdminHandler exposes account management, invite, reset and audit endpoints.
type AdminHandler struct {
	service *service.AdminService
	audit   *service.AuditService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(svc *service.AdminService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{service: svc, audit: audit}
}

// ListUsers godoc
// @Summary List administrator accounts
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var query dto.ListUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	filter := models.UserFilter{
		Search:   query.Search,
		Active:   query.Active,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}

	users, pagination, err := h.service.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// DeactivateUser disables an administrator account.
func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	if err := h.service.DeactivateUser(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "account deactivated"}, nil)
}

// DeleteUser removes an administrator account.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "account deleted"}, nil)
}

// CreateInvite issues a new invite token for an email address.
func (h *AdminHandler) CreateInvite(c *gin.Context) {
	var req dto.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	invite, err := h.service.CreateInvite(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invite)
}

// ListInvites returns every invite, redeemed or not.
func (h *AdminHandler) ListInvites(c *gin.Context) {
	invites, err := h.service.ListInvites(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invites, nil)
}

// DeleteInvite revokes a pending invite.
func (h *AdminHandler) DeleteInvite(c *gin.Context) {
	if err := h.service.DeleteInvite(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "invite deleted"}, nil)
}

// ValidateInvite is the public pre-flight check used by the signup form.
func (h *AdminHandler) ValidateInvite(c *gin.Context) {
	invite, err := h.service.ValidateInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"email": invite.Email, "expires_at": invite.ExpiresAt}, nil)
}

// RedeemInvite turns a valid invite into an active administrator account.
func (h *AdminHandler) RedeemInvite(c *gin.Context) {
	var req dto.RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	user, err := h.service.RedeemInvite(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// CreateReset issues a password reset token for an existing account.
func (h *AdminHandler) CreateReset(c *gin.Context) {
	var req dto.CreateResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	reset, err := h.service.CreateReset(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reset)
}

// RedeemReset completes a password reset with a fresh password.
func (h *AdminHandler) RedeemReset(c *gin.Context) {
	var req dto.RedeemResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.RedeemReset(c.Request.Context(), req, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "password reset"}, nil)
}

// ListAudit returns the append-only audit trail, newest first.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	var query dto.ListAuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	filter := models.AuditFilter{
		AdminEmail: query.AdminEmail,
		Action:     query.Action,
		ReportID:   query.ReportID,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if query.From != "" {
		from, err := parseDateParam(query.From)
		if err != nil {
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "from: "+err.Error()))
			return
		}
		filter.CreatedFrom = &from
	}
	if query.To != "" {
		to, err := parseDateParam(query.To)
		if err != nil {
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "to: "+err.Error()))
			return
		}
		filter.CreatedTo = &to
	}

	entries, pagination, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
