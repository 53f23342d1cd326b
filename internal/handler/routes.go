package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/safevoice-app/safevoice-api/internal/middleware"
	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/service"
)

// Handlers bundles the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Reports *ReportHandler
	Auth    *AuthHandler
	Admin   *AdminHandler
}

// RegisterRoutes mounts the API surface under the given prefix.
//
// Public routes cover anonymous intake, tracking lookups, invite
// redemption and password resets. Everything else sits behind JWT
// auth, with destructive operations restricted to super admins.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	api := r.Group(prefix)

	requireAuth := middleware.JWT(auth)
	requireSuper := middleware.RequireRoles(models.RoleSuperAdmin)
	requireAdmin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	// Anonymous reporter surface.
	api.POST("/reports", h.Reports.Create)
	api.GET("/reports/public/:publicId", h.Reports.GetPublic)
	api.GET("/reports/stats", h.Reports.Stats)

	// Invite redemption and password resets work without a session.
	api.GET("/admin/invites/validate/:token", h.Admin.ValidateInvite)
	api.POST("/admin/invites/redeem", h.Admin.RedeemInvite)
	api.POST("/admin/password-resets/redeem", h.Admin.RedeemReset)

	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("", requireAuth)
	{
		authed.GET("/auth/verify", h.Auth.Verify)
		authed.POST("/auth/logout", h.Auth.Logout)
		authed.POST("/auth/change-password", h.Auth.ChangePassword)

		reports := authed.Group("/reports", requireAdmin)
		{
			reports.GET("", h.Reports.List)
			reports.GET("/export", h.Reports.Export)
			reports.GET("/:id", h.Reports.Get)
			reports.PUT("/:id/status", h.Reports.UpdateStatus)
			reports.PUT("/:id/priority", h.Reports.UpdatePriority)
			reports.PUT("/:id/notes", h.Reports.UpdateNotes)
		}
		authed.DELETE("/reports/:id", requireSuper, h.Reports.Delete)

		admin := authed.Group("/admin", requireSuper)
		{
			admin.GET("/users", h.Admin.ListUsers)
			admin.PUT("/users/:id/deactivate", h.Admin.DeactivateUser)
			admin.DELETE("/users/:id", h.Admin.DeleteUser)

			admin.POST("/invites", h.Admin.CreateInvite)
			admin.GET("/invites", h.Admin.ListInvites)
			admin.DELETE("/invites/:id", h.Admin.DeleteInvite)

			admin.POST("/password-resets", h.Admin.CreateReset)
			admin.GET("/audit", h.Admin.ListAudit)
		}
	}

	// Download carries its own signed token, no session required.
	api.GET("/reports/export/download/:token", h.Reports.Download)
}
