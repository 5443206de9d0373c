package router

import (
	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/internal/permission"
)

func (r *Router) subUserRoutes(version *gin.RouterGroup) {
	// Venue-scoped login, public: venue id comes from the path
	version.POST("/venues/:venue_id/sub-users/login", r.subUserHandler.Login)

	// One-time bootstrap, performed by the venue owner
	owner := version.Group("/venue/sub-users")
	owner.Use(r.authMw.RequireUser())
	{
		owner.POST("/first-admin", r.subUserHandler.CreateFirstAdmin)
	}

	// Operational routes, guarded by the token's permission snapshot
	subUsers := version.Group("/venue/sub-users")
	subUsers.Use(r.authMw.RequireSubUser())
	{
		subUsers.POST("/logout", r.subUserHandler.Logout)
		subUsers.PUT("/password", r.subUserHandler.ChangePassword)

		subUsers.GET("", r.authMw.RequirePermission(permission.EditSubUsers), r.subUserHandler.List)
		subUsers.POST("", r.authMw.RequirePermission(permission.CreateSubUsers), r.subUserHandler.Create)
		subUsers.PUT("/:sub_user_id/permissions", r.authMw.RequirePermission(permission.ManageRoles), r.subUserHandler.UpdatePermissions)
		subUsers.PUT("/:sub_user_id/password", r.authMw.RequirePermission(permission.EditSubUsers), r.subUserHandler.ResetPassword)
		subUsers.POST("/:sub_user_id/deactivate", r.authMw.RequirePermission(permission.EditSubUsers), r.subUserHandler.Deactivate)
		subUsers.DELETE("/:sub_user_id", r.authMw.RequirePermission(permission.DeleteSubUsers), r.subUserHandler.Delete)
	}
}
