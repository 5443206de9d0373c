package router

import "github.com/gin-gonic/gin"

func (r *Router) authRoutes(version *gin.RouterGroup) {
	auth := version.Group("/auth")
	{
		// Public routes (no authentication required)
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/refresh", r.authHandler.RefreshToken)

		// Service-to-service validation endpoint
		auth.POST("/validate", r.authHandler.ValidateToken)

		// Protected routes (JWT authentication required)
		protected := auth.Group("")
		protected.Use(r.authMw.RequireUser())
		{
			protected.POST("/logout", r.authHandler.Logout)
		}
	}
}

func (r *Router) accountRoutes(version *gin.RouterGroup) {
	account := version.Group("/account")
	account.Use(r.authMw.RequireUser())
	{
		account.PUT("/password", r.accountHandler.ChangePassword)
		account.POST("/deactivate", r.accountHandler.DeactivateAccount)
		account.POST("/logout-all", r.accountHandler.LogoutAll)

		account.GET("/sessions", r.accountHandler.ListSessions)
		account.DELETE("/sessions/:session_id", r.accountHandler.RevokeSession)
	}
}

func (r *Router) verificationRoutes(version *gin.RouterGroup) {
	verification := version.Group("/verification")
	{
		// Reset flow is unauthenticated: the code is the proof
		verification.POST("/password/forgot", r.verificationHandler.ForgotPassword)
		verification.POST("/password/reset", r.verificationHandler.ResetPassword)

		protected := verification.Group("")
		protected.Use(r.authMw.RequireUser())
		{
			protected.POST("/send", r.verificationHandler.SendCode)
			protected.POST("/verify", r.verificationHandler.VerifyAccount)
		}
	}
}
