package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/config"
	"github.com/venuebook/backend/internal/handler"
	"github.com/venuebook/backend/internal/middleware"
)

type Router struct {
	authHandler         *handler.AuthHandler
	accountHandler      *handler.AccountHandler
	verificationHandler *handler.VerificationHandler
	subUserHandler      *handler.SubUserHandler
	healthHandler       *handler.HealthHandler

	authMw *middleware.AuthMiddleware
	Config *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	account *handler.AccountHandler,
	verification *handler.VerificationHandler,
	subUser *handler.SubUserHandler,
	health *handler.HealthHandler,

	authMw *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:         auth,
		accountHandler:      account,
		verificationHandler: verification,
		subUserHandler:      subUser,
		healthHandler:       health,

		authMw: authMw,
		Config: cfg,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestContext())

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.BasicHealth)
		api.GET("/health/full", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		{
			v1.Use(middleware.RateLimit(r.Config.RateLimit.Request, time.Duration(r.Config.RateLimit.Duration)*time.Second))

			r.authRoutes(v1)
			r.accountRoutes(v1)
			r.verificationRoutes(v1)
			r.subUserRoutes(v1)
		}
	}

	return router
}
