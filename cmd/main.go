package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	configs "github.com/venuebook/backend/config"
	"github.com/venuebook/backend/internal/dto"
	"github.com/venuebook/backend/internal/handler"
	"github.com/venuebook/backend/internal/middleware"
	"github.com/venuebook/backend/internal/repository"
	"github.com/venuebook/backend/internal/router"
	"github.com/venuebook/backend/internal/service"
	"github.com/venuebook/backend/pkg/database"
	"github.com/venuebook/backend/pkg/logger"
	"github.com/venuebook/backend/pkg/mailer"
	"github.com/venuebook/backend/pkg/redis"
	"github.com/venuebook/backend/pkg/sms"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize Zap logger
	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
	)

	if err := dto.RegisterValidators(); err != nil {
		logger.GetLogger().Fatal("Failed to register request validators", zap.Error(err))
	}

	db, err := database.NewPostgresDB(database.Config{
		Host:            config.Database.Host,
		Port:            config.Database.Port,
		User:            config.Database.User,
		Password:        config.Database.Password,
		Database:        config.Database.Name,
		SSLMode:         config.Database.SSLMode,
		MaxIdleConns:    config.Database.MaxIdleConns,
		MaxOpenConns:    config.Database.MaxOpenConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
		ConnMaxIdleTime: config.Database.ConnMaxIdleTime,
	})
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.GetLogger().Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.GetLogger().Info("Database migrated successfully")

	if err := database.OptimizedIndexes(db); err != nil {
		logger.GetLogger().Warn("Failed to create optimized indexes", zap.Error(err))
	}

	// Seed data may already exist, not fatal
	if err := database.Seed(db); err != nil {
		logger.GetLogger().Error("Failed to seed database", zap.Error(err))
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:         config.Redis.Host,
		Port:         config.Redis.Port,
		Password:     config.Redis.Password,
		DB:           config.Redis.Database,
		PoolSize:     config.Redis.PoolSize,
		MinIdleConns: config.Redis.MinIdleConns,
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolTimeout:  config.Redis.PoolTimeout,
	}, logger.GetLogger())
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	subUserRepo := repository.NewSubUserRepository(db)
	subUserSessionRepo := repository.NewSubUserSessionRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Outbound channels. Log implementations until a provider is wired.
	mailClient := mailer.NewLogMailer(logger.GetLogger(), int(config.Auth.VerificationCodeTTL.Minutes()))
	smsClient := sms.NewLogSender(logger.GetLogger())

	// Services
	jwtService := service.NewJWTService(config.JWT.Secret, config.JWT.AccessTokenTTL)
	blacklistService := service.NewTokenBlacklistService(redisClient)
	tokenService := service.NewTokenService(userRepo, sessionRepo, venueRepo, blacklistService, jwtService, config.JWT.RefreshTokenTTL)
	accountService := service.NewAccountService(userRepo, sessionRepo, blacklistService)
	deliveryBreakers := service.NewDeliveryBreakers(logger.GetLogger())
	verificationService := service.NewVerificationService(userRepo, sessionRepo, mailClient, smsClient, deliveryBreakers, config.Auth)
	subUserService := service.NewSubUserService(
		subUserRepo, subUserSessionRepo, venueRepo, auditRepo,
		blacklistService, jwtService,
		service.NewGormTxRunner(db),
		config.JWT.RefreshTokenTTL,
	)
	cleanupService := service.NewCleanupService(sessionRepo, subUserSessionRepo, config.Auth.SessionSweepEvery)

	// Handlers
	authHandler := handler.NewAuthHandler(tokenService)
	accountHandler := handler.NewAccountHandler(accountService, tokenService)
	verificationHandler := handler.NewVerificationHandler(verificationService)
	subUserHandler := handler.NewSubUserHandler(subUserService)
	healthHandler := handler.NewHealthHandler(db, redisClient, deliveryBreakers)

	authMiddleware := middleware.NewAuthMiddleware(jwtService, blacklistService)

	r := router.NewRouter(
		authHandler,
		accountHandler,
		verificationHandler,
		subUserHandler,
		healthHandler,

		authMiddleware,
		config,
	).SetupRoutes()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go cleanupService.Run(sweepCtx)

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := r.Run(":" + config.App.Port); err != nil {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stopSweeper()
	logger.GetLogger().Info("Shutting down server...")
}
