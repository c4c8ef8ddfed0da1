package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/grievance-api/api/swagger"
	"github.com/noah-isme/grievance-api/internal/handler"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/cache"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/database"
	"github.com/noah-isme/grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/cors"
	ratelimitmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/requestid"
	"github.com/noah-isme/grievance-api/pkg/storage"
)

// @title Student Grievance API
// @version 1.0.0
// @description Grievance submission, tracking and resolution portal
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, analytics caching disabled", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads directory", "error", err)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	grievanceRepo := repository.NewGrievanceRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Analytics.CacheTTL, logr)
	} else {
		cacheService = service.NewCacheService(nil, metricsService, cfg.Analytics.CacheTTL, logr)
	}

	var mailer service.Mailer
	if cfg.SMTP.Enabled {
		mailer = service.NewSMTPMailer(cfg.SMTP)
	}
	notificationService := service.NewNotificationService(mailer, metricsService, logr, cfg.Notifications)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	notificationService.Start(ctx)
	defer notificationService.Stop()

	authService := service.NewAuthService(userRepo, notificationService, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		ResetSecret: cfg.JWT.ResetSecret,
		ResetExpiry: cfg.JWT.ResetExpiry,
		AdminSecret: cfg.Admin.RegistrationSecret,
		Issuer:      "grievance-api",
	})
	grievanceService := service.NewGrievanceService(grievanceRepo, userRepo, notificationService, cacheService, validate, logr)
	analyticsService := service.NewAnalyticsService(analyticsRepo, cacheService, metricsService, logr)

	authHandler := handler.NewAuthHandler(authService, cfg.Env)
	grievanceHandler := handler.NewGrievanceHandler(grievanceService, uploads, cfg.Uploads)
	adminHandler := handler.NewAdminHandler(grievanceService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	if cfg.RateLimit.Enabled {
		r.Use(ratelimitmiddleware.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Static("/uploads", uploads.BasePath())

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/register-admin", authHandler.RegisterAdmin)
		auth.POST("/login", authHandler.Login)
		auth.POST("/admin-login", authHandler.AdminLogin)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.PUT("/update-profile", middleware.JWT(authService), authHandler.UpdateProfile)
	}

	grievances := api.Group("/grievances", middleware.JWT(authService))
	{
		grievances.POST("", grievanceHandler.Submit)
		grievances.GET("/my", grievanceHandler.ListMine)
		grievances.GET("/history/:id", grievanceHandler.History)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/all", adminHandler.ListAll)
		admin.PUT("/update/:id", adminHandler.Update)
		admin.GET("/history/:id", adminHandler.History)
		admin.GET("/export", adminHandler.Export)
	}

	analytics := api.Group("/analytics", middleware.JWT(authService))
	{
		analytics.GET("/my-stats", analyticsHandler.MyStats)

		adminOnly := analytics.Group("", middleware.RequireRoles(models.RoleAdmin))
		adminOnly.GET("/category-stats", analyticsHandler.CategoryStats)
		adminOnly.GET("/monthly-trend", analyticsHandler.MonthlyTrend)
		adminOnly.GET("/resolution-time", analyticsHandler.ResolutionTime)
		adminOnly.GET("/department-workload", analyticsHandler.DepartmentWorkload)
		adminOnly.GET("/recent-activity", analyticsHandler.RecentActivity)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
