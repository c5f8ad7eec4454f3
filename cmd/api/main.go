package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/notebridge/notebridge-api/api/swagger"
	"github.com/notebridge/notebridge-api/internal/handler"
	"github.com/notebridge/notebridge-api/internal/middleware"
	"github.com/notebridge/notebridge-api/internal/repository"
	"github.com/notebridge/notebridge-api/internal/service"
	"github.com/notebridge/notebridge-api/pkg/cache"
	"github.com/notebridge/notebridge-api/pkg/config"
	"github.com/notebridge/notebridge-api/pkg/database"
	"github.com/notebridge/notebridge-api/pkg/logger"
	corsmiddleware "github.com/notebridge/notebridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/notebridge/notebridge-api/pkg/middleware/requestid"
	"github.com/notebridge/notebridge-api/pkg/storage"
)

// @title NoteBridge API
// @version 1.0.0
// @description Tutoring marketplace backend: lesson catalog, chats and messaging
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// A missing Redis only disables the catalog cache; the API stays up
	// and every read falls through to Postgres.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	userRepo := repository.NewUserRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr,
		cfg.Catalog.CacheEnabled && redisClient != nil)
	lessonCache := service.NewLessonCache(cacheSvc, cfg.Catalog.CacheTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "notebridge-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, userRepo, lessonCache, userRepo, validate, logr)
	chatSvc := service.NewChatService(chatRepo, userRepo, messageRepo, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, chatRepo, validate, logr)

	uploadStore, err := storage.NewLocalObjectStore(cfg.Uploads.Bucket, cfg.Uploads.StorageDir, cfg.Uploads.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	fileSvc := service.NewFileService(uploadStore, userRepo, lessonRepo, lessonCache, service.FileConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStore, storeErr := storage.NewLocalObjectStore("catalog", cfg.Exports.StorageDir, cfg.Uploads.PublicBaseURL)
		if storeErr != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", storeErr)
		}
		exportSvc = service.NewExportService(lessonRepo, exportStore, cfg.Exports.WorkerConcurrency, cfg.Exports.WorkerRetries, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	fileHandler := handler.NewFileHandler(fileSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.Static("/media", cfg.Uploads.StorageDir)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	// Catalog reads are public so prospective students can browse
	// before signing up.
	api.GET("/lessons", lessonHandler.List)
	api.GET("/lessons/:id", lessonHandler.Get)
	api.GET("/teachers/:id/lessons", lessonHandler.ListByTeacher)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/users/me", userHandler.Profile)
		authed.PUT("/users/me", userHandler.UpdateProfile)
		authed.POST("/users/me/picture", fileHandler.UploadProfilePicture)
		authed.DELETE("/users/me/picture", fileHandler.DeleteProfilePicture)
		authed.GET("/users/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)

		authed.GET("/chats", chatHandler.List)
		authed.POST("/chats", chatHandler.CreateOrGet)
		authed.GET("/chats/:id", chatHandler.Get)
		authed.PUT("/chats/:id/subject", chatHandler.UpdateSubject)
		authed.GET("/chats/:id/messages", messageHandler.List)
		authed.POST("/chats/:id/messages", messageHandler.Send)
		authed.GET("/chats/:id/messages/recent", messageHandler.Recent)
		authed.POST("/chats/:id/read", messageHandler.MarkAllRead)
		authed.GET("/chats/:id/unread-count", messageHandler.UnreadCount)
		authed.GET("/messages/unread-count", messageHandler.TotalUnread)
	}

	teachers := api.Group("")
	teachers.Use(middleware.JWT(authSvc), middleware.RBAC("TEACHER"))
	{
		teachers.POST("/lessons", lessonHandler.Create)
		teachers.PUT("/lessons/:id", lessonHandler.Update)
		teachers.POST("/lessons/:id/cancel", lessonHandler.Cancel)
		teachers.POST("/lessons/:id/reactivate", lessonHandler.Reactivate)
	}

	lessonImages := api.Group("")
	lessonImages.Use(middleware.JWT(authSvc), middleware.RBAC("TEACHER", "ADMIN"))
	{
		lessonImages.POST("/lessons/:id/image", fileHandler.UploadLessonImage)
		lessonImages.DELETE("/lessons/:id/image", fileHandler.DeleteLessonImage)
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RBAC("ADMIN"))
	{
		admin.GET("/users", userHandler.List)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.GET("/admin/lessons", lessonHandler.ListAll)
		admin.POST("/admin/lessons", lessonHandler.CreateAsAdmin)
		admin.PUT("/admin/lessons/:id", lessonHandler.UpdateAsAdmin)
		admin.POST("/admin/lessons/:id/cancel", lessonHandler.CancelAsAdmin)
		admin.POST("/admin/lessons/:id/reactivate", lessonHandler.ReactivateAsAdmin)
		admin.DELETE("/admin/lessons/:id", lessonHandler.Delete)

		admin.GET("/admin/metrics", metricsHandler.Snapshot)
		admin.POST("/admin/exports", exportHandler.Request)
		admin.GET("/admin/exports/:id", exportHandler.Status)
		admin.GET("/admin/exports/:id/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
