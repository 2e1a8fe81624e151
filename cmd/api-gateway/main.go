package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lms-community/lms-api/api/swagger"
	"github.com/lms-community/lms-api/internal/drive"
	"github.com/lms-community/lms-api/internal/handler"
	"github.com/lms-community/lms-api/internal/middleware"
	"github.com/lms-community/lms-api/internal/repository"
	"github.com/lms-community/lms-api/internal/service"
	"github.com/lms-community/lms-api/pkg/cache"
	"github.com/lms-community/lms-api/pkg/config"
	"github.com/lms-community/lms-api/pkg/database"
	"github.com/lms-community/lms-api/pkg/logger"
	corsmiddleware "github.com/lms-community/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lms-community/lms-api/pkg/middleware/requestid"
)

// @title LMS Community API
// @version 0.1.0
// @description Role-gated file uploads to Google Drive for the LMS
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, file metadata cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	fileRepo := repository.NewFileRepository(db)

	metrics := service.NewMetricsService()
	driveFactory := drive.NewGoogleFactory(cfg.Drive, userRepo, logr)
	folderResolver := drive.NewFolderResolver(cfg.Drive.RootFolder)

	authService := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	uploadService := service.NewUploadService(
		courseRepo, assignmentRepo, submissionRepo, paymentRepo, fileRepo,
		driveFactory, folderResolver, metrics, validate, logr)
	fileService := service.NewFileService(
		fileRepo, courseRepo, userRepo, driveFactory,
		redisClient, cfg.Files.CacheTTL, metrics, logr)
	reportService := service.NewReportService(paymentRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	fileHandler := handler.NewFileHandler(fileService)
	userHandler := handler.NewUserHandler(userService)
	reportHandler := handler.NewReportHandler(reportService)

	api := r.Group(cfg.APIPrefix)
	authHandler.RegisterPublicRoutes(api)

	protected := api.Group("", middleware.Authenticate(authService))
	authHandler.RegisterProtectedRoutes(protected)
	uploadHandler.RegisterRoutes(protected)
	fileHandler.RegisterRoutes(protected)
	userHandler.RegisterRoutes(protected)
	if cfg.Reports.Enabled {
		reportHandler.RegisterRoutes(protected)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
