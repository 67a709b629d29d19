package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/handler"
	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/pkg/cache"
	"github.com/classdesk/classdesk-api/pkg/config"
	"github.com/classdesk/classdesk-api/pkg/database"
	"github.com/classdesk/classdesk-api/pkg/logger"
	corsmiddleware "github.com/classdesk/classdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classdesk/classdesk-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Warnw("redis unavailable, history caching disabled", "error", err)
		redisClient = nil
	}

	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.History.CacheTTL, logr, cfg.History.CacheEnabled && redisClient != nil)

	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	tuteRepo := repository.NewTuteRepository(db)
	assignmentRepo := repository.NewTuteAssignmentRepository(db)

	authSvc := service.NewAuthService(cfg.JWT)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, enrollmentRepo, cacheSvc, metrics, logr)
	feeSvc := service.NewFeeService(feeRepo, classRepo, enrollmentRepo, cacheSvc, metrics, logr)
	tuteSvc := service.NewTuteService(tuteRepo, assignmentRepo, classRepo, enrollmentRepo, cacheSvc, metrics, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo)

	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	tuteHandler := handler.NewTuteHandler(tuteSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)

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

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	attendance := api.Group("/attendance")
	{
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/history", attendanceHandler.History)
		attendance.GET("/history/export", staff, attendanceHandler.ExportHistory)
		attendance.POST("", staff, attendanceHandler.Mark)
		attendance.POST("/bulk", staff, attendanceHandler.BulkMark)
		attendance.PUT("/:id", staff, attendanceHandler.Update)
		attendance.DELETE("/:id", staff, attendanceHandler.Delete)
	}

	fees := api.Group("/fees")
	{
		fees.GET("", feeHandler.List)
		fees.GET("/history", feeHandler.History)
		fees.GET("/history/export", staff, feeHandler.ExportHistory)
		fees.POST("", staff, feeHandler.Create)
		fees.POST("/bulk", staff, feeHandler.BulkMark)
		fees.PUT("/:id", staff, feeHandler.Update)
		fees.DELETE("/:id", staff, feeHandler.Delete)
	}

	tutes := api.Group("/tutes")
	{
		tutes.GET("", tuteHandler.List)
		tutes.GET("/assignments", tuteHandler.Assignments)
		tutes.GET("/:id", tuteHandler.Get)
		tutes.POST("", staff, tuteHandler.Create)
		tutes.POST("/sync", staff, tuteHandler.Sync)
		tutes.POST("/assign", staff, tuteHandler.Assign)
		tutes.PUT("/:id", staff, tuteHandler.Update)
		tutes.DELETE("/:id", staff, tuteHandler.Delete)
	}

	api.GET("/enrollments", enrollmentHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
