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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Amdreaith/elearning-api/api/swagger"
	"github.com/Amdreaith/elearning-api/internal/handler"
	"github.com/Amdreaith/elearning-api/internal/middleware"
	"github.com/Amdreaith/elearning-api/internal/repository"
	"github.com/Amdreaith/elearning-api/internal/service"
	"github.com/Amdreaith/elearning-api/pkg/cache"
	"github.com/Amdreaith/elearning-api/pkg/config"
	"github.com/Amdreaith/elearning-api/pkg/database"
	"github.com/Amdreaith/elearning-api/pkg/logger"
	corsmiddleware "github.com/Amdreaith/elearning-api/pkg/middleware/cors"
	reqidmiddleware "github.com/Amdreaith/elearning-api/pkg/middleware/requestid"
)

// @title E-Learning Platform API
// @version 1.0.0
// @description Students, courses and enrollments backed by MongoDB
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to mongodb", "error", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	db := client.Database(cfg.Mongo.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to create indexes", "error", err)
	}

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
		}
	}

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	validate := service.NewValidator()

	reconciler := service.NewReconcilerService(enrollmentRepo, studentRepo, courseRepo, logr)
	repairQueue := service.NewRepairQueue(reconciler, cfg.Reconciler, logr)
	repairQueue.Start(ctx)
	defer repairQueue.Stop()

	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, repairQueue, cacheSvc, validate, logr)

	students := handler.NewStudentHandler(studentSvc)
	courses := handler.NewCourseHandler(courseSvc)
	enrollments := handler.NewEnrollmentHandler(enrollmentSvc)
	system := handler.NewSystemHandler(db, metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/", system.Welcome)
	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/students", students.List)
		api.GET("/students/search", students.Search)
		api.GET("/students/:id", students.Get)
		api.POST("/students", students.Create)
		api.PUT("/students/:id", students.Update)
		api.DELETE("/students/:id", students.Delete)

		api.GET("/courses", courses.List)
		api.GET("/courses/search", courses.Search)
		api.GET("/courses/:id", courses.Get)
		api.POST("/courses", courses.Create)
		api.PUT("/courses/:id", courses.Update)
		api.DELETE("/courses/:id", courses.Delete)

		api.GET("/enrollments", enrollments.List)
		api.GET("/enrollments/export", enrollments.Export)
		api.POST("/enrollments", enrollments.Create)
		api.DELETE("/enrollments/:id", enrollments.Delete)
	}

	if cfg.Reconciler.APIEnabled {
		admin := handler.NewReconcilerHandler(reconciler)
		r.POST("/admin/reconcile", admin.Reconcile)
	}

	r.NoRoute(handler.NotFound)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}
