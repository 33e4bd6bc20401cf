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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Weekly school timetable generation
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

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		redisClient = nil
	}

	schedulerCfg, err := schedulerConfig(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid scheduler config", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, redisClient != nil)
	timetableSvc := service.NewTimetableService(classRepo, teacherRepo, scheduleRepo, cacheSvc, logr)
	if err := timetableSvc.ResetCache(ctx); err != nil {
		logr.Warn("failed to reset timetable cache", zap.Error(err))
	}
	exportSvc := service.NewExportService(timetableSvc, service.ExportConfig{Timezone: cfg.Timetable.Timezone, CalendarWeeks: cfg.Timetable.CalendarWeeks}, logr, nil, nil, nil, nil)
	generatorSvc := service.NewScheduleGeneratorService(classRepo, teacherRepo, scheduleRepo, timetableSvc, metricsSvc, validate, logr, schedulerCfg)
	generationJobs := service.NewScheduleGenerationJobs(generatorSvc, metricsSvc, validate, logr, service.GenerationJobsConfig{
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		ResultTTL:  cfg.Jobs.ResultTTL,
	})
	generationJobs.Start(ctx)
	defer generationJobs.Stop()

	readiness := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		readiness["redis"] = redisPinger{client: redisClient}
	}

	generatorHandler := handler.NewScheduleGeneratorHandler(generatorSvc, generationJobs, cfg.Scheduler.Enabled)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc, validate)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/schedule/generate", generatorHandler.Generate)
	api.POST("/schedule/generate/batch", generatorHandler.GenerateBatch)
	api.GET("/schedule/jobs/:id", generatorHandler.JobStatus)
	api.GET("/classes/:name/schedule", timetableHandler.ClassSchedule)
	api.GET("/classes/:name/schedule/export", timetableHandler.ExportClassSchedule)
	api.GET("/teachers/:id/schedule", timetableHandler.TeacherSchedule)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("scheduler", cfg.Scheduler.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func schedulerConfig(cfg config.SchedulerConfig) (service.ScheduleGeneratorConfig, error) {
	start, err := models.ParseClock(cfg.DayStart)
	if err != nil {
		return service.ScheduleGeneratorConfig{}, fmt.Errorf("SCHEDULER_DAY_START: %w", err)
	}
	cutoff, err := models.ParseClock(cfg.DayCutoff)
	if err != nil {
		return service.ScheduleGeneratorConfig{}, fmt.Errorf("SCHEDULER_DAY_CUTOFF: %w", err)
	}
	if cutoff <= start {
		return service.ScheduleGeneratorConfig{}, fmt.Errorf("day cutoff %s must be after day start %s", cutoff, start)
	}
	return service.ScheduleGeneratorConfig{MaxPasses: cfg.MaxPasses, DayStart: start, DayCutoff: cutoff}, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
