package main

import (
	"context"
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

	_ "github.com/javandres/bultti-inspections-api/api/swagger"
	"github.com/javandres/bultti-inspections-api/internal/handler"
	"github.com/javandres/bultti-inspections-api/internal/middleware"
	"github.com/javandres/bultti-inspections-api/internal/notify"
	"github.com/javandres/bultti-inspections-api/internal/repository"
	"github.com/javandres/bultti-inspections-api/internal/service"
	"github.com/javandres/bultti-inspections-api/pkg/cache"
	"github.com/javandres/bultti-inspections-api/pkg/config"
	"github.com/javandres/bultti-inspections-api/pkg/database"
	"github.com/javandres/bultti-inspections-api/pkg/logger"
	corsmiddleware "github.com/javandres/bultti-inspections-api/pkg/middleware/cors"
	reqidmiddleware "github.com/javandres/bultti-inspections-api/pkg/middleware/requestid"
)

// @title Bultti Inspections API
// @version 1.0.0
// @description Inspection lifecycle and approval workflow for transit operator documents
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and cross-instance events", zap.Error(err))
		redisClient = nil
	}

	inspectionRepo := repository.NewInspectionRepository(db)
	seasonRepo := repository.NewSeasonRepository(db)

	metrics := service.NewMetricsService()

	hubOpts := []notify.HubOption{notify.WithMetrics(metrics)}
	if redisClient != nil {
		hubOpts = append(hubOpts, notify.WithRedis(redisClient, cfg.Events.RedisChannel))
	}
	hub := notify.NewHub(cfg.Events.SubscriberBuffer, logr, hubOpts...)
	go hub.Run(ctx)

	var versions *service.VersionResolver
	if cfg.InEffect.CacheEnabled && redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		versions = service.NewVersionResolver(inspectionRepo, cacheRepo, cfg.InEffect.CacheTTL, logr)
	} else {
		versions = service.NewVersionResolver(inspectionRepo, nil, cfg.InEffect.CacheTTL, logr)
	}

	inspectionSvc := service.NewInspectionService(
		inspectionRepo,
		seasonRepo,
		service.NewValidationGate(cfg.Validation.BlockingTypes),
		service.NewRolePolicy(cfg.Features.TestUserOverride),
		versions,
		logr,
		service.WithEventPublisher(hub),
		service.WithMetrics(metrics),
	)

	refresher := service.NewLinkageRefresher(inspectionSvc, cfg.Linkage, metrics, logr)
	inspectionSvc.AttachLinkageRefresher(refresher)
	refresher.Start(ctx)
	defer refresher.Stop()

	inspectionHandler := handler.NewInspectionHandler(inspectionSvc, hub)
	metricsHandler := handler.NewMetricsHandler(metrics, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		inspections := api.Group("/inspections")
		inspections.POST("", inspectionHandler.Create)
		inspections.GET("", inspectionHandler.List)
		inspections.GET("/in-effect", inspectionHandler.InEffect)
		inspections.GET("/:id", inspectionHandler.Get)
		inspections.PATCH("/:id", inspectionHandler.Update)
		inspections.DELETE("/:id", inspectionHandler.Remove)
		inspections.POST("/:id/submit", inspectionHandler.Submit)
		inspections.POST("/:id/sanctionable", inspectionHandler.MakeSanctionable)
		inspections.POST("/:id/abandon-sanctions", inspectionHandler.AbandonSanctions)
		inspections.POST("/:id/accept", inspectionHandler.Accept)
		inspections.POST("/:id/publish", inspectionHandler.Publish)
		inspections.POST("/:id/reject", inspectionHandler.Reject)
		inspections.PUT("/:id/linked-inspections", inspectionHandler.UpdateLinkedInspections)
		inspections.GET("/:id/events", inspectionHandler.Events)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
