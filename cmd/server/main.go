package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/api"
	"github.com/andresuchdata/stockinsight/internal/cache"
	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/export"
	"github.com/andresuchdata/stockinsight/internal/metrics"
	"github.com/andresuchdata/stockinsight/internal/reporting"
	"github.com/andresuchdata/stockinsight/internal/repository/postgres"
	"github.com/andresuchdata/stockinsight/internal/scheduler"
	"github.com/andresuchdata/stockinsight/internal/service"
	"github.com/andresuchdata/stockinsight/internal/storage"
	"github.com/andresuchdata/stockinsight/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.Server.Mode, cfg.Server.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	recorder := metrics.New()

	analysisCache := cache.NewNoopAnalysisCache()
	if cfg.Cache.Enabled {
		analysisCache, err = cache.NewAnalysisCache(cfg.Cache)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Redis unavailable, analysis cache disabled")
			analysisCache = cache.NewNoopAnalysisCache()
		}
	}

	aiService, err := ai.NewServiceFromConfig(cfg.AI,
		ai.WithMetrics(recorder),
		ai.WithLogger(logger.Component("ollama")),
	)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize AI service")
	}

	inventoryRepo := postgres.NewInventoryRepository(db)
	analysisService := service.NewAnalysisService(inventoryRepo, aiService, analysisCache)

	builders := []reporting.Builder{
		reporting.NewInventoryBuilder(inventoryRepo, aiService,
			reporting.WithLowStockThreshold(cfg.Reporting.LowStockThreshold),
			reporting.WithDefaultMaxRecords(cfg.Reporting.DefaultMaxRecords),
		),
		reporting.NewAIPerformanceBuilder(aiService),
	}

	exporter := newExporter(cfg)
	reportService := reporting.NewService(builders,
		reporting.WithReportingConfig(cfg.Reporting),
		reporting.WithMetrics(recorder),
		reporting.WithExporter(exporter),
	)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(reportService, exporter)
		reportService.AttachScheduler(sched)
		sched.Start()
	}

	router := api.NewRouter(&api.Services{
		Analysis:  analysisService,
		AI:        aiService,
		Reporting: reportService,
		Metrics:   recorder,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Scheduler did not stop cleanly")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// newExporter writes exports to the local export dir and, when enabled,
// mirrors them to object storage.
func newExporter(cfg *config.Config) *export.Exporter {
	if !cfg.Export.StorageEnabled {
		return export.New(cfg.Export.Dir)
	}

	client, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Object storage unavailable, exports stay local")
		return export.New(cfg.Export.Dir)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx); err != nil {
		logger.Log.Warn().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("Object storage bucket check failed, exports stay local")
		return export.New(cfg.Export.Dir)
	}
	return export.New(cfg.Export.Dir, export.WithStorage(client))
}
