package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/api/handlers"
	"github.com/andresuchdata/stockinsight/internal/api/middleware"
	"github.com/andresuchdata/stockinsight/internal/metrics"
	"github.com/andresuchdata/stockinsight/internal/reporting"
	"github.com/andresuchdata/stockinsight/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Analysis  *service.AnalysisService
	AI        *ai.Service
	Reporting *reporting.Service
	Metrics   *metrics.Recorder
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	started := time.Now()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
			"time":   time.Now().UTC(),
		})
	})

	if services == nil {
		return router
	}

	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	apiGroup := router.Group("/api/v1")

	if services.Analysis != nil {
		analysisHandler := handlers.NewAnalysisHandler(services.Analysis, services.AI)
		aiGroup := apiGroup.Group("/ai")
		{
			aiGroup.GET("/status", analysisHandler.Status)
			aiGroup.PUT("/strategy", analysisHandler.SetStrategy)

			analysisGroup := aiGroup.Group("/analysis")
			{
				analysisGroup.GET("/comprehensive", analysisHandler.Comprehensive)
				analysisGroup.GET("/weekly", analysisHandler.Weekly)
				analysisGroup.GET("/monitor", analysisHandler.Monitor)
				analysisGroup.GET("/predict", analysisHandler.Predict)
				analysisGroup.GET("/optimize", analysisHandler.Optimize)
				analysisGroup.GET("/sales-trends", analysisHandler.SalesTrends)
			}
		}
	}

	if services.Reporting != nil {
		reportHandler := handlers.NewReportHandler(services.Reporting)
		reportGroup := apiGroup.Group("/reports")
		{
			reportGroup.POST("", reportHandler.Generate)
			reportGroup.POST("/validate", reportHandler.Validate)
			reportGroup.POST("/test", reportHandler.Test)
			reportGroup.GET("/types", reportHandler.Types)
			reportGroup.GET("/realtime/:type", reportHandler.RealTime)
			reportGroup.GET("/predictive/:type", reportHandler.Predictive)

			cacheGroup := reportGroup.Group("/cache")
			{
				cacheGroup.GET("/stats", reportHandler.CacheStats)
				cacheGroup.DELETE("", reportHandler.ClearCache)
				cacheGroup.PUT("/ttl", reportHandler.SetCacheTTL)
			}

			reportGroup.POST("/export", reportHandler.Export)
			reportGroup.GET("/export/:id", reportHandler.ExportStatus)
			reportGroup.POST("/schedules", reportHandler.Schedule)
			reportGroup.DELETE("/schedules/:id", reportHandler.CancelSchedule)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
