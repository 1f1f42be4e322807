package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ytflow/ytflow/internal/cache"
	"github.com/ytflow/ytflow/internal/config"
	"github.com/ytflow/ytflow/internal/extractor"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/metrics"
	"github.com/ytflow/ytflow/internal/middleware"
	"github.com/ytflow/ytflow/internal/pipeline"
	"github.com/ytflow/ytflow/internal/source"
	"github.com/ytflow/ytflow/internal/tracing"
	"github.com/ytflow/ytflow/internal/transcriber"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize tracer")
		}
		defer closer.Close()
	}

	// Manifest cache is optional: without Redis, every request hits the
	// upstream (single-flight still collapses concurrent fetches).
	var manifestCache *cache.Cache
	if cfg.Redis.Enabled {
		manifestCache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer manifestCache.Close()
	}

	// Build the pipeline components
	fetcher := source.NewFetcher(cfg.Upstream, manifestCache, logger)
	ext := extractor.New(cfg.Extractor, logger)
	provider := transcriber.NewWhisperProvider(cfg.Transcriber)
	engine := transcriber.NewEngine(cfg.Transcriber, cfg.Extractor.FFmpegPath, cfg.Extractor.FFprobePath, provider, logger)
	orch := pipeline.New(fetcher, ext, engine, cfg.Server.PipelineTimeout, logger)

	api := &API{
		pipeline:   orch,
		cache:      manifestCache,
		bufferSize: ext.BufferSize(),
		log:        logger,
	}

	router := setupRouter(api, cfg, logger)

	// Start metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			logger.Info(fmt.Sprintf("Starting metrics server on :%d", cfg.Metrics.Port))
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero: downloads stream for as long as the
		// media lasts.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info(fmt.Sprintf("Starting API server on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server forced to shutdown")
		}
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, cfg *config.Config, logger *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(metrics.Middleware())
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.Burst)))

	// Health check
	router.GET("/health", api.healthCheck)

	// API routes
	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/download", api.downloadVideo)
		apiGroup.GET("/download", api.downloadInfo)

		apiGroup.POST("/transcribe", api.transcribeVideo)
		apiGroup.GET("/transcribe", api.transcribeInfo)
	}

	return router
}
