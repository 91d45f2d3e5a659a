package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"open-lovable/internal/ai"
	"open-lovable/internal/cache"
	"open-lovable/internal/config"
	"open-lovable/internal/db"
	"open-lovable/internal/handlers"
	"open-lovable/internal/logging"
	"open-lovable/internal/metrics"
	"open-lovable/internal/middleware"
	"open-lovable/internal/sandbox"
	"open-lovable/internal/scrape"
	"open-lovable/internal/storage"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Try parent directory for .env
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("WARNING: No .env file found, using environment variables")
		}
	}

	logging.Init()
	defer logging.Sync()
	logger := logging.L()

	cfg := config.Load()
	logger.Info("Starting Open Lovable API", zap.String("environment", cfg.Environment), zap.String("port", cfg.Port))

	if result := config.ValidateKeys(); result.HasErrors() {
		logger.Warn("vendor keys incomplete; affected routes will report it", zap.String("detail", result.Error()))
	}
	if !cfg.HasAIProvider() {
		logger.Warn("no AI provider key configured; code generation is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Request log (optional)
	var requestLog *db.RequestLogger
	database, err := db.Open(db.Config{URL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		logger.Warn("request log disabled", zap.Error(err))
		database = nil
	} else {
		requestLog = db.NewRequestLogger(database)
	}

	scrapeCache := cache.OpenScrapeCache(cfg.RedisURL, cfg.ScrapeCacheTTL)

	screenshots, err := storage.OpenScreenshotArchive(ctx, cfg)
	if err != nil {
		logger.Warn("screenshot archive disabled", zap.Error(err))
		screenshots = nil
	}

	registry, err := ai.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize AI providers", zap.Error(err))
	}
	logger.Info("AI providers initialized", zap.Any("providers", registry.Providers()))

	router := ai.NewSmartRouter(registry, ai.WithRecorder(metrics.NewAIMetricsRecorder()))

	e2b := sandbox.NewClient(cfg.E2B)
	sandboxes := sandbox.NewManager(e2b, cfg.E2B, cfg.Packages)

	m := metrics.Get()
	m.SetBuildInfo(config.GetWithDefault("VERSION", "dev"), cfg.Environment)
	var gormDB *gorm.DB
	if database != nil {
		gormDB = database.DB
	}
	collector := metrics.NewRuntimeCollector(gormDB, 30*time.Second)
	collector.Start(ctx)

	h := handlers.NewHandler(handlers.Deps{
		Config:      cfg,
		Chat:        ai.NewChatService(registry),
		Router:      router,
		Intent:      ai.NewIntentAnalyzer(registry),
		Sessions:    ai.NewSessionStore(),
		Providers:   registry.Providers(),
		Usage:       registry,
		Sandboxes:   sandboxes,
		E2B:         e2b,
		Scraper:     scrape.NewClient(cfg.Firecrawl),
		ScrapeCache: scrapeCache,
		Screenshots: screenshots,
		RequestLog:  requestLog,
	})

	limiter := middleware.NewPerMinuteLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	engine := setupRoutes(cfg, h, limiter)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	logger.Info("Server ready", zap.String("health", "http://localhost:"+cfg.Port+"/health"))

	// Graceful shutdown: listen for SIGTERM/SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("failed to start server", zap.Error(err))
	case sig := <-quit:
		logger.Info("starting graceful shutdown", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// 1. Stop accepting new HTTP connections and drain existing ones
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Kill the active sandbox so it does not outlive the process
	if err := sandboxes.Close(shutdownCtx); err != nil {
		logger.Warn("failed to kill active sandbox", zap.Error(err))
	}

	// 3. Release background workers and connections
	limiter.Stop()
	collector.Stop()
	cancel()
	if err := scrapeCache.Close(); err != nil {
		logger.Warn("failed to close scrape cache", zap.Error(err))
	}
	if err := registry.Close(); err != nil {
		logger.Warn("failed to close AI providers", zap.Error(err))
	}
	if database != nil {
		if err := database.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}

	logger.Info("Graceful shutdown complete")
}

func setupRoutes(cfg *config.AppConfig, h *handlers.Handler, limiter *middleware.IPRateLimiter) *gin.Engine {
	if config.IsProductionEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.AccessLog())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/metrics", metrics.PrometheusHandler())
	router.GET("/health", h.Health)

	api := router.Group("/api", middleware.RateLimit(limiter))
	h.RegisterRoutes(api)

	return router
}
