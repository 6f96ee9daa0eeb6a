package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/handlers"
	"github.com/seiixin/gunwadex/internal/kernel"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/middleware"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger isn't configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== GunwaDex server starting ===",
		zap.String("environment", cfg.Environment),
		zap.Bool("debug", cfg.Debug),
	)

	tp, err := telemetry.InitTracer(cfg.Tracing, cfg.Environment)
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	k, err := kernel.Bootstrap(context.Background(), cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize services", err)
	}
	if tp != nil {
		k.OnCleanup(tp.Shutdown)
	}

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	metrics.Initialize()
	k.Start()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := handlers.NewEngine(cfg.TrustedProxies)
	if err != nil {
		logger.FatalWithFields("Invalid TRUSTED_PROXIES", err)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
		r.Use(middleware.SpanAttributesMiddleware())
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	// attachment downloads are already compressed or binary
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{
		`^/api/v1/chat/messages/[^/]+/attachment$`,
		`^/api/v1/ws$`,
	})))

	metricsHandler := gin.WrapH(promhttp.Handler())
	r.GET("/metrics", metricsHandler)
	r.GET("/api/v1/metrics", metricsHandler)

	k.Handlers().RegisterRoutes(r, handlers.RouteConfig{
		Tokens:    k.Auth(),
		Limits:    cfg.Limits,
		WebSocket: k.WebSocket(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("GunwaDex API listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := k.Cleanup(ctx); err != nil {
		logger.WarnWithFields("Shutdown cleanup incomplete", err)
	}

	logger.Log.Info("Server exited")
}
