package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/giniscope/internal/adapters/cache"
	"github.com/okian/giniscope/internal/adapters/http/api"
	"github.com/okian/giniscope/internal/adapters/worldbank"
	app "github.com/okian/giniscope/internal/app"
	"github.com/okian/giniscope/internal/config"
	"github.com/okian/giniscope/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection; the custom registry only
	// carries pipeline metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	ttl := time.Duration(cfg.CacheTTLSec) * time.Second

	// Select the cache backing store: in-memory by default, SQLite
	// when a path is configured.
	var store cache.Store
	if cfg.CachePath != "" {
		sqliteStore, err := cache.NewSQLite(cfg.CachePath, cache.WithSQLiteTTL(ttl))
		if err != nil {
			os.Stderr.WriteString("failed to open cache store: " + err.Error() + "\n")
			return
		}
		store = sqliteStore
		log.Info(ctx, "using sqlite cache store", logger.String("path", cfg.CachePath))
	} else {
		store = cache.NewMemory(cache.WithTTL(ttl))
		log.Info(ctx, "using in-memory cache store")
	}

	client := worldbank.New(
		worldbank.WithBaseURL(cfg.BaseURL),
		worldbank.WithIndicator(cfg.Indicator),
		worldbank.WithTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
		worldbank.WithMaxRetries(cfg.MaxRetries),
		worldbank.WithBackoff(
			time.Duration(cfg.RetryBaseDelayMS)*time.Millisecond,
			time.Duration(cfg.RetryMaxDelayMS)*time.Millisecond,
		),
		worldbank.WithPerPage(cfg.PerPage),
		worldbank.WithLogger(log),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithFetcher(client),
		app.WithTTL(ttl),
		app.WithSkipWarnRatio(cfg.SkipWarnRatio),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
