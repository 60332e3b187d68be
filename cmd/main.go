package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/openoutings/outings/internal/adapters/cache"
	"github.com/openoutings/outings/internal/adapters/http/api"
	"github.com/openoutings/outings/internal/adapters/http/swagger"
	app "github.com/openoutings/outings/internal/app"
	"github.com/openoutings/outings/internal/config"
	"github.com/openoutings/outings/pkg/logger"
	"github.com/openoutings/outings/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	redisConnectTimeout   = 5 * time.Second
	cacheSweepInterval    = time.Minute
	serviceMetricsDivisor = 2
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := metrics.Configure(metrics.WithMetricsEnabled(cfg.MetricsEnabled)); err != nil {
		return err
	}

	recCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}

	svc, err := app.New(
		app.WithLogger(logger.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxRecommendations(cfg.MaxRecommendations),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithBuddyWeights(cfg.BuddyWeights),
		app.WithEventWeights(cfg.EventWeights),
		app.WithCache(recCache),
	)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)
	if mc, ok := recCache.(*cache.MemoryCache); ok {
		go startCacheSweeper(ctx, mc)
	}

	router := api.NewRouter(
		api.WithAllowedOrigins(cfg.AllowedOrigins()...),
		api.WithRequestLogger(logger.Named("http")),
	)
	swagger.Register(ctx, router)
	api.NewServer(svc).Register(ctx, router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("cache_backend", cfg.CacheBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newCache builds the configured recommendation cache backend.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.CacheBackend != config.CacheRedis {
		return cache.NewMemoryCache(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	return cache.NewRedisCache(connectCtx, cfg.RedisURL)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and record gauges between
// requests.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval() / serviceMetricsDivisor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats publishes the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

// startCacheSweeper drops expired in-memory cache entries.
func startCacheSweeper(ctx context.Context, c *cache.MemoryCache) {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
