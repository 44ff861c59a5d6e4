// Package main запускает сервис HUD-телеметрии.
// Сервис реализует:
// - синтетическую телеметрию со скользящим окном (40 точек, тик 1.5с)
// - детекцию аномалий по порогу 40% от среднего окна
// - детерминированный скор-заглушку вместо ML-инференса
// - журнал событий и обработку текстовых команд
// - HTTP API и SSE-поток снимков
// - кэширование в Redis и экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hud-telemetry-service/internal/cache"
	"hud-telemetry-service/internal/config"
	"hud-telemetry-service/internal/handlers"
	"hud-telemetry-service/internal/metrics"
	"hud-telemetry-service/internal/models"
	"hud-telemetry-service/internal/profile"
	"hud-telemetry-service/internal/simulator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// логгер еще не настроен
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Sync()

	logger.Info("starting HUD telemetry service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()))

	// Инициализируем Redis кэш
	redisCache := connectRedis(cfg, logger)

	// Инициализируем симулятор, продолжая окно из кэша, если оно есть
	simOpts := []simulator.Option{simulator.WithLogger(logger.Named("simulator"))}
	if seed := restoreWindow(redisCache, cfg.WindowSize, logger); seed != nil {
		simOpts = append(simOpts, simulator.WithSeed(seed))
	}
	sim := simulator.New(cfg.Simulator(), simOpts...)
	if err := sim.Start(); err != nil {
		logger.Fatal("failed to start simulator", zap.Error(err))
	}

	var store handlers.Store
	if redisCache != nil {
		store = redisCache
	}

	handler := handlers.NewHandler(sim, store, profile.Default(),
		profile.NewTicker(profile.DefaultMessages()), logger.Named("http"))

	router := handlers.NewRouter(handler)
	router.Handle("/prometheus", promhttp.Handler())
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go updateMetricsLoop(ctx)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		processSnapshots(ctx, sim, redisCache, logger.Named("consumer"))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Останавливаем симулятор: каналы подписчиков закрываются, SSE клиенты отключаются,
	// потребитель дописывает накопленные снимки в кэш
	sim.Stop()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("snapshot consumer did not drain in time")
		cancel()
		<-consumerDone
	}
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// newLogger строит zap логгер по LOG_LEVEL и LOG_FORMAT
func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// connectRedis подключается к Redis с повторами; nil означает работу без кэша
func connectRedis(cfg config.Config, logger *zap.Logger) *cache.RedisCache {
	if !cfg.RedisEnabled {
		logger.Info("redis cache disabled")
		return nil
	}

	opts := cache.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		LogCapacity: cfg.LogCapacity,
	}
	var lastErr error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := cache.NewRedisCache(ctx, opts)
		cancel()
		if err == nil {
			logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
			return c
		}
		lastErr = err
		logger.Warn("redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	logger.Warn("running without cache", zap.Error(lastErr))
	return nil
}

// updateMetricsLoop периодически обновляет метрики процесса
func updateMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}

// restoreWindow читает окно последнего сохраненного снимка; nil означает синтетический старт
func restoreWindow(redisCache *cache.RedisCache, size int, logger *zap.Logger) []models.TelemetrySample {
	if redisCache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	snap, err := redisCache.LatestSnapshot(ctx)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("failed to restore telemetry window", zap.Error(err))
		return nil
	}
	if len(snap.Window) != size {
		logger.Info("cached window size differs, starting fresh",
			zap.Int("cached", len(snap.Window)), zap.Int("size", size))
		return nil
	}
	logger.Info("telemetry window restored from cache", zap.Uint64("sequence", snap.Sequence))
	return snap.Window
}

// processSnapshots обновляет метрики и кэш по каждому снимку симулятора.
// Подписка без потерь: счетчики тиков и команд не пропускают ни одного снимка.
func processSnapshots(ctx context.Context, sim *simulator.Simulator, redisCache *cache.RedisCache, logger *zap.Logger) {
	updates, unsubscribe := sim.SubscribeAll()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			metrics.UpdateSnapshotMetrics(snap)
			if snap.Reason == models.ReasonTick && snap.AnomalyCount > 0 {
				logger.Debug("anomalies in window",
					zap.Uint64("sequence", snap.Sequence),
					zap.Int("count", snap.AnomalyCount))
			}
			if redisCache == nil {
				continue
			}
			if err := redisCache.CacheSnapshot(ctx, snap); err != nil {
				metrics.CacheErrors.Inc()
				logger.Warn("cache snapshot failed", zap.Error(err))
			}
		}
	}
}
