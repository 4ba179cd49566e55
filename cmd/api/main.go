package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aniladanir/weather-service/internal/cache"
	"github.com/aniladanir/weather-service/internal/cache/memory"
	redisCache "github.com/aniladanir/weather-service/internal/cache/redis"
	httpHandler "github.com/aniladanir/weather-service/internal/handler/http"
	"github.com/aniladanir/weather-service/internal/service"
	"github.com/aniladanir/weather-service/internal/worker"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// parse flags
	flag.Parse()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// initialize cache
	cacheSvc, closeCache, err := initCache(notifyCtx, config)
	if err != nil {
		log.Fatalf("failed to initialize cache: %v", err)
	}

	// init worker pool for blocking upstream calls
	pool := worker.New(
		"upstream",
		config.WorkerCount,
		config.WorkerQueueSize,
		logger.With(slog.String("component", "workerPool")),
	)

	// init weather service
	weatherSvc, err := service.NewOpenWeatherService(
		service.OpenWeatherConfig{
			BaseURL:  config.OwmBaseUrl,
			APIKey:   config.OwmApiKey,
			Timeout:  config.UpstreamTimeout,
			MaxRetry: config.UpstreamMaxRetry,
		},
		pool,
		logger.With(slog.String("component", "weatherService")),
	)
	if err != nil {
		log.Fatalf("failed to initiate weather service: %v", err)
	}

	cacheTTL := service.CacheTTL{
		Geocode:  config.GeocodeCacheTtl,
		Forecast: config.ForecastCacheTtl,
	}
	if cacheTTL.Enabled() {
		weatherSvc = service.NewCachedWeatherService(
			weatherSvc,
			cacheSvc,
			cacheTTL,
			logger.With(slog.String("component", "weatherCache")),
		)
	}

	// init http handler
	httpHandler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", config.HttpPort),
		weatherSvc,
		logger.With(slog.String("component", "httpHandler")),
	)

	logger.Info("application starting",
		"port", config.HttpPort,
		"cacheBackend", config.CacheBackend,
		"cacheEnabled", cacheTTL.Enabled(),
		"workers", pool.Stats().Workers)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := httpHandler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := httpHandler.Shutdown(shutDownCtx); err != nil {
			logger.Error("failed to shutdown http server", "error", err.Error())
		}
		if err := pool.Shutdown(shutDownCtx); err != nil {
			logger.Error("failed to shutdown worker pool", "error", err.Error())
		}
		if err := closeCache(); err != nil {
			logger.Error("failed to close cache", "error", err.Error())
		}
	})

	wg.Wait()
	os.Exit(0)
}

func initCache(ctx context.Context, config *Config) (cache.Cache, func() error, error) {
	switch config.CacheBackend {
	case cacheBackendRedis:
		rCache, err := redisCache.NewRedisCache(ctx, config.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return rCache, rCache.Close, nil
	default:
		return memory.New(), func() error { return nil }, nil
	}
}
