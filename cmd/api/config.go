package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aniladanir/weather-service/internal/service"
)

const (
	apiKeyEnv = "APP_OWM_API_KEY"

	cacheBackendMemory = "memory"
	cacheBackendRedis  = "redis"
)

type Config struct {
	HttpPort            int           `json:"http_port"`
	OwmBaseUrl          string        `json:"owm_base_url"`
	OwmApiKey           string        `json:"owm_api_key"`
	UpstreamTimeoutStr  string        `json:"upstream_timeout"`
	UpstreamTimeout     time.Duration `json:"-"`
	UpstreamMaxRetry    int           `json:"upstream_max_retry"`
	WorkerCount         int           `json:"worker_count"`
	WorkerQueueSize     int           `json:"worker_queue_size"`
	CacheBackend        string        `json:"cache_backend"`
	RedisAddr           string        `json:"redis_addr"`
	GeocodeCacheTtlStr  string        `json:"geocode_cache_ttl"`
	GeocodeCacheTtl     time.Duration `json:"-"`
	ForecastCacheTtlStr string        `json:"forecast_cache_ttl"`
	ForecastCacheTtl    time.Duration `json:"-"`
	ShutdownTimeoutStr  string        `json:"shutdown_timeout"`
	ShutdownTimeout     time.Duration `json:"-"`
}

func defaultConfig() *Config {
	return &Config{
		HttpPort:         8080,
		UpstreamMaxRetry: service.DefaultMaxRetry,
		WorkerCount:      8,
		CacheBackend:     cacheBackendMemory,
	}
}

// ReadConfigJson reads json formatted configuration from the given file.
// The upstream api key is taken from APP_OWM_API_KEY when it is set.
func ReadConfigJson(configFile string) (*Config, error) {
	cfg := defaultConfig()

	content, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err = json.Unmarshal(content, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		// environment alone is enough to run
	default:
		return nil, err
	}

	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.OwmApiKey = key
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) parseDurations() error {
	durations := []struct {
		name string
		src  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"upstream_timeout", cfg.UpstreamTimeoutStr, &cfg.UpstreamTimeout, time.Second * 5},
		{"geocode_cache_ttl", cfg.GeocodeCacheTtlStr, &cfg.GeocodeCacheTtl, 0},
		{"forecast_cache_ttl", cfg.ForecastCacheTtlStr, &cfg.ForecastCacheTtl, 0},
		{"shutdown_timeout", cfg.ShutdownTimeoutStr, &cfg.ShutdownTimeout, time.Second * 5},
	}

	for _, d := range durations {
		if d.src == "" {
			*d.dst = d.def
			continue
		}
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}

func (cfg *Config) validate() error {
	if cfg.OwmApiKey == "" {
		return fmt.Errorf("upstream api key is not set, export %s", apiKeyEnv)
	}

	if cfg.UpstreamMaxRetry < 1 {
		return errors.New("upstream_max_retry must be at least 1")
	}

	switch cfg.CacheBackend {
	case cacheBackendMemory:
	case cacheBackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis_addr is required for redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}

	if cfg.GeocodeCacheTtl < 0 || cfg.ForecastCacheTtl < 0 {
		return errors.New("cache ttl values must not be negative")
	}

	return nil
}
