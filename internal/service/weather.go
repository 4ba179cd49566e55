package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aniladanir/retry"
	"github.com/aniladanir/weather-service/internal/domain"
	"github.com/aniladanir/weather-service/internal/worker"
	"github.com/google/uuid"
)

const (
	DefaultOpenWeatherURL = "https://api.openweathermap.org"
	// DefaultMaxRetry bounds upstream attempts when none are configured
	DefaultMaxRetry = 3

	geocodePath  = "/geo/1.0/direct"
	forecastPath = "/data/2.5/forecast"
	geocodeLimit = 5
)

type WeatherService interface {
	// QueryToponym returns the locations matching a place name, best match first
	QueryToponym(ctx context.Context, toponym string) ([]domain.Location, error)
	// Forecast returns the 3 hour step forecast for the given coordinates
	Forecast(ctx context.Context, lat, lon float64) ([]domain.Forecast, error)
}

type OpenWeatherConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	MaxRetry int
}

type openWeatherService struct {
	baseURL    string
	apiKey     string
	pool       *worker.Pool
	retrier    *retry.Retrier
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenWeatherService(cfg OpenWeatherConfig, pool *worker.Pool, logger *slog.Logger) (WeatherService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openweathermap api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenWeatherURL
	}
	if cfg.MaxRetry == 0 {
		cfg.MaxRetry = DefaultMaxRetry
	}
	if cfg.MaxRetry < 1 {
		return nil, fmt.Errorf("invalid max retry %d", cfg.MaxRetry)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second * 5
	}

	// initialize retrier
	retrier, err := retry.New(retry.WithMaxAttemps(cfg.MaxRetry))
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	return &openWeatherService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		pool:    pool,
		retrier: retrier,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

type geocodeResponse struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			TempMin   float64 `json:"temp_min"`
			TempMax   float64 `json:"temp_max"`
			FeelsLike float64 `json:"feels_like"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

// QueryToponym resolves a place name through the geocoding api
func (s *openWeatherService) QueryToponym(ctx context.Context, toponym string) ([]domain.Location, error) {
	query := url.Values{
		"q":     {toponym},
		"limit": {strconv.Itoa(geocodeLimit)},
	}

	var raw []geocodeResponse
	if err := s.fetch(ctx, geocodePath, query, &raw); err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0, len(raw))
	for _, r := range raw {
		locations = append(locations, domain.Location{
			Name:      r.Name,
			Country:   r.Country,
			Latitude:  r.Lat,
			Longitude: r.Lon,
		})
	}
	return locations, nil
}

// Forecast fetches the 5 day forecast in celsius
func (s *openWeatherService) Forecast(ctx context.Context, lat, lon float64) ([]domain.Forecast, error) {
	query := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"units": {"metric"},
	}

	var raw forecastResponse
	if err := s.fetch(ctx, forecastPath, query, &raw); err != nil {
		return nil, err
	}

	forecasts := make([]domain.Forecast, 0, len(raw.List))
	for _, step := range raw.List {
		f := domain.Forecast{
			ReferenceTime: time.Unix(step.Dt, 0).UTC(),
			Temperature: domain.Temperature{
				Temperature:    step.Main.Temp,
				MinTemperature: step.Main.TempMin,
				MaxTemperature: step.Main.TempMax,
				FeelsLike:      step.Main.FeelsLike,
			},
		}
		if len(step.Weather) > 0 {
			f.WeatherType = step.Weather[0].Main
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

// fetch runs the upstream request on the worker pool and decodes the json body into out
func (s *openWeatherService) fetch(ctx context.Context, endpoint string, query url.Values, out any) error {
	_, err := worker.Run(ctx, s.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.getJSON(ctx, endpoint, query, out)
	})
	return err
}

func (s *openWeatherService) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	reqLogger := s.logger.With(slog.String("endpoint", endpoint))

	var lastErr error
	retryFunc := func(attempt int) (terminate bool) {
		attemptLogger := reqLogger.With(slog.Int("attempt", attempt))

		resp, err := s.doRequest(ctx, endpoint, query)
		if err != nil {
			attemptLogger.Error("failed to send request", "error", err.Error())
			lastErr = err
			return false
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			// 5XX status code indicates server error, try retry
			attemptLogger.Error("response indicates error",
				"requestId", resp.Request.Header.Get("X-Request-ID"),
				"statusCode", resp.StatusCode)
			lastErr = fmt.Errorf("unexpected status code %d", resp.StatusCode)
			return false
		} else if resp.StatusCode >= http.StatusBadRequest {
			// 4XX indicates client error, no need to retry
			attemptLogger.Error("response indicates error",
				"requestId", resp.Request.Header.Get("X-Request-ID"),
				"statusCode", resp.StatusCode)
			lastErr = fmt.Errorf("unexpected status code %d", resp.StatusCode)
			return true
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			return true
		}

		lastErr = nil
		return true
	}

	if retrySuccess := <-s.retrier.Retry(ctx, retryFunc, true); !retrySuccess && lastErr == nil {
		lastErr = errors.New("retry attempts exhausted")
		if ctx.Err() != nil {
			lastErr = ctx.Err()
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, endpoint, lastErr)
	}

	return nil
}

func (s *openWeatherService) doRequest(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	q := make(url.Values, len(query)+1)
	for k, v := range query {
		q[k] = v
	}
	q.Set("appid", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("X-Request-ID", uuid.NewString())
	req.Header.Add("Accept", "application/json")

	return s.httpClient.Do(req)
}
