package domain

import (
	"errors"
	"time"
)

// ErrUpstream marks failures of the third-party weather provider.
var ErrUpstream = errors.New("upstream weather provider failed")

type Location struct {
	Name      string  `json:"toponym"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Temperature struct {
	Temperature    float64 `json:"temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	FeelsLike      float64 `json:"feels_like"`
}

// Forecast is a single forecast step as reported by the provider.
type Forecast struct {
	ReferenceTime time.Time   `json:"reference_time"`
	WeatherType   string      `json:"weather_type"`
	Temperature   Temperature `json:"temperature"`
}
