package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	_ "github.com/aniladanir/weather-service/docs"
	"github.com/aniladanir/weather-service/internal/domain"
	"github.com/aniladanir/weather-service/internal/service"
	"github.com/aniladanir/weather-service/internal/worker"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handler struct {
	weather service.WeatherService
	logger  *slog.Logger
	server  *http.Server
}

type forecastRequest struct {
	Toponym string `uri:"toponym" binding:"required,min=2,max=32"`
}

type forecastResponse struct {
	Forecast []domain.Forecast `json:"forecast"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

const invalidToponymDetail = "Toponym must be 2 to 32 characters."

// @title Weather API
// @version 1.0
// @description Weather forecasts for place names
// @host localhost:8080
// @BasePath /api/v1
func NewHttpHandler(addr string, svc service.WeatherService, logger *slog.Logger) *Handler {
	h := &Handler{
		weather: svc,
		logger:  logger,
	}

	// create router
	router := gin.Default()

	// register routes
	v1 := router.Group("/api/v1")
	v1.GET("/weather/forecast/:toponym", h.getForecast)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// GetForecast godoc
// @Summary Get forecast
// @Description Get a weather forecast for the given toponym
// @Tags Weather
// @Param toponym path string true "Toponym to lookup" minlength(2) maxlength(32) example(Liberec)
// @Produce json
// @Success 200 {object} forecastResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Failure 503 {object} errorResponse
// @Router /weather/forecast/{toponym} [get]
func (h *Handler) getForecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.logger.Debug("rejected forecast request", "error", err.Error())
		c.JSON(http.StatusBadRequest, errorResponse{Detail: invalidToponymDetail})
		return
	}

	reqLogger := h.logger.With(slog.String("toponym", req.Toponym))

	locations, err := h.weather.QueryToponym(c.Request.Context(), req.Toponym)
	if err != nil {
		reqLogger.Error("failed to query toponym", "error", err.Error())
		h.abortWithError(c, err)
		return
	}

	if len(locations) == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Detail: "Toponym was not found."})
		return
	}

	top := locations[0]
	forecast, err := h.weather.Forecast(c.Request.Context(), top.Latitude, top.Longitude)
	if err != nil {
		reqLogger.Error("failed to fetch forecast", "error", err.Error())
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, forecastResponse{Forecast: forecast})
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUpstream):
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: "Could not fetch data from upstream API."})
	case errors.Is(err, worker.ErrPoolClosed), errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrTaskCancelled):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "Service is busy, try again later."})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: "Internal server error."})
	}
}
