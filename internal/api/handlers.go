package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/LouisHart1808/Plutus/internal/chart"
	"github.com/LouisHart1808/Plutus/internal/config"
	"github.com/LouisHart1808/Plutus/internal/currencies"
	"github.com/LouisHart1808/Plutus/internal/fx"
	"github.com/LouisHart1808/Plutus/internal/logger"
	"github.com/LouisHart1808/Plutus/internal/middleware"
	"github.com/LouisHart1808/Plutus/internal/models"
	"github.com/LouisHart1808/Plutus/internal/ratelimit"
	"github.com/LouisHart1808/Plutus/internal/refresh"
	"github.com/LouisHart1808/Plutus/internal/timerange"
)

// FxClient is the upstream surface the handlers need.
type FxClient interface {
	FetchLatest(ctx context.Context, base models.CurrencyCode, symbols []models.CurrencyCode) (models.RateSnapshot, error)
	FetchSeries(ctx context.Context, base, symbol models.CurrencyCode, requestedRange, from, to string) (models.TimeSeries, error)
}

// HandlerConfig bundles the dependencies injected into the HTTP layer.
type HandlerConfig struct {
	Configuration *config.Config
	Logger        *logger.Logger
	Client        FxClient
	Controller    *refresh.Controller
	Directory     *currencies.Directory
	RateLimiter   *ratelimit.Limiter
}

// Handlers contains all HTTP handlers
type Handlers struct {
	configuration *config.Config
	logger        *logger.Logger
	client        FxClient
	controller    *refresh.Controller
	directory     *currencies.Directory
	rateLimiter   *ratelimit.Limiter
	startTime     time.Time

	// flightGroup collapses concurrent identical fetches from multiple
	// dashboard tabs into one upstream request.
	flightGroup singleflight.Group
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg HandlerConfig) *Handlers {
	return &Handlers{
		configuration: cfg.Configuration,
		logger:        cfg.Logger,
		client:        cfg.Client,
		controller:    cfg.Controller,
		directory:     cfg.Directory,
		rateLimiter:   cfg.RateLimiter,
		startTime:     time.Now(),
	}
}

var codePattern = regexp.MustCompile(`^[A-Za-z]{3,5}$`)

var registerValidatorsOnce sync.Once

// registerValidators installs the fxcode binding rule into gin's validator
// engine.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = engine.RegisterValidation("fxcode", func(fl validator.FieldLevel) bool {
				return codePattern.MatchString(fl.Field().String())
			})
		}
	})
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	router := gin.New()

	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(handlers.corsMiddleware())

	if handlers.rateLimiter != nil {
		router.Use(handlers.rateLimitMiddleware())
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/rates", handlers.GetLatest)
		apiV1.GET("/series", handlers.GetSeries)
		apiV1.GET("/series/geometry", handlers.GetSeriesGeometry)
		apiV1.GET("/currencies", handlers.GetCurrencies)

		apiV1.GET("/refresh", handlers.GetRefreshStatus)
		apiV1.PUT("/refresh/symbols", handlers.SetTrackedSymbols)
		apiV1.POST("/refresh/trigger", handlers.TriggerRefresh)
		apiV1.PUT("/refresh/auto", handlers.SetAutoRefresh)

		apiV1.GET("/stream", handlers.StreamRefresh)
	}

	return router
}

// HealthCheck handles health check requests
func (handlers *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthCheck{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(handlers.startTime).String(),
	})
}

type latestRequest struct {
	Base    string `form:"base" binding:"omitempty,fxcode"`
	Symbols string `form:"symbols" binding:"required"`
}

// GetLatest returns the latest snapshot for an explicit symbol list.
func (handlers *Handlers) GetLatest(c *gin.Context) {
	var request latestRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	base := handlers.resolveBase(request.Base)
	symbols, err := handlers.parseSymbols(request.Symbols)
	if err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid symbols", err.Error())
		return
	}

	flightKey := "latest:" + string(base) + ":" + joinSymbols(symbols)
	requestContext := c.Request.Context()
	result, fetchError, _ := handlers.flightGroup.Do(flightKey, func() (interface{}, error) {
		return handlers.client.FetchLatest(requestContext, base, symbols)
	})
	if fetchError != nil {
		handlers.writeUpstreamError(c, fetchError)
		return
	}

	c.JSON(http.StatusOK, result.(models.RateSnapshot))
}

type seriesRequest struct {
	Base   string `form:"base" binding:"omitempty,fxcode"`
	Symbol string `form:"symbol" binding:"required,fxcode"`
	Range  string `form:"range"`
}

// GetSeries returns the normalized historical series for one symbol over a
// symbolic range. Unknown range tokens are rejected here rather than silently
// defaulted.
func (handlers *Handlers) GetSeries(c *gin.Context) {
	series, ok := handlers.fetchSeries(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, series)
}

type geometryRequest struct {
	seriesRequest
	Width   float64 `form:"width" binding:"omitempty,gt=0"`
	Height  float64 `form:"height" binding:"omitempty,gt=0"`
	Padding float64 `form:"padding" binding:"omitempty,gte=0"`
}

// geometryResponse is the renderable chart payload for the dashboard.
type geometryResponse struct {
	Series       models.TimeSeries `json:"series"`
	Viewport     chart.Viewport    `json:"viewport"`
	AxisBounds   chart.AxisBounds  `json:"axis_bounds"`
	PathData     string            `json:"path_data"`
	AreaPathData string            `json:"area_path_data"`
	Markers      []chart.Marker    `json:"markers"`
	Insufficient bool              `json:"insufficient"`
}

// GetSeriesGeometry projects a historical series into viewport coordinates
// server-side, for hosts that render the precomputed path directly.
func (handlers *Handlers) GetSeriesGeometry(c *gin.Context) {
	var request geometryRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	series, ok := handlers.fetchSeries(c)
	if !ok {
		return
	}

	engine := chart.NewEngine()
	if request.Width > 0 && request.Height > 0 {
		engine.SetViewport(request.Width, request.Height)
	}
	if request.Padding > 0 {
		engine.SetPadding(request.Padding)
	}
	engine.SetPoints(series.Points)

	c.JSON(http.StatusOK, geometryResponse{
		Series:       series,
		Viewport:     engine.Viewport(),
		AxisBounds:   engine.AxisBounds(),
		PathData:     engine.PathData(),
		AreaPathData: engine.AreaPathData(),
		Markers:      engine.Markers(),
		Insufficient: engine.Insufficient(),
	})
}

// fetchSeries runs the shared resolve-fetch-normalize path for the series
// endpoints, writing the error response itself on failure.
func (handlers *Handlers) fetchSeries(c *gin.Context) (models.TimeSeries, bool) {
	var request seriesRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid query", err.Error())
		return models.TimeSeries{}, false
	}

	rangeToken := timerange.DefaultRange
	if request.Range != "" {
		parsed, err := timerange.Parse(request.Range)
		if err != nil {
			handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid range", err.Error())
			return models.TimeSeries{}, false
		}
		rangeToken = parsed
	}

	window, err := timerange.Resolve(rangeToken, time.Now())
	if err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid range", err.Error())
		return models.TimeSeries{}, false
	}

	base := handlers.resolveBase(request.Base)
	symbol := models.NormalizeCode(request.Symbol)

	flightKey := fmt.Sprintf("series:%s:%s:%s:%s", base, symbol, window.From, window.To)
	requestContext := c.Request.Context()
	result, fetchError, _ := handlers.flightGroup.Do(flightKey, func() (interface{}, error) {
		return handlers.client.FetchSeries(requestContext, base, symbol, string(rangeToken), window.From, window.To)
	})
	if fetchError != nil {
		handlers.writeUpstreamError(c, fetchError)
		return models.TimeSeries{}, false
	}

	return result.(models.TimeSeries), true
}

// GetCurrencies returns the injected read-only currency directory.
func (handlers *Handlers) GetCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"currencies": handlers.directory.All()})
}

// GetRefreshStatus returns the poll stream's current state, snapshot, and
// error indicator.
func (handlers *Handlers) GetRefreshStatus(c *gin.Context) {
	c.JSON(http.StatusOK, handlers.controller.Status())
}

type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// SetTrackedSymbols replaces the tracked symbol set. An empty list is valid
// and returns the stream to idle.
func (handlers *Handlers) SetTrackedSymbols(c *gin.Context) {
	var request symbolsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	symbols, err := handlers.parseSymbols(strings.Join(request.Symbols, ","))
	if err != nil && len(request.Symbols) > 0 {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid symbols", err.Error())
		return
	}

	handlers.controller.SetTrackedSymbols(symbols)
	c.JSON(http.StatusOK, handlers.controller.Status())
}

// TriggerRefresh starts a manual refresh, superseding any fetch in flight.
func (handlers *Handlers) TriggerRefresh(c *gin.Context) {
	if err := handlers.controller.TriggerRefresh(); err != nil {
		if errors.Is(err, refresh.ErrNoSymbols) {
			handlers.writeErrorResponse(c, http.StatusBadRequest, "nothing to refresh", err.Error())
			return
		}
		handlers.writeErrorResponse(c, http.StatusServiceUnavailable, "refresh unavailable", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, handlers.controller.Status())
}

type autoRefreshRequest struct {
	Enabled         bool    `json:"enabled"`
	IntervalSeconds float64 `json:"interval_seconds" binding:"omitempty,gt=0"`
}

// SetAutoRefresh enables or disables the recurring poll. The interval is
// clamped to the configured minimum inside the controller.
func (handlers *Handlers) SetAutoRefresh(c *gin.Context) {
	var request autoRefreshRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handlers.writeErrorResponse(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	handlers.controller.SetAutoRefresh(request.Enabled, time.Duration(request.IntervalSeconds*float64(time.Second)))
	c.JSON(http.StatusOK, handlers.controller.Status())
}

// resolveBase falls back to the configured base currency.
func (handlers *Handlers) resolveBase(raw string) models.CurrencyCode {
	if raw == "" {
		return models.NormalizeCode(handlers.configuration.BaseCurrency)
	}
	return models.NormalizeCode(raw)
}

// parseSymbols normalizes a comma-joined symbol list: uppercase, deduplicate,
// validate shape against the directory, and enforce the tracked-symbol cap.
func (handlers *Handlers) parseSymbols(raw string) ([]models.CurrencyCode, error) {
	parts := strings.Split(raw, ",")
	symbols := lo.Uniq(lo.FilterMap(parts, func(part string, _ int) (models.CurrencyCode, bool) {
		code := models.NormalizeCode(part)
		return code, code != ""
	}))

	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	if max := handlers.configuration.MaxTrackedSymbols; max > 0 && len(symbols) > max {
		return nil, fmt.Errorf("at most %d symbols may be tracked", max)
	}
	for _, symbol := range symbols {
		if !codePattern.MatchString(string(symbol)) {
			return nil, fmt.Errorf("malformed currency code %q", symbol)
		}
		if handlers.directory != nil && !handlers.directory.Known(symbol) {
			return nil, fmt.Errorf("unknown currency code %q", symbol)
		}
	}
	return symbols, nil
}

// writeUpstreamError maps provider failures onto boundary responses. A
// cancelled request gets no error body; the client has already gone away.
func (handlers *Handlers) writeUpstreamError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.Abort()
		return
	}
	var upstreamError *fx.UpstreamError
	if errors.As(err, &upstreamError) {
		handlers.writeErrorResponse(c, http.StatusBadGateway, "upstream request failed", upstreamError.Error())
		return
	}
	handlers.writeErrorResponse(c, http.StatusBadGateway, "failed to fetch rates", err.Error())
}

// writeErrorResponse writes an error response using Gin context
func (handlers *Handlers) writeErrorResponse(c *gin.Context, statusCode int, errorMessage, errorDetails string) {
	c.JSON(statusCode, models.ErrorResponse{
		Error:   errorMessage,
		Message: errorDetails,
		Code:    statusCode,
	})
}

// corsMiddleware adds CORS headers using Gin middleware
func (handlers *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// rateLimitMiddleware provides rate limiting using Gin middleware
func (handlers *Handlers) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := handlers.rateLimiter.GetClientIP(c.Request)

		if !handlers.rateLimiter.Allow(clientIP) {
			handlers.logger.Warnf("Rate limit exceeded for IP: %s", clientIP)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func joinSymbols(symbols []models.CurrencyCode) string {
	parts := make([]string, len(symbols))
	for i, symbol := range symbols {
		parts[i] = string(symbol)
	}
	return strings.Join(parts, ",")
}
