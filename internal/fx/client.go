// Package fx talks to the upstream exchange-rate provider and normalizes its
// responses into the dashboard's canonical snapshot and series shapes.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LouisHart1808/Plutus/internal/config"
	"github.com/LouisHart1808/Plutus/internal/logger"
	"github.com/LouisHart1808/Plutus/internal/metrics"
	"github.com/LouisHart1808/Plutus/internal/models"
)

// UpstreamError is a non-success response from the provider, carrying the
// status code and reason text. Cancelled requests are never wrapped into one.
type UpstreamError struct {
	Status int
	Reason string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Reason)
}

// Client issues the two upstream queries: latest snapshot and historical
// window. It performs exactly one request per call and never retries; retry
// policy belongs to the refresh controller.
type Client struct {
	baseURL    string
	logger     *logger.Logger
	httpClient *http.Client
}

// NewClient creates a provider client from the configured base URL and
// timeout.
func NewClient(configuration *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(configuration.UpstreamBaseURL, "/"),
		logger:  log,
		httpClient: &http.Client{
			Timeout: configuration.UpstreamTimeout,
		},
	}
}

// latestResponse is the provider's latest-rates JSON shape.
type latestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// seriesResponse is the provider's historical-window JSON shape: a per-date
// map of symbol to rate.
type seriesResponse struct {
	Amount    float64                       `json:"amount"`
	Base      string                        `json:"base"`
	StartDate string                        `json:"start_date"`
	EndDate   string                        `json:"end_date"`
	Rates     map[string]map[string]float64 `json:"rates"`
}

// FetchLatest fetches the latest snapshot for base against symbols.
func (client *Client) FetchLatest(ctx context.Context, base models.CurrencyCode, symbols []models.CurrencyCode) (models.RateSnapshot, error) {
	requestURL := fmt.Sprintf("%s/latest?from=%s&to=%s",
		client.baseURL, url.QueryEscape(string(base)), url.QueryEscape(joinCodes(symbols)))

	body, err := client.get(ctx, requestURL, "latest")
	if err != nil {
		return models.RateSnapshot{}, err
	}

	var raw latestResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.RateSnapshot{}, fmt.Errorf("failed to parse latest response: %w", err)
	}

	return normalizeLatest(raw, base, symbols), nil
}

// FetchSeries fetches the historical window for a single symbol against base.
// The window is inclusive and ISO formatted (YYYY-MM-DD).
func (client *Client) FetchSeries(ctx context.Context, base, symbol models.CurrencyCode, requestedRange, from, to string) (models.TimeSeries, error) {
	requestURL := fmt.Sprintf("%s/%s..%s?from=%s&to=%s",
		client.baseURL, from, to, url.QueryEscape(string(base)), url.QueryEscape(string(symbol)))

	body, err := client.get(ctx, requestURL, "series")
	if err != nil {
		return models.TimeSeries{}, err
	}

	var raw seriesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.TimeSeries{}, fmt.Errorf("failed to parse series response: %w", err)
	}

	return normalizeSeries(raw, symbol, base, requestedRange, from, to), nil
}

// get performs a single GET and returns the body, mapping non-2xx statuses to
// UpstreamError. Context cancellation propagates as the context's own error so
// callers can tell an aborted call from a failed one.
func (client *Client) get(ctx context.Context, requestURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	started := time.Now()
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = resp.Status
		}
		client.logger.Warnf("Upstream %s request failed with status %d", endpoint, resp.StatusCode)
		return nil, &UpstreamError{Status: resp.StatusCode, Reason: reason}
	}

	return body, nil
}

func joinCodes(codes []models.CurrencyCode) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = string(code)
	}
	return strings.Join(parts, ",")
}
