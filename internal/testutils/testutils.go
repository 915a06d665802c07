package testutils

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LouisHart1808/Plutus/internal/config"
	"github.com/LouisHart1808/Plutus/internal/logger"
	"github.com/LouisHart1808/Plutus/internal/models"
)

// MockLogger creates a quiet logger for testing
func MockLogger() *logger.Logger {
	log := logger.New("error")
	log.SetLevel(logrus.PanicLevel)
	return log
}

// MockConfig creates a mock configuration for testing
func MockConfig() *config.Config {
	return &config.Config{
		Port:     "8080",
		LogLevel: "error",

		UpstreamBaseURL: "https://api.test.invalid/v1",
		UpstreamTimeout: 5 * time.Second,

		BaseCurrency:       "SGD",
		DefaultSymbols:     []string{"USD", "EUR", "JPY"},
		AutoRefreshEnabled: false,
		RefreshInterval:    60 * time.Second,
		MinRefreshInterval: 15 * time.Second,
		MaxTrackedSymbols:  10,

		RateLimitEnabled:  false,
		RateLimitRequests: 100,
		RateLimitWindow:   60 * time.Second,
		RateLimitBurst:    10,
	}
}

// MockSnapshot creates a mock rate snapshot for testing
func MockSnapshot() models.RateSnapshot {
	return models.RateSnapshot{
		Base:         "SGD",
		AsOf:         time.Now(),
		ProviderDate: "2024-03-15",
		Symbols:      []models.CurrencyCode{"USD", "EUR", "JPY"},
		Rates: map[models.CurrencyCode]float64{
			"USD": 0.74,
			"EUR": 0.68,
			"JPY": 110.5,
		},
	}
}

// MockSeries creates a mock normalized series for testing
func MockSeries() models.TimeSeries {
	return models.TimeSeries{
		Base:           "SGD",
		Symbol:         "USD",
		AsOf:           time.Now(),
		RequestedRange: "1M",
		From:           "2024-02-15",
		To:             "2024-03-15",
		Points: []models.TimeSeriesPoint{
			{T: "2024-02-15", V: 0.741},
			{T: "2024-02-22", V: 0.744},
			{T: "2024-03-01", V: 0.738},
			{T: "2024-03-08", V: 0.746},
			{T: "2024-03-15", V: 0.743},
		},
	}
}
