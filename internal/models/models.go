package models

import (
	"strings"
	"time"
)

// CurrencyCode is a 3-5 letter uppercase currency identifier (ISO 4217 plus a
// few provider extensions).
type CurrencyCode string

// NormalizeCode uppercases and trims a raw currency code. Codes are always
// normalized before comparison, storage, or transmission.
func NormalizeCode(raw string) CurrencyCode {
	return CurrencyCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// RateSnapshot is one fetched, normalized set of latest rates against a base
// currency. A snapshot is immutable once constructed; a later successful poll
// replaces it wholesale rather than mutating it.
type RateSnapshot struct {
	Base         CurrencyCode             `json:"base"`
	AsOf         time.Time                `json:"as_of"`
	ProviderDate string                   `json:"provider_date"`
	Symbols      []CurrencyCode           `json:"symbols"`
	Rates        map[CurrencyCode]float64 `json:"rates"`
}

// Clone returns a deep copy so callers outside the refresh loop never share
// the controller's maps.
func (s RateSnapshot) Clone() RateSnapshot {
	copied := s
	copied.Symbols = append([]CurrencyCode(nil), s.Symbols...)
	copied.Rates = make(map[CurrencyCode]float64, len(s.Rates))
	for code, rate := range s.Rates {
		copied.Rates[code] = rate
	}
	return copied
}

// TimeSeriesPoint is a single dated observation. V is always finite and > 0;
// values failing that are dropped during normalization, never stored.
type TimeSeriesPoint struct {
	T string  `json:"t"`
	V float64 `json:"v"`
}

// TimeSeries is a normalized historical rate sequence for one symbol against
// one base, sorted ascending by date with duplicate dates collapsed.
type TimeSeries struct {
	Base           CurrencyCode      `json:"base"`
	Symbol         CurrencyCode      `json:"symbol"`
	AsOf           time.Time         `json:"as_of"`
	RequestedRange string            `json:"requested_range"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Points         []TimeSeriesPoint `json:"points"`
}

// HealthCheck represents the health check response
type HealthCheck struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
