package fx

import (
	"math"
	"sort"
	"time"

	"github.com/LouisHart1808/Plutus/internal/models"
)

// normalizeLatest converts a raw latest-rates response into a canonical
// snapshot. Currency codes are uppercased on the way in; rates that are
// non-finite or non-positive are provider corruption and dropped. AsOf marks
// when this client observed the data, while ProviderDate carries the
// provider's reported quote date.
func normalizeLatest(raw latestResponse, requestedBase models.CurrencyCode, requestedSymbols []models.CurrencyCode) models.RateSnapshot {
	base := models.NormalizeCode(raw.Base)
	if base == "" {
		base = models.NormalizeCode(string(requestedBase))
	}

	rates := make(map[models.CurrencyCode]float64, len(raw.Rates))
	for code, value := range raw.Rates {
		if !validRate(value) {
			continue
		}
		rates[models.NormalizeCode(code)] = value
	}

	// Symbols keep the requested order, restricted to what the provider
	// actually returned.
	symbols := make([]models.CurrencyCode, 0, len(requestedSymbols))
	for _, symbol := range requestedSymbols {
		normalized := models.NormalizeCode(string(symbol))
		if _, ok := rates[normalized]; ok {
			symbols = append(symbols, normalized)
		}
	}

	return models.RateSnapshot{
		Base:         base,
		AsOf:         time.Now(),
		ProviderDate: raw.Date,
		Symbols:      symbols,
		Rates:        rates,
	}
}

// normalizeSeries converts a raw historical-window response into a canonical
// time series: one point per date carrying the requested symbol's rate,
// sorted ascending by date. Dates whose value is missing, non-finite, or
// non-positive yield no point at all, never a placeholder. Duplicate dates
// collapse to the last occurrence seen.
func normalizeSeries(raw seriesResponse, requestedSymbol, requestedBase models.CurrencyCode, requestedRange, from, to string) models.TimeSeries {
	symbol := models.NormalizeCode(string(requestedSymbol))

	byDate := make(map[string]float64, len(raw.Rates))
	for date, symbolRates := range raw.Rates {
		value, ok := lookupSymbol(symbolRates, symbol)
		if !ok || !validRate(value) {
			continue
		}
		byDate[date] = value
	}

	points := make([]models.TimeSeriesPoint, 0, len(byDate))
	for date, value := range byDate {
		points = append(points, models.TimeSeriesPoint{T: date, V: value})
	}
	// Lexicographic ISO-date ordering is date ordering.
	sort.Slice(points, func(i, j int) bool { return points[i].T < points[j].T })

	base := models.NormalizeCode(raw.Base)
	if base == "" {
		base = models.NormalizeCode(string(requestedBase))
	}

	return models.TimeSeries{
		Base:           base,
		Symbol:         symbol,
		AsOf:           time.Now(),
		RequestedRange: requestedRange,
		From:           from,
		To:             to,
		Points:         points,
	}
}

// lookupSymbol finds the requested symbol in a per-date rate map regardless
// of the provider's key casing.
func lookupSymbol(symbolRates map[string]float64, symbol models.CurrencyCode) (float64, bool) {
	if value, ok := symbolRates[string(symbol)]; ok {
		return value, true
	}
	for code, value := range symbolRates {
		if models.NormalizeCode(code) == symbol {
			return value, true
		}
	}
	return 0, false
}

// validRate reports whether a provider value is a usable FX rate. Rates are
// never zero or negative; anything else is treated as corruption.
func validRate(value float64) bool {
	return value > 0 && !math.IsInf(value, 0) && !math.IsNaN(value)
}
