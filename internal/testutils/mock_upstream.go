package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// LatestPayload is the upstream latest-rates JSON shape served by the mock.
type LatestPayload struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// SeriesPayload is the upstream historical-window JSON shape served by the
// mock.
type SeriesPayload struct {
	Amount    float64                       `json:"amount"`
	Base      string                        `json:"base"`
	StartDate string                        `json:"start_date"`
	EndDate   string                        `json:"end_date"`
	Rates     map[string]map[string]float64 `json:"rates"`
}

// MockUpstream is a fake rate provider speaking the real provider's wire
// format: /latest for snapshots and /{from}..{to} for historical windows.
type MockUpstream struct {
	Server *httptest.Server

	mu         sync.Mutex
	latest     LatestPayload
	series     SeriesPayload
	failStatus int
	failBody   string
	requests   int
}

// NewMockUpstream starts a mock provider with sensible default payloads.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		latest: LatestPayload{
			Amount: 1,
			Base:   "SGD",
			Date:   "2024-03-15",
			Rates: map[string]float64{
				"USD": 0.74,
				"EUR": 0.68,
				"JPY": 110.5,
			},
		},
		series: SeriesPayload{
			Amount:    1,
			Base:      "SGD",
			StartDate: "2024-02-15",
			EndDate:   "2024-03-15",
			Rates: map[string]map[string]float64{
				"2024-02-15": {"USD": 0.741},
				"2024-03-01": {"USD": 0.738},
				"2024-03-15": {"USD": 0.743},
			},
		},
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handler))
	return mock
}

// URL returns the mock provider's base URL.
func (m *MockUpstream) URL() string {
	return m.Server.URL
}

// Close shuts the mock server down.
func (m *MockUpstream) Close() {
	m.Server.Close()
}

// SetLatest replaces the latest-rates payload.
func (m *MockUpstream) SetLatest(payload LatestPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = payload
}

// SetSeries replaces the historical-window payload.
func (m *MockUpstream) SetSeries(payload SeriesPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = payload
}

// FailWith makes every subsequent request return the given status and body.
func (m *MockUpstream) FailWith(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus = status
	m.failBody = body
}

// Recover clears a previously configured failure.
func (m *MockUpstream) Recover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus = 0
	m.failBody = ""
}

// Requests reports how many requests the mock has served.
func (m *MockUpstream) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests++
	failStatus, failBody := m.failStatus, m.failBody
	latest, series := m.latest, m.series
	m.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, failBody, failStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/latest") {
		_ = json.NewEncoder(w).Encode(latest)
		return
	}
	if strings.Contains(r.URL.Path, "..") {
		_ = json.NewEncoder(w).Encode(series)
		return
	}
	http.NotFound(w, r)
}
