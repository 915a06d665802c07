// Package refresh owns the polling loop that keeps the dashboard's latest
// rates current: it schedules recurring fetches, cancels superseded in-flight
// requests, and preserves the last good snapshot across failures.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LouisHart1808/Plutus/internal/logger"
	"github.com/LouisHart1808/Plutus/internal/metrics"
	"github.com/LouisHart1808/Plutus/internal/models"
)

// State is the synchronization status of one poll stream.
type State int

const (
	// StateIdle means no symbols are tracked yet.
	StateIdle State = iota
	// StateSyncing means a fetch is in flight with no prior data to show.
	StateSyncing
	// StateLoaded means the most recent fetch succeeded.
	StateLoaded
	// StateDegraded means the most recent fetch failed; any prior snapshot
	// is retained and continues to be served.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateLoaded:
		return "loaded"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ErrNoSymbols is returned by TriggerRefresh when nothing is tracked.
var ErrNoSymbols = errors.New("no tracked symbols")

// Fetcher is the single upstream call the controller drives.
type Fetcher interface {
	FetchLatest(ctx context.Context, base models.CurrencyCode, symbols []models.CurrencyCode) (models.RateSnapshot, error)
}

// Status is a read-only view of the poll stream for the boundary layer.
type Status struct {
	State           string                `json:"state"`
	Symbols         []models.CurrencyCode `json:"symbols"`
	Snapshot        *models.RateSnapshot  `json:"snapshot,omitempty"`
	Error           string                `json:"error,omitempty"`
	StaleSeconds    float64               `json:"stale_seconds,omitempty"`
	AutoRefresh     bool                  `json:"auto_refresh"`
	IntervalSeconds float64               `json:"interval_seconds"`
}

// Controller is the state machine for one logical poll stream. At most one
// fetch is in flight at a time: starting a new fetch cancels and fences out
// any predecessor, so a superseded fetch can never mutate state no matter
// when its response arrives.
type Controller struct {
	fetcher     Fetcher
	logger      *logger.Logger
	base        models.CurrencyCode
	minInterval time.Duration

	mu          sync.Mutex
	symbols     []models.CurrencyCode
	state       State
	snapshot    *models.RateSnapshot
	lastError   string
	lastSuccess time.Time

	// generation fences completion callbacks: it increments every time a
	// new fetch supersedes a prior one, and a completion only applies if
	// its generation still matches.
	generation     uint64
	cancelInFlight context.CancelFunc

	autoEnabled bool
	interval    time.Duration
	timer       *time.Timer
	closed      bool
}

// NewController creates a stopped controller for the given base currency.
// minInterval bounds auto-refresh cadence from below.
func NewController(fetcher Fetcher, log *logger.Logger, base models.CurrencyCode, interval, minInterval time.Duration) *Controller {
	if interval < minInterval {
		interval = minInterval
	}
	return &Controller{
		fetcher:     fetcher,
		logger:      log,
		base:        models.NormalizeCode(string(base)),
		minInterval: minInterval,
		state:       StateIdle,
		interval:    interval,
	}
}

// State returns the current synchronization state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current snapshot, possibly stale, and
// whether one exists.
func (c *Controller) Snapshot() (models.RateSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return models.RateSnapshot{}, false
	}
	return c.snapshot.Clone(), true
}

// Err returns the most recent fetch failure message, empty when healthy.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// LastSuccess returns when the last successful poll completed.
func (c *Controller) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// Status assembles the boundary view of the stream.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:           c.state.String(),
		Symbols:         append([]models.CurrencyCode(nil), c.symbols...),
		Error:           c.lastError,
		AutoRefresh:     c.autoEnabled,
		IntervalSeconds: c.interval.Seconds(),
	}
	if c.snapshot != nil {
		snapshot := c.snapshot.Clone()
		status.Snapshot = &snapshot
	}
	if !c.lastSuccess.IsZero() {
		status.StaleSeconds = time.Since(c.lastSuccess).Seconds()
	}
	return status
}

// SetTrackedSymbols replaces the tracked symbol set. A non-empty set triggers
// an immediate fetch and restarts the auto-refresh cadence from now; an empty
// set cancels any in-flight fetch and returns the stream to idle.
func (c *Controller) SetTrackedSymbols(codes []models.CurrencyCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	normalized := make([]models.CurrencyCode, 0, len(codes))
	for _, code := range codes {
		if code = models.NormalizeCode(string(code)); code != "" {
			normalized = append(normalized, code)
		}
	}
	c.symbols = normalized

	if len(c.symbols) == 0 {
		c.supersedeLocked()
		c.snapshot = nil
		c.lastError = ""
		c.setStateLocked(StateIdle)
		c.scheduleLocked()
		return
	}

	c.startFetchLocked()
	c.scheduleLocked()
}

// TriggerRefresh starts a fresh fetch immediately, cancelling any fetch
// already in flight. It does not queue.
func (c *Controller) TriggerRefresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("controller closed")
	}
	if len(c.symbols) == 0 {
		return ErrNoSymbols
	}
	c.startFetchLocked()
	return nil
}

// SetAutoRefresh enables or disables the recurring poll. Enabling resets the
// cadence to count from now with the given interval, clamped to the
// configured minimum. Disabling stops future ticks but does not cancel an
// in-flight fetch.
func (c *Controller) SetAutoRefresh(enabled bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.autoEnabled = enabled
	if interval > 0 {
		if interval < c.minInterval {
			interval = c.minInterval
		}
		c.interval = interval
	}
	c.scheduleLocked()
}

// Close cancels any in-flight fetch and stops the timer. The controller
// cannot be restarted.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.supersedeLocked()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// supersedeLocked fences out the current in-flight fetch, if any. Its
// eventual completion sees a stale generation and is discarded.
func (c *Controller) supersedeLocked() {
	c.generation++
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
}

// startFetchLocked begins a new single-flight fetch for the current symbol
// set. Any prior fetch is cancelled first; last-writer-wins is enforced by
// the generation fence, not by response arrival order.
func (c *Controller) startFetchLocked() {
	c.supersedeLocked()

	generation := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelInFlight = cancel

	if c.snapshot == nil {
		c.setStateLocked(StateSyncing)
	}

	base := c.base
	symbols := append([]models.CurrencyCode(nil), c.symbols...)

	go func() {
		snapshot, err := c.fetcher.FetchLatest(ctx, base, symbols)
		c.complete(generation, ctx, snapshot, err)
	}()
}

// complete applies a fetch outcome if and only if it is still the winning
// fetch. Cancelled or superseded fetches never transition state and never
// surface an error.
func (c *Controller) complete(generation uint64, ctx context.Context, snapshot models.RateSnapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || generation != c.generation || ctx.Err() != nil {
		metrics.RefreshFetches.WithLabelValues("cancelled").Inc()
		return
	}
	c.cancelInFlight = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			metrics.RefreshFetches.WithLabelValues("cancelled").Inc()
			return
		}
		// Last good snapshot is retained; only the error indicator moves.
		c.lastError = err.Error()
		c.setStateLocked(StateDegraded)
		metrics.RefreshFetches.WithLabelValues("failure").Inc()
		c.logger.Warnf("Refresh fetch failed: %v", err)
		return
	}

	c.snapshot = &snapshot
	c.lastError = ""
	c.lastSuccess = time.Now()
	c.setStateLocked(StateLoaded)
	metrics.RefreshFetches.WithLabelValues("success").Inc()
	c.logger.Debugf("Refresh fetch succeeded for %d symbols", len(snapshot.Symbols))
}

// scheduleLocked arms the next auto-refresh tick, replacing any pending one.
func (c *Controller) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed || !c.autoEnabled || len(c.symbols) == 0 {
		return
	}
	c.timer = time.AfterFunc(c.interval, c.tick)
}

func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.autoEnabled || len(c.symbols) == 0 {
		return
	}
	c.startFetchLocked()
	c.scheduleLocked()
}

func (c *Controller) setStateLocked(state State) {
	c.state = state
	metrics.RefreshState.Set(float64(state))
}
