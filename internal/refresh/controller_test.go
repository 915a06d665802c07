package refresh

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/LouisHart1808/Plutus/internal/models"
	"github.com/LouisHart1808/Plutus/internal/testutils"
)

type fetchOutcome struct {
	snapshot models.RateSnapshot
	err      error
}

// invocation is one in-flight scripted fetch. It blocks until the test
// releases it, regardless of context cancellation, so tests can deliver late
// results after a fetch has been superseded.
type invocation struct {
	ctx     context.Context
	symbols []models.CurrencyCode
	proceed chan fetchOutcome
}

func (inv *invocation) release(outcome fetchOutcome) {
	inv.proceed <- outcome
}

// scriptedFetcher records every fetch and lets tests control completion order.
type scriptedFetcher struct {
	mu          sync.Mutex
	invocations []*invocation
}

func (f *scriptedFetcher) FetchLatest(ctx context.Context, base models.CurrencyCode, symbols []models.CurrencyCode) (models.RateSnapshot, error) {
	inv := &invocation{
		ctx:     ctx,
		symbols: append([]models.CurrencyCode(nil), symbols...),
		proceed: make(chan fetchOutcome, 1),
	}
	f.mu.Lock()
	f.invocations = append(f.invocations, inv)
	f.mu.Unlock()

	outcome := <-inv.proceed
	return outcome.snapshot, outcome.err
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invocations)
}

func (f *scriptedFetcher) waitInvocation(t *testing.T, n int) *invocation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.invocations) >= n {
			inv := f.invocations[n-1]
			f.mu.Unlock()
			return inv
		}
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("fetch invocation %d never started", n)
	return nil
}

func waitState(t *testing.T, controller *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if controller.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("controller state = %v, want %v", controller.State(), want)
}

func waitErr(t *testing.T, controller *Controller, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if controller.Err() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("controller error = %q, want %q", controller.Err(), want)
}

func newTestController(fetcher Fetcher) *Controller {
	return NewController(fetcher, testutils.MockLogger(), "SGD", time.Minute, 15*time.Second)
}

func snapshotFor(rates map[models.CurrencyCode]float64) models.RateSnapshot {
	symbols := make([]models.CurrencyCode, 0, len(rates))
	for code := range rates {
		symbols = append(symbols, code)
	}
	return models.RateSnapshot{
		Base:         "SGD",
		AsOf:         time.Now(),
		ProviderDate: "2024-03-15",
		Symbols:      symbols,
		Rates:        rates,
	}
}

func TestController_FirstFetchSucceeds(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	if controller.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", controller.State())
	}

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	if controller.State() != StateSyncing {
		t.Errorf("state during first fetch = %v, want syncing", controller.State())
	}

	inv := fetcher.waitInvocation(t, 1)
	inv.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74})})

	waitState(t, controller, StateLoaded)
	snapshot, ok := controller.Snapshot()
	if !ok {
		t.Fatal("Snapshot() missing after successful fetch")
	}
	if snapshot.Rates["USD"] != 0.74 {
		t.Errorf("snapshot USD rate = %v, want 0.74", snapshot.Rates["USD"])
	}
	if controller.Err() != "" {
		t.Errorf("Err() = %q, want empty", controller.Err())
	}
}

func TestController_FirstFetchFails(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	fetcher.waitInvocation(t, 1).release(fetchOutcome{err: errors.New("upstream returned status 503: unavailable")})

	waitState(t, controller, StateDegraded)
	if _, ok := controller.Snapshot(); ok {
		t.Error("Snapshot() present after first-fetch failure with no prior data")
	}
	if controller.Err() == "" {
		t.Error("Err() empty after failure")
	}
}

func TestController_FailurePreservesLastGoodSnapshot(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	good := snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74})
	fetcher.waitInvocation(t, 1).release(fetchOutcome{snapshot: good})
	waitState(t, controller, StateLoaded)

	// Two manual refreshes in a row fail; the snapshot must survive both
	// byte-for-byte while the error message tracks the latest failure.
	for attempt, reason := range []string{"first failure", "second failure"} {
		if err := controller.TriggerRefresh(); err != nil {
			t.Fatalf("TriggerRefresh() error = %v", err)
		}
		fetcher.waitInvocation(t, attempt+2).release(fetchOutcome{err: errors.New(reason)})
		waitState(t, controller, StateDegraded)
		// waitState alone cannot synchronize the second iteration: the state
		// is already degraded, so wait for the new error to land too.
		waitErr(t, controller, reason)

		snapshot, ok := controller.Snapshot()
		if !ok {
			t.Fatal("Snapshot() lost after failed refresh")
		}
		if !reflect.DeepEqual(snapshot.Rates, good.Rates) {
			t.Errorf("snapshot rates mutated by failed refresh: %+v", snapshot.Rates)
		}
		if controller.Err() != reason {
			t.Errorf("Err() = %q, want %q", controller.Err(), reason)
		}
	}
}

func TestController_RecoveryClearsError(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	fetcher.waitInvocation(t, 1).release(fetchOutcome{err: errors.New("boom")})
	waitState(t, controller, StateDegraded)

	if err := controller.TriggerRefresh(); err != nil {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	fetcher.waitInvocation(t, 2).release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.75})})

	waitState(t, controller, StateLoaded)
	if controller.Err() != "" {
		t.Errorf("Err() = %q after recovery, want empty", controller.Err())
	}
}

func TestController_SupersededFetchNeverMutatesState(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	first := fetcher.waitInvocation(t, 1)

	// Manual refresh supersedes the in-flight fetch.
	if err := controller.TriggerRefresh(); err != nil {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	if first.ctx.Err() == nil {
		t.Error("superseded fetch context not cancelled")
	}

	second := fetcher.waitInvocation(t, 2)
	winner := snapshotFor(map[models.CurrencyCode]float64{"USD": 0.75})
	second.release(fetchOutcome{snapshot: winner})
	waitState(t, controller, StateLoaded)

	// The first fetch's result arrives after the second completed; it must
	// be discarded no matter what it carries.
	first.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.01})})
	time.Sleep(20 * time.Millisecond)

	snapshot, ok := controller.Snapshot()
	if !ok {
		t.Fatal("Snapshot() missing")
	}
	if snapshot.Rates["USD"] != 0.75 {
		t.Errorf("late superseded result overwrote state: USD = %v, want 0.75", snapshot.Rates["USD"])
	}
	if controller.State() != StateLoaded {
		t.Errorf("state = %v, want loaded", controller.State())
	}
}

func TestController_SupersededFailureRaisesNoError(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	first := fetcher.waitInvocation(t, 1)

	if err := controller.TriggerRefresh(); err != nil {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	second := fetcher.waitInvocation(t, 2)
	second.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.75})})
	waitState(t, controller, StateLoaded)

	// The cancelled fetch eventually reports its context error. No state
	// transition, no user-visible error.
	first.release(fetchOutcome{err: first.ctx.Err()})
	time.Sleep(20 * time.Millisecond)

	if controller.State() != StateLoaded {
		t.Errorf("state = %v after cancelled fetch resolved, want loaded", controller.State())
	}
	if controller.Err() != "" {
		t.Errorf("Err() = %q after cancelled fetch resolved, want empty", controller.Err())
	}
}

func TestController_EmptySymbolSetGoesIdle(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	first := fetcher.waitInvocation(t, 1)
	first.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74})})
	waitState(t, controller, StateLoaded)

	controller.SetTrackedSymbols(nil)
	if controller.State() != StateIdle {
		t.Errorf("state = %v after clearing symbols, want idle", controller.State())
	}
	if _, ok := controller.Snapshot(); ok {
		t.Error("Snapshot() still present after going idle")
	}
}

func TestController_SymbolChangeCancelsAndRefetches(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	first := fetcher.waitInvocation(t, 1)

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD", "eur"})
	if first.ctx.Err() == nil {
		t.Error("in-flight fetch not cancelled by symbol change")
	}

	second := fetcher.waitInvocation(t, 2)
	want := []models.CurrencyCode{"USD", "EUR"}
	if !reflect.DeepEqual(second.symbols, want) {
		t.Errorf("refetch symbols = %v, want %v", second.symbols, want)
	}

	// Unblock both scripted fetches so the controller can close cleanly.
	first.release(fetchOutcome{err: context.Canceled})
	second.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74, "EUR": 0.68})})
}

func TestController_TriggerWithoutSymbols(t *testing.T) {
	controller := newTestController(&scriptedFetcher{})
	defer controller.Close()

	if err := controller.TriggerRefresh(); !errors.Is(err, ErrNoSymbols) {
		t.Errorf("TriggerRefresh() error = %v, want ErrNoSymbols", err)
	}
}

func TestController_AutoRefreshTicks(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := NewController(fetcher, testutils.MockLogger(), "SGD", 20*time.Millisecond, 10*time.Millisecond)
	defer controller.Close()

	controller.SetAutoRefresh(true, 20*time.Millisecond)
	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})

	// Immediate fetch from the symbol change, then at least one tick.
	first := fetcher.waitInvocation(t, 1)
	first.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74})})

	second := fetcher.waitInvocation(t, 2)
	second.release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.75})})
	waitState(t, controller, StateLoaded)

	// Disabling stops the cadence.
	controller.SetAutoRefresh(false, 0)
	count := fetcher.count()
	time.Sleep(60 * time.Millisecond)
	if fetcher.count() > count {
		t.Errorf("fetches continued after auto-refresh disabled: %d -> %d", count, fetcher.count())
	}
}

func TestController_IntervalClampedToMinimum(t *testing.T) {
	controller := NewController(&scriptedFetcher{}, testutils.MockLogger(), "SGD", time.Minute, 15*time.Second)
	defer controller.Close()

	controller.SetAutoRefresh(true, time.Second)
	status := controller.Status()
	if status.IntervalSeconds != 15 {
		t.Errorf("interval = %vs, want clamped to 15s", status.IntervalSeconds)
	}
}

func TestController_SnapshotIsACopy(t *testing.T) {
	fetcher := &scriptedFetcher{}
	controller := newTestController(fetcher)
	defer controller.Close()

	controller.SetTrackedSymbols([]models.CurrencyCode{"USD"})
	fetcher.waitInvocation(t, 1).release(fetchOutcome{snapshot: snapshotFor(map[models.CurrencyCode]float64{"USD": 0.74})})
	waitState(t, controller, StateLoaded)

	snapshot, _ := controller.Snapshot()
	snapshot.Rates["USD"] = 999

	fresh, _ := controller.Snapshot()
	if fresh.Rates["USD"] != 0.74 {
		t.Errorf("caller mutation leaked into controller snapshot: %v", fresh.Rates["USD"])
	}
}
