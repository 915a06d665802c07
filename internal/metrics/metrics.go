package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RefreshFetches counts poll outcomes by result (success, failure,
	// cancelled).
	RefreshFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plutus",
			Subsystem: "refresh",
			Name:      "fetches_total",
			Help:      "Refresh fetch outcomes by result",
		},
		[]string{"result"},
	)

	// RefreshState exposes the controller state machine (0 idle, 1 syncing,
	// 2 loaded, 3 degraded).
	RefreshState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plutus",
			Subsystem: "refresh",
			Name:      "state",
			Help:      "Current refresh controller state code",
		},
	)

	// UpstreamLatency tracks provider round-trip time per endpoint.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plutus",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream provider requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(RefreshFetches, RefreshState, UpstreamLatency)
	})
}
