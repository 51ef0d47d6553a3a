// Package metrics exposes the engine's Prometheus metric families,
// trimmed from the teacher's much larger perp-dex collector down to the
// families this engine can actually populate: queue depth, batch
// dispatch, insertion-hint latency, the pending set, and reconciler lag.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is a process-wide singleton, constructed once via
// GetCollector, matching the teacher's own singleton pattern.
type Collector struct {
	QueueDepth     prometheus.Gauge
	BatchSize      prometheus.Histogram
	BatchesTotal   prometheus.Counter
	BatchFailures  prometheus.Counter
	InsertLatency  prometheus.Histogram
	PendingSetSize prometheus.Gauge
	PendingExpired prometheus.Counter
	ReconcilerLag  prometheus.Gauge
	EventsTotal    *prometheus.CounterVec
	TradesTotal    prometheus.Counter
}

var (
	once      sync.Once
	collector *Collector
)

// GetCollector returns the process-wide Collector, constructing and
// registering its metrics on first use.
func GetCollector() *Collector {
	once.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	return &Collector{
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "sequencer",
			Name:      "queue_depth",
			Help:      "Number of requests currently mirrored from the on-chain Sequencer queue.",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "dispatch",
			Name:      "batch_size",
			Help:      "Number of requests processed per dispatch tick.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Total batch transactions submitted.",
		}),
		BatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "dispatch",
			Name:      "batch_failures_total",
			Help:      "Total batches whose transaction reverted or was dropped.",
		}),
		InsertLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "replica",
			Name:      "insert_latency_seconds",
			Help:      "Wall-clock time to compute an insertion hint during the simulation pass.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		PendingSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "dispatch",
			Name:      "pending_set_size",
			Help:      "Number of pending changes awaiting event confirmation or rollback.",
		}),
		PendingExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "dispatch",
			Name:      "pending_expired_total",
			Help:      "Total pending changes discarded by the expiry sweep without a receipt.",
		}),
		ReconcilerLag: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "reconciler",
			Name:      "block_lag",
			Help:      "Blocks between the chain head and the last block the reconciler has applied.",
		}),
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "reconciler",
			Name:      "events_total",
			Help:      "Chain events applied to the replica, labeled by event type.",
		}, []string{"event_type"}),
		TradesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "replica",
			Name:      "trades_total",
			Help:      "Total Trade events observed on chain by the reconciler.",
		}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveSeconds records the elapsed time since NewTimer into h.
func (t *Timer) ObserveSeconds(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}
