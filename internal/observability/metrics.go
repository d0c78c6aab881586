// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	ScanCyclesTotal     *prometheus.CounterVec
	TransactionsFetched prometheus.Counter
	TransfersSkipped    prometheus.Counter
	TransfersPersisted  prometheus.Counter
	ScanDuration        prometheus.Histogram

	// Pricing metrics
	PriceFallbacks *prometheus.CounterVec
	PriceLookups   *prometheus.CounterVec

	// Notification metrics
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter

	// Storage metrics
	StoreErrors prometheus.Counter

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "transfer_watch"
	}

	return &Metrics{
		ScanCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cycles_total",
			Help:      "Total number of scan cycles by status",
		}, []string{"status"}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "transactions_fetched_total",
			Help:      "Total number of candidate transactions fetched from the indexing API",
		}),
		TransfersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "transfers_skipped_total",
			Help:      "Total number of transactions skipped as already recorded",
		}),
		TransfersPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "transfers_persisted_total",
			Help:      "Total number of transfers persisted",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cycle_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		PriceFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fallbacks_total",
			Help:      "Total number of price lookups that used the fallback constant",
		}, []string{"source"}),
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Total number of price lookups by mode",
		}, []string{"mode"}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications delivered",
		}),
		NotificationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "errors_total",
			Help:      "Total number of failed notification deliveries",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors",
		}),
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last scan cycle that completed without error",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
