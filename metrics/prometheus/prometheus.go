package prometheus

import (
	"time"

	"go-ledger-api/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	transfers       *prometheus.CounterVec
	transferLatency *prometheus.HistogramVec
	validations     *prometheus.CounterVec
	accountsCreated prometheus.Counter

	lockWait  prometheus.Histogram
	lockCount prometheus.Gauge
}

var _ metrics.Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector whose metric names are prefixed
// with namespace. Call Register before use.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfer attempts by outcome",
			},
			[]string{"outcome"},
		),
		transferLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Transfer latency including lock acquisition",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~0.3s
			},
			[]string{"outcome"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_validations_total",
				Help:      "Total number of transfer validations by outcome",
			},
			[]string{"outcome"},
		),
		accountsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accounts_created_total",
				Help:      "Total number of accounts created",
			},
		),
		lockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "account_lock_wait_seconds",
				Help:      "Time spent waiting for account locks",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
			},
		),
		lockCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "account_locks",
				Help:      "Number of account locks held in the registry",
			},
		),
	}
}

// Register registers all metrics with reg.
func (pc *PrometheusCollector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.transfers,
		pc.transferLatency,
		pc.validations,
		pc.accountsCreated,
		pc.lockWait,
		pc.lockCount,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordTransfer(outcome string, duration time.Duration) {
	pc.transfers.WithLabelValues(outcome).Inc()
	pc.transferLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordValidation(outcome string) {
	pc.validations.WithLabelValues(outcome).Inc()
}

func (pc *PrometheusCollector) RecordAccountCreated() {
	pc.accountsCreated.Inc()
}

func (pc *PrometheusCollector) RecordLockWait(duration time.Duration) {
	pc.lockWait.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordLockCount(n int) {
	pc.lockCount.Set(float64(n))
}
