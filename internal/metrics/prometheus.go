package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics for stat submissions.
type PrometheusMetrics struct {
	// Counters
	RecordsTotal  *prometheus.CounterVec
	AttemptsTotal *prometheus.CounterVec
	GasUsedTotal  prometheus.Counter

	// Gauges
	NextNonce   prometheus.Gauge
	BaseFeeGwei prometheus.Gauge
	BatchStatus *prometheus.GaugeVec

	// Histograms
	ConfirmLatency prometheus.Histogram
	GasUsed        prometheus.Histogram
	MaxFeeGwei     prometheus.Histogram

	// Error tracking
	ErrorsTotal *prometheus.CounterVec
}

// Batch statuses exported by BatchStatus.
var batchStatuses = []string{"idle", "running", "completed", "aborted"}

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchstats_records_total",
				Help: "Records by outcome (confirmed, skipped, invalid, failed)",
			},
			[]string{"outcome"},
		),

		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchstats_submission_attempts_total",
				Help: "Submission attempts by result",
			},
			[]string{"result"},
		),

		GasUsedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "matchstats_gas_used_total",
				Help: "Total gas consumed by confirmed submissions",
			},
		),

		NextNonce: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "matchstats_next_nonce",
				Help: "Next nonce the sender will assign",
			},
		),

		BaseFeeGwei: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "matchstats_base_fee_gwei",
				Help: "Last observed pending block base fee in gwei",
			},
		),

		BatchStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchstats_batch_status",
				Help: "Current batch status (1 if active, 0 otherwise)",
			},
			[]string{"status"},
		),

		ConfirmLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matchstats_confirmation_latency_seconds",
				Help:    "Time from building a submission to its receipt, retries included",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		GasUsed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matchstats_gas_used",
				Help:    "Gas used per confirmed submission",
				Buckets: []float64{25000, 35000, 45000, 55000, 70000, 90000, 120000},
			},
		),

		MaxFeeGwei: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matchstats_max_fee_gwei",
				Help:    "maxFeePerGas distribution in gwei",
				Buckets: []float64{2, 2.5, 3, 5, 10, 20, 50, 100, 200},
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchstats_errors_total",
				Help: "Errors by category",
			},
			[]string{"category"},
		),
	}
}

// RecordConfirmed records a confirmed submission.
func (m *PrometheusMetrics) RecordConfirmed(o Outcome) {
	m.RecordsTotal.WithLabelValues("confirmed").Inc()
	m.GasUsedTotal.Add(float64(o.GasUsed))
	m.GasUsed.Observe(float64(o.GasUsed))
	m.ConfirmLatency.Observe(float64(o.LatencyMs) / 1000)
}

// RecordSkipped records an incomplete record that was skipped.
func (m *PrometheusMetrics) RecordSkipped() {
	m.RecordsTotal.WithLabelValues("skipped").Inc()
}

// RecordInvalid records a record rejected by validation.
func (m *PrometheusMetrics) RecordInvalid() {
	m.RecordsTotal.WithLabelValues("invalid").Inc()
	m.ErrorsTotal.WithLabelValues("validation").Inc()
}

// RecordFailed records a record whose retry budget was exhausted.
func (m *PrometheusMetrics) RecordFailed() {
	m.RecordsTotal.WithLabelValues("failed").Inc()
}

// RecordAttempt records one submission attempt and its error category, if any.
func (m *PrometheusMetrics) RecordAttempt(success bool, category string) {
	if success {
		m.AttemptsTotal.WithLabelValues("success").Inc()
		return
	}
	m.AttemptsTotal.WithLabelValues("error").Inc()
	m.ErrorsTotal.WithLabelValues(category).Inc()
}

// RecordFee records the fee parameters used for a submission.
func (m *PrometheusMetrics) RecordFee(baseFeeGwei, maxFeeGwei float64) {
	m.BaseFeeGwei.Set(baseFeeGwei)
	m.MaxFeeGwei.Observe(maxFeeGwei)
}

// SetNextNonce updates the next-nonce gauge.
func (m *PrometheusMetrics) SetNextNonce(nonce uint64) {
	m.NextNonce.Set(float64(nonce))
}

// SetBatchStatus updates the batch status gauges.
func (m *PrometheusMetrics) SetBatchStatus(status string) {
	for _, s := range batchStatuses {
		if s == status {
			m.BatchStatus.WithLabelValues(s).Set(1)
		} else {
			m.BatchStatus.WithLabelValues(s).Set(0)
		}
	}
}
