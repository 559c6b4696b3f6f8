package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordConfirmed(Outcome{GasUsed: 46000, LatencyMs: 1500})
	m.RecordConfirmed(Outcome{GasUsed: 47000, LatencyMs: 500})
	m.RecordSkipped()
	m.RecordInvalid()
	m.RecordFailed()

	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("confirmed")); got != 2 {
		t.Errorf("confirmed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("skipped")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("validation")); got != 1 {
		t.Errorf("validation errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GasUsedTotal); got != 93000 {
		t.Errorf("gas total = %v, want 93000", got)
	}
	if got := testutil.CollectAndCount(m.ConfirmLatency); got != 1 {
		t.Errorf("latency histogram series = %d, want 1", got)
	}
}

func TestPrometheusAttempts(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.RecordAttempt(false, "broadcast")
	m.RecordAttempt(false, "fee")
	m.RecordAttempt(true, "")

	if got := testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("error")); got != 2 {
		t.Errorf("error attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("broadcast")); got != 1 {
		t.Errorf("broadcast errors = %v, want 1", got)
	}
}

func TestPrometheusBatchStatus(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.SetBatchStatus("running")
	m.SetBatchStatus("completed")

	if got := testutil.ToFloat64(m.BatchStatus.WithLabelValues("running")); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.BatchStatus.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}

	m.SetNextNonce(42)
	if got := testutil.ToFloat64(m.NextNonce); got != 42 {
		t.Errorf("next nonce = %v, want 42", got)
	}
	m.RecordFee(1.5, 5)
	if got := testutil.ToFloat64(m.BaseFeeGwei); got != 1.5 {
		t.Errorf("base fee = %v, want 1.5", got)
	}
}
