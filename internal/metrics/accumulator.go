// Package metrics aggregates per-submission cost and latency.
package metrics

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
)

// Outcome is the result of one confirmed submission.
type Outcome struct {
	RecordID  uint64
	Nonce     uint64
	TxHash    string
	Word      string // packed word, 0x-prefixed hex
	GasUsed   uint64
	LatencyMs int64
	Attempts  int
	Success   bool
}

// Accumulator collects outcomes for a single batch run.
// It is owned by the run and not safe for concurrent use; the pipeline is sequential.
type Accumulator struct {
	totalGas  *big.Int
	latencies []int64 // ms, in submission order
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{totalGas: new(big.Int)}
}

// Record adds one outcome's gas and latency.
func (a *Accumulator) Record(o Outcome) {
	a.totalGas.Add(a.totalGas, new(big.Int).SetUint64(o.GasUsed))
	a.latencies = append(a.latencies, o.LatencyMs)
}

// Count returns the number of recorded outcomes.
func (a *Accumulator) Count() int {
	return len(a.latencies)
}

// TotalGas returns a copy of the running gas total.
func (a *Accumulator) TotalGas() *big.Int {
	return new(big.Int).Set(a.totalGas)
}

// Latencies returns a copy of the recorded latencies in submission order.
func (a *Accumulator) Latencies() []int64 {
	out := make([]int64, len(a.latencies))
	copy(out, a.latencies)
	return out
}

// Summary is the end-of-batch report.
type Summary struct {
	Processed    int      // records presented to the batch, skipped ones included
	Submitted    int      // records confirmed on the ledger
	TotalGas     *big.Int // sum of gasUsed
	AvgGas       *big.Int // TotalGas / Processed, rounded half up
	AvgLatencyMs int64    // sum(latency) / Processed, rounded
	P50LatencyMs float64  // over submitted records only
	P95LatencyMs float64
}

// Summarize computes averages over totalRecordCount, the number of records
// presented to the batch. Skipped records count in the divisor and so pull the
// averages down; this mirrors the established report format.
func (a *Accumulator) Summarize(totalRecordCount int) Summary {
	s := Summary{
		Processed: totalRecordCount,
		Submitted: len(a.latencies),
		TotalGas:  a.TotalGas(),
		AvgGas:    new(big.Int),
	}
	if totalRecordCount <= 0 {
		return s
	}

	n := big.NewInt(int64(totalRecordCount))
	q, r := new(big.Int).QuoRem(a.totalGas, n, new(big.Int))
	if r.Lsh(r, 1).Cmp(n) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	s.AvgGas = q

	var sum int64
	for _, l := range a.latencies {
		sum += l
	}
	s.AvgLatencyMs = int64(math.Round(float64(sum) / float64(totalRecordCount)))

	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		for i, l := range a.latencies {
			sorted[i] = float64(l)
		}
		sort.Float64s(sorted)
		s.P50LatencyMs = percentile(sorted, 0.50)
		s.P95LatencyMs = percentile(sorted, 0.95)
	}
	return s
}

// percentile calculates the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Linear interpolation
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Print writes the console summary.
func (s Summary) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Records processed:   %d\n"+
			"Records submitted:   %d\n"+
			"Total gas used:      %s\n"+
			"Average gas/record:  %s\n"+
			"Average latency:     %d ms\n",
		s.Processed, s.Submitted, s.TotalGas, s.AvgGas, s.AvgLatencyMs)
	return err
}
