package metrics

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
)

func TestAccumulatorTotals(t *testing.T) {
	acc := NewAccumulator()
	acc.Record(Outcome{RecordID: 1, GasUsed: 46000, LatencyMs: 1200, Success: true})
	acc.Record(Outcome{RecordID: 2, GasUsed: 47000, LatencyMs: 800, Success: true})

	if got := acc.TotalGas(); got.Cmp(big.NewInt(93000)) != 0 {
		t.Errorf("TotalGas() = %s, want 93000", got)
	}
	if acc.Count() != 2 {
		t.Errorf("Count() = %d, want 2", acc.Count())
	}
	lat := acc.Latencies()
	if len(lat) != 2 || lat[0] != 1200 || lat[1] != 800 {
		t.Errorf("Latencies() = %v, want [1200 800]", lat)
	}
}

func TestAccumulatorTotalGasDoesNotOverflow(t *testing.T) {
	acc := NewAccumulator()
	const max = ^uint64(0)
	acc.Record(Outcome{GasUsed: max})
	acc.Record(Outcome{GasUsed: max})

	want := new(big.Int).Mul(new(big.Int).SetUint64(max), big.NewInt(2))
	if got := acc.TotalGas(); got.Cmp(want) != 0 {
		t.Errorf("TotalGas() = %s, want %s", got, want)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name       string
		gas        []uint64
		latencies  []int64
		total      int
		wantAvgGas int64
		wantAvgLat int64
	}{
		{
			name:       "single record",
			gas:        []uint64{46000},
			latencies:  []int64{1200},
			total:      1,
			wantAvgGas: 46000,
			wantAvgLat: 1200,
		},
		{
			name:       "skipped records stay in the divisor",
			gas:        []uint64{46000, 46000},
			latencies:  []int64{1000, 1000},
			total:      4,
			wantAvgGas: 23000,
			wantAvgLat: 500,
		},
		{
			name:       "gas rounds half up",
			gas:        []uint64{3},
			latencies:  []int64{3},
			total:      2,
			wantAvgGas: 2,
			wantAvgLat: 2,
		},
		{
			name:       "gas rounds down below half",
			gas:        []uint64{4},
			latencies:  []int64{4},
			total:      3,
			wantAvgGas: 1,
			wantAvgLat: 1,
		},
		{
			name:       "nothing submitted",
			total:      3,
			wantAvgGas: 0,
			wantAvgLat: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator()
			for i := range tt.gas {
				acc.Record(Outcome{GasUsed: tt.gas[i], LatencyMs: tt.latencies[i]})
			}
			s := acc.Summarize(tt.total)
			if s.Processed != tt.total {
				t.Errorf("Processed = %d, want %d", s.Processed, tt.total)
			}
			if s.Submitted != len(tt.gas) {
				t.Errorf("Submitted = %d, want %d", s.Submitted, len(tt.gas))
			}
			if s.AvgGas.Int64() != tt.wantAvgGas {
				t.Errorf("AvgGas = %s, want %d", s.AvgGas, tt.wantAvgGas)
			}
			if s.AvgLatencyMs != tt.wantAvgLat {
				t.Errorf("AvgLatencyMs = %d, want %d", s.AvgLatencyMs, tt.wantAvgLat)
			}
		})
	}
}

func TestSummarizeZeroRecords(t *testing.T) {
	s := NewAccumulator().Summarize(0)
	if s.AvgGas.Sign() != 0 || s.AvgLatencyMs != 0 || s.TotalGas.Sign() != 0 {
		t.Errorf("Summarize(0) = %+v, want zero averages", s)
	}
}

func TestSummarizePercentiles(t *testing.T) {
	acc := NewAccumulator()
	for _, l := range []int64{100, 400, 200, 300, 500} {
		acc.Record(Outcome{GasUsed: 1, LatencyMs: l})
	}
	s := acc.Summarize(5)
	if s.P50LatencyMs != 300 {
		t.Errorf("P50 = %v, want 300", s.P50LatencyMs)
	}
	if s.P95LatencyMs != 480 {
		t.Errorf("P95 = %v, want 480", s.P95LatencyMs)
	}
}

func TestSummaryPrint(t *testing.T) {
	acc := NewAccumulator()
	acc.Record(Outcome{GasUsed: 46000, LatencyMs: 1200})
	var buf bytes.Buffer
	if err := acc.Summarize(1).Print(&buf); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Records processed:   1", "Total gas used:      46000", "Average latency:     1200 ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
