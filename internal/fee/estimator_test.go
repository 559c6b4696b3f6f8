package fee

import (
	"errors"
	"math/big"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name       string
		baseFee    *big.Int
		wantMaxFee string
	}{
		{"zero base fee", big.NewInt(0), "2000000000"},
		{"one gwei", big.NewInt(1_000_000_000), "4000000000"},
		{"small base fee", big.NewInt(1000), "2000002000"},
		{"huge base fee", new(big.Int).Lsh(big.NewInt(1), 200), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Estimate(tt.baseFee)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if p.Tip.Int64() != DefaultTip {
				t.Errorf("Tip = %s, want %d", p.Tip, DefaultTip)
			}
			want := new(big.Int).Mul(tt.baseFee, big.NewInt(2))
			want.Add(want, big.NewInt(DefaultTip))
			if p.MaxFee.Cmp(want) != 0 {
				t.Errorf("MaxFee = %s, want %s", p.MaxFee, want)
			}
			if tt.wantMaxFee != "" && p.MaxFee.String() != tt.wantMaxFee {
				t.Errorf("MaxFee = %s, want %s", p.MaxFee, tt.wantMaxFee)
			}
			if p.BaseFee.Cmp(tt.baseFee) != 0 {
				t.Errorf("BaseFee = %s, want %s", p.BaseFee, tt.baseFee)
			}
		})
	}
}

func TestEstimateDoesNotAliasInput(t *testing.T) {
	base := big.NewInt(500)
	p, err := Estimate(base)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	base.SetInt64(9)
	if p.BaseFee.Int64() != 500 {
		t.Errorf("BaseFee changed with input: %s", p.BaseFee)
	}
}

func TestEstimateInvalidInput(t *testing.T) {
	for _, in := range []*big.Int{nil, big.NewInt(-1)} {
		if _, err := Estimate(in); !errors.Is(err, ErrInvalidFeeInput) {
			t.Errorf("Estimate(%v) error = %v, want ErrInvalidFeeInput", in, err)
		}
	}
}

func TestGweiFloat(t *testing.T) {
	if got := GweiFloat(big.NewInt(2_500_000_000)); got != 2.5 {
		t.Errorf("GweiFloat() = %v, want 2.5", got)
	}
	if got := GweiFloat(nil); got != 0 {
		t.Errorf("GweiFloat(nil) = %v, want 0", got)
	}
}
