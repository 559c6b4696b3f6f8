// Package fee derives EIP-1559 fee parameters from the network base fee.
package fee

import (
	"errors"
	"math/big"
)

// ErrInvalidFeeInput is returned when the base fee is missing or negative.
var ErrInvalidFeeInput = errors.New("invalid fee input")

// DefaultTip is the fixed priority fee: 2 gwei.
const DefaultTip = 2_000_000_000

// Parameters holds the fee fields of one submission.
type Parameters struct {
	BaseFee *big.Int // pending block baseFeePerGas
	Tip     *big.Int // maxPriorityFeePerGas
	MaxFee  *big.Int // maxFeePerGas = 2*BaseFee + Tip
}

// Estimate derives fee parameters for a single submission.
// Doubling the base fee leaves headroom for it to rise before inclusion.
func Estimate(baseFee *big.Int) (Parameters, error) {
	if baseFee == nil || baseFee.Sign() < 0 {
		return Parameters{}, ErrInvalidFeeInput
	}

	tip := big.NewInt(DefaultTip)
	maxFee := new(big.Int).Lsh(baseFee, 1)
	maxFee.Add(maxFee, tip)

	return Parameters{
		BaseFee: new(big.Int).Set(baseFee),
		Tip:     tip,
		MaxFee:  maxFee,
	}, nil
}

// GweiFloat converts a wei amount to gwei for logging and metrics.
func GweiFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return f
}
