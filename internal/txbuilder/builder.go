// Package txbuilder builds the ledger call that publishes one packed stat word.
package txbuilder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/matchstats/internal/fee"
	"github.com/gateway-fm/matchstats/internal/statcodec"
)

// StatsGasLimit is the fixed gas limit of every stats update call.
const StatsGasLimit = 120000

// UpdateStatsMethod is the contract method receiving (id, packed word).
const UpdateStatsMethod = "updatePlayerStats"

// StatsABI describes the single contract method the pipeline calls:
//
//	function updatePlayerStats(uint256 id, bytes4 stats) external;
const StatsABI = `[{
	"type": "function",
	"name": "updatePlayerStats",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "id", "type": "uint256"},
		{"name": "stats", "type": "bytes4"}
	],
	"outputs": []
}]`

// Request holds everything needed to build one stats update transaction.
// It is built once per record and reused unchanged across retries.
type Request struct {
	RecordID uint64
	Word     statcodec.PackedWord
	From     common.Address
	To       common.Address
	ChainID  *big.Int
	Nonce    uint64
	GasLimit uint64
	Fee      fee.Parameters
	Data     []byte
}

// StatsBuilder encodes and builds stats update calls against one contract.
type StatsBuilder struct {
	contract  common.Address
	abi       abi.ABI
	useLegacy bool
}

// NewStatsBuilder parses the contract ABI and returns a builder targeting contract.
func NewStatsBuilder(contract common.Address, useLegacy bool) (*StatsBuilder, error) {
	parsed, err := abi.JSON(strings.NewReader(StatsABI))
	if err != nil {
		return nil, fmt.Errorf("parse stats ABI: %w", err)
	}
	return &StatsBuilder{
		contract:  contract,
		abi:       parsed,
		useLegacy: useLegacy,
	}, nil
}

// Contract returns the target contract address.
func (b *StatsBuilder) Contract() common.Address {
	return b.contract
}

// Selector returns the 4-byte method id of updatePlayerStats.
func (b *StatsBuilder) Selector() []byte {
	return b.abi.Methods[UpdateStatsMethod].ID
}

// CallData ABI-encodes updatePlayerStats(id, word).
func (b *StatsBuilder) CallData(id uint64, word statcodec.PackedWord) ([]byte, error) {
	data, err := b.abi.Pack(UpdateStatsMethod, new(big.Int).SetUint64(id), word.Bytes())
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", UpdateStatsMethod, err)
	}
	return data, nil
}

// NewRequest assembles a Request for one record.
func (b *StatsBuilder) NewRequest(from common.Address, chainID *big.Int, nonce uint64, id uint64, word statcodec.PackedWord, params fee.Parameters) (Request, error) {
	data, err := b.CallData(id, word)
	if err != nil {
		return Request{}, err
	}
	return Request{
		RecordID: id,
		Word:     word,
		From:     from,
		To:       b.contract,
		ChainID:  chainID,
		Nonce:    nonce,
		GasLimit: StatsGasLimit,
		Fee:      params,
		Data:     data,
	}, nil
}

// Build creates the unsigned transaction for req.
func (b *StatsBuilder) Build(req Request) (*types.Transaction, error) {
	if req.ChainID == nil || req.ChainID.Sign() == 0 {
		return nil, fmt.Errorf("ChainID must be non-nil and non-zero")
	}
	if req.Fee.Tip == nil || req.Fee.MaxFee == nil {
		return nil, fmt.Errorf("fee parameters must be set")
	}
	return NewContractCallTx(req.ChainID, req.Nonce, req.To, req.GasLimit, req.Fee.Tip, req.Fee.MaxFee, req.Data, b.useLegacy), nil
}
