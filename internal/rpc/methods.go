package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// caller is the single primitive every eth_* helper is built on.
type caller interface {
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// callerFunc adapts a plain call function to caller.
type callerFunc func(ctx context.Context, method string, params []any) (json.RawMessage, error)

func (f callerFunc) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return f(ctx, method, params)
}

func sendRawTransaction(ctx context.Context, c caller, txRLP []byte) error {
	_, err := c.Call(ctx, "eth_sendRawTransaction", []any{hexutil.Encode(txRLP)})
	return err
}

// getNonce uses "pending" so transactions already in the mempool are counted.
func getNonce(ctx context.Context, c caller, address string) (uint64, error) {
	result, err := c.Call(ctx, "eth_getTransactionCount", []any{address, "pending"})
	if err != nil {
		return 0, err
	}

	var nonceHex string
	if err := json.Unmarshal(result, &nonceHex); err != nil {
		return 0, fmt.Errorf("failed to unmarshal nonce: %w", err)
	}

	nonce, err := hexutil.DecodeUint64(nonceHex)
	if err != nil {
		return 0, fmt.Errorf("failed to decode nonce: %w", err)
	}
	return nonce, nil
}

func getChainID(ctx context.Context, c caller) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_chainId", nil)
	if err != nil {
		return nil, err
	}

	var idHex string
	if err := json.Unmarshal(result, &idHex); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain id: %w", err)
	}

	id, err := hexutil.DecodeBig(idHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chain id: %w", err)
	}
	return id, nil
}

func getPendingBaseFee(ctx context.Context, c caller) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_getBlockByNumber", []any{"pending", false})
	if err != nil {
		return nil, err
	}

	if string(result) == "null" {
		return nil, fmt.Errorf("pending block not available")
	}

	var block struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	if block.BaseFeePerGas == "" {
		return nil, ErrNoBaseFee
	}

	baseFee, err := hexutil.DecodeBig(block.BaseFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("failed to decode baseFeePerGas: %w", err)
	}
	return baseFee, nil
}

func getTransactionReceipt(ctx context.Context, c caller, txHash string) (*TransactionReceipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []any{txHash})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, nil // Not found yet
	}

	return parseReceipt(result)
}

// parseReceipt parses a TransactionReceipt from JSON.
func parseReceipt(data json.RawMessage) (*TransactionReceipt, error) {
	var rawReceipt struct {
		TxHash            string `json:"transactionHash"`
		Status            string `json:"status"`
		GasUsed           string `json:"gasUsed"`
		BlockNumber       string `json:"blockNumber"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
	}
	if err := json.Unmarshal(data, &rawReceipt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}

	status, err := hexutil.DecodeUint64(rawReceipt.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to decode receipt status: %w", err)
	}
	gasUsed, err := hexutil.DecodeUint64(rawReceipt.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gasUsed: %w", err)
	}
	blockNumber, _ := hexutil.DecodeUint64(rawReceipt.BlockNumber)
	effectiveGasPrice, _ := hexutil.DecodeUint64(rawReceipt.EffectiveGasPrice)

	return &TransactionReceipt{
		TxHash:            rawReceipt.TxHash,
		Status:            status,
		GasUsed:           gasUsed,
		BlockNumber:       blockNumber,
		EffectiveGasPrice: effectiveGasPrice,
	}, nil
}
