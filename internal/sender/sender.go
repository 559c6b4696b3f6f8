// Package sender broadcasts signed transactions and waits for their receipt.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/matchstats/internal/rpc"
)

// ErrReverted is returned when the transaction was mined with status 0.
var ErrReverted = errors.New("transaction reverted")

// DefaultPollInterval is how often the receipt is polled after broadcast.
const DefaultPollInterval = 500 * time.Millisecond

// Broadcaster is the subset of rpc.Client used by the sender.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, txRLP []byte) error
	GetTransactionReceipt(ctx context.Context, txHash string) (*rpc.TransactionReceipt, error)
}

// Sender performs one submission attempt: broadcast, then wait for the receipt.
type Sender struct {
	client       Broadcaster
	pollInterval time.Duration
	logger       *slog.Logger
}

// Config for creating a Sender.
type Config struct {
	Client       Broadcaster
	PollInterval time.Duration // Receipt poll interval (default: 500ms)
	Logger       *slog.Logger
}

// New creates a new Sender.
func New(cfg Config) *Sender {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		client:       cfg.Client,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Send broadcasts tx and blocks until its receipt is available or ctx ends.
// There is no timeout of its own; bound it with ctx if needed.
func (s *Sender) Send(ctx context.Context, tx *types.Transaction) (*rpc.TransactionReceipt, error) {
	data, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	if err := s.client.SendRawTransaction(ctx, data); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	txHash := tx.Hash().Hex()
	s.logger.Debug("transaction broadcast",
		slog.String("txHash", txHash),
		slog.Uint64("nonce", tx.Nonce()),
	)

	return s.waitForReceipt(ctx, txHash)
}

func (s *Sender) waitForReceipt(ctx context.Context, txHash string) (*rpc.TransactionReceipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("receipt %s: %w", txHash, err)
		}
		if receipt != nil {
			if receipt.Status != 1 {
				return receipt, fmt.Errorf("%s: %w", txHash, ErrReverted)
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
