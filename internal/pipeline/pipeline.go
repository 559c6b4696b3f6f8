// Package pipeline submits packed player statistics to the ledger, one record at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/matchstats/internal/account"
	"github.com/gateway-fm/matchstats/internal/fee"
	"github.com/gateway-fm/matchstats/internal/metrics"
	"github.com/gateway-fm/matchstats/internal/ratelimit"
	"github.com/gateway-fm/matchstats/internal/rpc"
	"github.com/gateway-fm/matchstats/internal/sender"
	"github.com/gateway-fm/matchstats/internal/statcodec"
	"github.com/gateway-fm/matchstats/internal/txbuilder"
)

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 3

// ErrSubmissionFailed is matched by every *SubmissionError.
var ErrSubmissionFailed = errors.New("submission failed")

// Outcome is the result of one confirmed record.
type Outcome = metrics.Outcome

// SubmissionError reports a record that could not be confirmed.
// The batch stops at the first one.
type SubmissionError struct {
	RecordID uint64
	Nonce    uint64
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("record %d (nonce %d) failed after %d attempts: %v", e.RecordID, e.Nonce, e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}

// State is the lifecycle position of one record.
type State string

const (
	StatePending   State = "pending"
	StateBuilding  State = "building"
	StateSigned    State = "signed"
	StateBroadcast State = "broadcast"
	StateRetrying  State = "retrying"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// FeeSource provides the pending block base fee.
type FeeSource interface {
	GetPendingBaseFee(ctx context.Context) (*big.Int, error)
}

// Submitter performs one broadcast-and-confirm attempt.
type Submitter interface {
	Send(ctx context.Context, tx *types.Transaction) (*rpc.TransactionReceipt, error)
}

// SubmissionLog persists confirmed outcomes.
type SubmissionLog interface {
	RecordSubmission(ctx context.Context, runID string, o metrics.Outcome) error
}

var (
	_ FeeSource = (rpc.Client)(nil)
	_ Submitter = (*sender.Sender)(nil)
)

// Pipeline drives records through pack, fee, build, sign and send.
type Pipeline struct {
	builder    *txbuilder.StatsBuilder
	account    *account.Account
	fees       FeeSource
	sender     Submitter
	chainID    *big.Int
	maxRetries int
	retryDelay time.Duration
	limiter    *ratelimit.Limiter
	prom       *metrics.PrometheusMetrics
	runLog     SubmissionLog
	runID      string
	logger     *slog.Logger
}

// Config for creating a Pipeline.
type Config struct {
	Builder    *txbuilder.StatsBuilder
	Account    *account.Account
	Fees       FeeSource
	Sender     Submitter
	ChainID    *big.Int
	MaxRetries int                // Retries after the first attempt (default: 3)
	RetryDelay time.Duration      // Pause before each retry (default: none)
	Limiter    *ratelimit.Limiter // Paces broadcasts (optional)
	Prometheus *metrics.PrometheusMetrics
	RunLog     SubmissionLog // Optional
	RunID      string
	Logger     *slog.Logger
}

// New creates a new Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Pipeline{
		builder:    cfg.Builder,
		account:    cfg.Account,
		fees:       cfg.Fees,
		sender:     cfg.Sender,
		chainID:    cfg.ChainID,
		maxRetries: maxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    cfg.Limiter,
		prom:       cfg.Prometheus,
		runLog:     cfg.RunLog,
		runID:      cfg.RunID,
		logger:     logger,
	}
}

// RunBatch submits records in order starting at startingNonce.
//
// Records without goles are skipped and consume no nonce. A validation error
// or an exhausted retry budget aborts the batch; the outcomes confirmed so far
// are returned with the error. Every confirmed outcome is added to acc.
func (p *Pipeline) RunBatch(ctx context.Context, records []statcodec.PlayerStat, startingNonce uint64, acc *metrics.Accumulator) ([]Outcome, error) {
	p.account.SetNonce(startingNonce)
	p.setBatchStatus("running")

	p.logger.Info("batch started",
		slog.Int("records", len(records)),
		slog.Uint64("startingNonce", startingNonce),
		slog.String("sender", p.account.Address.Hex()),
	)

	outcomes := make([]Outcome, 0, len(records))
	for _, rec := range records {
		if !rec.Complete() {
			p.logger.Debug("skipping incomplete record", slog.Uint64("id", rec.ID))
			if p.prom != nil {
				p.prom.RecordSkipped()
			}
			continue
		}

		out, err := p.process(ctx, rec)
		if err != nil {
			p.setBatchStatus("aborted")
			return outcomes, err
		}

		outcomes = append(outcomes, out)
		acc.Record(out)
		if p.prom != nil {
			p.prom.RecordConfirmed(out)
		}
		if p.runLog != nil {
			if err := p.runLog.RecordSubmission(ctx, p.runID, out); err != nil {
				p.logger.Warn("failed to persist submission",
					slog.Uint64("id", out.RecordID),
					slog.String("error", err.Error()),
				)
			}
		}

		p.logger.Info("record submitted",
			slog.Uint64("id", out.RecordID),
			slog.Uint64("nonce", out.Nonce),
			slog.String("stats", out.Word),
			slog.String("txHash", out.TxHash),
			slog.Uint64("gasUsed", out.GasUsed),
			slog.Int64("latencyMs", out.LatencyMs),
		)
	}

	p.setBatchStatus("completed")
	return outcomes, nil
}

func (p *Pipeline) process(ctx context.Context, rec statcodec.PlayerStat) (Outcome, error) {
	start := time.Now()
	p.transition(rec.ID, StateBuilding)

	word, err := statcodec.Pack(rec)
	if err != nil {
		if p.prom != nil {
			p.prom.RecordInvalid()
		}
		p.logger.Error("record failed validation",
			slog.Uint64("id", rec.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{}, err
	}

	nonce := p.account.ReserveNonce()
	if p.prom != nil {
		p.prom.SetNextNonce(nonce + 1)
	}

	receipt, attempts, err := p.submit(ctx, rec.ID, word, nonce)
	if err != nil {
		p.transition(rec.ID, StateFailed)
		if p.prom != nil {
			p.prom.RecordFailed()
		}
		return Outcome{}, &SubmissionError{RecordID: rec.ID, Nonce: nonce, Attempts: attempts, Err: err}
	}
	p.transition(rec.ID, StateConfirmed)

	return Outcome{
		RecordID:  rec.ID,
		Nonce:     nonce,
		TxHash:    receipt.TxHash,
		Word:      word.String(),
		GasUsed:   receipt.GasUsed,
		LatencyMs: time.Since(start).Milliseconds(),
		Attempts:  attempts,
		Success:   true,
	}, nil
}

// submit runs the attempt loop for one record at a fixed nonce.
// Every failure short of cancellation consumes an attempt: fee lookup,
// encoding, building, signing and sending alike. Once a request is built it is
// reused unchanged, so every retry carries the same nonce.
func (p *Pipeline) submit(ctx context.Context, id uint64, word statcodec.PackedWord, nonce uint64) (*rpc.TransactionReceipt, int, error) {
	var (
		req     *txbuilder.Request
		lastErr error
	)
	maxAttempts := 1 + p.maxRetries

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			p.transition(id, StateRetrying)
			p.logger.Warn("retrying submission",
				slog.Uint64("id", id),
				slog.Uint64("nonce", nonce),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			if p.retryDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, attempt - 1, ctx.Err()
				case <-time.After(p.retryDelay):
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		if req == nil {
			params, err := p.estimateFee(ctx)
			if err != nil {
				lastErr = fmt.Errorf("fee: %w", err)
				p.recordAttempt(false, "fee")
				continue
			}
			r, err := p.builder.NewRequest(p.account.Address, p.chainID, nonce, id, word, params)
			if err != nil {
				lastErr = fmt.Errorf("encode call: %w", err)
				p.recordAttempt(false, "build")
				continue
			}
			req = &r
		}

		tx, err := p.builder.Build(*req)
		if err != nil {
			lastErr = fmt.Errorf("build: %w", err)
			p.recordAttempt(false, "build")
			continue
		}
		signed, err := p.account.SignTx(tx, p.chainID)
		if err != nil {
			lastErr = fmt.Errorf("sign: %w", err)
			p.recordAttempt(false, "build")
			continue
		}
		p.transition(id, StateSigned)

		// Wait only fails when ctx is done.
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, attempt, err
			}
		}

		p.transition(id, StateBroadcast)
		receipt, err := p.sender.Send(ctx, signed)
		if err == nil {
			p.recordAttempt(true, "")
			return receipt, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, err
		}

		lastErr = err
		if errors.Is(err, sender.ErrReverted) {
			p.recordAttempt(false, "reverted")
		} else {
			p.recordAttempt(false, "send")
		}
	}

	return nil, maxAttempts, lastErr
}

func (p *Pipeline) estimateFee(ctx context.Context) (fee.Parameters, error) {
	baseFee, err := p.fees.GetPendingBaseFee(ctx)
	if err != nil {
		return fee.Parameters{}, err
	}
	params, err := fee.Estimate(baseFee)
	if err != nil {
		return fee.Parameters{}, err
	}
	if p.prom != nil {
		p.prom.RecordFee(fee.GweiFloat(params.BaseFee), fee.GweiFloat(params.MaxFee))
	}
	return params, nil
}

func (p *Pipeline) transition(id uint64, s State) {
	p.logger.Debug("record state", slog.Uint64("id", id), slog.String("state", string(s)))
}

func (p *Pipeline) recordAttempt(success bool, category string) {
	if p.prom != nil {
		p.prom.RecordAttempt(success, category)
	}
}

func (p *Pipeline) setBatchStatus(status string) {
	if p.prom != nil {
		p.prom.SetBatchStatus(status)
	}
}
