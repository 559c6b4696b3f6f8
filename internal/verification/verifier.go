// Package verification re-checks a recorded batch run against the ledger.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/gateway-fm/matchstats/internal/rpc"
	"github.com/gateway-fm/matchstats/internal/storage"
)

// ReceiptSource fetches transaction receipts.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, txHash string) (*rpc.TransactionReceipt, error)
}

// ReceiptSample is one checked submission.
type ReceiptSample struct {
	RecordID    uint64 `json:"recordId"`
	Nonce       uint64 `json:"nonce"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	LoggedGas   uint64 `json:"loggedGas"`
	Status      uint64 `json:"status"`
}

// Result holds the outcome of verifying a run.
type Result struct {
	SampleSize       int             `json:"sampleSize"`
	SuccessCount     int             `json:"successCount"`
	RevertCount      int             `json:"revertCount"`
	MissingCount     int             `json:"missingCount"` // receipt not found or fetch failed
	GasMismatchCount int             `json:"gasMismatchCount"`
	TotalGasVerified uint64          `json:"totalGasVerified"`
	MinGasUsed       uint64          `json:"minGasUsed"`
	MaxGasUsed       uint64          `json:"maxGasUsed"`
	Problems         []ReceiptSample `json:"problems,omitempty"` // up to 100
	Warnings         []string        `json:"warnings,omitempty"`
	AllChecksPass    bool            `json:"allChecksPass"`
}

const maxProblems = 100

// Verifier checks logged submissions against on-chain receipts.
type Verifier struct {
	client ReceiptSource
	logger *slog.Logger
}

// NewVerifier creates a new verification handler.
func NewVerifier(client ReceiptSource, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		client: client,
		logger: logger,
	}
}

// VerifySubmissions fetches the receipt of up to sampleSize submissions
// (all of them when sampleSize <= 0) and checks each one succeeded with the
// gas that was logged.
func (v *Verifier) VerifySubmissions(ctx context.Context, subs []storage.Submission, sampleSize int) (*Result, error) {
	result := &Result{}
	sample := pickSample(subs, sampleSize)
	result.SampleSize = len(sample)

	v.logger.Info("verifying submissions",
		slog.Int("logged", len(subs)),
		slog.Int("sampleSize", len(sample)),
	)

	for _, sub := range sample {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		receipt, err := v.client.GetTransactionReceipt(ctx, sub.TxHash)
		if err != nil {
			v.logger.Debug("failed to fetch receipt",
				slog.String("txHash", sub.TxHash),
				slog.String("error", err.Error()),
			)
		}
		v.processReceipt(sub, receipt, result)
	}

	if result.MinGasUsed == ^uint64(0) {
		result.MinGasUsed = 0
	}

	if result.RevertCount > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d of %d sampled submissions reverted", result.RevertCount, result.SampleSize))
	}
	if result.MissingCount > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d of %d sampled submissions have no receipt (reorg or pruned node?)", result.MissingCount, result.SampleSize))
	}
	if result.GasMismatchCount > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d of %d sampled submissions report different gas than logged", result.GasMismatchCount, result.SampleSize))
	}
	result.AllChecksPass = result.RevertCount == 0 && result.MissingCount == 0 && result.GasMismatchCount == 0

	v.logger.Info("verification complete",
		slog.Bool("allChecksPass", result.AllChecksPass),
		slog.Int("successCount", result.SuccessCount),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (v *Verifier) processReceipt(sub storage.Submission, receipt *rpc.TransactionReceipt, result *Result) {
	sample := ReceiptSample{
		RecordID:  sub.RecordID,
		Nonce:     sub.Nonce,
		TxHash:    sub.TxHash,
		LoggedGas: sub.GasUsed,
	}

	if receipt == nil {
		result.MissingCount++
		result.addProblem(sample)
		return
	}

	sample.BlockNumber = receipt.BlockNumber
	sample.GasUsed = receipt.GasUsed
	sample.Status = receipt.Status

	if result.SuccessCount+result.RevertCount == 0 {
		result.MinGasUsed = ^uint64(0)
	}
	result.TotalGasVerified += receipt.GasUsed
	result.MinGasUsed = min(result.MinGasUsed, receipt.GasUsed)
	result.MaxGasUsed = max(result.MaxGasUsed, receipt.GasUsed)

	problem := false
	if receipt.Status == 1 {
		result.SuccessCount++
	} else {
		result.RevertCount++
		problem = true
	}
	if receipt.GasUsed != sub.GasUsed {
		result.GasMismatchCount++
		problem = true
	}
	if problem {
		result.addProblem(sample)
	}
}

func (r *Result) addProblem(s ReceiptSample) {
	if len(r.Problems) < maxProblems {
		r.Problems = append(r.Problems, s)
	}
}

// pickSample returns a random subset of subs in nonce order.
func pickSample(subs []storage.Submission, sampleSize int) []storage.Submission {
	if sampleSize <= 0 || sampleSize >= len(subs) {
		out := make([]storage.Submission, len(subs))
		copy(out, subs)
		return out
	}

	indices := rand.Perm(len(subs))[:sampleSize]
	sort.Ints(indices)

	out := make([]storage.Submission, len(indices))
	for i, idx := range indices {
		out[i] = subs[idx]
	}
	return out
}
