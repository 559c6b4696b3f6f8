// Package storage reads player statistics and persists the batch run log.
package storage

import "time"

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one persisted batch run with its final summary.
// Gas totals are decimal strings because they can exceed int64.
type Run struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Status        string     `json:"status"` // "running", "completed", "failed"
	InputPath     string     `json:"inputPath"`
	Sender        string     `json:"sender"`
	Contract      string     `json:"contract"`
	ChainID       int64      `json:"chainId"`
	StartingNonce uint64     `json:"startingNonce"`
	Processed     int        `json:"processed"`
	Submitted     int        `json:"submitted"`
	TotalGas      string     `json:"totalGas"`
	AvgGas        string     `json:"avgGas"`
	AvgLatencyMs  int64      `json:"avgLatencyMs"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
}

// Submission is one confirmed record of a run.
type Submission struct {
	RunID     string    `json:"runId"`
	RecordID  uint64    `json:"recordId"`
	Nonce     uint64    `json:"nonce"`
	TxHash    string    `json:"txHash"`
	Stats     string    `json:"stats"` // packed word, 0x-prefixed hex
	GasUsed   uint64    `json:"gasUsed"`
	LatencyMs int64     `json:"latencyMs"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}
