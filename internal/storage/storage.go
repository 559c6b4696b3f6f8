package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gateway-fm/matchstats/internal/metrics"
	"github.com/gateway-fm/matchstats/internal/statcodec"
)

// RecordSource yields the full collection of player statistics in stored order.
type RecordSource interface {
	LoadPlayerStats(ctx context.Context) ([]statcodec.PlayerStat, error)
	Close() error
}

// RunLog is an audit trail of batch runs and their confirmed submissions.
// Nothing is resumed from it.
type RunLog interface {
	// Run lifecycle
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, summary metrics.Summary) error
	FailRun(ctx context.Context, id string, cause error) error
	GetRun(ctx context.Context, id string) (*Run, error)

	// Submissions
	RecordSubmission(ctx context.Context, runID string, o metrics.Outcome) error
	ListSubmissions(ctx context.Context, runID string) ([]Submission, error)

	// Lifecycle
	Close() error
}

var (
	_ RecordSource = (*SQLiteStorage)(nil)
	_ RecordSource = (*JSONFile)(nil)
	_ RunLog       = (*SQLiteStorage)(nil)
)

// OpenRecordSource picks a reader by file extension: .json files are read as a
// JSON array, .db/.sqlite/.sqlite3 files as an existing SQLite database opened
// read-only.
func OpenRecordSource(path string) (RecordSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONFile(path), nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteRecords(path)
	default:
		return nil, fmt.Errorf("unsupported input %q: want .json, .db, .sqlite or .sqlite3", path)
	}
}
