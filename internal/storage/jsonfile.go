package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gateway-fm/matchstats/internal/statcodec"
)

// JSONFile reads player statistics from a JSON array on disk.
type JSONFile struct {
	path string
}

// NewJSONFile returns a reader for path. The file is read on each load.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// LoadPlayerStats reads the whole array. Absent counters decode as zero and
// absent goles as nil.
func (f *JSONFile) LoadPlayerStats(ctx context.Context) ([]statcodec.PlayerStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	var stats []statcodec.PlayerStat
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return stats, nil
}

// Close is a no-op.
func (f *JSONFile) Close() error {
	return nil
}
