package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "MATCHSTATS_CONFIG"

// Env keys read by Load. Each maps to the lower-cased koanf key.
var envKeys = map[string]bool{
	"RPC_URL":               true,
	"PRIVATE_KEY":           true,
	"CONTRACT_ADDRESS":      true,
	"CHAIN_ID":              true,
	"INPUT_PATH":            true,
	"DATABASE_PATH":         true,
	"LOG_LEVEL":             true,
	"METRICS_ADDR":          true,
	"RECEIPT_POLL_INTERVAL": true,
	"RPC_TIMEOUT":           true,
	"USE_LEGACY_TX":         true,
	"MAX_RETRIES":           true,
	"RETRY_DELAY":           true,
	"MAX_SUBMIT_RATE":       true,
}

// Load builds a Config by layering defaults, an optional YAML file and the
// environment, lowest precedence first. It does not validate; callers apply
// flag overrides and then call Validate.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// RPC_URL -> rpc_url; anything not in envKeys is ignored.
	envProvider := env.Provider("", ".", func(s string) string {
		if !envKeys[s] {
			return ""
		}
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}
