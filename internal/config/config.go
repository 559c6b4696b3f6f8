// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrMissingConfiguration is returned when a required setting is absent.
var ErrMissingConfiguration = errors.New("missing required configuration")

// Config holds matchstats configuration.
type Config struct {
	RPCURL              string        `koanf:"rpc_url"`
	PrivateKey          string        `koanf:"private_key"`
	ContractAddress     string        `koanf:"contract_address"`
	ChainID             int64         `koanf:"chain_id"` // 0 = ask the node
	InputPath           string        `koanf:"input_path"`
	DatabasePath        string        `koanf:"database_path"` // Run log; empty (default) disables it
	LogLevel            string        `koanf:"log_level"`
	MetricsAddr         string        `koanf:"metrics_addr"` // Empty disables the metrics listener
	ReceiptPollInterval time.Duration `koanf:"receipt_poll_interval"`
	RPCTimeout          time.Duration `koanf:"rpc_timeout"`
	UseLegacyTx         bool          `koanf:"use_legacy_tx"`
	MaxRetries          int           `koanf:"max_retries"`
	RetryDelay          time.Duration `koanf:"retry_delay"`
	MaxSubmitRate       float64       `koanf:"max_submit_rate"` // Broadcasts per second; 0 = unpaced
}

// Defaults
const (
	DefaultInputPath           = "./data/stats.json"
	DefaultLogLevel            = "info"
	DefaultReceiptPollInterval = 500 * time.Millisecond
	DefaultRPCTimeout          = 10 * time.Second
	DefaultMaxRetries          = 3
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		InputPath:           DefaultInputPath,
		LogLevel:            DefaultLogLevel,
		ReceiptPollInterval: DefaultReceiptPollInterval,
		RPCTimeout:          DefaultRPCTimeout,
		MaxRetries:          DefaultMaxRetries,
	}
}

// Validate validates the configuration. Missing required keys are reported
// together, before any other check.
func (c *Config) Validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if c.ContractAddress == "" {
		missing = append(missing, "CONTRACT_ADDRESS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract address %q is not a valid address", c.ContractAddress)
	}
	if c.ChainID < 0 {
		return fmt.Errorf("chain ID cannot be negative")
	}
	if c.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ReceiptPollInterval <= 0 {
		return fmt.Errorf("receipt poll interval must be positive")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.MaxSubmitRate < 0 {
		return fmt.Errorf("max submit rate cannot be negative")
	}
	return nil
}

// Contract returns the contract address. Call after Validate.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// LogValue keeps the private key out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("rpcURL", c.RPCURL),
		slog.String("contract", c.ContractAddress),
		slog.Int64("chainID", c.ChainID),
		slog.String("input", c.InputPath),
		slog.String("database", c.DatabasePath),
		slog.String("logLevel", c.LogLevel),
		slog.String("metricsAddr", c.MetricsAddr),
		slog.Duration("receiptPollInterval", c.ReceiptPollInterval),
		slog.Bool("legacyTx", c.UseLegacyTx),
		slog.Int("maxRetries", c.MaxRetries),
	)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}
