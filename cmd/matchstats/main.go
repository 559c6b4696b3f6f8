// matchstats submits packed per-player match statistics to the stats ledger
// contract, one transaction per player, and prints a cost and latency summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/matchstats/internal/account"
	"github.com/gateway-fm/matchstats/internal/config"
	"github.com/gateway-fm/matchstats/internal/metrics"
	"github.com/gateway-fm/matchstats/internal/pipeline"
	"github.com/gateway-fm/matchstats/internal/ratelimit"
	"github.com/gateway-fm/matchstats/internal/rpc"
	"github.com/gateway-fm/matchstats/internal/sender"
	"github.com/gateway-fm/matchstats/internal/storage"
	"github.com/gateway-fm/matchstats/internal/txbuilder"
	"github.com/gateway-fm/matchstats/internal/verification"
)

func main() {
	inputFlag := flag.String("input", "", "Input records: .json file or SQLite database (overrides INPUT_PATH)")
	nonceFlag := flag.Int64("nonce", -1, "Starting nonce (-1 = pending nonce from the node)")
	logLevelFlag := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	databaseFlag := flag.String("database", "", "Run log SQLite path (overrides DATABASE_PATH)")
	verifyFlag := flag.String("verify", "", "Re-check receipts of a logged run ID instead of submitting")
	sampleFlag := flag.Int("sample", 0, "Submissions to re-check with -verify (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *inputFlag != "" {
		cfg.InputPath = *inputFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	if *databaseFlag != "" {
		cfg.DatabasePath = *databaseFlag
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *verifyFlag != "" {
		if err := verifyRun(ctx, cfg, *verifyFlag, *sampleFlag, logger); err != nil {
			logger.Error("verification failed", slog.String("error", err.Error()))
			stop()
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		stop()
		os.Exit(1)
	}

	if err := run(ctx, cfg, *nonceFlag, logger); err != nil {
		logger.Error("batch failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, startNonce int64, logger *slog.Logger) error {
	logger.Info("starting matchstats", slog.Any("config", cfg))

	acct, err := account.NewAccountFromHex(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	source, err := storage.OpenRecordSource(cfg.InputPath)
	if err != nil {
		return err
	}
	defer source.Close()

	records, err := source.LoadPlayerStats(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	logger.Info("loaded records", slog.Int("count", len(records)), slog.String("input", cfg.InputPath))

	rpcCfg := rpc.DefaultClientConfig(cfg.RPCURL)
	rpcCfg.Timeout = cfg.RPCTimeout
	rpcCfg.Logger = logger
	client, err := rpc.Dial(ctx, rpcCfg)
	if err != nil {
		return fmt.Errorf("connect to RPC: %w", err)
	}
	defer client.Close()

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("query chain ID: %w", err)
		}
	}

	var nonce uint64
	if startNonce >= 0 {
		nonce = uint64(startNonce)
	} else {
		nonce, err = acct.Resync(ctx, client)
		if err != nil {
			return fmt.Errorf("query pending nonce: %w", err)
		}
	}

	builder, err := txbuilder.NewStatsBuilder(cfg.Contract(), cfg.UseLegacyTx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheusMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var (
		runLog   storage.RunLog
		batchRun *storage.Run
	)
	if cfg.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		defer store.Close()

		batchRun = &storage.Run{
			InputPath:     cfg.InputPath,
			Sender:        acct.Address.Hex(),
			Contract:      cfg.Contract().Hex(),
			ChainID:       chainID.Int64(),
			StartingNonce: nonce,
		}
		if err := store.CreateRun(ctx, batchRun); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		runLog = store
		logger.Info("run created", slog.String("runID", batchRun.ID))
	}

	pipeCfg := pipeline.Config{
		Builder: builder,
		Account: acct,
		Fees:    client,
		Sender: sender.New(sender.Config{
			Client:       client,
			PollInterval: cfg.ReceiptPollInterval,
			Logger:       logger,
		}),
		ChainID:    chainID,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Prometheus: prom,
		Logger:     logger,
	}
	if runLog != nil {
		pipeCfg.RunLog = runLog
		pipeCfg.RunID = batchRun.ID
	}
	if cfg.MaxSubmitRate > 0 {
		pipeCfg.Limiter = ratelimit.New(cfg.MaxSubmitRate)
	}

	acc := metrics.NewAccumulator()
	_, batchErr := pipeline.New(pipeCfg).RunBatch(ctx, records, nonce, acc)
	if batchErr != nil {
		if runLog != nil {
			// The run context may already be cancelled.
			if err := runLog.FailRun(context.Background(), batchRun.ID, batchErr); err != nil {
				logger.Warn("failed to mark run failed", slog.String("error", err.Error()))
			}
		}
		return batchErr
	}

	summary := acc.Summarize(len(records))
	if runLog != nil {
		if err := runLog.CompleteRun(ctx, batchRun.ID, summary); err != nil {
			logger.Warn("failed to complete run", slog.String("error", err.Error()))
		}
	}

	logger.Info("batch completed",
		slog.Int("processed", summary.Processed),
		slog.Int("submitted", summary.Submitted),
		slog.String("totalGas", summary.TotalGas.String()),
		slog.String("avgGas", summary.AvgGas.String()),
		slog.Int64("avgLatencyMs", summary.AvgLatencyMs),
		slog.Float64("p95LatencyMs", summary.P95LatencyMs),
	)
	return summary.Print(os.Stdout)
}

// verifyRun re-fetches the receipts of a logged run and prints the result as JSON.
func verifyRun(ctx context.Context, cfg *config.Config, runID string, sampleSize int, logger *slog.Logger) error {
	if cfg.RPCURL == "" || cfg.DatabasePath == "" {
		return errors.New("-verify needs RPC_URL and DATABASE_PATH")
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer store.Close()

	if _, err := store.GetRun(ctx, runID); err != nil {
		return err
	}
	subs, err := store.ListSubmissions(ctx, runID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	rpcCfg := rpc.DefaultClientConfig(cfg.RPCURL)
	rpcCfg.Timeout = cfg.RPCTimeout
	rpcCfg.Logger = logger
	client, err := rpc.Dial(ctx, rpcCfg)
	if err != nil {
		return fmt.Errorf("connect to RPC: %w", err)
	}
	defer client.Close()

	result, err := verification.NewVerifier(client, logger).VerifySubmissions(ctx, subs, sampleSize)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.AllChecksPass {
		return fmt.Errorf("run %s: %d checks failed", runID, len(result.Warnings))
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}
