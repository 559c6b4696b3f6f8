package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gateway-fm/matchstats/internal/metrics"
	"github.com/gateway-fm/matchstats/internal/statcodec"
)

var (
	// ErrRunNotFound is returned by GetRun for an unknown id.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoPlayerStats is returned when an input database has no player_stats table.
	ErrNoPlayerStats = errors.New("player_stats table not found")
)

// SQLiteStorage implements RecordSource and RunLog using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// OpenSQLiteRecords opens an existing input database read-only. Unlike
// NewSQLiteStorage it never creates the file or touches the schema.
func OpenSQLiteRecords(dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open input database: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'player_stats'`).Scan(&name)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", dbPath, ErrNoPlayerStats)
		}
		return nil, fmt.Errorf("inspect %s: %w", dbPath, err)
	}

	return &SQLiteStorage{db: db}, nil
}

// migrate creates the schema. Column names of player_stats match the JSON
// field names; goles is nullable and NULL marks an incomplete record.
func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS player_stats (
		rowid_ INTEGER PRIMARY KEY AUTOINCREMENT,
		id INTEGER NOT NULL,
		goles INTEGER,
		asistencias INTEGER NOT NULL DEFAULT 0,
		penaltisParados INTEGER NOT NULL DEFAULT 0,
		paradas INTEGER NOT NULL DEFAULT 0,
		despejes INTEGER NOT NULL DEFAULT 0,
		minutosJugados INTEGER NOT NULL DEFAULT 0,
		tarjetasAmarillas INTEGER NOT NULL DEFAULT 0,
		tarjetasRojas INTEGER NOT NULL DEFAULT 0,
		porteriaCero INTEGER NOT NULL DEFAULT 0,
		ganoPartido INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		input_path TEXT,
		sender TEXT,
		contract TEXT,
		chain_id INTEGER DEFAULT 0,
		starting_nonce INTEGER DEFAULT 0,
		processed INTEGER DEFAULT 0,
		submitted INTEGER DEFAULT 0,
		total_gas TEXT DEFAULT '0',
		avg_gas TEXT DEFAULT '0',
		avg_latency_ms INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		nonce INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		stats TEXT NOT NULL,
		gas_used INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_run ON submissions(run_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_hash ON submissions(tx_hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadPlayerStats returns every row of player_stats in insertion order.
// Ordering uses the implicit rowid so tables created by other tools work too.
func (s *SQLiteStorage) LoadPlayerStats(ctx context.Context) ([]statcodec.PlayerStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goles, asistencias, penaltisParados, paradas, despejes,
			minutosJugados, tarjetasAmarillas, tarjetasRojas, porteriaCero, ganoPartido
		FROM player_stats
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query player_stats: %w", err)
	}
	defer rows.Close()

	var stats []statcodec.PlayerStat
	for rows.Next() {
		var st statcodec.PlayerStat
		var goles sql.NullInt64

		err := rows.Scan(&st.ID, &goles, &st.Asistencias, &st.PenaltisParados, &st.Paradas, &st.Despejes,
			&st.MinutosJugados, &st.TarjetasAmarillas, &st.TarjetasRojas, &st.PorteriaCero, &st.GanoPartido)
		if err != nil {
			return nil, err
		}
		if goles.Valid {
			st.Goles = statcodec.IntPtr(int(goles.Int64))
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// InsertPlayerStats appends records to player_stats in a single transaction.
func (s *SQLiteStorage) InsertPlayerStats(ctx context.Context, stats []statcodec.PlayerStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO player_stats (id, goles, asistencias, penaltisParados, paradas, despejes,
			minutosJugados, tarjetasAmarillas, tarjetasRojas, porteriaCero, ganoPartido)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range stats {
		var goles sql.NullInt64
		if st.Goles != nil {
			goles = sql.NullInt64{Int64: int64(*st.Goles), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, st.ID, goles, st.Asistencias, st.PenaltisParados, st.Paradas, st.Despejes,
			st.MinutosJugados, st.TarjetasAmarillas, st.TarjetasRojas, st.PorteriaCero, st.GanoPartido)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CreateRun inserts a run in the running state. An empty ID is filled with a new UUID.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunStatusRunning

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, input_path, sender, contract, chain_id, starting_nonce)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Status, run.InputPath, run.Sender, run.Contract, run.ChainID, run.StartingNonce)
	return err
}

// CompleteRun stores the final summary and marks the run completed.
func (s *SQLiteStorage) CompleteRun(ctx context.Context, id string, summary metrics.Summary) error {
	totalGas, avgGas := "0", "0"
	if summary.TotalGas != nil {
		totalGas = summary.TotalGas.String()
	}
	if summary.AvgGas != nil {
		avgGas = summary.AvgGas.String()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			completed_at = ?,
			status = ?,
			processed = ?,
			submitted = ?,
			total_gas = ?,
			avg_gas = ?,
			avg_latency_ms = ?
		WHERE id = ?
	`, time.Now().UTC(), RunStatusCompleted, summary.Processed, summary.Submitted,
		totalGas, avgGas, summary.AvgLatencyMs, id)
	return err
}

// FailRun marks the run failed with the aborting error.
func (s *SQLiteStorage) FailRun(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET completed_at = ?, status = ?, error_message = ?
		WHERE id = ?
	`, time.Now().UTC(), RunStatusFailed, nullString(msg), id)
	return err
}

// GetRun retrieves a single run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var completedAt sql.NullTime
	var inputPath, sender, contract, errorMsg sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, status, input_path, sender, contract, chain_id,
			starting_nonce, processed, submitted, total_gas, avg_gas, avg_latency_ms, error_message
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.StartedAt, &completedAt, &run.Status, &inputPath, &sender, &contract, &run.ChainID,
		&run.StartingNonce, &run.Processed, &run.Submitted, &run.TotalGas, &run.AvgGas, &run.AvgLatencyMs, &errorMsg)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.InputPath = inputPath.String
	run.Sender = sender.String
	run.Contract = contract.String
	run.ErrorMessage = errorMsg.String

	return &run, nil
}

// RecordSubmission appends one confirmed outcome to the run.
func (s *SQLiteStorage) RecordSubmission(ctx context.Context, runID string, o metrics.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (run_id, record_id, nonce, tx_hash, stats, gas_used, latency_ms, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, o.RecordID, o.Nonce, o.TxHash, o.Word, o.GasUsed, o.LatencyMs, o.Attempts, time.Now().UTC())
	if err != nil {
		slog.Debug("failed to insert submission",
			"runID", runID,
			"recordID", o.RecordID,
			"error", err.Error())
	}
	return err
}

// ListSubmissions returns the run's submissions in nonce order.
func (s *SQLiteStorage) ListSubmissions(ctx context.Context, runID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, record_id, nonce, tx_hash, stats, gas_used, latency_ms, attempts, created_at
		FROM submissions
		WHERE run_id = ?
		ORDER BY nonce
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.RunID, &sub.RecordID, &sub.Nonce, &sub.TxHash, &sub.Stats,
			&sub.GasUsed, &sub.LatencyMs, &sub.Attempts, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
