package storage

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/gateway-fm/matchstats/internal/metrics"
	"github.com/gateway-fm/matchstats/internal/statcodec"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "stats.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPlayerStatsRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	in := []statcodec.PlayerStat{
		{ID: 1, Goles: statcodec.IntPtr(2), Asistencias: 1, Paradas: 5, Despejes: 10, MinutosJugados: 90, GanoPartido: true},
		{ID: 2, Asistencias: 3},
		{ID: 3, Goles: statcodec.IntPtr(0), TarjetasAmarillas: 2, TarjetasRojas: 1, PorteriaCero: true},
	}
	if err := s.InsertPlayerStats(ctx, in); err != nil {
		t.Fatalf("InsertPlayerStats() error = %v", err)
	}

	got, err := s.LoadPlayerStats(ctx)
	if err != nil {
		t.Fatalf("LoadPlayerStats() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := range in {
		if got[i].ID != in[i].ID {
			t.Errorf("row %d ID = %d, want %d", i, got[i].ID, in[i].ID)
		}
	}
	if got[1].Goles != nil {
		t.Errorf("NULL goles loaded as %d, want nil", *got[1].Goles)
	}
	if got[2].Goles == nil || *got[2].Goles != 0 {
		t.Errorf("goles = %v, want 0", got[2].Goles)
	}
	if !got[2].PorteriaCero || got[2].TarjetasRojas != 1 {
		t.Errorf("row 3 = %+v", got[2])
	}

	w, err := statcodec.Pack(got[0])
	if err != nil || w.String() != "0x878a0512" {
		t.Errorf("Pack(row 1) = %s, %v, want 0x878a0512", w, err)
	}
}

func TestLoadPlayerStatsEmpty(t *testing.T) {
	got, err := newTestStorage(t).LoadPlayerStats(context.Background())
	if err != nil {
		t.Fatalf("LoadPlayerStats() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	run := &Run{InputPath: "stats.json", Sender: "0xabc", ChainID: 1337, StartingNonce: 5}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if len(run.ID) != 36 {
		t.Fatalf("run ID = %q, want UUID", run.ID)
	}

	outcomes := []metrics.Outcome{
		{RecordID: 2, Nonce: 6, TxHash: "0x02", Word: "0x00000001", GasUsed: 47000, LatencyMs: 800, Attempts: 1},
		{RecordID: 1, Nonce: 5, TxHash: "0x01", Word: "0x878a0512", GasUsed: 46000, LatencyMs: 1200, Attempts: 2},
	}
	for _, o := range outcomes {
		if err := s.RecordSubmission(ctx, run.ID, o); err != nil {
			t.Fatalf("RecordSubmission() error = %v", err)
		}
	}

	summary := metrics.Summary{
		Processed: 3, Submitted: 2,
		TotalGas: big.NewInt(93000), AvgGas: big.NewInt(31000), AvgLatencyMs: 667,
	}
	if err := s.CompleteRun(ctx, run.ID, summary); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != RunStatusCompleted || got.CompletedAt == nil {
		t.Errorf("status = %q completedAt = %v, want completed", got.Status, got.CompletedAt)
	}
	if got.TotalGas != "93000" || got.AvgGas != "31000" || got.Processed != 3 || got.Submitted != 2 {
		t.Errorf("run = %+v", got)
	}
	if got.StartingNonce != 5 || got.InputPath != "stats.json" {
		t.Errorf("run = %+v", got)
	}

	subs, err := s.ListSubmissions(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("len(subs) = %d, want 2", len(subs))
	}
	if subs[0].Nonce != 5 || subs[0].Stats != "0x878a0512" || subs[0].Attempts != 2 {
		t.Errorf("subs[0] = %+v, want nonce 5 first", subs[0])
	}
}

func TestFailRun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	run := &Run{}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := s.FailRun(ctx, run.ID, errors.New("record 2: goles = 9 exceeds max 8")); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != RunStatusFailed || got.ErrorMessage == "" {
		t.Errorf("run = %+v, want failed with message", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	_, err := newTestStorage(t).GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSubmissionRequiresRun(t *testing.T) {
	s := newTestStorage(t)
	err := s.RecordSubmission(context.Background(), "missing", metrics.Outcome{RecordID: 1, TxHash: "0x01", Word: "0x00000000"})
	if err == nil {
		t.Error("RecordSubmission() for unknown run error = nil, want foreign key error")
	}
}

func TestOpenSQLiteRecordsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.db")

	_, err := OpenRecordSource(path)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenRecordSource() error = %v, want fs.ErrNotExist", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("input database was created: stat error = %v", err)
	}
}

func TestOpenSQLiteRecordsMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE players (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := OpenSQLiteRecords(path); !errors.Is(err, ErrNoPlayerStats) {
		t.Errorf("OpenSQLiteRecords() error = %v, want ErrNoPlayerStats", err)
	}
}

func TestOpenSQLiteRecordsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE player_stats (
			id INTEGER, goles INTEGER, asistencias INTEGER, penaltisParados INTEGER,
			paradas INTEGER, despejes INTEGER, minutosJugados INTEGER,
			tarjetasAmarillas INTEGER, tarjetasRojas INTEGER,
			porteriaCero INTEGER, ganoPartido INTEGER
		);
		INSERT INTO player_stats VALUES (1, 2, 1, 0, 5, 10, 90, 0, 0, 0, 1);
		INSERT INTO player_stats VALUES (2, NULL, 0, 0, 0, 0, 0, 0, 0, 0, 0);
	`)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := OpenSQLiteRecords(path)
	if err != nil {
		t.Fatalf("OpenSQLiteRecords() error = %v", err)
	}
	defer s.Close()

	stats, err := s.LoadPlayerStats(context.Background())
	if err != nil {
		t.Fatalf("LoadPlayerStats() error = %v", err)
	}
	if len(stats) != 2 || stats[0].ID != 1 || stats[1].Goles != nil {
		t.Errorf("stats = %+v", stats)
	}

	if err := s.CreateRun(context.Background(), &Run{InputPath: path}); err == nil {
		t.Error("CreateRun() on read-only input error = nil, want error")
	}
}
