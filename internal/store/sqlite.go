package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ReversalFlow/internal/model"
)

const barColumns = `symbol, datetime, timeframe, open, high, low, close, volume,
	rsi, sma_20, pct_change_5d, pct_change_10d, is_oversold`

// SQLiteStore persists enriched bars and staleness markers to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex // single writer
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
// The parent directory of dbPath is created if missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." && !strings.HasPrefix(dbPath, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

// WithClock replaces the clock used for staleness markers.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

// dsn applies the pragmas to every pooled connection. WAL mode lets
// dashboard reads proceed while collection writes.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			symbol         TEXT,
			datetime       TEXT,
			timeframe      TEXT,
			open           REAL,
			high           REAL,
			low            REAL,
			close          REAL,
			volume         INTEGER,
			rsi            REAL NULL,
			sma_20         REAL NULL,
			pct_change_5d  REAL NULL,
			pct_change_10d REAL NULL,
			is_oversold    BOOLEAN NULL,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, datetime, timeframe)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_symbol_tf ON stock_data(symbol, timeframe, datetime)`,

		`CREATE TABLE IF NOT EXISTS data_updates (
			symbol      TEXT PRIMARY KEY,
			last_update TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

type seriesKey struct {
	symbol    string
	timeframe model.Timeframe
}

// ReplaceBars replaces, in one transaction, every stored row of each
// (symbol, timeframe) present in bars with the batch. Other series are
// untouched. Duplicate keys within the batch collapse to the last one.
func (s *SQLiteStore) ReplaceBars(ctx context.Context, bars []model.EnrichedBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cleared := make(map[seriesKey]bool)
	for _, b := range bars {
		k := seriesKey{b.Symbol, b.Timeframe}
		if cleared[k] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM stock_data WHERE symbol = ? AND timeframe = ?`,
			b.Symbol, string(b.Timeframe)); err != nil {
			return fmt.Errorf("clear %s/%s: %w", b.Symbol, b.Timeframe, err)
		}
		cleared[k] = true
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO stock_data
		(`+barColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Time.UTC().Format(model.DateTimeLayout), string(b.Timeframe),
			b.Open, b.High, b.Low, b.Close, b.Volume,
			b.RSI, b.SMA, b.PctChange5d, b.PctChange10d, b.IsOversold,
		); err != nil {
			return fmt.Errorf("insert %s %s: %w", b.Symbol, b.Time.Format(model.DateTimeLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MarkUpdated sets the staleness marker of symbol to now.
func (s *SQLiteStore) MarkUpdated(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO data_updates (symbol, last_update)
		VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET last_update = excluded.last_update`,
		symbol, s.now().UTC().Format(model.DateTimeLayout))
	if err != nil {
		return fmt.Errorf("mark updated %s: %w", symbol, err)
	}
	return nil
}

// History returns bars for one symbol, newest first. limit <= 0 means no cap.
func (s *SQLiteStore) History(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.EnrichedBar, error) {
	q := `SELECT ` + barColumns + ` FROM stock_data
		WHERE symbol = ? AND timeframe = ?
		ORDER BY datetime DESC`
	args := []any{symbol, string(timeframe)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	bars, err := s.queryBars(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	return bars, nil
}

const latestPerSymbol = `SELECT ` + barColumns + ` FROM stock_data s
	WHERE s.timeframe = ?
	  AND s.datetime = (
		SELECT MAX(s2.datetime) FROM stock_data s2
		WHERE s2.symbol = s.symbol AND s2.timeframe = s.timeframe
	  )`

// LatestSnapshot returns the most recent bar of every stored symbol, ordered by symbol.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, timeframe model.Timeframe) ([]model.EnrichedBar, error) {
	bars, err := s.queryBars(ctx, latestPerSymbol+` ORDER BY s.symbol`, string(timeframe))
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return bars, nil
}

// LatestOversold returns the latest bars that are flagged oversold, most
// oversold (lowest RSI) first.
func (s *SQLiteStore) LatestOversold(ctx context.Context, timeframe model.Timeframe) ([]model.EnrichedBar, error) {
	bars, err := s.queryBars(ctx,
		latestPerSymbol+` AND s.is_oversold = 1 ORDER BY s.rsi ASC, s.symbol`, string(timeframe))
	if err != nil {
		return nil, fmt.Errorf("latest oversold: %w", err)
	}
	return bars, nil
}

// SymbolsNeedingRefresh returns the watchlist members with no marker or a
// marker older than hours, in watchlist order.
func (s *SQLiteStore) SymbolsNeedingRefresh(ctx context.Context, watchlist []string, hours float64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, CAST(last_update AS TEXT) FROM data_updates`)
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	defer rows.Close()

	markers := make(map[string]time.Time)
	for rows.Next() {
		var symbol, ts string
		if err := rows.Scan(&symbol, &ts); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		t, err := time.Parse(model.DateTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse marker %s=%q: %w", symbol, ts, err)
		}
		markers[symbol] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}

	cutoff := s.now().UTC().Add(-time.Duration(hours * float64(time.Hour)))
	var stale []string
	for _, symbol := range watchlist {
		t, ok := markers[symbol]
		if !ok || t.Before(cutoff) {
			stale = append(stale, symbol)
		}
	}
	return stale, nil
}

// Stats summarizes the stored rows.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, COUNT(*) FROM stock_data GROUP BY symbol ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := &model.StoreStats{}
	for rows.Next() {
		var sc model.SymbolCount
		if err := rows.Scan(&sc.Symbol, &sc.Bars); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.PerSymbol = append(stats.PerSymbol, sc)
		stats.TotalBars += sc.Bars
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	stats.Symbols = len(stats.PerSymbol)
	return stats, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryBars(ctx context.Context, query string, args ...any) ([]model.EnrichedBar, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bars := []model.EnrichedBar{}
	for rows.Next() {
		var (
			b      model.EnrichedBar
			ts, tf string
		)
		if err := rows.Scan(
			&b.Symbol, &ts, &tf,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.RSI, &b.SMA, &b.PctChange5d, &b.PctChange10d, &b.IsOversold,
		); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		t, err := time.Parse(model.DateTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse datetime %q: %w", ts, err)
		}
		b.Time = t
		b.Timeframe = model.Timeframe(tf)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
