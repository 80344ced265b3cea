package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
)

// SQLiteStore implements SnapshotStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed snapshot store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Mid-day accounting state, one row per calendar day
	CREATE TABLE IF NOT EXISTS day_state (
		date TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		cash REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		start_capital REAL NOT NULL,
		original_capital REAL NOT NULL,
		max_capital REAL NOT NULL,
		min_capital REAL NOT NULL,
		trading_days INTEGER NOT NULL,
		positions TEXT NOT NULL,
		traded_today TEXT NOT NULL,
		blocked_codes TEXT NOT NULL,
		last_updated DATETIME NOT NULL
	);

	-- Day-scoped transaction history
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		amount REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		tag TEXT,
		buy_id TEXT,
		profit REAL,
		profit_rate REAL,
		exit_reason TEXT
	);

	-- Finalized day history
	CREATE TABLE IF NOT EXISTS daily_returns (
		date TEXT PRIMARY KEY,
		start_capital REAL NOT NULL,
		end_capital REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		daily_return REAL NOT NULL,
		cumulative_return REAL NOT NULL,
		trade_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date, seq);
	CREATE INDEX IF NOT EXISTS idx_transactions_code ON transactions(code);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadPriorEndingCapital scans back at most LookbackDays before date (a
// "20060102" key) for the most recent finalized day.
func (s *SQLiteStore) LoadPriorEndingCapital(ctx context.Context, date string) (float64, bool, error) {
	day, err := time.Parse("20060102", date)
	if err != nil {
		return 0, false, errs.NewStoreError("load_prior", date, err)
	}

	for i := 1; i <= LookbackDays; i++ {
		key := day.AddDate(0, 0, -i).Format("20060102")

		var endCapital float64
		err := s.db.QueryRowContext(ctx, `
			SELECT end_capital FROM daily_returns WHERE date = ?
		`, key).Scan(&endCapital)
		if err == nil {
			return endCapital, true, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, errs.NewStoreError("load_prior", key, err)
		}

		// A day can end without an explicit finalize; fall back to its
		// last saved state.
		state, _, err := s.LoadDayState(ctx, key)
		if err != nil {
			return 0, false, err
		}
		if state != nil {
			return state.Total(), true, nil
		}
	}

	return 0, false, nil
}

// LoadPriorWatermarks returns the lifetime capital high and low recorded
// by the most recent day_state row before date.
func (s *SQLiteStore) LoadPriorWatermarks(ctx context.Context, date string) (float64, float64, bool, error) {
	var max, min float64
	err := s.db.QueryRowContext(ctx, `
		SELECT max_capital, min_capital FROM day_state
		WHERE date < ? ORDER BY date DESC LIMIT 1
	`, date).Scan(&max, &min)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, errs.NewStoreError("load_watermarks", date, err)
	}
	return max, min, true, nil
}

// LoadDayState returns the persisted state for date, or nil if none exists.
func (s *SQLiteStore) LoadDayState(ctx context.Context, date string) (*models.PortfolioState, []models.Transaction, error) {
	var (
		version                          int
		positionsJSON, tradedJSON, blockedJSON string
		state                            models.PortfolioState
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT schema_version, cash, daily_pnl, start_capital, original_capital,
		       max_capital, min_capital, trading_days, positions, traded_today,
		       blocked_codes, last_updated
		FROM day_state WHERE date = ?
	`, date).Scan(&version, &state.Cash, &state.DailyPnL, &state.StartCapital,
		&state.OriginalCapital, &state.MaxCapital, &state.MinCapital,
		&state.TradingDays, &positionsJSON, &tradedJSON, &blockedJSON,
		&state.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errs.NewStoreError("load_day", date, err)
	}

	if version > SchemaVersion {
		return nil, nil, errs.NewStoreError("load_day", date,
			fmt.Errorf("unsupported schema version %d", version))
	}

	state.Date = date
	if err := json.Unmarshal([]byte(positionsJSON), &state.Positions); err != nil {
		return nil, nil, errs.NewStoreError("load_day", date, err)
	}
	if err := json.Unmarshal([]byte(tradedJSON), &state.TradedToday); err != nil {
		return nil, nil, errs.NewStoreError("load_day", date, err)
	}
	if err := json.Unmarshal([]byte(blockedJSON), &state.BlockedCodes); err != nil {
		return nil, nil, errs.NewStoreError("load_day", date, err)
	}

	// Derived, never trusted from the stored row.
	state.RecomputeInvested()

	txs, err := s.loadTransactions(ctx, date)
	if err != nil {
		return nil, nil, err
	}

	return &state, txs, nil
}

func (s *SQLiteStore) loadTransactions(ctx context.Context, date string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, code, name, quantity, price, amount, timestamp, tag,
		       buy_id, profit, profit_rate, exit_reason
		FROM transactions WHERE date = ? ORDER BY seq ASC
	`, date)
	if err != nil {
		return nil, errs.NewStoreError("load_transactions", date, err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t                  models.Transaction
			tag, buyID, reason sql.NullString
			profit, rate       sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.Kind, &t.Code, &t.Name, &t.Quantity,
			&t.Price, &t.Amount, &t.Timestamp, &tag, &buyID, &profit, &rate,
			&reason); err != nil {
			return nil, errs.NewStoreError("load_transactions", date, err)
		}
		t.Tag = tag.String
		t.BuyID = buyID.String
		t.Profit = profit.Float64
		t.ProfitRate = rate.Float64
		t.ExitReason = models.ExitReason(reason.String)
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStoreError("load_transactions", date, err)
	}
	return txs, nil
}

// SaveDayState writes the full current-day state in one transaction, so a
// crash mid-write never leaves a partially updated day.
func (s *SQLiteStore) SaveDayState(ctx context.Context, state models.PortfolioState, txs []models.Transaction) error {
	positionsJSON, err := json.Marshal(emptySlice(state.Positions))
	if err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}
	tradedJSON, _ := json.Marshal(emptySlice(state.TradedToday))
	blockedJSON, _ := json.Marshal(emptySlice(state.BlockedCodes))

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, `
		INSERT OR REPLACE INTO day_state (date, schema_version, cash, daily_pnl,
			start_capital, original_capital, max_capital, min_capital,
			trading_days, positions, traded_today, blocked_codes, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, state.Date, SchemaVersion, state.Cash, state.DailyPnL, state.StartCapital,
		state.OriginalCapital, state.MaxCapital, state.MinCapital,
		state.TradingDays, string(positionsJSON), string(tradedJSON),
		string(blockedJSON), time.Now())
	if err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE date = ?`, state.Date); err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO transactions (id, date, seq, kind, code, name, quantity,
			price, amount, timestamp, tag, buy_id, profit, profit_rate, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}
	defer stmt.Close()

	for i, t := range txs {
		_, err := stmt.ExecContext(ctx, t.ID, state.Date, i, t.Kind, t.Code,
			t.Name, t.Quantity, t.Price, t.Amount, t.Timestamp, t.Tag, t.BuyID,
			t.Profit, t.ProfitRate, string(t.ExitReason))
		if err != nil {
			return errs.NewStoreError("save_day", state.Date, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return errs.NewStoreError("save_day", state.Date, err)
	}

	return nil
}

// FinalizeDay records one finalized day, replacing any existing entry for
// the same date.
func (s *SQLiteStore) FinalizeDay(ctx context.Context, snap models.DailySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_returns (date, start_capital, end_capital,
			daily_pnl, daily_return, cumulative_return, trade_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.Date, snap.StartCapital, snap.EndCapital, snap.DailyPnL,
		snap.DailyReturn, snap.CumulativeReturn, snap.TradeCount)
	if err != nil {
		return errs.NewStoreError("finalize_day", snap.Date, err)
	}
	return nil
}

// DeleteDayState removes the mid-day state and transactions for date.
func (s *SQLiteStore) DeleteDayState(ctx context.Context, date string) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStoreError("delete_day", date, err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE date = ?`, date); err != nil {
		return errs.NewStoreError("delete_day", date, err)
	}
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM day_state WHERE date = ?`, date); err != nil {
		return errs.NewStoreError("delete_day", date, err)
	}

	if err := dbtx.Commit(); err != nil {
		return errs.NewStoreError("delete_day", date, err)
	}
	return nil
}

// History returns finalized days in date order.
func (s *SQLiteStore) History(ctx context.Context, filter HistoryFilter) ([]models.DailySnapshot, error) {
	query := `SELECT date, start_capital, end_capital, daily_pnl, daily_return,
		cumulative_return, trade_count FROM daily_returns WHERE 1=1`
	args := []interface{}{}

	if filter.From != "" {
		query += " AND date >= ?"
		args = append(args, filter.From)
	}
	if filter.To != "" {
		query += " AND date <= ?"
		args = append(args, filter.To)
	}

	query += " ORDER BY date ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewStoreError("history", "", err)
	}
	defer rows.Close()

	var history []models.DailySnapshot
	for rows.Next() {
		var d models.DailySnapshot
		if err := rows.Scan(&d.Date, &d.StartCapital, &d.EndCapital,
			&d.DailyPnL, &d.DailyReturn, &d.CumulativeReturn,
			&d.TradeCount); err != nil {
			return nil, errs.NewStoreError("history", "", err)
		}
		history = append(history, d)
	}

	return history, rows.Err()
}

// emptySlice maps nil to an empty slice so stored JSON is always an array.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
