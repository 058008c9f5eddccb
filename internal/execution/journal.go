package execution

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pitrader/internal/model"
)

// Journal persists fills to SQLite for audit and for rebuilding the
// portfolio after a restart. It implements model.FillJournal.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the fills table in the database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT    NOT NULL,
		pair        TEXT    NOT NULL,
		action      TEXT    NOT NULL,
		price       REAL    NOT NULL,
		size        REAL    NOT NULL,
		notional    REAL    NOT NULL,
		fee         REAL    NOT NULL DEFAULT 0,
		slippage    REAL    NOT NULL DEFAULT 0,
		reason      TEXT,
		dry_run     INTEGER NOT NULL DEFAULT 1,
		filled_at   INTEGER NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_pair ON fills(pair);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	slog.Info("opened fill journal", "path", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill.
func (j *Journal) RecordFill(fill model.Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, pair, action, price, size, notional, fee, slippage, reason, dry_run, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID, fill.Pair, string(fill.Action),
		fill.Price, fill.Size, fill.Notional, fill.Fee, fill.Slippage,
		fill.Reason, fill.DryRun, fill.FilledAt.UnixNano(),
	)
	return err
}

// Fills returns every fill at or after since, oldest first.
func (j *Journal) Fills(since time.Time) ([]model.Fill, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := j.db.Query(
		`SELECT order_id, pair, action, price, size, notional, fee, slippage, COALESCE(reason, ''), dry_run, filled_at
		 FROM fills WHERE filled_at >= ? ORDER BY filled_at ASC, id ASC`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFills(rows)
}

// Recent returns the last limit fills, newest first.
func (j *Journal) Recent(limit int) ([]model.Fill, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT order_id, pair, action, price, size, notional, fee, slippage, COALESCE(reason, ''), dry_run, filled_at
		 FROM fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFills(rows)
}

func scanFills(rows *sql.Rows) ([]model.Fill, error) {
	var fills []model.Fill
	for rows.Next() {
		var (
			f      model.Fill
			action string
			ns     int64
		)
		if err := rows.Scan(&f.OrderID, &f.Pair, &action, &f.Price, &f.Size, &f.Notional,
			&f.Fee, &f.Slippage, &f.Reason, &f.DryRun, &ns); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		f.Action = model.Action(action)
		f.FilledAt = time.Unix(0, ns).UTC()
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// Ping checks the database connection.
func (j *Journal) Ping() error { return j.db.Ping() }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
