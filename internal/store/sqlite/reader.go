package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pitrader/internal/model"
)

// Reader provides read-only access to SQLite for exports and statistics.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Debug("opened sqlite reader", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadSamples returns the samples of pair strictly after after, ordered by
// timestamp ascending. An empty pair reads every pair.
func (r *Reader) ReadSamples(pair string, after time.Time) ([]model.PriceSample, error) {
	var from int64
	if !after.IsZero() {
		from = after.UnixNano()
	}
	rows, err := r.db.Query(`
		SELECT pair, ts, price
		FROM price_samples
		WHERE (? = '' OR pair = ?) AND ts > ?
		ORDER BY pair ASC, ts ASC
	`, pair, pair, from)
	if err != nil {
		return nil, fmt.Errorf("sqlite query price_samples: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// PairStats summarizes the stored history of one pair.
type PairStats struct {
	Pair     string    `json:"pair"`
	Count    int64     `json:"count"`
	First    time.Time `json:"first"`
	Last     time.Time `json:"last"`
	MinPrice float64   `json:"min_price"`
	MaxPrice float64   `json:"max_price"`
	AvgPrice float64   `json:"avg_price"`
}

// Stats returns per-pair statistics, ordered by pair.
func (r *Reader) Stats() ([]PairStats, error) {
	rows, err := r.db.Query(`
		SELECT pair, COUNT(*), MIN(ts), MAX(ts), MIN(price), MAX(price), AVG(price)
		FROM price_samples
		GROUP BY pair
		ORDER BY pair
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	defer rows.Close()

	var out []PairStats
	for rows.Next() {
		var (
			s           PairStats
			first, last int64
		)
		if err := rows.Scan(&s.Pair, &s.Count, &first, &last, &s.MinPrice, &s.MaxPrice, &s.AvgPrice); err != nil {
			return nil, fmt.Errorf("sqlite scan stats: %w", err)
		}
		s.First = time.Unix(0, first).UTC()
		s.Last = time.Unix(0, last).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
