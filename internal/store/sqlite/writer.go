package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pitrader/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/pitrader.db"
}

// Writer owns the single write connection to the price database. It
// implements model.SampleStore.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("opened price database", "path", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_samples (
			pair   TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			price  REAL    NOT NULL,
			PRIMARY KEY (pair, ts)
		);
	`)
	return err
}

// SaveSample stores one sample. A sample with an existing (pair, ts) key
// is ignored.
func (w *Writer) SaveSample(ctx context.Context, s model.PriceSample) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO price_samples (pair, ts, price) VALUES (?, ?, ?)`,
		s.Pair, s.TS.UnixNano(), s.Price)
	if err != nil {
		return fmt.Errorf("sqlite insert sample: %w", err)
	}
	return nil
}

// LoadRecent returns up to limit of the newest samples for pair, oldest first.
func (w *Writer) LoadRecent(ctx context.Context, pair string, limit int) ([]model.PriceSample, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := w.db.QueryContext(ctx, `
		SELECT pair, ts, price FROM price_samples
		WHERE pair = ?
		ORDER BY ts DESC
		LIMIT ?
	`, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query recent: %w", err)
	}
	defer rows.Close()

	samples, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Run reads samples from sampleCh and inserts them in batched transactions.
// Flushes every batchSize samples OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or sampleCh is closed.
func (w *Writer) Run(ctx context.Context, sampleCh <-chan model.PriceSample) {
	batch := make([]model.PriceSample, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if n, err := w.InsertBatch(batch); err != nil {
			slog.Error("sqlite batch insert failed", "error", err)
		} else {
			slog.Debug("sqlite batch committed", "rows", n, "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case s, ok := <-sampleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, s)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertBatch inserts samples in a single transaction and returns how many
// were new.
func (w *Writer) InsertBatch(samples []model.PriceSample) (int, error) {
	tx, err := w.db.Begin()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO price_samples (pair, ts, price) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range samples {
		res, err := stmt.Exec(s.Pair, s.TS.UnixNano(), s.Price)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetLastTimestamp returns the newest stored timestamp for pair, or the
// zero time when none exist.
func (w *Writer) GetLastTimestamp(pair string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM price_samples WHERE pair = ?`, pair).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ts.Int64).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

func scanSamples(rows *sql.Rows) ([]model.PriceSample, error) {
	var samples []model.PriceSample
	for rows.Next() {
		var (
			s  model.PriceSample
			ns int64
		)
		if err := rows.Scan(&s.Pair, &ns, &s.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan price_samples: %w", err)
		}
		s.TS = time.Unix(0, ns).UTC()
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
