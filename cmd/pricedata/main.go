// cmd/pricedata manages the stored price history the bot restores from.
//
// Usage:
//
//	go run ./cmd/pricedata stats
//	go run ./cmd/pricedata import --pair=eth_mxn --file=data/historical_prices.csv
//	go run ./cmd/pricedata export --pair=eth_mxn --from=2024-01-01T00:00:00Z > eth.csv
//
// The database defaults to SQLITE_PATH.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"pitrader/config"
	"pitrader/internal/logger"
	sqlitestore "pitrader/internal/store/sqlite"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pricedata <stats|import|export> [flags]")
	os.Exit(2)
}

func main() {
	log := logger.InitWriter(os.Stderr, "pricedata", slog.LevelInfo)
	if len(os.Args) < 2 {
		usage()
	}

	dbDefault := "data/pitrader.db"
	if cfg, err := config.Load(); err == nil {
		dbDefault = cfg.SQLitePath
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dbPath := fs.String("db", dbDefault, "Path to SQLite database")
	pair := fs.String("pair", "", "Book, e.g. eth_mxn")
	file := fs.String("file", "", "CSV file to import")
	fromStr := fs.String("from", "", "RFC3339 start time for export (empty = all)")
	fs.Parse(args)

	var err error
	switch cmd {
	case "stats":
		err = runStats(*dbPath)
	case "import":
		err = runImport(log, *dbPath, strings.ToLower(*pair), *file)
	case "export":
		err = runExport(*dbPath, strings.ToLower(*pair), *fromStr)
	default:
		usage()
	}
	if err != nil {
		log.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func runStats(dbPath string) error {
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	stats, err := reader.Stats()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("no price samples stored")
		return nil
	}
	fmt.Printf("%-10s %8s  %-20s  %-20s %12s %12s %12s\n", "PAIR", "COUNT", "FIRST", "LAST", "MIN", "MAX", "AVG")
	for _, s := range stats {
		fmt.Printf("%-10s %8d  %-20s  %-20s %12.2f %12.2f %12.2f\n",
			s.Pair, s.Count,
			s.First.Format("2006-01-02 15:04:05"), s.Last.Format("2006-01-02 15:04:05"),
			s.MinPrice, s.MaxPrice, s.AvgPrice)
	}
	return nil
}

func runImport(log *slog.Logger, dbPath, pair, file string) error {
	if pair == "" || file == "" {
		return fmt.Errorf("import needs --pair and --file")
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, skipped, err := readSamples(f, pair)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer w.Close()

	inserted, err := w.InsertBatch(samples)
	if err != nil {
		return err
	}
	last, _ := w.GetLastTimestamp(pair)
	log.Info("import complete",
		"pair", pair,
		"rows", len(samples),
		"inserted", inserted,
		"duplicates", len(samples)-inserted,
		"skipped", skipped,
		"last", last)
	return nil
}

func runExport(dbPath, pair, fromStr string) error {
	var from time.Time
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return fmt.Errorf("bad --from: %w", err)
		}
		from = t
	}
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	samples, err := reader.ReadSamples(pair, from)
	if err != nil {
		return err
	}
	return writeSamples(os.Stdout, samples)
}
