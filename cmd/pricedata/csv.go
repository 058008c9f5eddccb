package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pitrader/internal/model"
)

// Layouts accepted in the timestamp column, besides unix seconds. The
// space-separated ones are what pandas writes.
var tsLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

func parseTS(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// readSamples parses a timestamp,price CSV with a header row. Columns are
// located by name so extra columns are ignored. Rows with a non-positive
// or unparseable price are skipped and counted.
func readSamples(r io.Reader, pair string) (samples []model.PriceSample, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	tsCol, priceCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp":
			tsCol = i
		case "price":
			priceCol = i
		}
	}
	if tsCol < 0 || priceCol < 0 {
		return nil, 0, errors.New("csv must have timestamp and price columns")
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, skipped, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= tsCol || len(rec) <= priceCol {
			skipped++
			continue
		}
		ts, err := parseTS(rec[tsCol])
		if err != nil {
			skipped++
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[priceCol]), 64)
		if err != nil || !(price > 0) {
			skipped++
			continue
		}
		samples = append(samples, model.PriceSample{Pair: pair, TS: ts, Price: price})
	}
	return samples, skipped, nil
}

// writeSamples writes pair,timestamp,price rows with an RFC3339 timestamp.
func writeSamples(w io.Writer, samples []model.PriceSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pair", "timestamp", "price"}); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{
			s.Pair,
			s.TS.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(s.Price, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
