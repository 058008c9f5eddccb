package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the bot from concrete storage implementations
// (SQLite, Redis). Each implementation satisfies one or more of them.

// SampleStore persists price samples so history survives restarts.
type SampleStore interface {
	// SaveSample stores one sample. Duplicate (pair, ts) keys are ignored.
	SaveSample(ctx context.Context, s PriceSample) error

	// LoadRecent returns up to limit of the newest samples for pair, oldest first.
	LoadRecent(ctx context.Context, pair string, limit int) ([]PriceSample, error)

	// Close releases underlying resources.
	Close() error
}

// FillJournal records executed fills for audit and portfolio replay.
type FillJournal interface {
	RecordFill(fill Fill) error
	Fills(since time.Time) ([]Fill, error)
	Close() error
}
