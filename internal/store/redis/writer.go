package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// ~1 week of 5-minute decisions per pair
	decisionStreamMaxLen = 2000
	fillStreamMaxLen     = 10000
	defaultLatestTTL     = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// LatestTTL is the expiry of the latest-decision keys. It should exceed
	// the check interval. Default: 30m.
	LatestTTL time.Duration
}

// Writer publishes decisions and fills to Redis.
//
// Keys per pair:
//
//	decision:latest:<pair>   SET with TTL
//	decision:stream:<pair>   XADD, trimmed
//	pub:decision:<pair>      PUBLISH
//	fill:stream              XADD, trimmed
//	pub:fill:<pair>          PUBLISH
type Writer struct {
	client    *goredis.Client
	latestTTL time.Duration
}

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	slog.Info("connected to redis", "addr", cfg.Addr)
	return &Writer{client: client, latestTTL: ttl}, nil
}

// WriteDecision stores and broadcasts one JSON-encoded decision in a
// single pipeline.
func (w *Writer) WriteDecision(ctx context.Context, pair string, data []byte) error {
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, "decision:latest:"+pair, jsonData, w.latestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "decision:stream:" + pair,
		MaxLen: decisionStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:decision:"+pair, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis decision pipeline %s: %w", pair, err)
	}
	return nil
}

// WriteFill appends one JSON-encoded fill to the fill stream and
// broadcasts it.
func (w *Writer) WriteFill(ctx context.Context, pair string, data []byte) error {
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "fill:stream",
		MaxLen: fillStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"pair": pair, "data": jsonData},
	})
	pipe.Publish(ctx, "pub:fill:"+pair, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis fill pipeline %s: %w", pair, err)
	}
	return nil
}

// LatestDecision returns the last decision stored for pair, or nil when
// none is live.
func (w *Writer) LatestDecision(ctx context.Context, pair string) ([]byte, error) {
	data, err := w.client.Get(ctx, "decision:latest:"+pair).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET decision:latest:%s: %w", pair, err)
	}
	return data, nil
}

// Ping checks connectivity.
func (w *Writer) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
