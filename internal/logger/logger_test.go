package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriter_JSONWithService(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := InitWriter(&buf, "pitrader-test", slog.LevelInfo)
	l.Debug("hidden")
	l.Info("cycle complete", "pair", "eth_mxn")

	line := strings.TrimSpace(buf.String())
	require.NotContains(t, line, "\n", "expected exactly one line")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "pitrader-test", rec["service"])
	assert.Equal(t, "eth_mxn", rec["pair"])
	assert.Equal(t, "cycle complete", rec["msg"])
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceID(ctx))

	ctx = WithTraceID(ctx, "eth_mxn-123")
	assert.Equal(t, "eth_mxn-123", TraceID(ctx))
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	tid := GenerateTraceID("eth_mxn", ts)

	assert.True(t, strings.HasPrefix(tid, "eth_mxn-"), tid)
	assert.Contains(t, tid, "123456789")
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, LogWithTrace(ctx))

	ctx = WithTraceID(ctx, "abc-123")
	attrs := LogWithTrace(ctx)
	require.Len(t, attrs, 1)
	assert.Equal(t, slog.String("trace_id", "abc-123"), attrs[0])
}
