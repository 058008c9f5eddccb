package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the first series of the named metric.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CyclesTotal.WithLabelValues("eth_mxn", ResultOK).Inc()
	m.CyclesTotal.WithLabelValues("eth_mxn", ResultOK).Inc()
	assert.Equal(t, 2.0, gathered(t, reg, "pitrader_cycles_total"))

	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestBreakerStateChanged(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.BreakerStateChanged(1)
	m.BreakerStateChanged(2)
	m.BreakerStateChanged(0)

	assert.Equal(t, 0.0, gathered(t, reg, "pitrader_redis_circuit_breaker_state"))
	assert.Equal(t, 1.0, gathered(t, reg, "pitrader_redis_circuit_breaker_trips_total"))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func serveHealth(t *testing.T, h *HealthStatus) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_Healthy(t *testing.T) {
	h := NewHealthStatus(15 * time.Minute)
	h.SetSQLiteOK(true)
	h.SetExchangeOK(true)
	h.SetMode(true, []string{"eth_mxn"})
	h.SetLastTickTime(time.Now())

	code, body := serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["dry_run"])
}

func TestHealth_RedisDownDegrades(t *testing.T) {
	h := NewHealthStatus(0)
	h.SetSQLiteOK(true)
	h.SetExchangeOK(true)
	h.SetRedisEnabled(true)
	h.CheckRedis(context.Background(), pinger{err: errors.New("refused")})

	code, body := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])

	h.CheckRedis(context.Background(), pinger{})
	code, _ = serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth_StaleTick(t *testing.T) {
	h := NewHealthStatus(10 * time.Minute)
	h.SetSQLiteOK(true)
	h.SetExchangeOK(true)
	h.SetLastTickTime(time.Now().Add(-time.Hour))

	code, body := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, true, body["stale"])
}

func TestHealth_Unhealthy(t *testing.T) {
	code, body := serveHealth(t, NewHealthStatus(0))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
