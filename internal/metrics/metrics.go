// Package metrics exposes Prometheus metrics and the /healthz endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results recorded in CyclesTotal.
const (
	ResultOK         = "ok"
	ResultFetchError = "fetch_error"
	ResultRejected   = "rejected"
	ResultBusy       = "busy"
)

// Metrics holds all Prometheus metrics of the bot.
type Metrics struct {
	// Decision cycle
	CyclesTotal   *prometheus.CounterVec // labels: pair, result
	SignalsTotal  *prometheus.CounterVec // labels: pair, action (final, after the gate)
	CycleDuration prometheus.Histogram
	HistoryLen    *prometheus.GaugeVec // labels: pair
	LastPrice     *prometheus.GaugeVec // labels: pair
	Indicator     *prometheus.GaugeVec // labels: pair, name

	// Execution
	OrdersTotal         *prometheus.CounterVec // labels: pair, action, status
	IgnoredBuys         prometheus.Counter
	AccountChecksFailed prometheus.Counter

	// Portfolio
	Equity        prometheus.Gauge
	RealizedPnL   prometheus.Gauge
	OpenPositions prometheus.Gauge

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	NotificationsFailed prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitrader_cycles_total",
			Help: "Decision cycles by pair and result (ok, fetch_error, rejected, busy)",
		}, []string{"pair", "result"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitrader_signals_total",
			Help: "Gated decisions by pair and action",
		}, []string{"pair", "action"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pitrader_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle including the price fetch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		HistoryLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pitrader_history_len",
			Help: "Samples held in the price history window",
		}, []string{"pair"}),
		LastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pitrader_last_price",
			Help: "Last fetched price in quote currency",
		}, []string{"pair"}),
		Indicator: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pitrader_indicator_value",
			Help: "Latest ready indicator value (ma_short, ma_long, rsi)",
		}, []string{"pair", "name"}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitrader_orders_total",
			Help: "Orders by pair, action and status (filled, failed, below_minimum)",
		}, []string{"pair", "action", "status"}),
		IgnoredBuys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitrader_ignored_buys_total",
			Help: "BUY decisions skipped for lack of funds",
		}),
		AccountChecksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitrader_account_checks_failed_total",
			Help: "Ticks skipped because the account was not active or unreachable",
		}),

		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitrader_equity",
			Help: "Cash plus marked value of open positions (paper mode)",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitrader_realized_pnl",
			Help: "Realized profit and loss net of fees",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitrader_open_positions",
			Help: "Number of pairs with an open position",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitrader_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitrader_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitrader_redis_buffered_writes_total",
			Help: "Writes buffered locally during Redis circuit breaker open state",
		}),

		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitrader_notifications_failed_total",
			Help: "Alerts that could not be delivered",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.SignalsTotal,
		m.CycleDuration,
		m.HistoryLen,
		m.LastPrice,
		m.Indicator,
		m.OrdersTotal,
		m.IgnoredBuys,
		m.AccountChecksFailed,
		m.Equity,
		m.RealizedPnL,
		m.OpenPositions,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.NotificationsFailed,
	)

	return m
}

// BreakerStateChanged records a circuit breaker transition. States use the
// breaker's numeric encoding; 1 is open.
func (m *Metrics) BreakerStateChanged(to int) {
	m.RedisCircuitBreakerState.Set(float64(to))
	if to == 1 {
		m.RedisCircuitBreakerTrips.Inc()
	}
}
