// Package metrics exposes the engine's Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_bot_signals_total",
			Help: "Signals received from the signal source",
		},
		[]string{"symbol", "action"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_bot_rejections_total",
			Help: "Signals rejected by the risk validator",
		},
		[]string{"rule"},
	)

	tradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_bot_trades_opened_total",
			Help: "Trades opened",
		},
		[]string{"symbol", "side"},
	)

	tradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_bot_trades_closed_total",
			Help: "Trades closed",
		},
		[]string{"symbol", "reason"},
	)

	dailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trade_bot_daily_pnl",
		Help: "Realized plus unrealized PnL since UTC midnight",
	})

	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trade_bot_open_positions",
		Help: "Trades currently OPEN",
	})

	emergencyStop = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trade_bot_emergency_stop",
		Help: "1 while the emergency stop is tripped",
	})

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_bot_errors_total",
			Help: "Errors by kind",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(tradesOpened)
	prometheus.MustRegister(tradesClosed)
	prometheus.MustRegister(dailyPnL)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(emergencyStop)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordSignal(symbol, action string) {
	signalsTotal.WithLabelValues(symbol, action).Inc()
}

func RecordRejection(rule string) {
	rejectionsTotal.WithLabelValues(rule).Inc()
}

func RecordTradeOpened(symbol, side string) {
	tradesOpened.WithLabelValues(symbol, side).Inc()
}

// RecordTradeClosed counts a close; reason is "signal" or "venue".
func RecordTradeClosed(symbol, reason string) {
	tradesClosed.WithLabelValues(symbol, reason).Inc()
}

func SetDailyPnL(v float64) {
	dailyPnL.Set(v)
}

func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

func SetEmergencyStop(active bool) {
	if active {
		emergencyStop.Set(1)
		return
	}
	emergencyStop.Set(0)
}

func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}
