package risk

import "signal-trade-bot-go/internal/models"

// PnLAggregator sums realized and unrealized PnL for the current trading day.
type PnLAggregator struct{}

// DailyPnL is the realized pnl of today's CLOSED trades plus the unrealized pnl of open trades.
func (PnLAggregator) DailyPnL(tradesToday, openTrades []models.Trade) float64 {
	var realized, unrealized float64
	for i := range tradesToday {
		if tradesToday[i].Status == models.TradeStatusClosed {
			realized += tradesToday[i].RealizedPnL()
		}
	}
	for i := range openTrades {
		unrealized += openTrades[i].UnrealizedPnL
	}
	return realized + unrealized
}

// TradePnL returns the pnl and pnl percent of closing a position at exit.
// The percent is zero when the entry notional is zero.
func TradePnL(side string, entry, exit, quantity float64) (pnl, pct float64) {
	if side == models.SideSell {
		pnl = (entry - exit) * quantity
	} else {
		pnl = (exit - entry) * quantity
	}
	notional := entry * quantity
	if notional != 0 {
		pct = pnl / notional * 100
	}
	return pnl, pct
}
