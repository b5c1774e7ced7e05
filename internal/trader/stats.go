package trader

import (
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/notify"
)

// BuildDailyStats rolls today's trades up for the daily report. Win rate and
// best/worst are computed over CLOSED trades only.
func BuildDailyStats(tradesToday []models.Trade, openPositions int, balance float64, currency string) notify.DailyStats {
	stats := notify.DailyStats{
		TotalTrades:   len(tradesToday),
		OpenPositions: openPositions,
		Balance:       balance,
		Currency:      currency,
	}

	closed := 0
	for i := range tradesToday {
		t := &tradesToday[i]
		if t.Status != models.TradeStatusClosed {
			continue
		}
		pnl := t.RealizedPnL()
		if closed == 0 || pnl > stats.BestTrade {
			stats.BestTrade = pnl
		}
		if closed == 0 || pnl < stats.WorstTrade {
			stats.WorstTrade = pnl
		}
		closed++
		stats.TotalPnL += pnl
		switch {
		case pnl > 0:
			stats.Wins++
		case pnl < 0:
			stats.Losses++
		}
	}
	if closed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(closed) * 100
	}
	return stats
}
