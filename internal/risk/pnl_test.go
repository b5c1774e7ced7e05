package risk

import (
	"testing"

	"signal-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPnLAggregator_DailyPnL(t *testing.T) {
	var agg PnLAggregator

	t.Run("RealizedPlusUnrealized", func(t *testing.T) {
		today := []models.Trade{closedTrade(-700), closedTrade(50)}
		open := []models.Trade{openTrade(100), openTrade(-25)}
		assert.InDelta(t, -575.0, agg.DailyPnL(today, open), 1e-9)
	})

	t.Run("IgnoresOpenTradesInTodayList", func(t *testing.T) {
		today := []models.Trade{closedTrade(10), {Status: models.TradeStatusOpen, UnrealizedPnL: 999}}
		assert.InDelta(t, 10.0, agg.DailyPnL(today, nil), 1e-9)
	})

	t.Run("ClosedWithoutPnL", func(t *testing.T) {
		today := []models.Trade{{Status: models.TradeStatusClosed}}
		assert.Equal(t, 0.0, agg.DailyPnL(today, nil))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0.0, agg.DailyPnL(nil, nil))
	})
}

func TestTradePnL(t *testing.T) {
	testCases := []struct {
		name              string
		side              string
		entry, exit, qty  float64
		expectPnL, expPct float64
	}{
		{"LongWin", models.SideBuy, 100, 110, 2, 20, 10},
		{"LongLoss", models.SideBuy, 100, 95, 1, -5, -5},
		{"ShortWin", models.SideSell, 100, 90, 3, 30, 10},
		{"ShortLoss", models.SideSell, 100, 104, 0.5, -2, -4},
		{"ZeroEntry", models.SideBuy, 0, 10, 1, 10, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pnl, pct := TradePnL(tc.side, tc.entry, tc.exit, tc.qty)
			assert.InDelta(t, tc.expectPnL, pnl, 1e-9)
			assert.InDelta(t, tc.expPct, pct, 1e-9)
		})
	}
}

func TestEmergencyStopGuard(t *testing.T) {
	var guard EmergencyStopGuard

	stop, reason := guard.ShouldStop(9000, 10000)
	assert.True(t, stop)
	assert.Contains(t, reason, "10.00%")

	stop, reason = guard.ShouldStop(9001, 10000)
	assert.False(t, stop)
	assert.Empty(t, reason)

	stop, _ = guard.ShouldStop(12000, 10000)
	assert.False(t, stop)

	stop, _ = guard.ShouldStop(5000, 0)
	assert.False(t, stop)
}
