package risk

import (
	"math"

	"signal-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// DefaultPositionSizePct is the notional cap used when a signal carries no size.
const DefaultPositionSizePct = 2.0

// PositionSizer turns an accepted signal into an order quantity bounded by two ceilings:
// the risk budget and the signal's notional percentage.
type PositionSizer struct {
	MaxRiskPerTrade float64
	Logger          *zap.Logger
}

// Size returns the quantity to trade, or 0 when no positive size exists
// (missing stop-loss, stop equal to entry, or non-positive entry).
func (s PositionSizer) Size(sig *models.Signal, balance, currentPrice float64) float64 {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	entry := currentPrice
	if sig.EntryPrice != nil && *sig.EntryPrice > 0 {
		entry = *sig.EntryPrice
	}
	if sig.StopLoss == nil || *sig.StopLoss == 0 || entry <= 0 {
		logger.Error("Invalid stop-loss for position sizing", zap.String("symbol", sig.Symbol))
		return 0
	}

	riskAmount := balance * s.MaxRiskPerTrade
	riskPerUnit := math.Abs(entry - *sig.StopLoss)
	if riskPerUnit == 0 {
		logger.Error("Stop-loss equals entry, cannot size position",
			zap.String("symbol", sig.Symbol),
			zap.Float64("entry_price", entry),
		)
		return 0
	}

	rawSize := riskAmount / riskPerUnit

	pct := DefaultPositionSizePct
	if sig.PositionSizePct != nil {
		pct = *sig.PositionSizePct
	}
	capSize := balance * pct / 100 / entry

	size := math.Min(rawSize, capSize)
	logger.Info("Position size calculated",
		zap.String("symbol", sig.Symbol),
		zap.Float64("size", size),
		zap.Float64("risk_amount", riskAmount),
		zap.Float64("risk_per_unit", riskPerUnit),
		zap.Float64("cap_size", capSize),
	)
	return math.Max(size, 0)
}
