package risk

import (
	"math"
	"strconv"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/models"
)

// SignalValidator runs the ordered admission rules. The first failing rule wins.
type SignalValidator struct {
	cfg      config.Risk
	cooldown CooldownTracker
	pnl      PnLAggregator
	now      func() time.Time
}

// NewSignalValidator creates a validator for the given limits.
func NewSignalValidator(cfg config.Risk) *SignalValidator {
	return &SignalValidator{
		cfg:      cfg,
		cooldown: CooldownTracker{Hours: cfg.CooldownHours},
		now:      time.Now,
	}
}

// Validate checks sig against the limits. lastTrade may be nil.
//
// HOLD and CLOSE are accepted once they pass the confidence check; the
// position, drawdown, cooldown and price rules only apply to BUY and SELL.
func (v *SignalValidator) Validate(sig *models.Signal, balance float64, openTrades, tradesToday []models.Trade, lastTrade *models.Trade) Decision {
	// Rule 1: confidence threshold
	if sig.Confidence < v.cfg.MinConfidence {
		return reject(RuleConfidence, "Confidence %d%% below threshold %d%%", sig.Confidence, v.cfg.MinConfidence)
	}

	// Rule 2: nothing to admit
	switch sig.Action {
	case models.ActionHold:
		return accept("HOLD action requires no validation")
	case models.ActionClose:
		return accept("CLOSE action is not subject to entry rules")
	}
	if !sig.Action.IsEntry() {
		return reject(RuleNone, "Unknown action %q", sig.Action)
	}

	// Rule 3: open position limit
	if len(openTrades) >= v.cfg.MaxOpenPositions {
		return reject(RuleMaxOpenPositions, "Max open positions (%d) reached", v.cfg.MaxOpenPositions)
	}

	// Rule 4: daily drawdown
	dailyPnL := v.pnl.DailyPnL(tradesToday, openTrades)
	maxLoss := balance * v.cfg.MaxDailyDrawdown
	if dailyPnL < -maxLoss {
		return reject(RuleDailyDrawdown, "Daily drawdown limit reached: %.2f (limit: -%.2f)", dailyPnL, maxLoss)
	}

	// Rule 5: cooldown
	if v.cooldown.InCooldown(lastTrade, v.now()) {
		return reject(RuleCooldown, "Symbol %s in cooldown period (%gh since last trade)", sig.Symbol, v.cfg.CooldownHours)
	}

	// Rule 6: reward to risk
	entry, stop, target := models.Value(sig.EntryPrice), models.Value(sig.StopLoss), models.Value(sig.TakeProfit)
	if entry == 0 || stop == 0 || target == 0 {
		return reject(RuleMissingLevels, "Missing entry_price, stop_loss, or take_profit")
	}
	risk := math.Abs(entry - stop)
	reward := math.Abs(target - entry)
	if risk == 0 {
		return reject(RuleInvalidStopLoss, "Invalid stop-loss (same as entry price)")
	}
	if ratio := reward / risk; ratio < v.cfg.MinRewardRiskRatio {
		return reject(RuleRewardRisk, "Reward:Risk ratio %.2f below minimum %.2f", ratio, v.cfg.MinRewardRiskRatio)
	}

	// Rule 7: suggested size
	if sig.PositionSizePct == nil || *sig.PositionSizePct < 1 || *sig.PositionSizePct > 5 {
		return reject(RulePositionSize, "Invalid position size: %s", formatPct(sig.PositionSizePct))
	}

	return accept("Signal validated successfully")
}

func formatPct(p *float64) string {
	if p == nil {
		return "none"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64) + "%"
}
