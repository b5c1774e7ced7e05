package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/metrics"
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/risk"

	"go.uber.org/zap"
)

// ErrPositionLimit is returned by Open when admitting the trade would exceed
// the open position limit.
var ErrPositionLimit = errors.New("open position limit reached")

// Lifecycle moves trades through PENDING, OPEN and CLOSED. It keeps no trade
// state between calls; every decision is made on rows loaded from the repository.
type Lifecycle struct {
	repo    Repository
	market  exchange.MarketData
	gateway exchange.Gateway
	maxOpen int
	logger  *zap.Logger
	now     func() time.Time
	admitMu sync.Mutex
}

func NewLifecycle(repo Repository, market exchange.MarketData, gateway exchange.Gateway, maxOpen int, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		repo:    repo,
		market:  market,
		gateway: gateway,
		maxOpen: maxOpen,
		logger:  logger.Named("lifecycle"),
		now:     time.Now,
	}
}

// Open places the entry order for an accepted signal and records the OPEN trade.
// The open count check, the order and the insert run under one lock. No trade is
// recorded when the gateway fails.
func (l *Lifecycle) Open(ctx context.Context, sig *models.Signal, quantity, sizingPrice float64) (*models.Trade, *exchange.OrderResult, error) {
	l.admitMu.Lock()
	defer l.admitMu.Unlock()

	open, err := l.repo.GetOpenTrades(ctx, "")
	if err != nil {
		return nil, nil, persistErr("load open trades", err)
	}
	if l.maxOpen > 0 && len(open) >= l.maxOpen {
		return nil, nil, ErrPositionLimit
	}

	side := string(sig.Action)
	result, err := l.gateway.PlaceMarketOrder(ctx, exchange.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       side,
		Quantity:   quantity,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to place %s order for %s: %w", side, sig.Symbol, err)
	}

	entry := result.FillPrice
	if entry <= 0 {
		entry = sizingPrice
	}
	filled := result.Quantity
	if filled <= 0 {
		filled = quantity
	}

	trade := &models.Trade{
		Symbol:          sig.Symbol,
		Side:            side,
		Quantity:        filled,
		EntryPrice:      entry,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		Status:          models.TradeStatusOpen,
		ExchangeOrderID: result.OrderID,
		OpenedAt:        l.now(),
	}
	if sig.ID != 0 {
		id := sig.ID
		trade.SignalID = &id
	}
	if err := l.repo.SaveTrade(ctx, trade); err != nil {
		l.logger.Error("Order filled but trade could not be recorded",
			zap.String("symbol", sig.Symbol),
			zap.String("order_id", result.OrderID),
			zap.Error(err),
		)
		return nil, result, persistErr("save trade", err)
	}

	metrics.RecordTradeOpened(trade.Symbol, trade.Side)
	l.logger.Info("Trade opened",
		zap.Uint("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", trade.Side),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("entry_price", trade.EntryPrice),
	)
	return trade, result, nil
}

// Close flattens the venue position for symbol and closes every OPEN trade on it
// at the confirmed exit price. A gateway failure leaves the trades OPEN.
func (l *Lifecycle) Close(ctx context.Context, symbol string, pos exchange.Position) ([]models.Trade, *exchange.CloseResult, error) {
	result, err := l.gateway.ClosePosition(ctx, symbol, pos)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to close position for %s: %w", symbol, err)
	}

	exit := result.ExitPrice
	if exit <= 0 {
		exit, err = l.lastPrice(ctx, symbol)
		if err != nil {
			return nil, result, err
		}
	}

	open, err := l.repo.GetOpenTrades(ctx, symbol)
	if err != nil {
		return nil, result, persistErr("load open trades", err)
	}

	var closed []models.Trade
	for i := range open {
		ok, err := l.closeTrade(ctx, &open[i], exit, "signal")
		if err != nil {
			return closed, result, err
		}
		if ok {
			closed = append(closed, open[i])
		}
	}
	return closed, result, nil
}

// Reconcile compares one OPEN trade with the venue positions for its symbol.
// A matching non-zero position only refreshes unrealized pnl; no position means
// the venue closed it (stop or target hit) and the trade is closed at the ticker price.
func (l *Lifecycle) Reconcile(ctx context.Context, trade *models.Trade, positions []exchange.Position) (bool, error) {
	if !trade.IsOpen() {
		return false, nil
	}

	for _, p := range positions {
		if p.Symbol == trade.Symbol && math.Abs(p.Size) > 0 {
			if err := l.repo.UpdateTradeUnrealized(ctx, trade.ID, p.UnrealizedPnL); err != nil {
				return false, persistErr("update unrealized pnl", err)
			}
			trade.UnrealizedPnL = p.UnrealizedPnL
			return false, nil
		}
	}

	l.logger.Info("Position no longer on venue", zap.Uint("trade_id", trade.ID), zap.String("symbol", trade.Symbol))
	exit, err := l.lastPrice(ctx, trade.Symbol)
	if err != nil {
		return false, err
	}
	return l.closeTrade(ctx, trade, exit, "venue")
}

// closeTrade records the realized figures. It is a no-op for a trade that is
// not OPEN, in memory or in the store.
func (l *Lifecycle) closeTrade(ctx context.Context, trade *models.Trade, exit float64, reason string) (bool, error) {
	if !trade.IsOpen() {
		return false, nil
	}

	pnl, pct := risk.TradePnL(trade.Side, trade.EntryPrice, exit, trade.Quantity)
	closedAt := l.now()
	ok, err := l.repo.CloseTrade(ctx, trade.ID, exit, pnl, pct, closedAt)
	if err != nil {
		return false, persistErr("close trade", err)
	}
	if !ok {
		l.logger.Debug("Trade already closed", zap.Uint("trade_id", trade.ID))
		return false, nil
	}

	trade.Status = models.TradeStatusClosed
	trade.ExitPrice = models.Float(exit)
	trade.PnL = models.Float(pnl)
	trade.PnLPercent = models.Float(pct)
	trade.UnrealizedPnL = 0
	trade.ClosedAt = &closedAt

	metrics.RecordTradeClosed(trade.Symbol, reason)
	l.logger.Info("Trade closed",
		zap.Uint("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("reason", reason),
		zap.Float64("exit_price", exit),
		zap.Float64("pnl", pnl),
		zap.Float64("pnl_percent", pct),
	)
	return true, nil
}

func (l *Lifecycle) lastPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := l.market.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch exit price for %s: %w", symbol, err)
	}
	if ticker.Last <= 0 {
		return 0, fmt.Errorf("no valid price for %s", symbol)
	}
	return ticker.Last, nil
}
