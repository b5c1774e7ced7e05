package trader

import (
	"context"
	"fmt"
	"time"

	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/models"
)

// Repository is the persistence the trading loop depends on.
type Repository interface {
	SaveSignal(ctx context.Context, sig *models.Signal) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
	CloseTrade(ctx context.Context, id uint, exitPrice, pnl, pnlPercent float64, closedAt time.Time) (bool, error)
	UpdateTradeUnrealized(ctx context.Context, id uint, unrealized float64) error
	GetOpenTrades(ctx context.Context, symbol string) ([]models.Trade, error)
	GetTradesToday(ctx context.Context) ([]models.Trade, error)
	GetLastTrade(ctx context.Context, symbol string) (*models.Trade, error)
	SavePortfolioSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error
	SaveCandles(ctx context.Context, candles []models.Candle) error
}

var _ Repository = (*database.Repository)(nil)

// PersistenceError wraps a failed repository call. The cycle that hit it is
// abandoned and the next cycle reloads state from the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
