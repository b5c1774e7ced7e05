package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-trade-bot-go/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the gorm-backed store for signals, trades, snapshots, candles and AI logs.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository wraps an open database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// DB exposes the underlying handle for read-only consumers such as the dashboard.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// StartOfDay returns midnight UTC of the day containing t. Daily figures roll over at this boundary.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *Repository) SaveSignal(ctx context.Context, sig *models.Signal) error {
	if err := r.db.WithContext(ctx).Create(sig).Error; err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}

// GetLatestSignal returns the most recent signal for symbol, or nil when there is none.
func (r *Repository) GetLatestSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	var sig models.Signal
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).Order("id desc").First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest signal for %s: %w", symbol, err)
	}
	return &sig, nil
}

// ListSignals returns the newest signals first.
func (r *Repository) ListSignals(ctx context.Context, limit int) ([]models.Signal, error) {
	var signals []models.Signal
	if err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&signals).Error; err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return signals, nil
}

// SaveTrade inserts a new trade. OpenedAt defaults to now.
func (r *Repository) SaveTrade(ctx context.Context, trade *models.Trade) error {
	if trade.OpenedAt.IsZero() {
		trade.OpenedAt = r.now()
	}
	trade.OpenedAt = trade.OpenedAt.UTC()
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// GetTrade loads a single trade by id.
func (r *Repository) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	if err := r.db.WithContext(ctx).First(&trade, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}
	return &trade, nil
}

// UpdateTradeUnrealized sets the unrealized pnl of an OPEN trade. Closed trades are left alone.
func (r *Repository) UpdateTradeUnrealized(ctx context.Context, id uint, unrealized float64) error {
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.TradeStatusOpen).
		Update("unrealized_pnl", unrealized).Error
	if err != nil {
		return fmt.Errorf("failed to update unrealized pnl of trade %d: %w", id, err)
	}
	return nil
}

// CloseTrade moves an OPEN trade to CLOSED with its realized figures.
// It reports false, without error, when the trade was not OPEN, so closing twice
// never applies pnl twice and a closed trade is never reopened.
func (r *Repository) CloseTrade(ctx context.Context, id uint, exitPrice, pnl, pnlPercent float64, closedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.TradeStatusOpen).
		Updates(map[string]any{
			"status":         models.TradeStatusClosed,
			"exit_price":     exitPrice,
			"pnl":            pnl,
			"pnl_percent":    pnlPercent,
			"unrealized_pnl": 0,
			"closed_at":      closedAt.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to close trade %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetOpenTrades returns OPEN trades, optionally limited to one symbol.
func (r *Repository) GetOpenTrades(ctx context.Context, symbol string) ([]models.Trade, error) {
	var trades []models.Trade
	q := r.db.WithContext(ctx).Where("status = ?", models.TradeStatusOpen)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if err := q.Order("opened_at asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get open trades: %w", err)
	}
	return trades, nil
}

// GetTradesToday returns trades opened or closed since midnight UTC.
func (r *Repository) GetTradesToday(ctx context.Context) ([]models.Trade, error) {
	start := StartOfDay(r.now())
	var trades []models.Trade
	err := r.db.WithContext(ctx).
		Where("opened_at >= ? OR closed_at >= ?", start, start).
		Order("opened_at asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get today's trades: %w", err)
	}
	return trades, nil
}

// GetLastTrade returns the most recently opened trade for symbol, or nil.
func (r *Repository) GetLastTrade(ctx context.Context, symbol string) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).Order("opened_at desc").First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last trade for %s: %w", symbol, err)
	}
	return &trade, nil
}

// ListTrades returns trades opened at or after since, newest first. A zero since means all.
func (r *Repository) ListTrades(ctx context.Context, since time.Time, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	q := r.db.WithContext(ctx).Order("opened_at desc")
	if !since.IsZero() {
		q = q.Where("opened_at >= ?", since.UTC())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// ListClosedTrades returns every CLOSED trade, newest first.
func (r *Repository) ListClosedTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.WithContext(ctx).Where("status = ?", models.TradeStatusClosed).Order("closed_at desc").Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list closed trades: %w", err)
	}
	return trades, nil
}

func (r *Repository) SavePortfolioSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error {
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = r.now()
	}
	snap.RecordedAt = snap.RecordedAt.UTC()
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the newest snapshots first.
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]models.PortfolioSnapshot, error) {
	var snaps []models.PortfolioSnapshot
	q := r.db.WithContext(ctx).Order("recorded_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}

// SaveCandles archives bars, skipping any already stored.
func (r *Repository) SaveCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(candles, 200).Error
	if err != nil {
		return fmt.Errorf("failed to save candles: %w", err)
	}
	return nil
}

func (r *Repository) SaveAILog(ctx context.Context, entry *models.AILog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save ai log: %w", err)
	}
	return nil
}
