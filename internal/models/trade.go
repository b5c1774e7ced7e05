package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	// TradeStatusPending exists only in memory while the order is in flight.
	TradeStatusPending TradeStatus = "PENDING"
	TradeStatusOpen    TradeStatus = "OPEN"
	TradeStatusClosed  TradeStatus = "CLOSED"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade represents a position opened by the bot and tracked until it is closed.
type Trade struct {
	gorm.Model
	SignalID        *uint       `gorm:"index" json:"signal_id,omitempty"`
	Symbol          string      `gorm:"index;not null" json:"symbol"`
	Side            string      `gorm:"not null" json:"side"` // "BUY" or "SELL"
	Quantity        float64     `gorm:"not null" json:"quantity"`
	EntryPrice      float64     `json:"entry_price"`
	ExitPrice       *float64    `json:"exit_price,omitempty"`
	StopLoss        *float64    `json:"stop_loss,omitempty"`
	TakeProfit      *float64    `json:"take_profit,omitempty"`
	Status          TradeStatus `gorm:"index;not null" json:"status"`
	PnL             *float64    `gorm:"column:pnl" json:"pnl,omitempty"`
	PnLPercent      *float64    `gorm:"column:pnl_percent" json:"pnl_percent,omitempty"`
	UnrealizedPnL   float64     `gorm:"column:unrealized_pnl" json:"unrealized_pnl"`
	ExchangeOrderID string      `json:"exchange_order_id,omitempty"`
	OpenedAt        time.Time   `gorm:"index" json:"opened_at"`
	ClosedAt        *time.Time  `gorm:"index" json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade still holds a venue position.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// RealizedPnL returns the recorded pnl, or zero for trades that are not closed.
func (t *Trade) RealizedPnL() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}
