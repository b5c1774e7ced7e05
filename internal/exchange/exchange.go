// Package exchange defines the venue-neutral contracts the trading core talks to.
package exchange

import (
	"context"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Ticker is the latest trade price for a symbol.
type Ticker struct {
	Symbol string
	Last   float64
	Time   time.Time
}

// Balance is the quote-currency account balance.
type Balance struct {
	Currency  string
	Total     float64
	Available float64
}

// Position is an open venue position. Side is "BUY" for long and "SELL" for short.
type Position struct {
	Symbol        string
	Side          string
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      float64
}

// OrderRequest describes a market entry with optional protective orders.
type OrderRequest struct {
	Symbol     string
	Side       string
	Quantity   float64
	StopLoss   *float64
	TakeProfit *float64
}

// OrderResult is the venue confirmation of a market entry.
// FillPrice is zero when the venue did not report an average price.
type OrderResult struct {
	OrderID   string
	Symbol    string
	Side      string
	Quantity  float64
	FillPrice float64
	Status    string
}

// CloseResult is the venue confirmation of a reduce-only close.
type CloseResult struct {
	OrderID   string
	Quantity  float64
	ExitPrice float64
}

// MarketData is the read side of a venue.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchBalance(ctx context.Context) (*Balance, error)
	// FetchOpenPositions returns positions with non-zero size. An empty symbol means all symbols.
	FetchOpenPositions(ctx context.Context, symbol string) ([]Position, error)
}

// Gateway is the write side of a venue.
type Gateway interface {
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	ClosePosition(ctx context.Context, symbol string, pos Position) (*CloseResult, error)
	AdjustStopLoss(ctx context.Context, symbol string, pos Position, stopPrice float64) error
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// Exchange is a full venue adapter.
type Exchange interface {
	MarketData
	Gateway
	Name() string
	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error
}

// OppositeSide returns the side that reduces a position held on side.
func OppositeSide(side string) string {
	if side == "BUY" {
		return "SELL"
	}
	return "BUY"
}
