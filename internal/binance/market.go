package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal-trade-bot-go/internal/exchange"
)

// FetchCandles returns klines oldest first.
func (c *RestClient) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/klines", params, false, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}

	candles := make([]exchange.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue // Skip incomplete data
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		candles = append(candles, exchange.Candle{
			OpenTime: time.UnixMilli(openTime).UTC(),
			Open:     rawFloat(row[1]),
			High:     rawFloat(row[2]),
			Low:      rawFloat(row[3]),
			Close:    rawFloat(row[4]),
			Volume:   rawFloat(row[5]),
		})
	}
	return candles, nil
}

func rawFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	_ = json.Unmarshal(raw, &f)
	return f
}

// FetchTicker returns the latest price for symbol.
func (c *RestClient) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	return &exchange.Ticker{
		Symbol: result.Symbol,
		Last:   parseFloat(result.Price),
		Time:   time.UnixMilli(result.Time).UTC(),
	}, nil
}

// FetchBalance returns the quote-currency futures wallet.
func (c *RestClient) FetchBalance(ctx context.Context) (*exchange.Balance, error) {
	var assets []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := c.call(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{}, true, &assets); err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}

	for _, a := range assets {
		if a.Asset == c.quote {
			return &exchange.Balance{
				Currency:  c.quote,
				Total:     parseFloat(a.Balance),
				Available: parseFloat(a.AvailableBalance),
			}, nil
		}
	}
	return &exchange.Balance{Currency: c.quote}, nil
}

// FetchOpenPositions returns positions with a non-zero amount.
func (c *RestClient) FetchOpenPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var risks []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
	}
	if err := c.call(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true, &risks); err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	var positions []exchange.Position
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := OrderSideBuy
		if amt < 0 {
			side = OrderSideSell
			amt = -amt
		}
		positions = append(positions, exchange.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          amt,
			EntryPrice:    parseFloat(r.EntryPrice),
			MarkPrice:     parseFloat(r.MarkPrice),
			UnrealizedPnL: parseFloat(r.UnRealizedProfit),
			Leverage:      parseFloat(r.Leverage),
		})
	}
	return positions, nil
}
