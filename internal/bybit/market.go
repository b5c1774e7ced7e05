package bybit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"signal-trade-bot-go/internal/exchange"
)

var intervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W",
}

// interval converts "1h" style timeframes; unknown values pass through.
func interval(timeframe string) string {
	if v, ok := intervals[timeframe]; ok {
		return v
	}
	return timeframe
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

// FetchCandles returns klines oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": interval(timeframe),
		"limit":    limit,
	}

	var result klineResult
	err := c.call(ctx, "get kline", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}
	return parseKlines(result), nil
}

func parseKlines(result klineResult) []exchange.Candle {
	candles := make([]exchange.Candle, 0, len(result.List))
	for _, item := range result.List {
		if len(item) < 6 {
			continue // Skip incomplete data
		}
		// Bybit kline format: [startTime, open, high, low, close, volume, turnover]
		candles = append(candles, exchange.Candle{
			OpenTime: time.UnixMilli(parseInt64(item[0])).UTC(),
			Open:     parseFloat64(item[1]),
			High:     parseFloat64(item[2]),
			Low:      parseFloat64(item[3]),
			Close:    parseFloat64(item[4]),
			Volume:   parseFloat64(item[5]),
		})
	}
	// Bybit returns newest first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles
}

type tickerResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// FetchTicker returns the latest price for symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var result tickerResult
	err := c.call(ctx, "get tickers", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("no ticker data for %s", symbol)
	}
	return &exchange.Ticker{
		Symbol: result.List[0].Symbol,
		Last:   parseFloat64(result.List[0].LastPrice),
		Time:   time.Now().UTC(),
	}, nil
}
