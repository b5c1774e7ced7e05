package bybit

import (
	"context"
	"fmt"

	"signal-trade-bot-go/internal/exchange"
)

type walletResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []struct {
			Coin                string `json:"coin"`
			WalletBalance       string `json:"walletBalance"`
			AvailableToWithdraw string `json:"availableToWithdraw"`
			Equity              string `json:"equity"`
		} `json:"coin"`
	} `json:"list"`
}

// FetchBalance returns the quote coin balance of the unified account.
func (c *Client) FetchBalance(ctx context.Context) (*exchange.Balance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        c.quote,
	}

	var result walletResult
	err := c.call(ctx, "get wallet", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return parseWallet(result, c.quote), nil
}

func parseWallet(result walletResult, quote string) *exchange.Balance {
	bal := &exchange.Balance{Currency: quote}
	if len(result.List) == 0 {
		return bal
	}
	for _, coin := range result.List[0].Coin {
		if coin.Coin != quote {
			continue
		}
		bal.Total = parseFloat64(coin.WalletBalance)
		bal.Available = parseFloat64(coin.AvailableToWithdraw)
		if bal.Available == 0 {
			bal.Available = bal.Total
		}
	}
	return bal
}

type positionResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Size          string `json:"size"`
		AvgPrice      string `json:"avgPrice"`
		MarkPrice     string `json:"markPrice"`
		UnrealisedPnl string `json:"unrealisedPnl"`
		Leverage      string `json:"leverage"`
	} `json:"list"`
}

// FetchOpenPositions returns positions with non-zero size.
func (c *Client) FetchOpenPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	params := map[string]interface{}{
		"category": c.category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	} else {
		params["settleCoin"] = c.quote
	}

	var result positionResult
	err := c.call(ctx, "get positions", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	return parsePositions(result), nil
}

func parsePositions(result positionResult) []exchange.Position {
	var positions []exchange.Position
	for _, p := range result.List {
		size := parseFloat64(p.Size)
		if size == 0 {
			continue
		}
		positions = append(positions, exchange.Position{
			Symbol:        p.Symbol,
			Side:          fromBybitSide(p.Side),
			Size:          size,
			EntryPrice:    parseFloat64(p.AvgPrice),
			MarkPrice:     parseFloat64(p.MarkPrice),
			UnrealizedPnL: parseFloat64(p.UnrealisedPnl),
			Leverage:      parseFloat64(p.Leverage),
		})
	}
	return positions
}
