// Package bybit adapts the Bybit v5 unified trading API to the exchange contracts.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/exchange"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"
)

const (
	sideBuy  = "Buy"
	sideSell = "Sell"
)

// Client wraps the Bybit API client for linear perpetuals.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	quote      string
	hasKey     bool
	retry      exchange.RetryPolicy
	logger     *zap.Logger

	instrumentsMu sync.RWMutex
	instruments   map[string]instrument
}

var _ exchange.Exchange = (*Client)(nil)

// NewClient creates a Bybit client from the exchange settings.
func NewClient(cfg *config.Exchange, logger *zap.Logger) *Client {
	logger = logger.Named("bybit")
	baseURL := bybit_api.MAINNET
	if cfg.Testnet {
		baseURL = bybit_api.TESTNET
		logger.Warn("Using Bybit Testnet")
	} else {
		logger.Info("Using Bybit Mainnet")
	}

	httpClient := bybit_api.NewBybitHttpClient(
		cfg.ApiKey,
		cfg.SecretKey,
		bybit_api.WithBaseURL(baseURL),
	)

	retry := exchange.DefaultRetryPolicy()
	if cfg.RequestTimeout > 0 {
		retry.Timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	category := cfg.Category
	if category == "" {
		category = "linear"
	}
	quote := cfg.QuoteCurrency
	if quote == "" {
		quote = "USDT"
	}

	return &Client{
		httpClient:  httpClient,
		category:    category,
		quote:       quote,
		hasKey:      cfg.ApiKey != "",
		retry:       retry,
		logger:      logger,
		instruments: make(map[string]instrument),
	}
}

func (c *Client) Name() string { return "bybit" }

// Ping checks connectivity, and credentials when a key is configured.
func (c *Client) Ping(ctx context.Context) error {
	if c.hasKey {
		_, err := c.FetchBalance(ctx)
		return err
	}
	_, err := c.FetchTicker(ctx, "BTC"+c.quote)
	return err
}

// call runs one API method under the retry policy and decodes the result into out.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error), out interface{}) error {
	_, err := exchange.Retry(ctx, c.retry, c.logger, op, func(ctx context.Context) (struct{}, error) {
		resp, err := fn(ctx)
		if err != nil {
			return struct{}{}, &exchange.NetworkError{Op: op, Err: err}
		}
		return struct{}{}, decodeResult(op, resp, out)
	})
	return err
}

// decodeResult checks the envelope and re-decodes Result into out.
func decodeResult(op string, response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return fmt.Errorf("%s: invalid response type", op)
	}
	if serverResp.RetCode != 0 {
		return classify(op, serverResp.RetCode, serverResp.RetMsg)
	}
	if out == nil {
		return nil
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal result: %w", op, err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal result: %w", op, err)
	}
	return nil
}

// classify maps a Bybit retCode to a typed error.
func classify(op string, code int, msg string) error {
	switch code {
	case 10006, 10016, 10018: // rate limited, service restarting
		return &exchange.NetworkError{Op: op, Err: fmt.Errorf("%s (code: %d)", msg, code)}
	}

	kind := exchange.KindRejected
	switch code {
	case 110004, 110007, 110012, 110045:
		kind = exchange.KindInsufficientFunds
	case 10001, 110003, 110017, 110094, 170136, 170137:
		kind = exchange.KindInvalidOrder
	case 10003, 10004, 10005, 33004:
		kind = exchange.KindAuth
	}
	return &exchange.ExchangeError{Op: op, Kind: kind, Code: code, Message: msg}
}

func parseFloat64(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

func toBybitSide(side string) string {
	if side == "SELL" {
		return sideSell
	}
	return sideBuy
}

func fromBybitSide(side string) string {
	if side == sideSell {
		return "SELL"
	}
	return "BUY"
}
