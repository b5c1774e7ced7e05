package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/exchange"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://fapi.binance.com"
	testnetBaseURL = "https://testnet.binancefuture.com"
	recvWindow     = "5000" // How long a request is valid in milliseconds
	maxRetries     = 3

	OrderTypeMarket           = "MARKET"
	OrderTypeStopMarket       = "STOP_MARKET"
	OrderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"
	OrderSideBuy              = "BUY"
	OrderSideSell             = "SELL"
)

// RestClient is a client for the Binance USDT-M futures REST API.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	quote     string
	logger    *zap.Logger
	limiter   *rate.Limiter
	retryBase time.Duration
	now       func() time.Time

	rulesMu sync.RWMutex
	rules   map[string]SymbolInfo
}

// ensure RestClient implements the interface
var _ exchange.Exchange = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Exchange, logger *zap.Logger) *RestClient {
	logger = logger.Named("binance")
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Futures Testnet")
	} else {
		url = baseURL
		logger.Info("Using Binance Futures Production API")
	}

	client := resty.New().SetBaseURL(url)
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	quote := cfg.QuoteCurrency
	if quote == "" {
		quote = "USDT"
	}

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		quote:     quote,
		logger:    logger,
		limiter:   limiter,
		retryBase: time.Second,
		now:       time.Now,
	}
}

func (c *RestClient) Name() string { return "binance" }

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *RestClient) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// signedQuery adds timestamp, recvWindow and signature to params.
func (c *RestClient) signedQuery(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.clock().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

// call executes a request with up to maxRetries attempts and decodes the JSON body into out.
func (c *RestClient) call(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	return c.send(ctx, method, path, params, signed, maxRetries, out)
}

// send is call with an explicit attempt budget.
func (c *RestClient) send(ctx context.Context, method, path string, params url.Values, signed bool, attempts int, out any) error {
	resp, err := c.doRequest(ctx, method, path, params, signed, attempts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

// newRequest builds one attempt. Signed requests get a fresh timestamp and signature each time.
func (c *RestClient) newRequest(ctx context.Context, params url.Values, signed bool) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if signed {
		req.SetHeader("X-MBX-APIKEY", c.apiKey)
		req.SetQueryString(c.signedQuery(params))
	} else if len(params) > 0 {
		req.SetQueryString(params.Encode())
	}
	return req
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Transient failures come back as *exchange.NetworkError, venue rejections as *exchange.ExchangeError.
func (c *RestClient) doRequest(ctx context.Context, method, path string, params url.Values, signed bool, attempts int) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	var retryAfter time.Duration
	op := method + " " + path
	base := c.retryBase
	if base == 0 {
		base = time.Second
	}
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		// Wait for the rate limiter
		if werr := c.limiter.Wait(ctx); werr != nil {
			return nil, &exchange.NetworkError{Op: op, Err: fmt.Errorf("rate limiter wait failed: %w", werr)}
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+path))
		resp, err = c.newRequest(ctx, params, signed).Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		retryAfter = 0

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				if seconds, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			if !shouldRetry {
				return nil, classify(op, resp.StatusCode(), resp.Body())
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if i == attempts-1 {
			break
		}

		wait := retryAfter
		if wait == 0 {
			// Exponential backoff: 1s, 2s, 4s
			wait = time.Duration(math.Pow(2, float64(i))) * base
		}

		c.logger.Warn("Request failed, retrying...",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)

		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			return nil, &exchange.NetworkError{Op: op, Err: ctx.Err()}
		}
	}

	return nil, &exchange.NetworkError{
		Op:         op,
		Err:        fmt.Errorf("request failed after %d attempts: %w", attempts, err),
		RetryAfter: retryAfter,
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// classify maps a non-retryable Binance error body to an ExchangeError.
func classify(op string, status int, body []byte) error {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil || ae.Msg == "" {
		ae.Msg = string(body)
	}

	kind := exchange.KindRejected
	switch ae.Code {
	case -2019, -2018:
		kind = exchange.KindInsufficientFunds
	case -1013, -1111, -1102, -1106, -4003, -4164, -2021:
		kind = exchange.KindInvalidOrder
	case -2014, -2015, -1022:
		kind = exchange.KindAuth
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = exchange.KindAuth
	}
	return &exchange.ExchangeError{Op: op, Kind: kind, Code: ae.Code, Message: ae.Msg}
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	var result struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/time", nil, false, &result); err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}
	return result.ServerTime, nil
}

// Ping checks connectivity, and credentials when a key is configured.
func (c *RestClient) Ping(ctx context.Context) error {
	if _, err := c.GetServerTime(ctx); err != nil {
		return err
	}
	if c.apiKey == "" {
		return nil
	}
	_, err := c.FetchBalance(ctx)
	return err
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
