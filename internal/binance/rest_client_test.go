package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/exchange"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		quote:     "USDT",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		retryBase: time.Millisecond,
		rules: map[string]SymbolInfo{
			"BTCUSDT": {Symbol: "BTCUSDT", Filters: []Filter{
				{FilterType: "LOT_SIZE", StepSize: "0.001"},
				{FilterType: "PRICE_FILTER", TickSize: "0.10"},
			}},
		},
	}

	return rc, server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		expectedTime := time.Now().UnixMilli()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fapi/v1/time", r.URL.Path)
			writeJSON(w, http.StatusOK, fmt.Sprintf(`{"serverTime": %d}`, expectedTime))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("ServerErrorIsRetriedThenNetworkError", func(t *testing.T) {
		// Arrange
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusInternalServerError, `{"code": -1001, "msg": "Internal error"}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Contains(t, err.Error(), "request failed")
		assert.True(t, exchange.IsRetryable(err))
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
		assert.Equal(t, int64(0), serverTime)
	})

	t.Run("RecoversAfterRateLimit", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				writeJSON(w, http.StatusTooManyRequests, `{"code": -1003, "msg": "Too many requests"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"serverTime": 5}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, int64(5), serverTime)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestNewRestClient(t *testing.T) {
	t.Run("Testnet", func(t *testing.T) {
		cfg := &config.Exchange{Testnet: true, ApiKey: "k", SecretKey: "s", RateLimit: 10, RateLimitBurst: 1}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, testnetBaseURL, rc.client.BaseURL)
		assert.Equal(t, cfg.ApiKey, rc.apiKey)
		assert.Equal(t, cfg.SecretKey, rc.secretKey)
		assert.Equal(t, "USDT", rc.quote)
	})

	t.Run("Production", func(t *testing.T) {
		cfg := &config.Exchange{Testnet: false, QuoteCurrency: "USDC"}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.Equal(t, baseURL, rc.client.BaseURL)
		assert.Equal(t, "USDC", rc.quote)
	})
}

func TestSignedRequests(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))
		q := r.URL.Query()
		require.NotEmpty(t, q.Get("signature"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Equal(t, recvWindow, q.Get("recvWindow"))
		writeJSON(w, http.StatusOK, `[
			{"asset":"BNB","balance":"1","availableBalance":"1"},
			{"asset":"USDT","balance":"1250.50","availableBalance":"1000.25"}
		]`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	bal, err := rc.FetchBalance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "USDT", bal.Currency)
	assert.InDelta(t, 1250.50, bal.Total, 1e-9)
	assert.InDelta(t, 1000.25, bal.Available, 1e-9)
}

func TestSignedRequestRetryResigns(t *testing.T) {
	// Arrange
	var (
		calls      int32
		mu         sync.Mutex
		timestamps []string
		signatures []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.RawQuery
		idx := strings.LastIndex(raw, "&signature=")
		require.True(t, idx > 0)

		mu.Lock()
		timestamps = append(timestamps, r.URL.Query().Get("timestamp"))
		signatures = append(signatures, raw[idx+len("&signature="):])
		mu.Unlock()

		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusInternalServerError, `{"code": -1001, "msg": "Internal error"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"asset":"USDT","balance":"10","availableBalance":"10"}]`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()
	clock := time.UnixMilli(1_700_000_000_000)
	rc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	verify := &RestClient{secretKey: rc.secretKey}

	// Act
	_, err := rc.FetchBalance(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, timestamps, 3)
	assert.NotEqual(t, timestamps[0], timestamps[1])
	assert.NotEqual(t, timestamps[1], timestamps[2])
	assert.NotEqual(t, signatures[0], signatures[1])
	assert.NotEqual(t, signatures[1], signatures[2])
	for i, ts := range timestamps {
		query := url.Values{"timestamp": {ts}, "recvWindow": {recvWindow}}.Encode()
		assert.Equal(t, verify.sign(query), signatures[i], "attempt %d", i+1)
	}
}

func TestFetchCandlesAndTicker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, `[
			[1700000000000,"100.0","110.0","95.0","105.0","12.5",1700003599999,"1300",10,"6","600","0"],
			[1700003600000,"105.0","108.0","101.0","102.0","8.0",1700007199999,"800",5,"3","300","0"]
		]`)
	})
	mux.HandleFunc("/fapi/v1/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","price":"61234.50","time":1700007200000}`)
	})

	rc, server := setupTestServer(mux)
	defer server.Close()

	candles, err := rc.FetchCandles(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), candles[0].OpenTime)
	assert.InDelta(t, 105.0, candles[0].Close, 1e-9)
	assert.InDelta(t, 8.0, candles[1].Volume, 1e-9)

	ticker, err := rc.FetchTicker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 61234.50, ticker.Last, 1e-9)
}

func TestFetchOpenPositions(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
		writeJSON(w, http.StatusOK, `[
			{"symbol":"BTCUSDT","positionAmt":"0.010","entryPrice":"60000","markPrice":"61000","unRealizedProfit":"10","leverage":"5"},
			{"symbol":"ETHUSDT","positionAmt":"-2","entryPrice":"3000","markPrice":"2950","unRealizedProfit":"100","leverage":"3"},
			{"symbol":"SOLUSDT","positionAmt":"0","entryPrice":"0","markPrice":"150","unRealizedProfit":"0","leverage":"1"}
		]`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	positions, err := rc.FetchOpenPositions(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, OrderSideBuy, positions[0].Side)
	assert.InDelta(t, 0.01, positions[0].Size, 1e-12)
	assert.Equal(t, OrderSideSell, positions[1].Side)
	assert.InDelta(t, 2.0, positions[1].Size, 1e-12)
	assert.InDelta(t, 100.0, positions[1].UnrealizedPnL, 1e-9)
}

func TestPlaceMarketOrder(t *testing.T) {
	t.Run("PlacesEntryAndProtectiveOrders", func(t *testing.T) {
		// Arrange
		var types []string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			q := r.URL.Query()
			types = append(types, q.Get("type"))
			switch q.Get("type") {
			case OrderTypeMarket:
				assert.Equal(t, "0.123", q.Get("quantity"))
				assert.Equal(t, OrderSideBuy, q.Get("side"))
				writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":42,"avgPrice":"60010.5","executedQty":"0.123","status":"FILLED","type":"MARKET","side":"BUY"}`)
			case OrderTypeStopMarket:
				assert.Equal(t, "59000.0", q.Get("stopPrice"))
				assert.Equal(t, "true", q.Get("reduceOnly"))
				assert.Equal(t, OrderSideSell, q.Get("side"))
				writeJSON(w, http.StatusOK, `{"orderId":43,"status":"NEW","type":"STOP_MARKET"}`)
			case OrderTypeTakeProfitMarket:
				assert.Equal(t, "62000.0", q.Get("stopPrice"))
				writeJSON(w, http.StatusOK, `{"orderId":44,"status":"NEW","type":"TAKE_PROFIT_MARKET"}`)
			}
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		res, err := rc.PlaceMarketOrder(context.Background(), exchange.OrderRequest{
			Symbol: "BTCUSDT", Side: OrderSideBuy, Quantity: 0.12345,
			StopLoss: floatPtr(59000), TakeProfit: floatPtr(62000),
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "42", res.OrderID)
		assert.InDelta(t, 60010.5, res.FillPrice, 1e-9)
		assert.InDelta(t, 0.123, res.Quantity, 1e-12)
		assert.Equal(t, []string{OrderTypeMarket, OrderTypeStopMarket, OrderTypeTakeProfitMarket}, types)
	})

	t.Run("InsufficientFundsIsNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusBadRequest, `{"code":-2019,"msg":"Margin is insufficient."}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.PlaceMarketOrder(context.Background(), exchange.OrderRequest{Symbol: "BTCUSDT", Side: OrderSideBuy, Quantity: 1})

		var xe *exchange.ExchangeError
		require.True(t, errors.As(err, &xe))
		assert.Equal(t, exchange.KindInsufficientFunds, xe.Kind)
		assert.Equal(t, -2019, xe.Code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("OrderIsSentOnce", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusBadGateway, `{"code":-1001,"msg":"Internal error"}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.PlaceMarketOrder(context.Background(), exchange.OrderRequest{Symbol: "BTCUSDT", Side: OrderSideBuy, Quantity: 1})

		var ne *exchange.NetworkError
		require.True(t, errors.As(err, &ne))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("QuantityBelowStep", func(t *testing.T) {
		rc, server := setupTestServer(http.NotFoundHandler())
		defer server.Close()

		_, err := rc.PlaceMarketOrder(context.Background(), exchange.OrderRequest{Symbol: "BTCUSDT", Side: OrderSideBuy, Quantity: 0.0004})

		var xe *exchange.ExchangeError
		require.True(t, errors.As(err, &xe))
		assert.Equal(t, exchange.KindInvalidOrder, xe.Kind)
	})
}

func TestClosePosition(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, OrderSideBuy, q.Get("side"))
		assert.Equal(t, "true", q.Get("reduceOnly"))
		assert.Equal(t, "0.500", q.Get("quantity"))
		writeJSON(w, http.StatusOK, `{"orderId":7,"avgPrice":"0","cumQuote":"30500","executedQty":"0.5","status":"FILLED"}`)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	res, err := rc.ClosePosition(context.Background(), "BTCUSDT", exchange.Position{Symbol: "BTCUSDT", Side: OrderSideSell, Size: 0.5})

	require.NoError(t, err)
	assert.Equal(t, "7", res.OrderID)
	assert.InDelta(t, 61000.0, res.ExitPrice, 1e-9)
}

func TestAdjustStopLoss(t *testing.T) {
	var cancelled []string
	var placed int32
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/openOrders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"orderId":1,"symbol":"BTCUSDT","type":"STOP_MARKET","side":"SELL"},
			{"orderId":2,"symbol":"BTCUSDT","type":"TAKE_PROFIT_MARKET","side":"SELL"}
		]`)
	})
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			cancelled = append(cancelled, r.URL.Query().Get("orderId"))
			writeJSON(w, http.StatusOK, `{"orderId":1,"status":"CANCELED"}`)
		case http.MethodPost:
			atomic.AddInt32(&placed, 1)
			assert.Equal(t, OrderTypeStopMarket, r.URL.Query().Get("type"))
			assert.Equal(t, "60500.0", r.URL.Query().Get("stopPrice"))
			writeJSON(w, http.StatusOK, `{"orderId":3,"status":"NEW","type":"STOP_MARKET"}`)
		}
	})

	rc, server := setupTestServer(mux)
	defer server.Close()

	err := rc.AdjustStopLoss(context.Background(), "BTCUSDT", exchange.Position{Side: OrderSideBuy, Size: 0.1}, 60500)

	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, cancelled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&placed))
}

func floatPtr(v float64) *float64 { return &v }
