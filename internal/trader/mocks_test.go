package trader

import (
	"context"
	"sync"
	"testing"
	"time"

	"signal-trade-bot-go/internal/analyst"
	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/notify"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockExchange is a mock implementation of exchange.MarketData and exchange.Gateway.
type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	args := m.Called(symbol, timeframe, limit)
	candles, _ := args.Get(0).([]exchange.Candle)
	return candles, args.Error(1)
}

func (m *MockExchange) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	args := m.Called(symbol)
	ticker, _ := args.Get(0).(*exchange.Ticker)
	return ticker, args.Error(1)
}

func (m *MockExchange) FetchBalance(ctx context.Context) (*exchange.Balance, error) {
	args := m.Called()
	bal, _ := args.Get(0).(*exchange.Balance)
	return bal, args.Error(1)
}

func (m *MockExchange) FetchOpenPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	args := m.Called(symbol)
	positions, _ := args.Get(0).([]exchange.Position)
	return positions, args.Error(1)
}

func (m *MockExchange) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*exchange.OrderResult)
	return res, args.Error(1)
}

func (m *MockExchange) ClosePosition(ctx context.Context, symbol string, pos exchange.Position) (*exchange.CloseResult, error) {
	args := m.Called(symbol, pos)
	res, _ := args.Get(0).(*exchange.CloseResult)
	return res, args.Error(1)
}

func (m *MockExchange) AdjustStopLoss(ctx context.Context, symbol string, pos exchange.Position, stopPrice float64) error {
	return m.Called(symbol, pos, stopPrice).Error(0)
}

func (m *MockExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return m.Called(orderID, symbol).Error(0)
}

// MockSource is a mock implementation of analyst.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) GetSignal(ctx context.Context, req analyst.Request) *models.Signal {
	return m.Called(req.Symbol).Get(0).(*models.Signal)
}

type notification struct {
	kind    string
	message string
	details string
	exec    *notify.Execution
	stats   notify.DailyStats
}

// recordingNotifier keeps every call for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recordingNotifier) add(n notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
}

func (r *recordingNotifier) NotifyTrade(_ context.Context, sig *models.Signal, exec *notify.Execution) {
	r.add(notification{kind: "trade", message: string(sig.Action) + " " + sig.Symbol, exec: exec})
}

func (r *recordingNotifier) NotifyDailyReport(_ context.Context, stats notify.DailyStats) {
	r.add(notification{kind: "daily", stats: stats})
}

func (r *recordingNotifier) NotifyError(_ context.Context, message, details string) {
	r.add(notification{kind: "error", message: message, details: details})
}

func (r *recordingNotifier) NotifyStartup(context.Context, notify.Summary) {
	r.add(notification{kind: "startup"})
}

func (r *recordingNotifier) NotifyShutdown(context.Context) {
	r.add(notification{kind: "shutdown"})
}

func (r *recordingNotifier) byKind(kind string) []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification
	for _, n := range r.calls {
		if n.kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// setupRepo opens a fresh in-memory database for each test.
func setupRepo(t *testing.T) *database.Repository {
	db, err := database.NewDatabase(config.Database{DSN: ":memory:"})
	require.NoError(t, err)
	return database.NewRepository(db)
}

func testConfig() *config.Config {
	return &config.Config{
		Exchange: config.Exchange{Name: "binance", QuoteCurrency: "USDT"},
		Symbols:  []string{"BTCUSDT"},
		Risk:     config.DefaultRisk(),
		Schedule: config.Schedule{AnalysisIntervalMinutes: 60, MonitorIntervalMinutes: 5, DailyReportTime: "23:55"},
	}
}

func flatCandles(n int, price float64) []exchange.Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]exchange.Candle, n)
	for i := range out {
		out[i] = exchange.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     price, High: price + 1, Low: price - 1, Close: price, Volume: 5,
		}
	}
	return out
}

func openTrade(t *testing.T, repo *database.Repository, symbol, side string, entry, qty float64, openedAt time.Time) *models.Trade {
	trade := &models.Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: entry,
		Status:     models.TradeStatusOpen,
		OpenedAt:   openedAt,
	}
	require.NoError(t, repo.SaveTrade(context.Background(), trade))
	return trade
}

func nopLogger() *zap.Logger { return zap.NewNop() }
