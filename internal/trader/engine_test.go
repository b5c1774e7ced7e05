package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-trade-bot-go/internal/analyst"
	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine   *Engine
	repo     *database.Repository
	ex       *MockExchange
	source   *MockSource
	notifier *recordingNotifier
}

func setupEngine(t *testing.T, mutate ...func(*Engine)) *engineFixture {
	repo := setupRepo(t)
	ex := new(MockExchange)
	source := new(MockSource)
	notifier := &recordingNotifier{}
	engine := NewEngine(testConfig(), "binance", Deps{
		Market:   ex,
		Gateway:  ex,
		Source:   source,
		Repo:     repo,
		Notifier: notifier,
		Logger:   nopLogger(),
	})
	for _, m := range mutate {
		m(engine)
	}
	return &engineFixture{engine: engine, repo: repo, ex: ex, source: source, notifier: notifier}
}

// expectMarket stubs the reads made by one analysis cycle.
func (f *engineFixture) expectMarket(price float64, positions []exchange.Position) {
	f.ex.On("FetchCandles", "BTCUSDT", "1h", candleLimit).Return(flatCandles(60, price), nil)
	f.ex.On("FetchCandles", "BTCUSDT", "4h", candleLimit).Return(flatCandles(60, price), nil)
	f.ex.On("FetchBalance").Return(&exchange.Balance{Currency: "USDT", Total: 10000, Available: 10000}, nil)
	f.ex.On("FetchOpenPositions", "BTCUSDT").Return(positions, nil)
}

func buySignal() *models.Signal {
	return &models.Signal{
		Symbol:          "BTCUSDT",
		Action:          models.ActionBuy,
		Confidence:      80,
		Reasoning:       "breakout",
		EntryPrice:      models.Float(100),
		StopLoss:        models.Float(98),
		TakeProfit:      models.Float(106),
		PositionSizePct: models.Float(2),
	}
}

func TestEngine_AnalyzeOpensTrade(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := setupEngine(t)
	f.expectMarket(100, nil)
	sig := buySignal()
	f.source.On("GetSignal", "BTCUSDT").Return(sig).Once()
	f.ex.On("PlaceMarketOrder", mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.Symbol == "BTCUSDT" && req.Side == "BUY" && req.Quantity == 2
	})).Return(&exchange.OrderResult{OrderID: "o-1", Quantity: 2, FillPrice: 100.2}, nil).Once()

	// Act
	err := f.engine.Analyze(ctx, "BTCUSDT")

	// Assert
	require.NoError(t, err)
	open, err := f.repo.GetOpenTrades(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 100.2, open[0].EntryPrice)
	assert.Equal(t, 2.0, open[0].Quantity)
	require.NotNil(t, open[0].SignalID)
	assert.Equal(t, sig.ID, *open[0].SignalID)

	trades := f.notifier.byKind("trade")
	require.Len(t, trades, 1)
	assert.True(t, trades[0].exec.Success)
	assert.Equal(t, "o-1", trades[0].exec.OrderID)
	f.ex.AssertExpectations(t)
	f.source.AssertExpectations(t)
}

func TestEngine_AnalyzeRejectsInCooldown(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	f.expectMarket(100, nil)
	f.source.On("GetSignal", "BTCUSDT").Return(buySignal()).Once()
	closedAt := time.Now().Add(-30 * time.Minute)
	recent := &models.Trade{
		Symbol: "BTCUSDT", Side: models.SideBuy, Quantity: 1, EntryPrice: 100,
		Status: models.TradeStatusClosed, PnL: models.Float(1), OpenedAt: time.Now().Add(-time.Hour), ClosedAt: &closedAt,
	}
	require.NoError(t, f.repo.SaveTrade(ctx, recent))

	err := f.engine.Analyze(ctx, "BTCUSDT")

	require.NoError(t, err)
	f.ex.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything)
	errs := f.notifier.byKind("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Signal rejected: BUY BTCUSDT", errs[0].message)
	assert.Contains(t, errs[0].details, "cooldown")
}

func TestEngine_AnalyzeDryRun(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t, func(e *Engine) { e.cfg.Trading.DryRun = true })
	f.expectMarket(100, nil)
	f.source.On("GetSignal", "BTCUSDT").Return(buySignal()).Once()

	require.NoError(t, f.engine.Analyze(ctx, "BTCUSDT"))

	f.ex.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything)
	open, err := f.repo.GetOpenTrades(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)
	trades := f.notifier.byKind("trade")
	require.Len(t, trades, 1)
	assert.True(t, trades[0].exec.DryRun)
	assert.Equal(t, 2.0, trades[0].exec.Quantity)
}

func TestEngine_AnalyzeSourceFailure(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	f.expectMarket(100, nil)
	f.source.On("GetSignal", "BTCUSDT").Return(analyst.ErrorSignal("BTCUSDT", errors.New("model down"))).Once()

	require.NoError(t, f.engine.Analyze(ctx, "BTCUSDT"))

	f.ex.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything)
	errs := f.notifier.byKind("error")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].details, "model down")
}

func TestEngine_AnalyzeOrderRejected(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	f.expectMarket(100, nil)
	f.source.On("GetSignal", "BTCUSDT").Return(buySignal()).Once()
	f.ex.On("PlaceMarketOrder", mock.Anything).
		Return(nil, &exchange.ExchangeError{Op: "order", Kind: exchange.KindInsufficientFunds, Message: "margin is insufficient"}).Once()

	require.NoError(t, f.engine.Analyze(ctx, "BTCUSDT"))

	open, err := f.repo.GetOpenTrades(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)
	trades := f.notifier.byKind("trade")
	require.Len(t, trades, 1)
	assert.False(t, trades[0].exec.Success)
	assert.Contains(t, trades[0].exec.Error, "margin is insufficient")
}

func TestEngine_AnalyzeMarketDataFailure(t *testing.T) {
	f := setupEngine(t)
	netErr := &exchange.NetworkError{Op: "klines", Err: errors.New("timeout")}
	f.ex.On("FetchCandles", "BTCUSDT", "1h", candleLimit).Return(nil, netErr).Once()

	err := f.engine.Analyze(context.Background(), "BTCUSDT")

	assert.ErrorIs(t, err, netErr)
	errs := f.notifier.byKind("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Analysis error for BTCUSDT", errs[0].message)
	f.source.AssertNotCalled(t, "GetSignal", mock.Anything)
}

func TestEngine_AnalyzeCloseSignal(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	pos := exchange.Position{Symbol: "BTCUSDT", Side: "BUY", Size: 2, EntryPrice: 100}
	f.expectMarket(110, []exchange.Position{pos})
	trade := openTrade(t, f.repo, "BTCUSDT", models.SideBuy, 100, 2, time.Now().Add(-5*time.Hour))
	// confidence below the entry threshold: CLOSE is not routed through the validator
	f.source.On("GetSignal", "BTCUSDT").Return(&models.Signal{Symbol: "BTCUSDT", Action: models.ActionClose, Confidence: 40}).Once()
	f.ex.On("ClosePosition", "BTCUSDT", pos).Return(&exchange.CloseResult{OrderID: "c-1", Quantity: 2, ExitPrice: 110}, nil).Once()

	require.NoError(t, f.engine.Analyze(ctx, "BTCUSDT"))

	stored, err := f.repo.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusClosed, stored.Status)
	assert.InDelta(t, 20, models.Value(stored.PnL), 1e-9)
	trades := f.notifier.byKind("trade")
	require.Len(t, trades, 1)
	assert.Equal(t, "c-1", trades[0].exec.OrderID)
}

func TestEngine_AnalyzeHoldAdjustsStop(t *testing.T) {
	f := setupEngine(t)
	pos := exchange.Position{Symbol: "BTCUSDT", Side: "BUY", Size: 1}
	f.expectMarket(100, []exchange.Position{pos})
	f.source.On("GetSignal", "BTCUSDT").Return(&models.Signal{
		Symbol: "BTCUSDT", Action: models.ActionHold, Confidence: 60, AdjustStopLoss: models.Float(99),
	}).Once()
	f.ex.On("AdjustStopLoss", "BTCUSDT", pos, 99.0).Return(nil).Once()

	require.NoError(t, f.engine.Analyze(context.Background(), "BTCUSDT"))

	f.ex.AssertExpectations(t)
}

func TestEngine_MonitorEmergencyStop(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := setupEngine(t)
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 10000, Available: 10000}, nil).Once()
	require.NoError(t, f.engine.Initialize(ctx))
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 8900, Available: 8900}, nil)
	f.ex.On("FetchOpenPositions", "").Return(nil, nil)

	// Act
	require.NoError(t, f.engine.Monitor(ctx))
	require.NoError(t, f.engine.Monitor(ctx))

	// Assert
	status := f.engine.Status()
	assert.True(t, status.EmergencyStop)
	assert.Contains(t, status.EmergencyReason, "drawdown")
	errs := f.notifier.byKind("error")
	require.Len(t, errs, 1, "notified once on the transition")
	assert.Equal(t, "EMERGENCY STOP", errs[0].message)

	// entries are blocked while tripped
	f.expectMarket(100, nil)
	f.source.On("GetSignal", "BTCUSDT").Return(buySignal()).Once()
	require.NoError(t, f.engine.Analyze(ctx, "BTCUSDT"))
	f.ex.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything)
}

func TestEngine_MonitorReconcilesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	repo := f.repo
	closing := openTrade(t, repo, "XUSDT", models.SideBuy, 100, 2, time.Now())
	holding := openTrade(t, repo, "BTCUSDT", models.SideBuy, 60000, 0.01, time.Now())
	f.ex.On("FetchOpenPositions", "XUSDT").Return(nil, nil).Once()
	f.ex.On("FetchTicker", "XUSDT").Return(&exchange.Ticker{Last: 110}, nil).Once()
	btc := exchange.Position{Symbol: "BTCUSDT", Side: "BUY", Size: 0.01, UnrealizedPnL: 7}
	f.ex.On("FetchOpenPositions", "BTCUSDT").Return([]exchange.Position{btc}, nil).Once()
	f.ex.On("FetchOpenPositions", "").Return([]exchange.Position{btc}, nil).Once()
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 1020, Available: 900}, nil).Once()

	require.NoError(t, f.engine.Monitor(ctx))

	x, err := repo.GetTrade(ctx, closing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusClosed, x.Status)
	b, err := repo.GetTrade(ctx, holding.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7, b.UnrealizedPnL, 1e-9)

	snaps, err := repo.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].OpenPositions)
	assert.InDelta(t, 27, snaps[0].DailyPnL, 1e-9)
	f.ex.AssertExpectations(t)
}

func TestEngine_MonitorPositionFetchFailureKeepsTradeOpen(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	repo := f.repo
	trade := openTrade(t, repo, "BTCUSDT", models.SideBuy, 100, 1, time.Now())
	f.ex.On("FetchOpenPositions", "BTCUSDT").Return(nil, &exchange.NetworkError{Op: "positions", Err: errors.New("reset")}).Once()
	f.ex.On("FetchOpenPositions", "").Return(nil, nil).Once()
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 1000, Available: 1000}, nil).Once()

	require.NoError(t, f.engine.Monitor(ctx))

	stored, err := repo.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusOpen, stored.Status)
	f.ex.AssertNotCalled(t, "FetchTicker", mock.Anything)
	assert.Len(t, f.notifier.byKind("error"), 1)
}

func TestEngine_DailyReport(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	repo := f.repo
	win := openTrade(t, repo, "BTCUSDT", models.SideBuy, 100, 1, time.Now())
	_, err := repo.CloseTrade(ctx, win.ID, 110, 10, 10, time.Now())
	require.NoError(t, err)
	openTrade(t, repo, "ETHUSDT", models.SideBuy, 100, 1, time.Now())
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 1010}, nil).Once()

	require.NoError(t, f.engine.DailyReport(ctx))

	reports := f.notifier.byKind("daily")
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].stats.TotalTrades)
	assert.Equal(t, 1, reports[0].stats.OpenPositions)
	assert.InDelta(t, 10, reports[0].stats.TotalPnL, 1e-9)
	assert.Equal(t, "USDT", reports[0].stats.Currency)
}

func TestEngine_ScheduleRegistersTasks(t *testing.T) {
	f := setupEngine(t, func(e *Engine) { e.cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"} })
	s := NewScheduler(nopLogger())

	require.NoError(t, f.engine.Schedule(s))

	var names []string
	for _, task := range s.tasks {
		names = append(names, task.name)
	}
	assert.Equal(t, []string{"analysis:BTCUSDT", "analysis:ETHUSDT", "monitor", "daily_report"}, names)
}

func TestEngine_RejectionRuleFromValidator(t *testing.T) {
	f := setupEngine(t)
	sig := buySignal()
	sig.Confidence = 65

	d := f.engine.validator.Validate(sig, 10000, nil, nil, nil)

	assert.Equal(t, risk.RuleConfidence, d.Rule)
}
