package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"signal-trade-bot-go/internal/analyst"
	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/metrics"
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/notify"
	"signal-trade-bot-go/internal/risk"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const candleLimit = 200

// Deps holds the collaborators shared by the trading loop.
type Deps struct {
	Market   exchange.MarketData
	Gateway  exchange.Gateway
	Source   analyst.Source
	Repo     Repository
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Status is the engine state reported by the API.
type Status struct {
	UUID            string               `json:"uuid"`
	Exchange        string               `json:"exchange"`
	Mode            string               `json:"mode"`
	Symbols         []string             `json:"symbols"`
	StartTime       time.Time            `json:"start_time"`
	Uptime          string               `json:"uptime"`
	InitialBalance  float64              `json:"initial_balance"`
	EmergencyStop   bool                 `json:"emergency_stop"`
	EmergencyReason string               `json:"emergency_reason,omitempty"`
	LastAnalysis    map[string]time.Time `json:"last_analysis"`
	LastMonitor     time.Time            `json:"last_monitor"`
}

// Engine wires the signal source, risk checks and trade lifecycle into the
// three periodic tasks: per-symbol analysis, position monitoring and the daily report.
type Engine struct {
	UUID      string
	StartTime time.Time

	deps      Deps
	cfg       *config.Config
	exchange  string
	validator *risk.SignalValidator
	sizer     risk.PositionSizer
	guard     risk.EmergencyStopGuard
	pnl       risk.PnLAggregator
	lifecycle *Lifecycle
	logger    *zap.Logger
	now       func() time.Time

	mu             sync.RWMutex
	initialBalance float64
	halted         bool
	haltReason     string
	lastAnalysis   map[string]time.Time
	lastMonitor    time.Time
}

// NewEngine creates a trading engine. exchangeName is only used for reporting.
func NewEngine(cfg *config.Config, exchangeName string, deps Deps) *Engine {
	logger := deps.Logger.Named("engine")
	return &Engine{
		UUID:         uuid.NewString(),
		StartTime:    time.Now(),
		deps:         deps,
		cfg:          cfg,
		exchange:     exchangeName,
		validator:    risk.NewSignalValidator(cfg.Risk),
		sizer:        risk.PositionSizer{MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade, Logger: logger},
		lifecycle:    NewLifecycle(deps.Repo, deps.Market, deps.Gateway, cfg.Risk.MaxOpenPositions, deps.Logger),
		logger:       logger,
		now:          time.Now,
		lastAnalysis: make(map[string]time.Time),
	}
}

func (e *Engine) dryRun() bool {
	return e.cfg.Trading.DryRun || e.cfg.Trading.Demo
}

// Mode describes how orders are handled.
func (e *Engine) Mode() string {
	switch {
	case e.cfg.Trading.Demo:
		return "demo"
	case e.cfg.Trading.DryRun:
		return "dry-run"
	case e.cfg.Exchange.Testnet:
		return "testnet"
	}
	return "live"
}

// Initialize captures the reference balance for the emergency stop.
func (e *Engine) Initialize(ctx context.Context) error {
	bal, err := e.deps.Market.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch initial balance: %w", err)
	}
	e.mu.Lock()
	e.initialBalance = bal.Total
	e.mu.Unlock()
	e.logger.Info("Engine initialized",
		zap.String("mode", e.Mode()),
		zap.Float64("initial_balance", bal.Total),
		zap.Strings("symbols", e.cfg.Symbols),
	)
	return nil
}

// Summary is the startup description sent to the notifiers.
func (e *Engine) Summary() notify.Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return notify.Summary{
		Exchange:         e.exchange,
		Mode:             e.Mode(),
		Symbols:          e.cfg.Symbols,
		Balance:          e.initialBalance,
		Currency:         e.cfg.Exchange.QuoteCurrency,
		AnalysisInterval: e.cfg.Schedule.AnalysisIntervalMinutes,
		MonitorInterval:  e.cfg.Schedule.MonitorIntervalMinutes,
		MaxOpenPositions: e.cfg.Risk.MaxOpenPositions,
		MinConfidence:    e.cfg.Risk.MinConfidence,
	}
}

// Status returns a copy of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	last := make(map[string]time.Time, len(e.lastAnalysis))
	for k, v := range e.lastAnalysis {
		last[k] = v
	}
	return Status{
		UUID:            e.UUID,
		Exchange:        e.exchange,
		Mode:            e.Mode(),
		Symbols:         e.cfg.Symbols,
		StartTime:       e.StartTime,
		Uptime:          time.Since(e.StartTime).Round(time.Second).String(),
		InitialBalance:  e.initialBalance,
		EmergencyStop:   e.halted,
		EmergencyReason: e.haltReason,
		LastAnalysis:    last,
		LastMonitor:     e.lastMonitor,
	}
}

// Schedule registers the periodic tasks on s.
func (e *Engine) Schedule(s *Scheduler) error {
	analysis := time.Duration(e.cfg.Schedule.AnalysisIntervalMinutes) * time.Minute
	for _, symbol := range e.cfg.Symbols {
		s.Every("analysis:"+symbol, analysis, func(ctx context.Context) error {
			return e.Analyze(ctx, symbol)
		})
	}
	s.Every("monitor", time.Duration(e.cfg.Schedule.MonitorIntervalMinutes)*time.Minute, e.Monitor)
	return s.DailyAt("daily_report", e.cfg.Schedule.DailyReportTime, e.DailyReport)
}

// RunOnce analyzes every symbol and then monitors positions once.
func (e *Engine) RunOnce(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		if err := e.Analyze(ctx, symbol); err != nil {
			e.logger.Error("Analysis failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	if err := e.Monitor(ctx); err != nil {
		e.logger.Error("Monitor failed", zap.Error(err))
	}
}

// Analyze runs one analysis cycle for symbol: market data, signal, risk checks
// and the resulting order, if any.
func (e *Engine) Analyze(ctx context.Context, symbol string) error {
	l := e.logger.With(zap.String("symbol", symbol))
	l.Info("Running analysis")

	err := e.analyze(ctx, symbol, l)
	e.mu.Lock()
	e.lastAnalysis[symbol] = e.now()
	e.mu.Unlock()
	if err != nil {
		e.reportError(ctx, "analysis", fmt.Sprintf("Analysis error for %s", symbol), err)
	}
	return err
}

func (e *Engine) analyze(ctx context.Context, symbol string, l *zap.Logger) error {
	hourly, err := e.deps.Market.FetchCandles(ctx, symbol, "1h", candleLimit)
	if err != nil {
		return err
	}
	fourHour, err := e.deps.Market.FetchCandles(ctx, symbol, "4h", candleLimit)
	if err != nil {
		return err
	}
	e.archiveCandles(ctx, symbol, "1h", hourly)
	e.archiveCandles(ctx, symbol, "4h", fourHour)

	indicators, err := analyst.ComputeIndicators(hourly, fourHour)
	if err != nil {
		return fmt.Errorf("indicators for %s: %w", symbol, err)
	}

	bal, err := e.deps.Market.FetchBalance(ctx)
	if err != nil {
		return err
	}
	positions, err := e.deps.Market.FetchOpenPositions(ctx, symbol)
	if err != nil {
		return err
	}
	current := findPosition(positions, symbol)

	sig := e.deps.Source.GetSignal(ctx, analyst.Request{
		Symbol:     symbol,
		Indicators: indicators,
		Position:   current,
		Balance:    bal.Available,
	})
	if err := e.deps.Repo.SaveSignal(ctx, sig); err != nil {
		return persistErr("save signal", err)
	}
	metrics.RecordSignal(symbol, string(sig.Action))
	l.Info("Signal saved",
		zap.Uint("signal_id", sig.ID),
		zap.String("action", string(sig.Action)),
		zap.Int("confidence", sig.Confidence),
	)

	if sig.Error {
		e.deps.Notifier.NotifyError(ctx, fmt.Sprintf("Signal source failed for %s", symbol), sig.Reasoning)
		return nil
	}

	switch sig.Action {
	case models.ActionBuy, models.ActionSell:
		return e.handleEntry(ctx, sig, bal.Available, indicators.Price, l)
	case models.ActionClose:
		return e.handleClose(ctx, sig, current, l)
	default:
		return e.handleHold(ctx, sig, current, l)
	}
}

func (e *Engine) handleEntry(ctx context.Context, sig *models.Signal, balance, price float64, l *zap.Logger) error {
	if halted, reason := e.emergencyState(); halted {
		metrics.RecordRejection("emergency_stop")
		l.Warn("Entry blocked by emergency stop", zap.String("reason", reason))
		e.deps.Notifier.NotifyError(ctx, fmt.Sprintf("Signal rejected: %s %s", sig.Action, sig.Symbol), reason)
		return nil
	}

	openTrades, err := e.deps.Repo.GetOpenTrades(ctx, "")
	if err != nil {
		return persistErr("load open trades", err)
	}
	tradesToday, err := e.deps.Repo.GetTradesToday(ctx)
	if err != nil {
		return persistErr("load trades today", err)
	}
	lastTrade, err := e.deps.Repo.GetLastTrade(ctx, sig.Symbol)
	if err != nil {
		return persistErr("load last trade", err)
	}

	decision := e.validator.Validate(sig, balance, openTrades, tradesToday, lastTrade)
	if !decision.Accepted {
		metrics.RecordRejection(string(decision.Rule))
		l.Warn("Signal rejected", zap.String("rule", string(decision.Rule)), zap.String("reason", decision.Reason))
		e.deps.Notifier.NotifyError(ctx, fmt.Sprintf("Signal rejected: %s %s", sig.Action, sig.Symbol), decision.Reason)
		return nil
	}
	l.Info("Signal validated", zap.String("reason", decision.Reason))

	quantity := e.sizer.Size(sig, balance, price)
	if quantity <= 0 {
		e.deps.Notifier.NotifyError(ctx, fmt.Sprintf("Position size is zero for %s", sig.Symbol), "check stop-loss against entry price")
		return nil
	}

	if e.dryRun() {
		l.Info("DRY RUN: would execute order", zap.String("side", string(sig.Action)), zap.Float64("quantity", quantity))
		e.deps.Notifier.NotifyTrade(ctx, sig, &notify.Execution{DryRun: true, Quantity: quantity, FillPrice: price})
		return nil
	}

	trade, result, err := e.lifecycle.Open(ctx, sig, quantity, price)
	if err != nil {
		if errors.Is(err, ErrPositionLimit) {
			metrics.RecordRejection(string(risk.RuleMaxOpenPositions))
			e.deps.Notifier.NotifyError(ctx, fmt.Sprintf("Signal rejected: %s %s", sig.Action, sig.Symbol), err.Error())
			return nil
		}
		return e.executionFailed(ctx, sig, err, l)
	}

	e.deps.Notifier.NotifyTrade(ctx, sig, &notify.Execution{
		Success:   true,
		OrderID:   result.OrderID,
		Quantity:  trade.Quantity,
		FillPrice: trade.EntryPrice,
	})
	return nil
}

func (e *Engine) handleClose(ctx context.Context, sig *models.Signal, current *exchange.Position, l *zap.Logger) error {
	if current == nil {
		l.Info("No position to close")
		return nil
	}
	if e.dryRun() {
		l.Info("DRY RUN: would close position", zap.Float64("size", current.Size))
		e.deps.Notifier.NotifyTrade(ctx, sig, &notify.Execution{DryRun: true, Quantity: current.Size})
		return nil
	}

	closed, result, err := e.lifecycle.Close(ctx, sig.Symbol, *current)
	if err != nil {
		return e.executionFailed(ctx, sig, err, l)
	}

	var pnl float64
	for i := range closed {
		pnl += closed[i].RealizedPnL()
	}
	l.Info("Position closed", zap.Int("trades", len(closed)), zap.Float64("pnl", pnl))
	e.deps.Notifier.NotifyTrade(ctx, sig, &notify.Execution{
		Success:   true,
		OrderID:   result.OrderID,
		Quantity:  result.Quantity,
		FillPrice: result.ExitPrice,
	})
	return nil
}

// executionFailed reports a gateway failure on the trade alert itself. Persistence
// failures are returned so the cycle fails and is reported as an error.
func (e *Engine) executionFailed(ctx context.Context, sig *models.Signal, err error, l *zap.Logger) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	kind := "exchange"
	if exchange.IsRetryable(err) {
		kind = "network"
	}
	metrics.RecordError(kind)
	l.Error("Execution failed", zap.String("action", string(sig.Action)), zap.Error(err))
	e.deps.Notifier.NotifyTrade(ctx, sig, &notify.Execution{Error: err.Error()})
	return nil
}

func (e *Engine) handleHold(ctx context.Context, sig *models.Signal, current *exchange.Position, l *zap.Logger) error {
	l.Info("HOLD", zap.String("reasoning", sig.Reasoning))
	if sig.AdjustStopLoss == nil || current == nil {
		return nil
	}

	stop := *sig.AdjustStopLoss
	if e.dryRun() {
		l.Info("DRY RUN: would adjust stop-loss", zap.Float64("stop_loss", stop))
		return nil
	}
	if err := e.deps.Gateway.AdjustStopLoss(ctx, sig.Symbol, *current, stop); err != nil {
		return fmt.Errorf("failed to adjust stop-loss for %s: %w", sig.Symbol, err)
	}
	l.Info("Stop-loss adjusted", zap.Float64("stop_loss", stop))
	return nil
}

// Monitor reconciles every OPEN trade with the venue, re-evaluates the
// emergency stop and records a portfolio snapshot.
func (e *Engine) Monitor(ctx context.Context) error {
	e.logger.Info("Running position monitor")
	defer func() {
		e.mu.Lock()
		e.lastMonitor = e.now()
		e.mu.Unlock()
	}()

	if err := e.monitor(ctx); err != nil {
		e.reportError(ctx, "monitor", "Position monitor error", err)
		return err
	}
	return nil
}

func (e *Engine) monitor(ctx context.Context) error {
	open, err := e.deps.Repo.GetOpenTrades(ctx, "")
	if err != nil {
		return persistErr("load open trades", err)
	}

	bySymbol := make(map[string][]int)
	var symbols []string
	for i := range open {
		s := open[i].Symbol
		if _, ok := bySymbol[s]; !ok {
			symbols = append(symbols, s)
		}
		bySymbol[s] = append(bySymbol[s], i)
	}

	for _, symbol := range symbols {
		positions, err := e.deps.Market.FetchOpenPositions(ctx, symbol)
		if err != nil {
			// Without a position list there is no way to tell a closed position from a failed call.
			e.reportError(ctx, "monitor", fmt.Sprintf("Could not fetch positions for %s", symbol), err)
			continue
		}
		for _, i := range bySymbol[symbol] {
			if _, err := e.lifecycle.Reconcile(ctx, &open[i], positions); err != nil {
				var pe *PersistenceError
				if errors.As(err, &pe) {
					return err
				}
				e.reportError(ctx, "monitor", fmt.Sprintf("Could not reconcile trade %d", open[i].ID), err)
			}
		}
	}

	bal, err := e.deps.Market.FetchBalance(ctx)
	if err != nil {
		return err
	}
	e.checkEmergencyStop(ctx, bal.Total)

	return e.snapshot(ctx, bal)
}

func (e *Engine) snapshot(ctx context.Context, bal *exchange.Balance) error {
	positions, err := e.deps.Market.FetchOpenPositions(ctx, "")
	if err != nil {
		return err
	}
	open, err := e.deps.Repo.GetOpenTrades(ctx, "")
	if err != nil {
		return persistErr("load open trades", err)
	}
	today, err := e.deps.Repo.GetTradesToday(ctx)
	if err != nil {
		return persistErr("load trades today", err)
	}

	var unrealized float64
	for _, p := range positions {
		unrealized += p.UnrealizedPnL
	}
	daily := e.pnl.DailyPnL(today, open)

	snap := &models.PortfolioSnapshot{
		TotalBalance:     bal.Total,
		AvailableBalance: bal.Available,
		UnrealizedPnL:    unrealized,
		OpenPositions:    len(positions),
		DailyPnL:         daily,
		RecordedAt:       e.now(),
	}
	if err := e.deps.Repo.SavePortfolioSnapshot(ctx, snap); err != nil {
		return persistErr("save portfolio snapshot", err)
	}

	metrics.SetDailyPnL(daily)
	metrics.SetOpenPositions(len(open))
	e.logger.Info("Position monitor complete",
		zap.Int("open_trades", len(open)),
		zap.Float64("balance", bal.Total),
		zap.Float64("daily_pnl", daily),
	)
	return nil
}

// checkEmergencyStop updates the halt state and notifies on transitions only.
func (e *Engine) checkEmergencyStop(ctx context.Context, balance float64) {
	e.mu.Lock()
	stop, reason := e.guard.ShouldStop(balance, e.initialBalance)
	changed := stop != e.halted
	e.halted, e.haltReason = stop, reason
	e.mu.Unlock()

	metrics.SetEmergencyStop(stop)
	if !changed {
		return
	}
	if stop {
		e.logger.Error("Emergency stop tripped, new entries halted", zap.String("reason", reason))
		e.deps.Notifier.NotifyError(ctx, "EMERGENCY STOP", reason)
		return
	}
	e.logger.Info("Emergency stop cleared, entries resumed", zap.Float64("balance", balance))
	e.deps.Notifier.NotifyError(ctx, "Emergency stop cleared", fmt.Sprintf("balance recovered to %.2f", balance))
}

func (e *Engine) emergencyState() (bool, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.halted, e.haltReason
}

// DailyReport sends today's rollup.
func (e *Engine) DailyReport(ctx context.Context) error {
	today, err := e.deps.Repo.GetTradesToday(ctx)
	if err != nil {
		err = persistErr("load trades today", err)
		e.reportError(ctx, "daily_report", "Daily report error", err)
		return err
	}
	open, err := e.deps.Repo.GetOpenTrades(ctx, "")
	if err != nil {
		err = persistErr("load open trades", err)
		e.reportError(ctx, "daily_report", "Daily report error", err)
		return err
	}
	bal, err := e.deps.Market.FetchBalance(ctx)
	if err != nil {
		e.reportError(ctx, "daily_report", "Daily report error", err)
		return err
	}

	stats := BuildDailyStats(today, len(open), bal.Total, e.cfg.Exchange.QuoteCurrency)
	e.deps.Notifier.NotifyDailyReport(ctx, stats)
	e.logger.Info("Daily report sent", zap.Int("trades", stats.TotalTrades), zap.Float64("total_pnl", stats.TotalPnL))
	return nil
}

func (e *Engine) archiveCandles(ctx context.Context, symbol, timeframe string, candles []exchange.Candle) {
	rows := make([]models.Candle, len(candles))
	for i, c := range candles {
		rows[i] = models.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: c.OpenTime.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	if err := e.deps.Repo.SaveCandles(ctx, rows); err != nil {
		e.logger.Warn("Failed to archive candles", zap.String("symbol", symbol), zap.String("timeframe", timeframe), zap.Error(err))
	}
}

func (e *Engine) reportError(ctx context.Context, task, message string, err error) {
	kind := "exchange"
	var pe *PersistenceError
	switch {
	case errors.As(err, &pe):
		kind = "persistence"
	case exchange.IsRetryable(err):
		kind = "network"
	}
	metrics.RecordError(kind)
	e.logger.Error(message, zap.String("task", task), zap.String("kind", kind), zap.Error(err))
	e.deps.Notifier.NotifyError(ctx, message, err.Error())
}

func findPosition(positions []exchange.Position, symbol string) *exchange.Position {
	for i := range positions {
		if positions[i].Symbol == symbol && math.Abs(positions[i].Size) > 0 {
			return &positions[i]
		}
	}
	return nil
}
