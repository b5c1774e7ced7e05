// Package notify delivers trade alerts and reports to the operator.
package notify

import (
	"context"
	"fmt"

	"signal-trade-bot-go/internal/models"
)

// Notifier is a best-effort sink. Delivery failures are logged by the
// implementation and never reach the caller.
type Notifier interface {
	NotifyTrade(ctx context.Context, sig *models.Signal, exec *Execution)
	NotifyDailyReport(ctx context.Context, stats DailyStats)
	NotifyError(ctx context.Context, message, details string)
	NotifyStartup(ctx context.Context, summary Summary)
	NotifyShutdown(ctx context.Context)
}

// Execution describes the outcome of acting on a signal.
type Execution struct {
	Success   bool
	DryRun    bool
	OrderID   string
	Quantity  float64
	FillPrice float64
	Error     string
}

// DailyStats is the daily rollup sent with the report.
type DailyStats struct {
	TotalTrades   int
	Wins          int
	Losses        int
	WinRate       float64 // percent
	TotalPnL      float64
	BestTrade     float64
	WorstTrade    float64
	OpenPositions int
	Balance       float64
	Currency      string
}

// Summary describes the running configuration at startup.
type Summary struct {
	Exchange         string
	Mode             string
	Symbols          []string
	Balance          float64
	Currency         string
	AnalysisInterval int // minutes
	MonitorInterval  int // minutes
	MaxOpenPositions int
	MinConfidence    int
}

// Rows returns the summary as label/value pairs.
func (s Summary) Rows() [][2]string {
	return [][2]string{
		{"Exchange", s.Exchange},
		{"Mode", s.Mode},
		{"Symbols", fmt.Sprint(s.Symbols)},
		{"Balance", fmt.Sprintf("%.2f %s", s.Balance, s.Currency)},
		{"Analysis", fmt.Sprintf("every %d min", s.AnalysisInterval)},
		{"Monitor", fmt.Sprintf("every %d min", s.MonitorInterval)},
		{"Max positions", fmt.Sprint(s.MaxOpenPositions)},
		{"Min confidence", fmt.Sprintf("%d%%", s.MinConfidence)},
	}
}

// Multi fans every call out to all sinks in order.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) NotifyTrade(ctx context.Context, sig *models.Signal, exec *Execution) {
	for _, n := range m {
		n.NotifyTrade(ctx, sig, exec)
	}
}

func (m Multi) NotifyDailyReport(ctx context.Context, stats DailyStats) {
	for _, n := range m {
		n.NotifyDailyReport(ctx, stats)
	}
}

func (m Multi) NotifyError(ctx context.Context, message, details string) {
	for _, n := range m {
		n.NotifyError(ctx, message, details)
	}
}

func (m Multi) NotifyStartup(ctx context.Context, summary Summary) {
	for _, n := range m {
		n.NotifyStartup(ctx, summary)
	}
}

func (m Multi) NotifyShutdown(ctx context.Context) {
	for _, n := range m {
		n.NotifyShutdown(ctx)
	}
}
