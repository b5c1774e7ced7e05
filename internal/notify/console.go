package notify

import (
	"context"
	"fmt"
	"io"

	"signal-trade-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"
)

// Console logs every event and renders the startup summary and daily
// report as tables on out.
type Console struct {
	out    io.Writer
	logger *zap.Logger
}

var _ Notifier = (*Console)(nil)

func NewConsole(out io.Writer, logger *zap.Logger) *Console {
	return &Console{out: out, logger: logger.Named("notify")}
}

func (c *Console) NotifyTrade(_ context.Context, sig *models.Signal, exec *Execution) {
	fields := []zap.Field{
		zap.String("symbol", sig.Symbol),
		zap.String("action", string(sig.Action)),
		zap.Int("confidence", sig.Confidence),
	}
	if exec != nil {
		fields = append(fields,
			zap.Bool("success", exec.Success),
			zap.Bool("dry_run", exec.DryRun),
			zap.String("order_id", exec.OrderID),
			zap.Float64("quantity", exec.Quantity),
			zap.Float64("fill_price", exec.FillPrice),
		)
		if exec.Error != "" {
			fields = append(fields, zap.String("error", exec.Error))
		}
	}
	c.logger.Info("Trade alert", fields...)
}

func (c *Console) NotifyDailyReport(_ context.Context, s DailyStats) {
	t := c.table("DAILY TRADING REPORT")
	t.AppendRows([]table.Row{
		{"Total trades", s.TotalTrades},
		{"Wins / losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses)},
		{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total PnL", fmt.Sprintf("%+.2f %s", s.TotalPnL, s.Currency)},
		{"Best trade", fmt.Sprintf("%+.2f", s.BestTrade)},
		{"Worst trade", fmt.Sprintf("%+.2f", s.WorstTrade)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Open positions", s.OpenPositions},
		{"Balance", fmt.Sprintf("%.2f %s", s.Balance, s.Currency)},
	})
	t.Render()
}

func (c *Console) NotifyError(_ context.Context, message, details string) {
	c.logger.Error(message, zap.String("details", details))
}

func (c *Console) NotifyStartup(_ context.Context, summary Summary) {
	t := c.table("BOT CONFIGURATION")
	for _, row := range summary.Rows() {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	t.Render()
}

func (c *Console) NotifyShutdown(context.Context) {
	c.logger.Info("Trading bot has been shut down")
}

func (c *Console) table(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 24, Align: text.AlignLeft},
	})
	return t
}
