package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"signal-trade-bot-go/internal/models"
)

func actionEmoji(a models.Action) string {
	switch a {
	case models.ActionBuy:
		return "🟢"
	case models.ActionSell:
		return "🔴"
	case models.ActionClose:
		return "⚪"
	default:
		return "🟡"
	}
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTrade renders a trade alert as Telegram HTML.
func FormatTrade(sig *models.Signal, exec *Execution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s SIGNAL</b>\n\n", actionEmoji(sig.Action), sig.Action)
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", sig.Symbol)
	fmt.Fprintf(&b, "<b>Confidence:</b> %d%%\n", sig.Confidence)
	if sig.EntryPrice != nil {
		fmt.Fprintf(&b, "<b>Entry:</b> %s\n", price(*sig.EntryPrice))
	}
	if sig.StopLoss != nil {
		fmt.Fprintf(&b, "<b>Stop Loss:</b> %s\n", price(*sig.StopLoss))
	}
	if sig.TakeProfit != nil {
		fmt.Fprintf(&b, "<b>Take Profit:</b> %s\n", price(*sig.TakeProfit))
	}
	if sig.PositionSizePct != nil {
		fmt.Fprintf(&b, "<b>Position Size:</b> %s%%\n", price(*sig.PositionSizePct))
	}
	fmt.Fprintf(&b, "\n<b>Reasoning:</b>\n%s\n", html.EscapeString(sig.Reasoning))

	if exec != nil {
		b.WriteString("\n<b>--- Execution ---</b>\n")
		switch {
		case exec.DryRun:
			fmt.Fprintf(&b, "🧪 Dry run, would execute %.6f\n", exec.Quantity)
		case exec.Success:
			b.WriteString("✅ Order executed successfully\n")
			fmt.Fprintf(&b, "<b>Order ID:</b> %s\n", exec.OrderID)
			fmt.Fprintf(&b, "<b>Quantity:</b> %.6f\n", exec.Quantity)
			if exec.FillPrice > 0 {
				fmt.Fprintf(&b, "<b>Fill Price:</b> %s\n", price(exec.FillPrice))
			}
		default:
			b.WriteString("❌ Execution failed\n")
			fmt.Fprintf(&b, "<b>Error:</b> %s\n", html.EscapeString(exec.Error))
		}
	}
	return b.String()
}

// FormatDailyReport renders the daily rollup as Telegram HTML.
func FormatDailyReport(s DailyStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>DAILY TRADING REPORT</b>\n\n")
	fmt.Fprintf(&b, "<b>Total Trades:</b> %d\n", s.TotalTrades)
	if s.TotalTrades > 0 {
		fmt.Fprintf(&b, "<b>Wins:</b> %d | <b>Losses:</b> %d\n", s.Wins, s.Losses)
		fmt.Fprintf(&b, "<b>Win Rate:</b> %.1f%%\n", s.WinRate)
	}

	emoji := "📈"
	if s.TotalPnL < 0 {
		emoji = "📉"
	}
	fmt.Fprintf(&b, "\n%s <b>Total PnL:</b> %+.2f %s\n", emoji, s.TotalPnL, s.Currency)
	if s.BestTrade != 0 {
		fmt.Fprintf(&b, "<b>Best Trade:</b> %+.2f %s\n", s.BestTrade, s.Currency)
	}
	if s.WorstTrade != 0 {
		fmt.Fprintf(&b, "<b>Worst Trade:</b> %+.2f %s\n", s.WorstTrade, s.Currency)
	}
	fmt.Fprintf(&b, "\n<b>Open Positions:</b> %d\n", s.OpenPositions)
	fmt.Fprintf(&b, "<b>Balance:</b> %.2f %s\n", s.Balance, s.Currency)

	switch {
	case s.TotalPnL > 0:
		b.WriteString("\n✨ Profitable day!")
	case s.TotalPnL < 0:
		b.WriteString("\n⚠️ Negative day, review strategy")
	default:
		b.WriteString("\n➖ Break-even day")
	}
	return b.String()
}

// FormatError renders an error alert as Telegram HTML.
func FormatError(message, details string) string {
	var b strings.Builder
	b.WriteString("🚨 <b>ERROR ALERT</b>\n\n")
	fmt.Fprintf(&b, "<b>Error:</b> %s\n", html.EscapeString(message))
	if details != "" {
		fmt.Fprintf(&b, "\n<b>Details:</b>\n%s\n", html.EscapeString(details))
	}
	return b.String()
}

// FormatStartup renders the startup summary as Telegram HTML.
func FormatStartup(s Summary) string {
	var b strings.Builder
	b.WriteString("🤖 <b>BOT STARTED</b>\n\n")
	for _, row := range s.Rows() {
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", row[0], html.EscapeString(row[1]))
	}
	return b.String()
}

const shutdownMessage = "🛑 <b>BOT STOPPED</b>\n\nTrading bot has been shut down."
