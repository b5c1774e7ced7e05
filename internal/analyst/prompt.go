package analyst

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a disciplined crypto futures trader. Given market indicators for one symbol,
decide one action: BUY (open long), SELL (open short), HOLD (do nothing) or CLOSE (exit the current position).

Rules:
- Only propose BUY or SELL with a clear edge; prefer HOLD otherwise.
- Every BUY or SELL must include entry_price, stop_loss and take_profit with a reward:risk of at least 2.
- position_size_pct is the share of balance to commit, between 1 and 5.
- With an open position you may set adjust_stop_loss to trail the stop.

Answer with a single JSON object and nothing else:
{"action": "BUY|SELL|HOLD|CLOSE", "confidence": 0-100, "reasoning": "...",
 "entry_price": number|null, "stop_loss": number|null, "take_profit": number|null,
 "position_size_pct": number|null, "adjust_stop_loss": number|null}`

func buildUserPrompt(req Request) (string, error) {
	indicators, err := json.MarshalIndent(req.Indicators, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode indicators: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "Available balance: %.2f\n", req.Balance)
	if p := req.Position; p != nil {
		fmt.Fprintf(&b, "Open position: %s %.6f @ %.4f, mark %.4f, unrealized PnL %.2f\n",
			p.Side, p.Size, p.EntryPrice, p.MarkPrice, p.UnrealizedPnL)
	} else {
		b.WriteString("Open position: none\n")
	}
	b.WriteString("Indicators:\n")
	b.Write(indicators)
	return b.String(), nil
}
