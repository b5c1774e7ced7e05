package analyst

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"signal-trade-bot-go/internal/models"
)

// ParseError reports a model response that could not be turned into a signal.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "invalid signal response: " + e.Reason
}

type rawSignal struct {
	Action          *string  `json:"action"`
	Confidence      *float64 `json:"confidence"`
	Reasoning       *string  `json:"reasoning"`
	EntryPrice      *float64 `json:"entry_price"`
	StopLoss        *float64 `json:"stop_loss"`
	TakeProfit      *float64 `json:"take_profit"`
	PositionSizePct *float64 `json:"position_size_pct"`
	AdjustStopLoss  *float64 `json:"adjust_stop_loss"`
}

// ParseResponse extracts a signal from model output. Code fences and text around
// the outermost JSON object are ignored. action, confidence and reasoning are required;
// an unknown action becomes HOLD and confidence is clamped to [0,100].
func ParseResponse(symbol, text string) (*models.Signal, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, &ParseError{Reason: "no JSON object found", Raw: text}
	}

	var raw rawSignal
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed JSON: %v", err), Raw: text}
	}
	switch {
	case raw.Action == nil:
		return nil, &ParseError{Reason: "missing field action", Raw: text}
	case raw.Confidence == nil:
		return nil, &ParseError{Reason: "missing field confidence", Raw: text}
	case raw.Reasoning == nil:
		return nil, &ParseError{Reason: "missing field reasoning", Raw: text}
	}

	action := models.Action(strings.ToUpper(strings.TrimSpace(*raw.Action)))
	if !action.Valid() {
		action = models.ActionHold
	}
	confidence := int(math.Min(math.Max(*raw.Confidence, 0), 100))

	return &models.Signal{
		Symbol:          symbol,
		Action:          action,
		Confidence:      confidence,
		Reasoning:       *raw.Reasoning,
		EntryPrice:      positive(raw.EntryPrice),
		StopLoss:        positive(raw.StopLoss),
		TakeProfit:      positive(raw.TakeProfit),
		PositionSizePct: raw.PositionSizePct,
		AdjustStopLoss:  positive(raw.AdjustStopLoss),
		RawResponse:     text,
	}, nil
}

// positive drops null, zero and negative price levels.
func positive(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}
