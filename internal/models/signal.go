package models

import "gorm.io/gorm"

// Action is the recommendation carried by a signal.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionHold  Action = "HOLD"
	ActionClose Action = "CLOSE"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionClose:
		return true
	}
	return false
}

// IsEntry reports whether the action opens a new position.
func (a Action) IsEntry() bool {
	return a == ActionBuy || a == ActionSell
}

// Signal is a single recommendation from the signal source, stored for audit.
type Signal struct {
	gorm.Model
	Symbol          string   `gorm:"index;not null" json:"symbol"`
	Action          Action   `gorm:"not null" json:"action"`
	Confidence      int      `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	EntryPrice      *float64 `json:"entry_price,omitempty"`
	StopLoss        *float64 `json:"stop_loss,omitempty"`
	TakeProfit      *float64 `json:"take_profit,omitempty"`
	PositionSizePct *float64 `json:"position_size_pct,omitempty"`
	AdjustStopLoss  *float64 `json:"adjust_stop_loss,omitempty"`
	IndicatorsJSON  string   `json:"-"`
	RawResponse     string   `json:"-"`
	PromptVersion   string   `json:"prompt_version,omitempty"`
	LatencyMs       int64    `json:"latency_ms"`
	Error           bool     `json:"error"` // set on the HOLD sentinel returned when analysis failed
}

// Float returns a pointer to v, for the optional price fields.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences p, treating nil as zero.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
