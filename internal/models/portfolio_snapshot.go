package models

import (
	"time"

	"gorm.io/gorm"
)

// PortfolioSnapshot is an append-only record of account state, written once per monitoring cycle.
type PortfolioSnapshot struct {
	gorm.Model
	TotalBalance     float64   `json:"total_balance"`
	AvailableBalance float64   `json:"available_balance"`
	UnrealizedPnL    float64   `gorm:"column:unrealized_pnl" json:"unrealized_pnl"`
	OpenPositions    int       `json:"open_positions"`
	DailyPnL         float64   `gorm:"column:daily_pnl" json:"daily_pnl"`
	RecordedAt       time.Time `gorm:"index" json:"recorded_at"`
}
