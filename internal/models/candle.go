package models

// Candle is an archived OHLCV bar. Rows are unique per symbol, timeframe and open time.
type Candle struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	Symbol    string  `gorm:"uniqueIndex:idx_candle" json:"symbol"`
	Timeframe string  `gorm:"uniqueIndex:idx_candle" json:"timeframe"`
	Timestamp int64   `gorm:"uniqueIndex:idx_candle" json:"timestamp"` // open time, unix ms
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
