package analyst

import (
	"errors"
	"math"

	"signal-trade-bot-go/internal/exchange"
)

// Indicators is the market summary handed to the signal source.
type Indicators struct {
	Price        float64 `json:"price"`
	Change24hPct float64 `json:"change_24h_pct"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Volume24h    float64 `json:"volume_24h"`
	EMA20        float64 `json:"ema_20"`
	EMA50        float64 `json:"ema_50"`
	RSI14        float64 `json:"rsi_14"`
	ATR14        float64 `json:"atr_14"`
	Trend4h      string  `json:"trend_4h"` // "up", "down" or "flat"
	RSI14On4h    float64 `json:"rsi_14_4h"`
}

var errInsufficientData = errors.New("insufficient candle data")

// ComputeIndicators summarizes hourly and four-hour candles, both oldest first.
func ComputeIndicators(hourly, fourHour []exchange.Candle) (Indicators, error) {
	if len(hourly) < 51 {
		return Indicators{}, errInsufficientData
	}

	closes := closesOf(hourly)
	last := hourly[len(hourly)-1]
	ind := Indicators{
		Price: last.Close,
		EMA20: ema(closes, 20),
		EMA50: ema(closes, 50),
		RSI14: rsi(closes, 14),
		ATR14: atr(hourly, 14),
	}

	day := hourly[max(0, len(hourly)-24):]
	ind.High24h, ind.Low24h = day[0].High, day[0].Low
	for _, c := range day {
		ind.High24h = math.Max(ind.High24h, c.High)
		ind.Low24h = math.Min(ind.Low24h, c.Low)
		ind.Volume24h += c.Volume
	}
	if open := day[0].Open; open != 0 {
		ind.Change24hPct = (last.Close - open) / open * 100
	}

	ind.Trend4h = "flat"
	if len(fourHour) >= 21 {
		fc := closesOf(fourHour)
		e := ema(fc, 20)
		price := fc[len(fc)-1]
		switch {
		case price > e*1.005:
			ind.Trend4h = "up"
		case price < e*0.995:
			ind.Trend4h = "down"
		}
		ind.RSI14On4h = rsi(fc, 14)
	}
	return ind, nil
}

func closesOf(candles []exchange.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// ema seeds with the SMA of the first period values.
func ema(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	e := sum / float64(period)
	k := 2 / float64(period+1)
	for _, v := range values[period:] {
		e = v*k + e*(1-k)
	}
	return e
}

// rsi uses simple averages of gains and losses over the last period changes.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 0
	}
	var gain, loss float64
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// atr is the mean true range over the last period candles.
func atr(candles []exchange.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		c, prev := candles[i], candles[i-1].Close
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
		sum += tr
	}
	return sum / float64(period)
}
