package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatQuantity floors qty to a multiple of the venue step size, e.g. 1.23456 with
// step "0.001" gives 1.234. An empty or invalid step returns qty unchanged.
func FormatQuantity(qty float64, step string) float64 {
	s, err := decimal.NewFromString(step)
	if err != nil || !s.IsPositive() {
		return qty
	}
	q := decimal.NewFromFloat(qty).Div(s).Floor().Mul(s)
	f, _ := q.Float64()
	return f
}

// FormatDecimal renders v truncated to the precision of step ("0.10" -> 1 place).
func FormatDecimal(v float64, step string) string {
	s, err := decimal.NewFromString(step)
	if err != nil || !s.IsPositive() {
		return decimal.NewFromFloat(v).String()
	}
	places := stepPlaces(s)
	return decimal.NewFromFloat(v).Truncate(places).StringFixed(places)
}

// stepPlaces counts significant decimal places, ignoring trailing zeros.
func stepPlaces(s decimal.Decimal) int32 {
	str := s.String()
	if i := strings.IndexByte(str, '.'); i >= 0 {
		return int32(len(str) - i - 1)
	}
	return 0
}
