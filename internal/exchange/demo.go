package exchange

import "context"

// DemoBalance is the fixed paper balance reported in demo mode.
const DemoBalance = 10000.0

// Demo serves public market data from a real venue but reports a fixed paper
// balance and no open positions, so no credentials are needed.
type Demo struct {
	MarketData
	currency string
}

var _ MarketData = (*Demo)(nil)

// NewDemo wraps md for demo mode.
func NewDemo(md MarketData, currency string) *Demo {
	return &Demo{MarketData: md, currency: currency}
}

func (d *Demo) FetchBalance(ctx context.Context) (*Balance, error) {
	return &Balance{Currency: d.currency, Total: DemoBalance, Available: DemoBalance}, nil
}

func (d *Demo) FetchOpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	return nil, nil
}
