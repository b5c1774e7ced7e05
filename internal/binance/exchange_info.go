package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ExchangeInfoResponse represents the response from the /fapi/v1/exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol  string   `json:"symbol"`
	Status  string   `json:"status"`
	Filters []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol.
// LOT_SIZE carries stepSize, PRICE_FILTER carries tickSize.
type Filter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty,omitempty"`
	MaxQty     string `json:"maxQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
	TickSize   string `json:"tickSize,omitempty"`
}

// StepSize returns the LOT_SIZE step, or "" when absent.
func (s SymbolInfo) StepSize() string {
	return s.filter("LOT_SIZE").StepSize
}

// TickSize returns the PRICE_FILTER tick, or "" when absent.
func (s SymbolInfo) TickSize() string {
	return s.filter("PRICE_FILTER").TickSize
}

func (s SymbolInfo) filter(kind string) Filter {
	for _, f := range s.Filters {
		if f.FilterType == kind {
			return f
		}
	}
	return Filter{}
}

// GetExchangeInfo fetches exchange trading rules and symbol information.
func (c *RestClient) GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error) {
	var info ExchangeInfoResponse
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", url.Values{}, false, &info); err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}
	return &info, nil
}

// symbolRules returns cached trading rules for symbol, loading exchange info on first use.
func (c *RestClient) symbolRules(ctx context.Context, symbol string) (SymbolInfo, bool) {
	c.rulesMu.RLock()
	info, ok := c.rules[symbol]
	loaded := c.rules != nil
	c.rulesMu.RUnlock()
	if ok || loaded {
		return info, ok
	}

	resp, err := c.GetExchangeInfo(ctx)
	if err != nil {
		c.logger.Warn("Could not load exchange info, using unformatted quantities")
		return SymbolInfo{}, false
	}

	c.rulesMu.Lock()
	c.rules = make(map[string]SymbolInfo, len(resp.Symbols))
	for _, s := range resp.Symbols {
		c.rules[s.Symbol] = s
	}
	info, ok = c.rules[symbol]
	c.rulesMu.Unlock()
	return info, ok
}
