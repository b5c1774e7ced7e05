package bybit

import (
	"context"
	"fmt"

	"signal-trade-bot-go/internal/exchange"

	"go.uber.org/zap"
)

type instrument struct {
	QtyStep  string
	TickSize string
}

type instrumentResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
		LotSizeFilter struct {
			QtyStep string `json:"qtyStep"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

// instrumentInfo returns cached lot and tick sizes for symbol.
func (c *Client) instrumentInfo(ctx context.Context, symbol string) instrument {
	c.instrumentsMu.RLock()
	inst, ok := c.instruments[symbol]
	c.instrumentsMu.RUnlock()
	if ok {
		return inst
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}
	var result instrumentResult
	err := c.call(ctx, "get instrument", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	}, &result)
	if err != nil || len(result.List) == 0 {
		c.logger.Warn("Could not load instrument info, using unformatted values", zap.String("symbol", symbol), zap.Error(err))
		return instrument{}
	}

	inst = instrument{QtyStep: result.List[0].LotSizeFilter.QtyStep, TickSize: result.List[0].PriceFilter.TickSize}
	c.instrumentsMu.Lock()
	c.instruments[symbol] = inst
	c.instrumentsMu.Unlock()
	return inst
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderHistoryResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
	} `json:"list"`
}

// PlaceMarketOrder opens a position with stop-loss and take-profit attached to the order.
func (c *Client) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	inst := c.instrumentInfo(ctx, req.Symbol)
	qty := exchange.FormatDecimal(exchange.FormatQuantity(req.Quantity, inst.QtyStep), inst.QtyStep)
	if parseFloat64(qty) <= 0 {
		return nil, &exchange.ExchangeError{Op: "place order", Kind: exchange.KindInvalidOrder,
			Message: fmt.Sprintf("quantity %f rounds to zero", req.Quantity)}
	}

	params := map[string]interface{}{
		"category":  c.category,
		"symbol":    req.Symbol,
		"side":      toBybitSide(req.Side),
		"orderType": "Market",
		"qty":       qty,
	}
	if req.StopLoss != nil {
		params["stopLoss"] = exchange.FormatDecimal(*req.StopLoss, inst.TickSize)
	}
	if req.TakeProfit != nil {
		params["takeProfit"] = exchange.FormatDecimal(*req.TakeProfit, inst.TickSize)
	}

	order, err := c.placeOrder(ctx, params)
	if err != nil {
		return nil, err
	}

	res := &exchange.OrderResult{
		OrderID:  order.OrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: parseFloat64(qty),
		Status:   "New",
	}
	if price, filled, status, ok := c.orderFill(ctx, req.Symbol, order.OrderID); ok {
		res.FillPrice = price
		res.Status = status
		if filled > 0 {
			res.Quantity = filled
		}
	}
	return res, nil
}

// placeOrder submits an order once. Orders are not retried, so a lost response cannot double a position.
func (c *Client) placeOrder(ctx context.Context, params map[string]interface{}) (*orderResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
	defer cancel()

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(callCtx)
	if err != nil {
		return nil, &exchange.NetworkError{Op: "place order", Err: err}
	}
	var order orderResult
	if err := decodeResult("place order", resp, &order); err != nil {
		c.logger.Error("Failed to place order", zap.Any("params", params), zap.Error(err))
		return nil, err
	}
	c.logger.Info("Successfully placed order",
		zap.String("symbol", fmt.Sprint(params["symbol"])),
		zap.String("order_id", order.OrderID),
	)
	return &order, nil
}

// orderFill looks up the average fill price of an order. ok is false when it cannot be determined.
func (c *Client) orderFill(ctx context.Context, symbol, orderID string) (price, qty float64, status string, ok bool) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	var result orderHistoryResult
	err := c.call(ctx, "get order history", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	}, &result)
	if err != nil {
		c.logger.Warn("Could not read fill price", zap.String("order_id", orderID), zap.Error(err))
		return 0, 0, "", false
	}
	return parseFill(result, orderID)
}

func parseFill(result orderHistoryResult, orderID string) (price, qty float64, status string, ok bool) {
	for _, o := range result.List {
		if o.OrderID == orderID {
			return parseFloat64(o.AvgPrice), parseFloat64(o.CumExecQty), o.OrderStatus, true
		}
	}
	return 0, 0, "", false
}

// ClosePosition flattens pos with a reduce-only market order.
func (c *Client) ClosePosition(ctx context.Context, symbol string, pos exchange.Position) (*exchange.CloseResult, error) {
	inst := c.instrumentInfo(ctx, symbol)
	params := map[string]interface{}{
		"category":   c.category,
		"symbol":     symbol,
		"side":       toBybitSide(exchange.OppositeSide(pos.Side)),
		"orderType":  "Market",
		"qty":        exchange.FormatDecimal(pos.Size, inst.QtyStep),
		"reduceOnly": true,
	}

	order, err := c.placeOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to close position %s: %w", symbol, err)
	}

	res := &exchange.CloseResult{OrderID: order.OrderID, Quantity: pos.Size}
	if price, filled, _, ok := c.orderFill(ctx, symbol, order.OrderID); ok {
		res.ExitPrice = price
		if filled > 0 {
			res.Quantity = filled
		}
	}
	return res, nil
}

// AdjustStopLoss moves the position-level stop-loss.
func (c *Client) AdjustStopLoss(ctx context.Context, symbol string, pos exchange.Position, stopPrice float64) error {
	inst := c.instrumentInfo(ctx, symbol)
	params := map[string]interface{}{
		"category":    c.category,
		"symbol":      symbol,
		"positionIdx": 0,
		"tpslMode":    "Full",
		"stopLoss":    exchange.FormatDecimal(stopPrice, inst.TickSize),
	}
	err := c.call(ctx, "set trading stop", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to adjust stop-loss for %s: %w", symbol, err)
	}
	c.logger.Info("Stop-loss adjusted", zap.String("symbol", symbol), zap.Float64("stop_price", stopPrice))
	return nil
}

// CancelOrder cancels an existing order.
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	err := c.call(ctx, "cancel order", func(ctx context.Context) (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	return nil
}
