package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"signal-trade-bot-go/internal/exchange"

	"go.uber.org/zap"
)

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	UpdateTime    int64  `json:"updateTime"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	StopPrice     string `json:"stopPrice"`
	OrigQuantity  string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	CumQuote      string `json:"cumQuote"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	ReduceOnly    bool   `json:"reduceOnly"`
}

// fillPrice prefers avgPrice and falls back to cumQuote/executedQty.
func (o *CreateOrderResponse) fillPrice() float64 {
	if p := parseFloat(o.AvgPrice); p > 0 {
		return p
	}
	if qty := parseFloat(o.ExecutedQty); qty > 0 {
		return parseFloat(o.CumQuote) / qty
	}
	return 0
}

// createOrder places an order on Binance Futures. It is sent once: a retry after
// a timeout could open the position twice.
func (c *RestClient) createOrder(ctx context.Context, params url.Values) (*CreateOrderResponse, error) {
	params.Set("newOrderRespType", "RESULT")

	var result CreateOrderResponse
	if err := c.send(ctx, http.MethodPost, "/fapi/v1/order", params, true, 1, &result); err != nil {
		c.logger.Error("Failed to create order",
			zap.Error(err),
			zap.String("symbol", params.Get("symbol")),
			zap.String("type", params.Get("type")),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	c.logger.Info("Successfully created order",
		zap.String("symbol", result.Symbol),
		zap.Int64("order_id", result.OrderID),
		zap.String("type", result.Type),
		zap.String("status", result.Status),
	)
	return &result, nil
}

func (c *RestClient) formatQty(ctx context.Context, symbol string, qty float64) string {
	info, _ := c.symbolRules(ctx, symbol)
	return exchange.FormatDecimal(exchange.FormatQuantity(qty, info.StepSize()), info.StepSize())
}

func (c *RestClient) formatPrice(ctx context.Context, symbol string, price float64) string {
	info, _ := c.symbolRules(ctx, symbol)
	return exchange.FormatDecimal(price, info.TickSize())
}

// PlaceMarketOrder opens a position with a market order, then attaches reduce-only
// stop-loss and take-profit orders. Protective order failures are logged only.
func (c *RestClient) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	qty := c.formatQty(ctx, req.Symbol, req.Quantity)
	if parseFloat(qty) <= 0 {
		return nil, &exchange.ExchangeError{Op: "place order", Kind: exchange.KindInvalidOrder,
			Message: fmt.Sprintf("quantity %f rounds to zero", req.Quantity)}
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", OrderTypeMarket)
	params.Set("quantity", qty)

	order, err := c.createOrder(ctx, params)
	if err != nil {
		return nil, err
	}

	closeSide := exchange.OppositeSide(req.Side)
	if req.StopLoss != nil {
		if _, err := c.placeProtective(ctx, req.Symbol, closeSide, OrderTypeStopMarket, qty, *req.StopLoss); err != nil {
			c.logger.Warn("Failed to place stop-loss order", zap.String("symbol", req.Symbol), zap.Error(err))
		}
	}
	if req.TakeProfit != nil {
		if _, err := c.placeProtective(ctx, req.Symbol, closeSide, OrderTypeTakeProfitMarket, qty, *req.TakeProfit); err != nil {
			c.logger.Warn("Failed to place take-profit order", zap.String("symbol", req.Symbol), zap.Error(err))
		}
	}

	filled := parseFloat(order.ExecutedQty)
	if filled == 0 {
		filled = parseFloat(qty)
	}
	return &exchange.OrderResult{
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  filled,
		FillPrice: order.fillPrice(),
		Status:    order.Status,
	}, nil
}

func (c *RestClient) placeProtective(ctx context.Context, symbol, side, orderType, qty string, stopPrice float64) (*CreateOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", orderType)
	params.Set("quantity", qty)
	params.Set("stopPrice", c.formatPrice(ctx, symbol, stopPrice))
	params.Set("reduceOnly", "true")
	params.Set("workingType", "MARK_PRICE")
	return c.createOrder(ctx, params)
}

// ClosePosition flattens pos with a reduce-only market order on the opposite side.
func (c *RestClient) ClosePosition(ctx context.Context, symbol string, pos exchange.Position) (*exchange.CloseResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", exchange.OppositeSide(pos.Side))
	params.Set("type", OrderTypeMarket)
	params.Set("quantity", c.formatQty(ctx, symbol, pos.Size))
	params.Set("reduceOnly", "true")

	order, err := c.createOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to close position %s: %w", symbol, err)
	}
	return &exchange.CloseResult{
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Quantity:  parseFloat(order.ExecutedQty),
		ExitPrice: order.fillPrice(),
	}, nil
}

type openOrder struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Type    string `json:"type"`
	Side    string `json:"side"`
}

// AdjustStopLoss replaces any resting stop-market orders on symbol with one at stopPrice.
func (c *RestClient) AdjustStopLoss(ctx context.Context, symbol string, pos exchange.Position, stopPrice float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	var orders []openOrder
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/openOrders", params, true, &orders); err != nil {
		return fmt.Errorf("failed to list open orders for %s: %w", symbol, err)
	}
	for _, o := range orders {
		if o.Type != OrderTypeStopMarket {
			continue
		}
		if err := c.CancelOrder(ctx, strconv.FormatInt(o.OrderID, 10), symbol); err != nil {
			return err
		}
	}

	qty := c.formatQty(ctx, symbol, pos.Size)
	if _, err := c.placeProtective(ctx, symbol, exchange.OppositeSide(pos.Side), OrderTypeStopMarket, qty, stopPrice); err != nil {
		return fmt.Errorf("failed to place new stop-loss for %s: %w", symbol, err)
	}
	c.logger.Info("Stop-loss adjusted", zap.String("symbol", symbol), zap.Float64("stop_price", stopPrice))
	return nil
}

// CancelOrder cancels a resting order.
func (c *RestClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	if err := c.call(ctx, http.MethodDelete, "/fapi/v1/order", params, true, nil); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	return nil
}
