package spot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"mexc/pkg/core"
)

const userDataStreamPath = "/api/v3/userDataStream"

var validate = validator.New()

// OrderRequest describes a new order. Nil decimals and an empty ClientOrderID are omitted.
type OrderRequest struct {
	Symbol        string         `validate:"required"`
	Side          core.OrderSide `validate:"oneof=0 1"`
	Type          core.OrderType `validate:"oneof=0 1 2 3 4"`
	Quantity      *apd.Decimal
	QuoteOrderQty *apd.Decimal
	Price         *apd.Decimal
	ClientOrderID string `validate:"max=32"`
}

// Validate checks the fields each order type requires: limit orders need a price and a
// quantity, market orders need a quantity or a quote quantity.
func (r *OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	switch r.Type {
	case core.TypeMarket:
		if r.Quantity == nil && r.QuoteOrderQty == nil {
			return errors.New("market order requires Quantity or QuoteOrderQty")
		}
	default:
		if r.Price == nil || r.Quantity == nil {
			return fmt.Errorf("%s order requires Price and Quantity", r.Type)
		}
	}
	return nil
}

func (r *OrderRequest) params() *core.Params {
	return core.NewParams().
		Set("symbol", formatSymbol(r.Symbol)).
		Set("side", r.Side.String()).
		Set("quantity", r.Quantity).
		Set("price", r.Price).
		Set("type", r.Type.String()).
		Set("quoteOrderQty", r.QuoteOrderQty).
		Set("newClientOrderId", optional(r.ClientOrderID))
}

// TestOrder validates an order on the exchange without placing it.
func (c *Client) TestOrder(ctx context.Context, order *OrderRequest) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	req := core.NewRequest(http.MethodPost, "/api/v3/order/test").SetSigned(true).SetParams(order.params())
	return c.call(ctx, req, nil)
}

// NewOrder places an order. The result carries the ids and the request echo; fetch the order
// with GetOrder for fill state.
func (c *Client) NewOrder(ctx context.Context, order *OrderRequest) (*core.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	req := core.NewRequest(http.MethodPost, "/api/v3/order").SetSigned(true).SetParams(order.params())

	var raw mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrder(&raw)
}

// orderRef builds the parameters identifying one order by exchange id or client id.
func orderRef(symbol, orderID, clientOrderID string) (*core.Params, error) {
	if orderID == "" && clientOrderID == "" {
		return nil, errors.New("order id or client order id is required")
	}
	return core.NewParams().
		Set("symbol", formatSymbol(symbol)).
		Set("orderId", optional(orderID)).
		Set("origClientOrderId", optional(clientOrderID)), nil
}

// CancelOrder cancels one order identified by orderID or clientOrderID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*core.Order, error) {
	params, err := orderRef(symbol, orderID, clientOrderID)
	if err != nil {
		return nil, err
	}
	req := core.NewRequest(http.MethodDelete, "/api/v3/order").SetSigned(true).SetParams(params)

	var raw mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrder(&raw)
}

// CancelOpenOrders cancels every open order of symbol.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	req := core.NewRequest(http.MethodDelete, "/api/v3/openOrders").
		SetSigned(true).
		SetParam("symbol", formatSymbol(symbol))

	var raw []mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrders(raw)
}

// GetOrder returns one order identified by orderID or clientOrderID.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*core.Order, error) {
	params, err := orderRef(symbol, orderID, clientOrderID)
	if err != nil {
		return nil, err
	}
	req := core.NewRequest(http.MethodGet, "/api/v3/order").SetSigned(true).SetWeight(2).SetParams(params)

	var raw mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrder(&raw)
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/openOrders").
		SetSigned(true).
		SetWeight(3).
		SetParam("symbol", formatSymbol(symbol))

	var raw []mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrders(raw)
}

// AllOrders returns the order history of symbol, optionally bounded with WithTimeRange and
// WithLimit.
func (c *Client) AllOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error) {
	params := ApplyOptions(opts...).apply(core.NewParams().Set("symbol", formatSymbol(symbol)))
	req := core.NewRequest(http.MethodGet, "/api/v3/allOrders").SetSigned(true).SetWeight(10).SetParams(params)

	var raw []mexcOrder
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrders(raw)
}

func (c *Client) AccountInfo(ctx context.Context) (*core.Account, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/account").SetSigned(true).SetWeight(10)

	var raw mexcAccount
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeAccount(&raw), nil
}

// MyTrades returns the account's trades on symbol.
func (c *Client) MyTrades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error) {
	params := ApplyOptions(opts...).apply(core.NewParams().Set("symbol", formatSymbol(symbol)))
	req := core.NewRequest(http.MethodGet, "/api/v3/myTrades").SetSigned(true).SetWeight(10).SetParams(params)

	var raw []mexcMyTrade
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeMyTrades(raw), nil
}

type mxDeductResponse struct {
	Data struct {
		MXDeductEnable bool `json:"mxDeductEnable"`
	} `json:"data"`
}

// EnableMXDeduct switches paying fees in MX on or off and returns the new setting.
func (c *Client) EnableMXDeduct(ctx context.Context, enabled bool) (bool, error) {
	req := core.NewRequest(http.MethodPost, "/api/v3/mxDeduct/enable").
		SetSigned(true).
		SetParam("mxDeductEnable", enabled)

	var resp mxDeductResponse
	if err := c.call(ctx, req, &resp); err != nil {
		return false, err
	}
	return resp.Data.MXDeductEnable, nil
}

func (c *Client) MXDeduct(ctx context.Context) (bool, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/mxDeduct/enable").SetSigned(true)

	var resp mxDeductResponse
	if err := c.call(ctx, req, &resp); err != nil {
		return false, err
	}
	return resp.Data.MXDeductEnable, nil
}

// CreateListenKey creates a user data stream key valid for 60 minutes.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	req := core.NewRequest(http.MethodPost, userDataStreamPath).SetSigned(true)

	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.ListenKey == "" {
		return "", core.ErrNoListenKey
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the validity of key by 60 minutes.
func (c *Client) KeepAliveListenKey(ctx context.Context, key string) error {
	req := core.NewRequest(http.MethodPut, userDataStreamPath).SetSigned(true).SetParam("listenKey", key)
	return c.call(ctx, req, nil)
}

func (c *Client) DeleteListenKey(ctx context.Context, key string) error {
	req := core.NewRequest(http.MethodDelete, userDataStreamPath).SetSigned(true).SetParam("listenKey", key)
	return c.call(ctx, req, nil)
}

// ListenKeys returns every valid listen key of the account.
func (c *Client) ListenKeys(ctx context.Context) ([]string, error) {
	req := core.NewRequest(http.MethodGet, userDataStreamPath).SetSigned(true)

	var resp struct {
		ListenKey []string `json:"listenKey"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.ListenKey, nil
}
