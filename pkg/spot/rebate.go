package spot

import (
	"context"
	"net/http"

	"mexc/pkg/core"
)

// RebateRecord is the commission earned from one invitee.
type RebateRecord struct {
	Spot    core.Number `json:"spot"`
	Futures core.Number `json:"futures"`
	Total   core.Number `json:"total"`
	UID     string      `json:"uid"`
	Account string      `json:"account"`
	Time    int64       `json:"time"`
}

type RebateDetail struct {
	Asset      string      `json:"asset"`
	Type       string      `json:"type"`
	Rate       core.Number `json:"rate"`
	Amount     core.Number `json:"amount"`
	UID        string      `json:"uid"`
	Account    string      `json:"account"`
	TradeTime  int64       `json:"tradeTime"`
	UpdateTime int64       `json:"updateTime"`
}

// RebatePage is one page of rebate records or details.
type RebatePage[T any] struct {
	Page         int `json:"page"`
	TotalRecords int `json:"totalRecords"`
	TotalPages   int `json:"totalPage"`
	Data         []T `json:"data"`
}

// RebateRecords returns the rebate history, paged with WithTimeRange, WithPage and WithLimit.
func (c *Client) RebateRecords(ctx context.Context, opts ...Option) (*RebatePage[RebateRecord], error) {
	return rebatePage[RebateRecord](ctx, c, "/api/v3/rebate/taxQuery", "limit", opts)
}

// RebateDetails returns the rebate history per trade.
func (c *Client) RebateDetails(ctx context.Context, opts ...Option) (*RebatePage[RebateDetail], error) {
	return rebatePage[RebateDetail](ctx, c, "/api/v3/rebate/detail", "", opts)
}

// SelfRebateDetails returns the rebates paid back on the account's own trades.
func (c *Client) SelfRebateDetails(ctx context.Context, opts ...Option) (*RebatePage[RebateDetail], error) {
	return rebatePage[RebateDetail](ctx, c, "/api/v3/rebate/detail/kickback", "", opts)
}

func rebatePage[T any](ctx context.Context, c *Client, path, limitKey string, opts []Option) (*RebatePage[T], error) {
	req := core.NewRequest(http.MethodGet, path).
		SetSigned(true).
		SetParams(ApplyOptions(opts...).paged(core.NewParams(), limitKey))

	var page RebatePage[T]
	if err := c.call(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ReferCode returns the account's referral code.
func (c *Client) ReferCode(ctx context.Context) (string, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/rebate/referCode").SetSigned(true)

	var resp struct {
		ReferCode string `json:"referCode"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.ReferCode, nil
}
