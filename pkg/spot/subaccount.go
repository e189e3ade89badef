package spot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cockroachdb/apd/v3"

	"mexc/pkg/core"
)

const subAccountAPIKeyPath = "/api/v3/sub-account/apiKey"

type SubAccount struct {
	Name       string `json:"subAccount"`
	Note       string `json:"note"`
	IsFreeze   bool   `json:"isFreeze"`
	CreateTime int64  `json:"createTime"`
	UID        string `json:"uid"`
}

// SubAccountAPIKey is an API key of a sub-account. SecretKey is only returned on creation.
type SubAccountAPIKey struct {
	SubAccount  string `json:"subAccount"`
	Note        string `json:"note"`
	APIKey      string `json:"apiKey"`
	SecretKey   string `json:"secretKey"`
	Permissions string `json:"permissions"`
	IP          string `json:"ip"`
	CreateTime  int64  `json:"creatTime"`
}

// SubAccountAPIKeyRequest describes a new sub-account API key.
type SubAccountAPIKeyRequest struct {
	SubAccount  string   `validate:"required"`
	Note        string   `validate:"required"`
	Permissions []string `validate:"required,min=1"`
	IPs         []string `validate:"max=20"`
}

// UniversalTransferRequest moves an asset between the master account and its sub-accounts.
// An empty FromAccount or ToAccount is the master account.
type UniversalTransferRequest struct {
	FromAccount     string
	ToAccount       string
	FromAccountType AccountType `validate:"required"`
	ToAccountType   AccountType `validate:"required"`
	Asset           string      `validate:"required"`
	Amount          *apd.Decimal
}

func (r *UniversalTransferRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return errors.New("transfer requires a positive Amount")
	}
	return nil
}

type UniversalTransfer struct {
	TranID          string      `json:"tranId"`
	FromAccount     string      `json:"fromAccount"`
	ToAccount       string      `json:"toAccount"`
	ClientTranID    string      `json:"clientTranId"`
	Asset           string      `json:"asset"`
	Amount          core.Number `json:"amount"`
	FromAccountType AccountType `json:"fromAccountType"`
	ToAccountType   AccountType `json:"toAccountType"`
	FromSymbol      string      `json:"fromSymbol"`
	ToSymbol        string      `json:"toSymbol"`
	Status          string      `json:"status"`
	Timestamp       int64       `json:"timestamp"`
}

// UniversalTransferPage is one page of the universal transfer history.
type UniversalTransferPage struct {
	Transfers  []UniversalTransfer `json:"result"`
	TotalCount int                 `json:"totalCount"`
}

// CreateSubAccount creates a virtual sub-account.
func (c *Client) CreateSubAccount(ctx context.Context, name, note string) (*SubAccount, error) {
	req := core.NewRequest(http.MethodPost, "/api/v3/sub-account/virtualSubAccount").
		SetSigned(true).
		SetParam("subAccount", name).
		SetParam("note", note)

	var sub SubAccount
	if err := c.call(ctx, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubAccounts lists sub-accounts. An empty name lists all of them and a nil frozen does not
// filter by freeze state. WithPage and WithLimit page the result.
func (c *Client) SubAccounts(ctx context.Context, name string, frozen *bool, opts ...Option) ([]SubAccount, error) {
	o := ApplyOptions(opts...)
	req := core.NewRequest(http.MethodGet, "/api/v3/sub-account/list").
		SetSigned(true).
		SetParam("subAccount", optional(name)).
		SetParam("isFreeze", frozen).
		SetParam("page", positive(o.Page)).
		SetParam("limit", positive(o.Limit))

	var resp struct {
		SubAccounts []SubAccount `json:"subAccounts"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.SubAccounts, nil
}

func (c *Client) CreateSubAccountAPIKey(ctx context.Context, key *SubAccountAPIKeyRequest) (*SubAccountAPIKey, error) {
	if err := validate.Struct(key); err != nil {
		return nil, fmt.Errorf("invalid api key request: %w", err)
	}
	params := core.NewParams().
		Set("subAccount", key.SubAccount).
		Set("note", key.Note).
		Set("permissions", key.Permissions).
		Set("ip", key.IPs)
	req := core.NewRequest(http.MethodPost, subAccountAPIKeyPath).SetSigned(true).SetParams(params)

	var created SubAccountAPIKey
	if err := c.call(ctx, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SubAccountAPIKeys returns the API keys of a sub-account.
func (c *Client) SubAccountAPIKeys(ctx context.Context, name string) ([]SubAccountAPIKey, error) {
	req := core.NewRequest(http.MethodGet, subAccountAPIKeyPath).SetSigned(true).SetParam("subAccount", name)

	var resp struct {
		Keys []SubAccountAPIKey `json:"subAccount"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (c *Client) DeleteSubAccountAPIKey(ctx context.Context, name, apiKey string) error {
	req := core.NewRequest(http.MethodDelete, subAccountAPIKeyPath).
		SetSigned(true).
		SetParam("subAccount", name).
		SetParam("apiKey", apiKey)
	return c.call(ctx, req, nil)
}

// UniversalTransferAsset moves an asset between accounts and returns the transfer id.
func (c *Client) UniversalTransferAsset(ctx context.Context, t *UniversalTransferRequest) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid transfer: %w", err)
	}
	params := core.NewParams().
		Set("fromAccount", optional(t.FromAccount)).
		Set("toAccount", optional(t.ToAccount)).
		Set("fromAccountType", string(t.FromAccountType)).
		Set("toAccountType", string(t.ToAccountType)).
		Set("asset", formatSymbol(t.Asset)).
		Set("amount", t.Amount)
	req := core.NewRequest(http.MethodPost, "/api/v3/capital/sub-account/universalTransfer").
		SetSigned(true).
		SetParams(params)

	var resp struct {
		TranID string `json:"tranId"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.TranID, nil
}

// UniversalTransfers returns a page of universal transfers between the given accounts. Empty
// account names are the master account.
func (c *Client) UniversalTransfers(ctx context.Context, fromAccount, toAccount string, from, to AccountType, opts ...Option) (*UniversalTransferPage, error) {
	params := core.NewParams().
		Set("fromAccount", optional(fromAccount)).
		Set("toAccount", optional(toAccount)).
		Set("fromAccountType", string(from)).
		Set("toAccountType", string(to))
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/sub-account/universalTransfer").
		SetSigned(true).
		SetParams(ApplyOptions(opts...).paged(params, "limit"))

	var page UniversalTransferPage
	if err := c.call(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
