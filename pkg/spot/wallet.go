package spot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cockroachdb/apd/v3"

	"mexc/pkg/core"
)

// AccountType names the wallet side of an internal transfer.
type AccountType string

const (
	AccountSpot    AccountType = "SPOT"
	AccountFutures AccountType = "FUTURES"
)

// Coin is the deposit and withdrawal configuration of one asset.
type Coin struct {
	Coin     string    `json:"coin"`
	Name     string    `json:"name"`
	Networks []Network `json:"networkList"`
}

type Network struct {
	Coin                    string      `json:"coin"`
	Name                    string      `json:"name"`
	Network                 string      `json:"network"`
	Contract                string      `json:"contract"`
	DepositEnable           bool        `json:"depositEnable"`
	DepositDesc             string      `json:"depositDesc"`
	MinConfirm              int         `json:"minConfirm"`
	WithdrawEnable          bool        `json:"withdrawEnable"`
	WithdrawFee             core.Number `json:"withdrawFee"`
	WithdrawMin             core.Number `json:"withdrawMin"`
	WithdrawMax             core.Number `json:"withdrawMax"`
	WithdrawIntegerMultiple core.Number `json:"withdrawIntegerMultiple"`
	SameAddress             bool        `json:"sameAddress"`
}

// WithdrawRequest describes a withdrawal. Empty optional strings are omitted.
type WithdrawRequest struct {
	Coin    string `validate:"required"`
	Network string
	Address string `validate:"required"`
	Amount  *apd.Decimal
	// OrderID is the caller's own withdrawal id.
	OrderID string
	Memo    string
	Remark  string
}

func (r *WithdrawRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return errors.New("withdrawal requires a positive Amount")
	}
	return nil
}

// Deposit is one entry of the deposit history.
type Deposit struct {
	Coin          string      `json:"coin"`
	Network       string      `json:"network"`
	Amount        core.Number `json:"amount"`
	Status        int         `json:"status"`
	Address       string      `json:"address"`
	AddressTag    string      `json:"addressTag"`
	TxID          string      `json:"txId"`
	InsertTime    int64       `json:"insertTime"`
	UnlockConfirm string      `json:"unlockConfirm"`
	ConfirmTimes  string      `json:"confirmTimes"`
	Memo          string      `json:"memo"`
}

// Withdrawal is one entry of the withdrawal history.
type Withdrawal struct {
	ID             string      `json:"id"`
	TxID           string      `json:"txId"`
	Coin           string      `json:"coin"`
	Network        string      `json:"network"`
	Address        string      `json:"address"`
	Amount         core.Number `json:"amount"`
	TransferType   int         `json:"transferType"`
	Status         int         `json:"status"`
	TransactionFee core.Number `json:"transactionFee"`
	ConfirmNo      int         `json:"confirmNo"`
	ApplyTime      int64       `json:"applyTime"`
	Remark         string      `json:"remark"`
	Memo           string      `json:"memo"`
}

type DepositAddress struct {
	Coin    string `json:"coin"`
	Network string `json:"network"`
	Address string `json:"address"`
	Memo    string `json:"memo"`
}

// WithdrawAddress is an address of the withdrawal address book.
type WithdrawAddress struct {
	Coin       string `json:"coin"`
	Network    string `json:"network"`
	Address    string `json:"address"`
	AddressTag string `json:"addressTag"`
	Memo       string `json:"memo"`
}

// WithdrawAddressPage is one page of the withdrawal address book.
type WithdrawAddressPage struct {
	Addresses    []WithdrawAddress `json:"data"`
	CurrentPage  int               `json:"currentPage"`
	TotalRecords int               `json:"totalRecords"`
	TotalPages   int               `json:"totalPageNum"`
}

// Transfer is an internal transfer between the spot and futures wallets.
type Transfer struct {
	TranID          string      `json:"tranId"`
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

type TransferPage struct {
	Rows  []Transfer `json:"rows"`
	Total int        `json:"total"`
}

// ConvertibleAsset is a small balance that can be converted into MX.
type ConvertibleAsset struct {
	Asset       string      `json:"asset"`
	Balance     core.Number `json:"balance"`
	ConvertMX   core.Number `json:"convertMx"`
	ConvertUSDT core.Number `json:"convertUsdt"`
	Code        string      `json:"code"`
	Message     string      `json:"message"`
}

// DustResult reports which assets a dust conversion converted.
type DustResult struct {
	Succeeded    []string    `json:"successList"`
	Failed       []string    `json:"failedList"`
	TotalConvert core.Number `json:"totalConvert"`
	ConvertFee   core.Number `json:"convertFee"`
}

type DustConversion struct {
	TotalConvert core.Number  `json:"totalConvert"`
	TotalFee     core.Number  `json:"totalFee"`
	Time         int64        `json:"time"`
	Details      []DustDetail `json:"convertDetails"`
}

type DustDetail struct {
	ID      string      `json:"id"`
	Asset   string      `json:"asset"`
	Amount  core.Number `json:"amount"`
	Convert core.Number `json:"convert"`
	Fee     core.Number `json:"fee"`
	Time    int64       `json:"time"`
}

// DustLog is one page of past dust conversions.
type DustLog struct {
	Conversions  []DustConversion `json:"data"`
	TotalRecords int              `json:"totalRecords"`
	Page         int              `json:"page"`
	TotalPages   int              `json:"totalPageNum"`
}

// Coins returns the deposit and withdrawal configuration of every asset.
func (c *Client) Coins(ctx context.Context) ([]Coin, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/config/getall").SetSigned(true).SetWeight(10)

	var coins []Coin
	if err := c.call(ctx, req, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Withdraw submits a withdrawal and returns its id.
func (c *Client) Withdraw(ctx context.Context, w *WithdrawRequest) (string, error) {
	if err := w.Validate(); err != nil {
		return "", fmt.Errorf("invalid withdrawal: %w", err)
	}
	params := core.NewParams().
		Set("coin", formatSymbol(w.Coin)).
		Set("network", optional(w.Network)).
		Set("address", w.Address).
		Set("amount", w.Amount).
		Set("withdrawOrderId", optional(w.OrderID)).
		Set("memo", optional(w.Memo)).
		Set("remark", optional(w.Remark))
	req := core.NewRequest(http.MethodPost, "/api/v3/capital/withdraw/apply").SetSigned(true).SetParams(params)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CancelWithdraw cancels a pending withdrawal and returns its id.
func (c *Client) CancelWithdraw(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("withdrawal id is required")
	}
	req := core.NewRequest(http.MethodDelete, "/api/v3/capital/withdraw").SetSigned(true).SetParam("id", id)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// historyParams builds the filter of the deposit and withdrawal histories. An empty coin
// returns every asset.
func historyParams(coin string, o *Options) *core.Params {
	return core.NewParams().
		Set("coin", optional(formatSymbol(coin))).
		Set("status", o.Status).
		Set("startTime", millis(o.StartTime)).
		Set("endTime", millis(o.EndTime)).
		Set("limit", positive(o.Limit))
}

// DepositHistory returns deposits, filtered with WithStatus, WithTimeRange and WithLimit.
func (c *Client) DepositHistory(ctx context.Context, coin string, opts ...Option) ([]Deposit, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/deposit/hisrec").
		SetSigned(true).
		SetParams(historyParams(coin, ApplyOptions(opts...)))

	var deposits []Deposit
	if err := c.call(ctx, req, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// WithdrawHistory returns withdrawals, filtered with WithStatus, WithTimeRange and WithLimit.
func (c *Client) WithdrawHistory(ctx context.Context, coin string, opts ...Option) ([]Withdrawal, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/withdraw/history").
		SetSigned(true).
		SetParams(historyParams(coin, ApplyOptions(opts...)))

	var withdrawals []Withdrawal
	if err := c.call(ctx, req, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (c *Client) CreateDepositAddress(ctx context.Context, coin, network string) (*DepositAddress, error) {
	req := core.NewRequest(http.MethodPost, "/api/v3/capital/deposit/address").
		SetSigned(true).
		SetParam("coin", formatSymbol(coin)).
		SetParam("network", network)

	var addr DepositAddress
	if err := c.call(ctx, req, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// DepositAddresses returns the deposit addresses of coin, on every network when network is
// empty.
func (c *Client) DepositAddresses(ctx context.Context, coin, network string) ([]DepositAddress, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/deposit/address").
		SetSigned(true).
		SetParam("coin", formatSymbol(coin)).
		SetParam("network", optional(network))

	return callList[DepositAddress](ctx, c, req)
}

// WithdrawAddresses returns a page of the withdrawal address book, for every coin when coin
// is empty.
func (c *Client) WithdrawAddresses(ctx context.Context, coin string, opts ...Option) (*WithdrawAddressPage, error) {
	o := ApplyOptions(opts...)
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/withdraw/address").
		SetSigned(true).
		SetParam("coin", optional(formatSymbol(coin))).
		SetParam("page", positive(o.Page)).
		SetParam("limit", positive(o.Limit))

	var page WithdrawAddressPage
	if err := c.call(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Transfer moves amount of asset between the spot and futures wallets and returns the
// transfer id.
func (c *Client) Transfer(ctx context.Context, from, to AccountType, asset string, amount *apd.Decimal) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("transfer requires a positive amount")
	}
	req := core.NewRequest(http.MethodPost, "/api/v3/capital/transfer").
		SetSigned(true).
		SetParam("fromAccountType", string(from)).
		SetParam("toAccountType", string(to)).
		SetParam("asset", formatSymbol(asset)).
		SetParam("amount", amount)

	var resp struct {
		TranID string `json:"tranId"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.TranID, nil
}

// Transfers returns a page of transfers from one wallet to another. WithLimit sets the page
// size.
func (c *Client) Transfers(ctx context.Context, from, to AccountType, opts ...Option) (*TransferPage, error) {
	params := core.NewParams().
		Set("fromAccountType", string(from)).
		Set("toAccountType", string(to))
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/transfer").
		SetSigned(true).
		SetParams(ApplyOptions(opts...).paged(params, "size"))

	var page TransferPage
	if err := c.call(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) TransferByID(ctx context.Context, tranID string) (*Transfer, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/transfer/tranId").
		SetSigned(true).
		SetParam("tranId", tranID)

	var tr Transfer
	if err := c.call(ctx, req, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// ConvertibleAssets returns the small balances that can be converted into MX.
func (c *Client) ConvertibleAssets(ctx context.Context) ([]ConvertibleAsset, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/convert/list").SetSigned(true).SetWeight(10)

	var assets []ConvertibleAsset
	if err := c.call(ctx, req, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// ConvertDust converts the small balances of assets into MX.
func (c *Client) ConvertDust(ctx context.Context, assets ...string) (*DustResult, error) {
	if len(assets) == 0 {
		return nil, errors.New("at least one asset is required")
	}
	upper := make([]string, len(assets))
	for i, a := range assets {
		upper[i] = formatSymbol(a)
	}
	req := core.NewRequest(http.MethodPost, "/api/v3/capital/convert").
		SetSigned(true).
		SetWeight(10).
		SetParam("asset", upper)

	var res DustResult
	if err := c.call(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DustLog returns a page of past dust conversions.
func (c *Client) DustLog(ctx context.Context, opts ...Option) (*DustLog, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/capital/convert").
		SetSigned(true).
		SetParams(ApplyOptions(opts...).paged(core.NewParams(), "limit"))

	var dust DustLog
	if err := c.call(ctx, req, &dust); err != nil {
		return nil, err
	}
	return &dust, nil
}
