package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the string representation of the order side ("BUY" or "SELL").
func (s OrderSide) String() string {
	return [...]string{"BUY", "SELL"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"BUY"`, `"buy"`:
		*s = SideBuy
	case `"SELL"`, `"sell"`:
		*s = SideSell
	}
	return nil
}

// SideFromTradeType converts the numeric trade type used on the stream (1 buy, 2 sell).
func SideFromTradeType(t int) OrderSide {
	if t == 2 {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the type of order to place on the exchange.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
	// TypeLimitMaker is a limit order rejected if it would match immediately.
	TypeLimitMaker
	// TypeImmediateOrCancel fills what it can and cancels the rest.
	TypeImmediateOrCancel
	// TypeFillOrKill fills completely or not at all.
	TypeFillOrKill
)

// String returns the string representation of the order type.
func (t OrderType) String() string {
	return [...]string{"LIMIT", "MARKET", "LIMIT_MAKER", "IMMEDIATE_OR_CANCEL", "FILL_OR_KILL"}[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
// It accepts both uppercase and lowercase formats.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"LIMIT"`, `"limit"`:
		*t = TypeLimit
	case `"MARKET"`, `"market"`:
		*t = TypeMarket
	case `"LIMIT_MAKER"`, `"limit_maker"`:
		*t = TypeLimitMaker
	case `"IMMEDIATE_OR_CANCEL"`, `"immediate_or_cancel"`:
		*t = TypeImmediateOrCancel
	case `"FILL_OR_KILL"`, `"fill_or_kill"`:
		*t = TypeFillOrKill
	}
	return nil
}

// OrderStatus represents the current state of an order.
type OrderStatus int

// Order status constants define the lifecycle state of an order.
const (
	// StatusNew indicates the order has been accepted by the exchange.
	StatusNew OrderStatus = iota
	// StatusPartiallyFilled indicates the order has been partially filled.
	StatusPartiallyFilled
	// StatusFilled indicates the order has been completely filled.
	StatusFilled
	// StatusCanceled indicates the order has been canceled.
	StatusCanceled
	// StatusPartiallyCanceled indicates a partially filled order whose remainder was canceled.
	StatusPartiallyCanceled
)

// String returns the string representation of the order status.
func (s OrderStatus) String() string {
	return [...]string{"NEW", "PARTIALLY_FILLED", "FILLED", "CANCELED", "PARTIALLY_CANCELED"}[s]
}

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusPartiallyCanceled
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
// It accepts both uppercase and lowercase formats.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"NEW"`, `"new"`:
		*s = StatusNew
	case `"PARTIALLY_FILLED"`, `"partially_filled"`:
		*s = StatusPartiallyFilled
	case `"FILLED"`, `"filled"`:
		*s = StatusFilled
	case `"CANCELED"`, `"canceled"`:
		*s = StatusCanceled
	case `"PARTIALLY_CANCELED"`, `"partially_canceled"`:
		*s = StatusPartiallyCanceled
	}
	return nil
}

// KlineInterval is the interval code accepted by the REST kline endpoint.
type KlineInterval string

// REST kline intervals.
const (
	Interval1m  KlineInterval = "1m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval60m KlineInterval = "60m"
	Interval4h  KlineInterval = "4h"
	Interval8h  KlineInterval = "8h"
	Interval1d  KlineInterval = "1d"
	Interval1M  KlineInterval = "1M"
)

func (i KlineInterval) String() string { return string(i) }

// Ticker represents 24 hour rolling statistics for a trading pair.
type Ticker struct {
	// Symbol is the exchange symbol (e.g., "BTCUSDT").
	Symbol string `json:"symbol"`
	// Bid is the highest price a buyer is willing to pay.
	Bid apd.Decimal `json:"bid"`
	// Ask is the lowest price a seller is willing to accept.
	Ask apd.Decimal `json:"ask"`
	// Last is the price of the most recent trade.
	Last apd.Decimal `json:"last"`
	// High is the highest price in the last 24 hours.
	High apd.Decimal `json:"high"`
	// Low is the lowest price in the last 24 hours.
	Low apd.Decimal `json:"low"`
	// Volume is the total trading volume in the last 24 hours.
	Volume apd.Decimal `json:"volume"`
	// Timestamp is when this ticker data was generated.
	Timestamp time.Time `json:"timestamp"`
}

// PriceTicker is the latest price of a symbol.
type PriceTicker struct {
	Symbol string      `json:"symbol"`
	Price  apd.Decimal `json:"price"`
}

// BookTicker is the best bid and ask of a symbol.
type BookTicker struct {
	Symbol   string      `json:"symbol"`
	BidPrice apd.Decimal `json:"bid_price"`
	BidQty   apd.Decimal `json:"bid_qty"`
	AskPrice apd.Decimal `json:"ask_price"`
	AskQty   apd.Decimal `json:"ask_qty"`
	// Timestamp is set for stream updates only.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// AvgPrice is the current average price over a number of minutes.
type AvgPrice struct {
	Mins  int         `json:"mins"`
	Price apd.Decimal `json:"price"`
}

// Order represents an exchange order with all its details.
type Order struct {
	// ID is the exchange-assigned order identifier.
	ID string `json:"id"`
	// ClientOrderID is the client-assigned order identifier.
	ClientOrderID string `json:"client_order_id"`
	// Symbol is the trading pair for this order.
	Symbol string `json:"symbol"`
	// Side indicates whether this is a buy or sell order.
	Side OrderSide `json:"side"`
	// Type defines how the order executes.
	Type OrderType `json:"type"`
	// Price is the limit price for limit orders.
	Price apd.Decimal `json:"price"`
	// Quantity is the total order quantity.
	Quantity apd.Decimal `json:"quantity"`
	// FilledQuantity is the amount that has been executed.
	FilledQuantity apd.Decimal `json:"filled_quantity"`
	// RemainingQty is the unfilled portion of the order.
	RemainingQty apd.Decimal `json:"remaining_quantity"`
	// Status is the current state of the order.
	Status OrderStatus `json:"status"`
	// CreatedAt is when the order was submitted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the order was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance represents account balance for a single asset.
type Balance struct {
	// Asset is the currency or token symbol (e.g., "BTC", "USDT").
	Asset string `json:"asset"`
	// Free is the available balance for trading.
	Free apd.Decimal `json:"free"`
	// Locked is the balance locked in open orders.
	Locked apd.Decimal `json:"locked"`
}

// Account is the account snapshot returned by the account endpoint.
type Account struct {
	CanTrade    bool      `json:"can_trade"`
	CanWithdraw bool      `json:"can_withdraw"`
	CanDeposit  bool      `json:"can_deposit"`
	Balances    []Balance `json:"balances"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Trade represents a single executed trade, public or private.
type Trade struct {
	// ID is the exchange-assigned trade identifier, empty for public stream deals.
	ID string `json:"id"`
	// OrderID links this trade to its parent order for private trades.
	OrderID string `json:"order_id"`
	// Symbol is the trading pair for this trade.
	Symbol string `json:"symbol"`
	// Side indicates whether this was a buy or sell.
	Side OrderSide `json:"side"`
	// Price is the execution price of this trade.
	Price apd.Decimal `json:"price"`
	// Quantity is the amount executed in this trade.
	Quantity apd.Decimal `json:"quantity"`
	// Fee is the trading fee charged.
	Fee apd.Decimal `json:"fee"`
	// FeeAsset is the currency in which the fee was charged.
	FeeAsset string `json:"fee_asset"`
	// Timestamp is when the trade was executed.
	Timestamp time.Time `json:"timestamp"`
}

// Kline represents a candlestick/OHLCV data point for a time period.
type Kline struct {
	// Symbol is the trading pair for this kline.
	Symbol string `json:"symbol"`
	// Interval is the REST interval code or the stream interval code.
	Interval string `json:"interval"`
	// OpenTime is the start of the candlestick period.
	OpenTime time.Time `json:"open_time"`
	// Open is the price at the start of the period.
	Open apd.Decimal `json:"open"`
	// High is the highest price during the period.
	High apd.Decimal `json:"high"`
	// Low is the lowest price during the period.
	Low apd.Decimal `json:"low"`
	// Close is the price at the end of the period.
	Close apd.Decimal `json:"close"`
	// Volume is the total trading volume during the period.
	Volume apd.Decimal `json:"volume"`
	// CloseTime is the end of the candlestick period.
	CloseTime time.Time `json:"close_time"`
	// QuoteVolume is the total value traded in quote currency.
	QuoteVolume apd.Decimal `json:"quote_volume"`
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	// Price is the limit price for this level.
	Price apd.Decimal `json:"price"`
	// Quantity is the total quantity available at this price. Zero removes the level in diff updates.
	Quantity apd.Decimal `json:"quantity"`
}

// OrderBook represents a snapshot or an incremental update of the order book.
type OrderBook struct {
	// Symbol is the trading pair for this order book.
	Symbol string `json:"symbol"`
	// Version is the exchange update id, when provided.
	Version string `json:"version,omitempty"`
	// Bids are buy orders sorted by price descending.
	Bids []OrderBookLevel `json:"bids"`
	// Asks are sell orders sorted by price ascending.
	Asks []OrderBookLevel `json:"asks"`
	// Timestamp is when this snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// ParseDecimal sets dest from a decimal string. The empty string yields zero.
func ParseDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		*dest = apd.Decimal{}
		return nil
	}
	if _, _, err := apd.BaseContext.SetString(dest, s); err != nil {
		return err
	}
	return nil
}

// Number is a decimal that decodes from a JSON string or a JSON number. null and the empty
// string decode to zero.
type Number struct {
	apd.Decimal
}

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	if err := ParseDecimal(&n.Decimal, s); err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return nil
}
