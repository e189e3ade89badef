package spot

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"

	"mexc/pkg/core"
)

// mexcTicker is the raw 24 hour ticker.
type mexcTicker struct {
	Symbol             string      `json:"symbol"`
	PriceChange        core.Number `json:"priceChange"`
	PriceChangePercent core.Number `json:"priceChangePercent"`
	LastPrice          core.Number `json:"lastPrice"`
	BidPrice           core.Number `json:"bidPrice"`
	AskPrice           core.Number `json:"askPrice"`
	HighPrice          core.Number `json:"highPrice"`
	LowPrice           core.Number `json:"lowPrice"`
	Volume             core.Number `json:"volume"`
	CloseTime          int64       `json:"closeTime"`
}

type mexcPriceTicker struct {
	Symbol string      `json:"symbol"`
	Price  core.Number `json:"price"`
}

type mexcBookTicker struct {
	Symbol   string      `json:"symbol"`
	BidPrice core.Number `json:"bidPrice"`
	BidQty   core.Number `json:"bidQty"`
	AskPrice core.Number `json:"askPrice"`
	AskQty   core.Number `json:"askQty"`
}

type mexcAvgPrice struct {
	Mins  int         `json:"mins"`
	Price core.Number `json:"price"`
}

// mexcOrder covers the order, cancel and query responses. Fields a response does not carry
// stay zero.
type mexcOrder struct {
	Symbol        string      `json:"symbol"`
	OrderID       string      `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Price         core.Number `json:"price"`
	OrigQty       core.Number `json:"origQty"`
	ExecutedQty   core.Number `json:"executedQty"`
	Status        string      `json:"status"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	Time          int64       `json:"time"`
	TransactTime  int64       `json:"transactTime"`
	UpdateTime    int64       `json:"updateTime"`
}

type mexcBalance struct {
	Asset  string      `json:"asset"`
	Free   core.Number `json:"free"`
	Locked core.Number `json:"locked"`
}

type mexcAccount struct {
	CanTrade    bool          `json:"canTrade"`
	CanWithdraw bool          `json:"canWithdraw"`
	CanDeposit  bool          `json:"canDeposit"`
	UpdateTime  int64         `json:"updateTime"`
	Balances    []mexcBalance `json:"balances"`
}

// mexcTrade is a public trade. MEXC sends a null id.
type mexcTrade struct {
	Price        core.Number `json:"price"`
	Qty          core.Number `json:"qty"`
	Time         int64       `json:"time"`
	IsBuyerMaker bool        `json:"isBuyerMaker"`
}

type mexcMyTrade struct {
	ID              string      `json:"id"`
	OrderID         string      `json:"orderId"`
	Symbol          string      `json:"symbol"`
	Price           core.Number `json:"price"`
	Qty             core.Number `json:"qty"`
	Commission      core.Number `json:"commission"`
	CommissionAsset string      `json:"commissionAsset"`
	Time            int64       `json:"time"`
	IsBuyer         bool        `json:"isBuyer"`
}

type mexcOrderBook struct {
	LastUpdateID int64           `json:"lastUpdateId"`
	Bids         [][]core.Number `json:"bids"`
	Asks         [][]core.Number `json:"asks"`
	Timestamp    int64           `json:"timestamp"`
}

// mexcKline is [openTime, open, high, low, close, volume, closeTime, quoteVolume].
type mexcKline []core.Number

// Normalizer converts MEXC responses to core types.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) NormalizeTicker(data *mexcTicker) *core.Ticker {
	ticker := &core.Ticker{
		Symbol: data.Symbol,
		Bid:    data.BidPrice.Decimal,
		Ask:    data.AskPrice.Decimal,
		Last:   data.LastPrice.Decimal,
		High:   data.HighPrice.Decimal,
		Low:    data.LowPrice.Decimal,
		Volume: data.Volume.Decimal,
	}
	if data.CloseTime > 0 {
		ticker.Timestamp = time.UnixMilli(data.CloseTime)
	}
	return ticker
}

func (n *Normalizer) NormalizePriceTicker(data *mexcPriceTicker) *core.PriceTicker {
	return &core.PriceTicker{Symbol: data.Symbol, Price: data.Price.Decimal}
}

func (n *Normalizer) NormalizeBookTicker(data *mexcBookTicker) *core.BookTicker {
	return &core.BookTicker{
		Symbol:   data.Symbol,
		BidPrice: data.BidPrice.Decimal,
		BidQty:   data.BidQty.Decimal,
		AskPrice: data.AskPrice.Decimal,
		AskQty:   data.AskQty.Decimal,
	}
}

// NormalizeOrder converts an order response. RemainingQty is derived from the original and
// executed quantities.
func (n *Normalizer) NormalizeOrder(data *mexcOrder) (*core.Order, error) {
	order := &core.Order{
		ID:             data.OrderID,
		ClientOrderID:  data.ClientOrderID,
		Symbol:         data.Symbol,
		Side:           parseOrderSide(data.Side),
		Type:           parseOrderType(data.Type),
		Status:         parseOrderStatus(data.Status),
		Price:          data.Price.Decimal,
		Quantity:       data.OrigQty.Decimal,
		FilledQuantity: data.ExecutedQty.Decimal,
	}

	switch {
	case data.Time > 0:
		order.CreatedAt = time.UnixMilli(data.Time)
	case data.TransactTime > 0:
		order.CreatedAt = time.UnixMilli(data.TransactTime)
	}
	if data.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(data.UpdateTime)
	}

	if _, err := apd.BaseContext.Sub(&order.RemainingQty, &order.Quantity, &order.FilledQuantity); err != nil {
		return nil, fmt.Errorf("calculate remaining: %w", err)
	}
	return order, nil
}

func (n *Normalizer) NormalizeOrders(data []mexcOrder) ([]core.Order, error) {
	orders := make([]core.Order, 0, len(data))
	for _, o := range data {
		order, err := n.NormalizeOrder(&o)
		if err != nil {
			return nil, fmt.Errorf("normalize order %s: %w", o.OrderID, err)
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (n *Normalizer) NormalizeAccount(data *mexcAccount) *core.Account {
	account := &core.Account{
		CanTrade:    data.CanTrade,
		CanWithdraw: data.CanWithdraw,
		CanDeposit:  data.CanDeposit,
		Balances:    make([]core.Balance, 0, len(data.Balances)),
	}
	for _, b := range data.Balances {
		account.Balances = append(account.Balances, core.Balance{
			Asset:  b.Asset,
			Free:   b.Free.Decimal,
			Locked: b.Locked.Decimal,
		})
	}
	if data.UpdateTime > 0 {
		account.UpdatedAt = time.UnixMilli(data.UpdateTime)
	}
	return account
}

func (n *Normalizer) NormalizeTrades(data []mexcTrade, symbol string) []core.Trade {
	trades := make([]core.Trade, 0, len(data))
	for _, t := range data {
		trades = append(trades, core.Trade{
			Symbol:    symbol,
			Side:      parseSideFromBuyerMaker(t.IsBuyerMaker),
			Price:     t.Price.Decimal,
			Quantity:  t.Qty.Decimal,
			Timestamp: time.UnixMilli(t.Time),
		})
	}
	return trades
}

func (n *Normalizer) NormalizeMyTrades(data []mexcMyTrade) []core.Trade {
	trades := make([]core.Trade, 0, len(data))
	for _, t := range data {
		side := core.SideSell
		if t.IsBuyer {
			side = core.SideBuy
		}
		trades = append(trades, core.Trade{
			ID:        t.ID,
			OrderID:   t.OrderID,
			Symbol:    t.Symbol,
			Side:      side,
			Price:     t.Price.Decimal,
			Quantity:  t.Qty.Decimal,
			Fee:       t.Commission.Decimal,
			FeeAsset:  t.CommissionAsset,
			Timestamp: time.UnixMilli(t.Time),
		})
	}
	return trades
}

func (n *Normalizer) NormalizeOrderBook(data *mexcOrderBook, symbol string) (*core.OrderBook, error) {
	book := &core.OrderBook{
		Symbol:  symbol,
		Version: fmt.Sprintf("%d", data.LastUpdateID),
	}
	if data.Timestamp > 0 {
		book.Timestamp = time.UnixMilli(data.Timestamp)
	}

	var err error
	if book.Bids, err = normalizeLevels(data.Bids); err != nil {
		return nil, fmt.Errorf("normalize bids: %w", err)
	}
	if book.Asks, err = normalizeLevels(data.Asks); err != nil {
		return nil, fmt.Errorf("normalize asks: %w", err)
	}
	return book, nil
}

func normalizeLevels(levels [][]core.Number) ([]core.OrderBookLevel, error) {
	out := make([]core.OrderBookLevel, 0, len(levels))
	for i, level := range levels {
		if len(level) < 2 {
			return nil, fmt.Errorf("level %d has %d elements", i, len(level))
		}
		out = append(out, core.OrderBookLevel{Price: level[0].Decimal, Quantity: level[1].Decimal})
	}
	return out, nil
}

// NormalizeKline converts a kline array. Returns an error if elements are missing.
func (n *Normalizer) NormalizeKline(data mexcKline, symbol string, interval core.KlineInterval) (*core.Kline, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("insufficient kline data elements: %d", len(data))
	}

	openTime, err := data[0].Int64()
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeTime, err := data[6].Int64()
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}

	kline := &core.Kline{
		Symbol:    symbol,
		Interval:  interval.String(),
		OpenTime:  time.UnixMilli(openTime),
		Open:      data[1].Decimal,
		High:      data[2].Decimal,
		Low:       data[3].Decimal,
		Close:     data[4].Decimal,
		Volume:    data[5].Decimal,
		CloseTime: time.UnixMilli(closeTime),
	}
	if len(data) > 7 {
		kline.QuoteVolume = data[7].Decimal
	}
	return kline, nil
}

func (n *Normalizer) NormalizeKlines(data []mexcKline, symbol string, interval core.KlineInterval) ([]core.Kline, error) {
	klines := make([]core.Kline, 0, len(data))
	for _, k := range data {
		kline, err := n.NormalizeKline(k, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("normalize kline: %w", err)
		}
		klines = append(klines, *kline)
	}
	return klines, nil
}

func parseOrderSide(s string) core.OrderSide {
	if s == "SELL" {
		return core.SideSell
	}
	return core.SideBuy
}

func parseOrderType(s string) core.OrderType {
	switch s {
	case "MARKET":
		return core.TypeMarket
	case "LIMIT_MAKER":
		return core.TypeLimitMaker
	case "IMMEDIATE_OR_CANCEL":
		return core.TypeImmediateOrCancel
	case "FILL_OR_KILL":
		return core.TypeFillOrKill
	default:
		return core.TypeLimit
	}
}

func parseOrderStatus(s string) core.OrderStatus {
	switch s {
	case "PARTIALLY_FILLED":
		return core.StatusPartiallyFilled
	case "FILLED":
		return core.StatusFilled
	case "CANCELED":
		return core.StatusCanceled
	case "PARTIALLY_CANCELED":
		return core.StatusPartiallyCanceled
	default:
		return core.StatusNew
	}
}

// The taker sold when the buyer was the maker.
func parseSideFromBuyerMaker(isBuyerMaker bool) core.OrderSide {
	if isBuyerMaker {
		return core.SideSell
	}
	return core.SideBuy
}
