package spot

import (
	"context"
	"net/http"
	"time"

	"mexc/pkg/core"
)

// ExchangeInfo holds the trading rules of the requested symbols.
type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

// SymbolInfo is the subset of symbol rules callers usually need.
type SymbolInfo struct {
	Symbol               string      `json:"symbol"`
	Status               string      `json:"status"`
	BaseAsset            string      `json:"baseAsset"`
	BaseAssetPrecision   int         `json:"baseAssetPrecision"`
	QuoteAsset           string      `json:"quoteAsset"`
	QuotePrecision       int         `json:"quotePrecision"`
	OrderTypes           []string    `json:"orderTypes"`
	IsSpotTradingAllowed bool        `json:"isSpotTradingAllowed"`
	BaseSizePrecision    core.Number `json:"baseSizePrecision"`
	MakerCommission      core.Number `json:"makerCommission"`
	TakerCommission      core.Number `json:"takerCommission"`
}

// Ping tests connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, core.NewRequest(http.MethodGet, "/api/v3/ping"), nil)
}

// ServerTime returns the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.call(ctx, core.NewRequest(http.MethodGet, "/api/v3/time"), &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// DefaultSymbols returns the symbols tradable through the API.
func (c *Client) DefaultSymbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Data []string `json:"data"`
	}
	if err := c.call(ctx, core.NewRequest(http.MethodGet, "/api/v3/defaultSymbols"), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExchangeInfo returns the rules of the given symbols, or of every symbol when none is given.
func (c *Client) ExchangeInfo(ctx context.Context, symbols ...string) (*ExchangeInfo, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/exchangeInfo").SetWeight(10)
	switch len(symbols) {
	case 0:
	case 1:
		req.SetParam("symbol", formatSymbol(symbols[0]))
	default:
		upper := make([]string, len(symbols))
		for i, s := range symbols {
			upper[i] = formatSymbol(s)
		}
		req.SetParam("symbols", upper)
	}

	var info ExchangeInfo
	if err := c.call(ctx, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// OrderBook returns the bids and asks of symbol. WithLimit sets the depth.
func (c *Client) OrderBook(ctx context.Context, symbol string, opts ...Option) (*core.OrderBook, error) {
	symbol = formatSymbol(symbol)
	req := core.NewRequest(http.MethodGet, "/api/v3/depth").
		SetParam("symbol", symbol).
		SetParam("limit", positive(ApplyOptions(opts...).Limit))

	var raw mexcOrderBook
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeOrderBook(&raw, symbol)
}

// Trades returns the recent public trades of symbol.
func (c *Client) Trades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error) {
	symbol = formatSymbol(symbol)
	req := core.NewRequest(http.MethodGet, "/api/v3/trades").
		SetWeight(5).
		SetParam("symbol", symbol).
		SetParam("limit", positive(ApplyOptions(opts...).Limit))

	var raw []mexcTrade
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeTrades(raw, symbol), nil
}

// Klines returns the candlesticks of symbol, optionally bounded with WithTimeRange and WithLimit.
func (c *Client) Klines(ctx context.Context, symbol string, interval core.KlineInterval, opts ...Option) ([]core.Kline, error) {
	symbol = formatSymbol(symbol)
	params := core.NewParams().
		Set("symbol", symbol).
		Set("interval", interval.String())
	req := core.NewRequest(http.MethodGet, "/api/v3/klines").
		SetParams(ApplyOptions(opts...).apply(params))

	var raw []mexcKline
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return c.normalizer.NormalizeKlines(raw, symbol, interval)
}

// AvgPrice returns the current average price of symbol.
func (c *Client) AvgPrice(ctx context.Context, symbol string) (*core.AvgPrice, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/avgPrice").SetParam("symbol", formatSymbol(symbol))

	var raw mexcAvgPrice
	if err := c.call(ctx, req, &raw); err != nil {
		return nil, err
	}
	return &core.AvgPrice{Mins: raw.Mins, Price: raw.Price.Decimal}, nil
}

// Ticker24h returns 24 hour statistics. An empty symbol returns every symbol; the result is a
// slice in both cases.
func (c *Client) Ticker24h(ctx context.Context, symbol string) ([]core.Ticker, error) {
	req := tickerRequest("/api/v3/ticker/24hr", symbol, 40)
	raw, err := callList[mexcTicker](ctx, c, req)
	if err != nil {
		return nil, err
	}

	tickers := make([]core.Ticker, 0, len(raw))
	for i := range raw {
		tickers = append(tickers, *c.normalizer.NormalizeTicker(&raw[i]))
	}
	return tickers, nil
}

// TickerPrice returns the latest price of symbol, or of every symbol when symbol is empty.
func (c *Client) TickerPrice(ctx context.Context, symbol string) ([]core.PriceTicker, error) {
	req := tickerRequest("/api/v3/ticker/price", symbol, 2)
	raw, err := callList[mexcPriceTicker](ctx, c, req)
	if err != nil {
		return nil, err
	}

	prices := make([]core.PriceTicker, 0, len(raw))
	for i := range raw {
		prices = append(prices, *c.normalizer.NormalizePriceTicker(&raw[i]))
	}
	return prices, nil
}

// BookTicker returns the best bid and ask of symbol, or of every symbol when symbol is empty.
func (c *Client) BookTicker(ctx context.Context, symbol string) ([]core.BookTicker, error) {
	req := tickerRequest("/api/v3/ticker/bookTicker", symbol, 1)
	raw, err := callList[mexcBookTicker](ctx, c, req)
	if err != nil {
		return nil, err
	}

	books := make([]core.BookTicker, 0, len(raw))
	for i := range raw {
		books = append(books, *c.normalizer.NormalizeBookTicker(&raw[i]))
	}
	return books, nil
}

// tickerRequest builds a ticker request. allWeight applies when no symbol is given.
func tickerRequest(path, symbol string, allWeight int) *core.Request {
	req := core.NewRequest(http.MethodGet, path)
	if symbol == "" {
		return req.SetWeight(allWeight)
	}
	return req.SetParam("symbol", formatSymbol(symbol))
}

// ETFInfo is the net value and fee of a leveraged ETF symbol.
type ETFInfo struct {
	Symbol    string      `json:"symbol"`
	NetValue  core.Number `json:"netValue"`
	FeeRate   core.Number `json:"feeRate"`
	Timestamp int64       `json:"timestamp"`
}

// ETF returns the info of a leveraged ETF symbol such as BTC3LUSDT.
func (c *Client) ETF(ctx context.Context, symbol string) (*ETFInfo, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/etf/info").SetParam("symbol", formatSymbol(symbol))

	var info ETFInfo
	if err := c.call(ctx, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
