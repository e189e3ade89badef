package stream

import (
	"fmt"
	"strconv"
	"strings"

	"mexc/pkg/core"
)

// Topic identifies one stream channel. Topics built by this package are canonical: the symbol
// is uppercased, so equal subscriptions always produce equal strings.
type Topic string

func (t Topic) String() string { return string(t) }

// IsPrivate reports whether the topic needs a listen key with account permissions.
func (t Topic) IsPrivate() bool {
	return strings.HasPrefix(string(t), "spot@private.")
}

const (
	channelDeals        = "spot@public.deals.v3.api"
	channelKline        = "spot@public.kline.v3.api"
	channelDiffDepth    = "spot@public.increase.depth.v3.api"
	channelPartialDepth = "spot@public.limit.depth.v3.api"
	channelBookTicker   = "spot@public.bookTicker.v3.api"
)

// Private topics. They carry no parameters.
const (
	AccountTopic       Topic = "spot@private.account.v3.api"
	AccountDealsTopic  Topic = "spot@private.deals.v3.api"
	AccountOrdersTopic Topic = "spot@private.orders.v3.api"
)

// KlineInterval is the interval code used in kline topics. It differs from the REST codes in
// core.KlineInterval.
type KlineInterval string

const (
	Min1   KlineInterval = "Min1"
	Min5   KlineInterval = "Min5"
	Min15  KlineInterval = "Min15"
	Min30  KlineInterval = "Min30"
	Min60  KlineInterval = "Min60"
	Hour4  KlineInterval = "Hour4"
	Hour8  KlineInterval = "Hour8"
	Day1   KlineInterval = "Day1"
	Week1  KlineInterval = "Week1"
	Month1 KlineInterval = "Month1"
)

var klineIntervals = map[KlineInterval]bool{
	Min1: true, Min5: true, Min15: true, Min30: true, Min60: true,
	Hour4: true, Hour8: true, Day1: true, Week1: true, Month1: true,
}

func (i KlineInterval) Valid() bool {
	return klineIntervals[i]
}

var restIntervals = map[core.KlineInterval]KlineInterval{
	core.Interval1m:  Min1,
	core.Interval5m:  Min5,
	core.Interval15m: Min15,
	core.Interval30m: Min30,
	core.Interval60m: Min60,
	core.Interval4h:  Hour4,
	core.Interval8h:  Hour8,
	core.Interval1d:  Day1,
	core.Interval1M:  Month1,
}

// IntervalFromREST converts a REST kline interval to its stream code. Week1 has no REST form.
func IntervalFromREST(interval core.KlineInterval) (KlineInterval, error) {
	i, ok := restIntervals[interval]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return i, nil
}

// DepthLevels are the accepted partial depth levels.
var DepthLevels = []int{5, 10, 20}

func canonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TradesTopic is the public deals channel of symbol.
func TradesTopic(symbol string) Topic {
	return Topic(channelDeals + "@" + canonicalSymbol(symbol))
}

// KlineTopic is the candlestick channel of symbol at interval.
func KlineTopic(symbol string, interval KlineInterval) (Topic, error) {
	if !interval.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return Topic(channelKline + "@" + canonicalSymbol(symbol) + "@" + string(interval)), nil
}

// DiffDepthTopic is the incremental order book channel of symbol.
func DiffDepthTopic(symbol string) Topic {
	return Topic(channelDiffDepth + "@" + canonicalSymbol(symbol))
}

// PartialDepthTopic is the top-of-book snapshot channel of symbol. level must be 5, 10 or 20.
func PartialDepthTopic(symbol string, level int) (Topic, error) {
	switch level {
	case 5, 10, 20:
	default:
		return "", fmt.Errorf("%w: %d", core.ErrInvalidDepthLevel, level)
	}
	return Topic(channelPartialDepth + "@" + canonicalSymbol(symbol) + "@" + strconv.Itoa(level)), nil
}

// BookTickerTopic is the best bid and ask channel of symbol.
func BookTickerTopic(symbol string) Topic {
	return Topic(channelBookTicker + "@" + canonicalSymbol(symbol))
}
