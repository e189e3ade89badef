package stream

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
)

type dealsFrame struct {
	Envelope
	Data struct {
		Deals []struct {
			// TradeType is 1 for buy and 2 for sell.
			TradeType int         `json:"S"`
			Price     core.Number `json:"p"`
			Time      int64       `json:"t"`
			Quantity  core.Number `json:"v"`
		} `json:"deals"`
	} `json:"d"`
}

// DecodeTrades decodes a public deals frame.
func DecodeTrades(data []byte) ([]core.Trade, error) {
	var f dealsFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode deals: %w", err)
	}

	trades := make([]core.Trade, 0, len(f.Data.Deals))
	for _, d := range f.Data.Deals {
		trade := core.Trade{
			Symbol:   f.Symbol,
			Side:     core.SideFromTradeType(d.TradeType),
			Price:    d.Price.Decimal,
			Quantity: d.Quantity.Decimal,
		}
		if d.Time > 0 {
			trade.Timestamp = time.UnixMilli(d.Time)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}
