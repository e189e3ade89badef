package stream

import (
	"fmt"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
)

type bookTickerFrame struct {
	Envelope
	Data struct {
		AskPrice core.Number `json:"a"`
		AskQty   core.Number `json:"A"`
		BidPrice core.Number `json:"b"`
		BidQty   core.Number `json:"B"`
	} `json:"d"`
}

// DecodeBookTicker decodes a book ticker frame.
func DecodeBookTicker(data []byte) (*core.BookTicker, error) {
	var f bookTickerFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode book ticker: %w", err)
	}

	return &core.BookTicker{
		Symbol:    f.Symbol,
		BidPrice:  f.Data.BidPrice.Decimal,
		BidQty:    f.Data.BidQty.Decimal,
		AskPrice:  f.Data.AskPrice.Decimal,
		AskQty:    f.Data.AskQty.Decimal,
		Timestamp: f.Timestamp(),
	}, nil
}
