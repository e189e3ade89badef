package stream

import (
	"fmt"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
)

type depthLevel struct {
	Price    core.Number `json:"p"`
	Quantity core.Number `json:"v"`
}

type depthFrame struct {
	Envelope
	Data struct {
		Asks    []depthLevel `json:"asks"`
		Bids    []depthLevel `json:"bids"`
		Version string       `json:"r"`
	} `json:"d"`
}

// DecodeDepth decodes a diff depth or partial depth frame. In diff frames a zero quantity
// removes the price level.
func DecodeDepth(data []byte) (*core.OrderBook, error) {
	var f depthFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}

	return &core.OrderBook{
		Symbol:    f.Symbol,
		Version:   f.Data.Version,
		Bids:      levels(f.Data.Bids),
		Asks:      levels(f.Data.Asks),
		Timestamp: f.Timestamp(),
	}, nil
}

func levels(in []depthLevel) []core.OrderBookLevel {
	out := make([]core.OrderBookLevel, 0, len(in))
	for _, l := range in {
		out = append(out, core.OrderBookLevel{Price: l.Price.Decimal, Quantity: l.Quantity.Decimal})
	}
	return out
}
