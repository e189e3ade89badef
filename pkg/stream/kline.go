package stream

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
)

type klineFrame struct {
	Envelope
	Data struct {
		K struct {
			// Times are in seconds.
			OpenTime    int64       `json:"t"`
			CloseTime   int64       `json:"T"`
			Interval    string      `json:"i"`
			Open        core.Number `json:"o"`
			High        core.Number `json:"h"`
			Low         core.Number `json:"l"`
			Close       core.Number `json:"c"`
			Volume      core.Number `json:"v"`
			QuoteVolume core.Number `json:"a"`
		} `json:"k"`
	} `json:"d"`
}

// DecodeKline decodes a kline frame. Interval carries the stream code, for example "Min15".
func DecodeKline(data []byte) (*core.Kline, error) {
	var f klineFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode kline: %w", err)
	}

	k := f.Data.K
	kline := &core.Kline{
		Symbol:      f.Symbol,
		Interval:    k.Interval,
		Open:        k.Open.Decimal,
		High:        k.High.Decimal,
		Low:         k.Low.Decimal,
		Close:       k.Close.Decimal,
		Volume:      k.Volume.Decimal,
		QuoteVolume: k.QuoteVolume.Decimal,
	}
	if k.OpenTime > 0 {
		kline.OpenTime = time.Unix(k.OpenTime, 0)
	}
	if k.CloseTime > 0 {
		kline.CloseTime = time.Unix(k.CloseTime, 0)
	}
	return kline, nil
}
