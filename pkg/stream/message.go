package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
)

// Envelope is the common part of every data frame.
type Envelope struct {
	// Channel is the topic the frame belongs to.
	Channel string `json:"c"`
	Symbol  string `json:"s"`
	// Time is the server send time in milliseconds.
	Time int64 `json:"t"`
}

// Topic returns Channel as a Topic.
func (e Envelope) Topic() Topic { return Topic(e.Channel) }

// Timestamp returns Time as a time.Time.
func (e Envelope) Timestamp() time.Time {
	if e.Time == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Time)
}

// Ack is the server answer to a subscription request. Msg echoes the topic on success.
type Ack struct {
	ID   int    `json:"id"`
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// OK reports whether the server accepted the request.
func (a Ack) OK() bool { return a.Code == 0 }

type frame struct {
	Envelope
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
	ID   int    `json:"id"`
}

// ParseFrame classifies an inbound text frame. Exactly one of the returned pointers is non-nil
// on success.
func ParseFrame(data []byte) (*Envelope, *Ack, error) {
	var f frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse frame: %w", err)
	}
	if f.Channel != "" {
		env := f.Envelope
		return &env, nil, nil
	}
	if f.Code != nil || f.Msg != "" {
		return nil, &Ack{ID: f.ID, Code: deref(f.Code), Msg: f.Msg}, nil
	}
	return nil, nil, fmt.Errorf("parse frame: unknown frame %q", truncate(data, 64))
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}

// Router decodes frames and dispatches them to the typed callback of their channel. Nil
// callbacks are skipped. Frames of channels without a callback, private channels included,
// go to OnOther.
type Router struct {
	OnTrades       func(symbol string, trades []core.Trade)
	OnKline        func(kline core.Kline)
	OnDiffDepth    func(book core.OrderBook)
	OnPartialDepth func(book core.OrderBook)
	OnBookTicker   func(ticker core.BookTicker)
	OnAck          func(ack Ack)
	OnOther        func(env Envelope, data []byte)
}

// Route decodes data and invokes the matching callback. It is meant to be used as
// Handlers.OnMessage through a closure that reports the error.
func (r *Router) Route(data []byte) error {
	env, ack, err := ParseFrame(data)
	if err != nil {
		return err
	}
	if ack != nil {
		if r.OnAck != nil {
			r.OnAck(*ack)
		}
		return nil
	}

	switch channelOf(env.Channel) {
	case channelDeals:
		if r.OnTrades != nil {
			trades, err := DecodeTrades(data)
			if err != nil {
				return err
			}
			r.OnTrades(env.Symbol, trades)
			return nil
		}
	case channelKline:
		if r.OnKline != nil {
			kline, err := DecodeKline(data)
			if err != nil {
				return err
			}
			r.OnKline(*kline)
			return nil
		}
	case channelDiffDepth:
		if r.OnDiffDepth != nil {
			book, err := DecodeDepth(data)
			if err != nil {
				return err
			}
			r.OnDiffDepth(*book)
			return nil
		}
	case channelPartialDepth:
		if r.OnPartialDepth != nil {
			book, err := DecodeDepth(data)
			if err != nil {
				return err
			}
			r.OnPartialDepth(*book)
			return nil
		}
	case channelBookTicker:
		if r.OnBookTicker != nil {
			ticker, err := DecodeBookTicker(data)
			if err != nil {
				return err
			}
			r.OnBookTicker(*ticker)
			return nil
		}
	}

	if r.OnOther != nil {
		r.OnOther(*env, data)
	}
	return nil
}

// channelOf strips the symbol and parameters from a topic.
func channelOf(topic string) string {
	if i := strings.IndexByte(topic, '@'); i >= 0 {
		if j := strings.IndexByte(topic[i+1:], '@'); j >= 0 {
			return topic[:i+1+j]
		}
	}
	return topic
}
