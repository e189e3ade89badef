package signer

import (
	"testing"
	"time"

	"github.com/cryptowatch/clock"
	"github.com/stretchr/testify/assert"

	"mexc/pkg/core"
)

func fixedClock(ms int64) *clock.Mock {
	c := clock.NewMockOpt(clock.MockOpt{Gosched: func() {}})
	c.Set(time.UnixMilli(ms))
	return c
}

func TestSigner_Signature(t *testing.T) {
	s := New("key", "mexc-secret", 5000)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "two_params",
			query: "symbol=BTCUSDT&side=BUY&recvWindow=5000&timestamp=1700000000000",
			want:  "d34f325329e27bf7d288e9731fc928b71732e12d54002d7bcb85c2d35137d922",
		},
		{
			name:  "reordered_params_differ",
			query: "side=BUY&symbol=BTCUSDT&recvWindow=5000&timestamp=1700000000000",
			want:  "b3388558bffbe1fb457d8032c455c8a37d21c22d82b5685a997fa9be3848f6ea",
		},
		{
			name:  "empty",
			query: "",
			want:  "6535e166981571720a2c58231afacd2cebe8298cb9f2d322e3c4a1a94a528f76",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Signature(tt.query))
		})
	}
}

func TestSigner_Sign(t *testing.T) {
	s := New("key", "mexc-secret", 5000, WithClock(fixedClock(1700000000000)))

	params := core.NewParams().
		Set("symbol", "BTCUSDT").
		Set("orderId", nil).
		Set("side", "BUY")

	signed := s.Sign(params)

	assert.Equal(t, []string{"symbol", "side", "recvWindow", "timestamp", "signature"}, signed.Keys())
	assert.Equal(t,
		"symbol=BTCUSDT&side=BUY&recvWindow=5000&timestamp=1700000000000"+
			"&signature=d34f325329e27bf7d288e9731fc928b71732e12d54002d7bcb85c2d35137d922",
		signed.Encode())

	// caller input untouched
	assert.Equal(t, []string{"symbol", "orderId", "side"}, params.Keys())
}

func TestSigner_SignEmpty(t *testing.T) {
	s := New("key", "mexc-secret", 5000, WithClock(fixedClock(1700000000000)))

	signed := s.Sign(nil)

	sig, ok := signed.Get("signature")
	assert.True(t, ok)
	assert.Equal(t, "7cdd27e0fc7c5be2f39a63540c0e9fd127e3a805866ef586f94b78964ce5ee37", sig)
}

func TestSigner_Deterministic(t *testing.T) {
	c := fixedClock(1700000000000)
	s := New("key", "mexc-secret", 5000, WithClock(c))
	params := core.NewParams().Set("symbol", "BTCUSDT").Set("side", "BUY")

	first := s.Sign(params).Encode()
	assert.Equal(t, first, s.Sign(params).Encode())

	c.Add(time.Millisecond)
	assert.NotEqual(t, first, s.Sign(params).Encode())
}

func TestSigner_Accessors(t *testing.T) {
	s := New("my-key", "secret", 7000)

	assert.Equal(t, "my-key", s.APIKey())
	assert.Equal(t, int64(7000), s.RecvWindow())
}
