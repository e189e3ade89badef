// Package signer builds authenticated query strings for signed MEXC REST calls.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cryptowatch/clock"

	"mexc/pkg/core"
)

// Signer holds the credentials and receive window shared by every signed call.
// It is immutable after construction and safe for concurrent use.
type Signer struct {
	apiKey     string
	secret     []byte
	recvWindow int64
	clock      clock.Clock
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock sets the clock used for the timestamp parameter.
func WithClock(c clock.Clock) Option {
	return func(s *Signer) {
		s.clock = c
	}
}

// New creates a Signer. recvWindow is in milliseconds.
func New(apiKey, secret string, recvWindow int64, opts ...Option) *Signer {
	s := &Signer{
		apiKey:     apiKey,
		secret:     []byte(secret),
		recvWindow: recvWindow,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// APIKey returns the key sent in the X-MEXC-APIKEY header.
func (s *Signer) APIKey() string {
	return s.apiKey
}

// RecvWindow returns the receive window in milliseconds.
func (s *Signer) RecvWindow() int64 {
	return s.recvWindow
}

// Signature returns the hex encoded HMAC-SHA256 of query keyed by the secret.
func (s *Signer) Signature(query string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns a signed copy of params: absent values are dropped, recvWindow and timestamp
// are appended in that order, and signature is computed over the unescaped encoding of the
// result and appended last. Key order is never changed. params is not modified.
func (s *Signer) Sign(params *core.Params) *core.Params {
	signed := params.Compact()
	signed.Set("recvWindow", s.recvWindow)
	signed.Set("timestamp", s.clock.Now().UnixMilli())
	signed.Set("signature", s.Signature(signed.Encode()))
	return signed
}
