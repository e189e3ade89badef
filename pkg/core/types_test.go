package core

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSide_String(t *testing.T) {
	tests := []struct {
		name string
		side OrderSide
		want string
	}{
		{"buy", SideBuy, "BUY"},
		{"sell", SideSell, "SELL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.side.String())
		})
	}
}

func TestSideFromTradeType(t *testing.T) {
	assert.Equal(t, SideBuy, SideFromTradeType(1))
	assert.Equal(t, SideSell, SideFromTradeType(2))
}

func TestOrderType_String(t *testing.T) {
	tests := []struct {
		name      string
		orderType OrderType
		want      string
	}{
		{"limit", TypeLimit, "LIMIT"},
		{"market", TypeMarket, "MARKET"},
		{"limit_maker", TypeLimitMaker, "LIMIT_MAKER"},
		{"ioc", TypeImmediateOrCancel, "IMMEDIATE_OR_CANCEL"},
		{"fok", TypeFillOrKill, "FILL_OR_KILL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.orderType.String())
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusNew, false},
		{StatusPartiallyFilled, false},
		{StatusFilled, true},
		{StatusCanceled, true},
		{StatusPartiallyCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestEnums_JSON(t *testing.T) {
	var payload struct {
		Side   OrderSide   `json:"side"`
		Type   OrderType   `json:"type"`
		Status OrderStatus `json:"status"`
	}

	err := json.Unmarshal([]byte(`{"side":"sell","type":"LIMIT_MAKER","status":"PARTIALLY_CANCELED"}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, SideSell, payload.Side)
	assert.Equal(t, TypeLimitMaker, payload.Type)
	assert.Equal(t, StatusPartiallyCanceled, payload.Status)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"side":"SELL","type":"LIMIT_MAKER","status":"PARTIALLY_CANCELED"}`, string(out))
}

func TestParseDecimal(t *testing.T) {
	var d apd.Decimal

	require.NoError(t, ParseDecimal(&d, "3021.55"))
	assert.Equal(t, "3021.55", d.String())

	require.NoError(t, ParseDecimal(&d, ""))
	assert.True(t, d.IsZero())

	assert.Error(t, ParseDecimal(&d, "abc"))
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"20233.84"`, "20233.84"},
		{`20284.93`, "20284.93"},
		{`"0.000000"`, "0.000000"},
		{`""`, "0"},
		{`null`, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, tt.want, n.String())
		})
	}

	var n Number
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}
