package spot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Rebates(t *testing.T) {
	c, f := newFakeExchange(t, map[string]string{
		"GET /api/v3/rebate/taxQuery": `{"page":1,"totalRecords":1,"totalPage":1,"data":[{"spot":"0.5",
			"futures":"0","total":"0.5","uid":"221827","account":"a***@x.com","time":1700000000000}]}`,
		"GET /api/v3/rebate/detail": `{"page":1,"totalRecords":1,"totalPage":1,"data":[{"asset":"USDT",
			"type":"spot","rate":"0.3","amount":"0.1","uid":"221827","tradeTime":1700000000000}]}`,
		"GET /api/v3/rebate/detail/kickback": `{"page":2,"totalRecords":0,"totalPage":2,"data":[]}`,
		"GET /api/v3/rebate/referCode":       `{"referCode":"mexc-12345"}`,
	})
	ctx := context.Background()
	start := time.UnixMilli(1690000000000)
	end := time.UnixMilli(1700000000000)

	records, err := c.RebateRecords(ctx, WithTimeRange(start, end), WithPage(1), WithLimit(20))
	require.NoError(t, err)
	require.Len(t, records.Data, 1)
	assert.Equal(t, "0.5", records.Data[0].Total.String())
	assertSignedQuery(t, f, "GET /api/v3/rebate/taxQuery",
		"startTime=1690000000000&endTime=1700000000000&page=1&limit=20")

	details, err := c.RebateDetails(ctx, WithPage(1), WithLimit(20))
	require.NoError(t, err)
	require.Len(t, details.Data, 1)
	assert.Equal(t, "0.3", details.Data[0].Rate.String())
	assertSignedQuery(t, f, "GET /api/v3/rebate/detail", "page=1")

	self, err := c.SelfRebateDetails(ctx, WithPage(2))
	require.NoError(t, err)
	assert.Empty(t, self.Data)
	assert.Equal(t, 2, self.TotalPages)

	code, err := c.ReferCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mexc-12345", code)
}

func TestClient_ETF(t *testing.T) {
	c, f := newFakeExchange(t, map[string]string{
		"GET /api/v3/etf/info": `{"symbol":"BTC3LUSDT","netValue":"0.147","feeRate":"0.00001","timestamp":1700000000000}`,
	})

	info, err := c.ETF(context.Background(), "btc3lusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC3LUSDT", info.Symbol)
	assert.Equal(t, "0.147", info.NetValue.String())
	assert.Equal(t, "symbol=BTC3LUSDT", f.query("GET /api/v3/etf/info"))
}
