package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncReconnect()
	m.IncReconnect()
	m.SetStreamState(2)
	m.IncMessage()
	m.IncSent()
	m.ObserveListenKeyRefresh(nil)
	m.ObserveListenKeyRefresh(errors.New("expired"))
	m.ObserveListenKeyRefresh(errors.New("expired"))
	m.ObserveREST("GET", 200, 15*time.Millisecond)
	m.SetBreakerState(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.streamReconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.streamState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listenKey.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.listenKey.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	a := New(reg)
	b := New(reg)
	a.IncReconnect()
	b.IncReconnect()
	b.ObserveREST("GET", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.streamReconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.restRequests.WithLabelValues("GET", "200")))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncReconnect()
		m.SetStreamState(1)
		m.IncMessage()
		m.IncSent()
		m.ObserveListenKeyRefresh(nil)
		m.ObserveREST("POST", 500, time.Second)
		m.SetBreakerState(0)
	})
}
