// Package metrics holds the Prometheus collectors of the REST gateway, the listen key manager
// and the stream connection. Collectors are only registered on the Registerer passed to New;
// a nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mexc"

type Metrics struct {
	streamReconnects prometheus.Counter
	streamState      prometheus.Gauge
	streamMessages   prometheus.Counter
	streamSent       prometheus.Counter
	listenKey        *prometheus.CounterVec
	restRequests     *prometheus.CounterVec
	restDuration     *prometheus.HistogramVec
	breakerState     prometheus.Gauge
}

// New creates the collectors and registers them on r. When a collector is already registered
// the existing one is reused, so several clients can share one registry.
func New(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		streamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "reconnects_total",
			Help: "Total websocket reconnect attempts",
		}),
		streamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "state",
			Help: "Current websocket connection state (0 disconnected, 1 connecting, 2 open, 3 closing, 4 reconnecting)",
		}),
		streamMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "messages_total",
			Help: "Total messages received over the websocket",
		}),
		streamSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "sent_total",
			Help: "Total messages written to the websocket",
		}),
		listenKey: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "listenkey", Name: "refresh_total",
			Help: "Listen key keepalive attempts by result",
		}, []string{"result"}),
		restRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rest", Name: "requests_total",
			Help: "REST requests by method and HTTP status (0 when no response was received)",
		}, []string{"method", "status"}),
		restDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rest", Name: "request_seconds",
			Help:    "REST request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rest", Name: "circuit_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
	}

	if r != nil {
		m.streamReconnects = register(r, m.streamReconnects)
		m.streamState = register(r, m.streamState)
		m.streamMessages = register(r, m.streamMessages)
		m.streamSent = register(r, m.streamSent)
		m.listenKey = register(r, m.listenKey)
		m.restRequests = register(r, m.restRequests)
		m.restDuration = register(r, m.restDuration)
		m.breakerState = register(r, m.breakerState)
	}
	return m
}

func register[T prometheus.Collector](r prometheus.Registerer, c T) T {
	err := r.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	return c
}

func (m *Metrics) IncReconnect() {
	if m != nil {
		m.streamReconnects.Inc()
	}
}

func (m *Metrics) SetStreamState(state int) {
	if m != nil {
		m.streamState.Set(float64(state))
	}
}

func (m *Metrics) IncMessage() {
	if m != nil {
		m.streamMessages.Inc()
	}
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.streamSent.Inc()
	}
}

// ObserveListenKeyRefresh counts a keepalive attempt.
func (m *Metrics) ObserveListenKeyRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.listenKey.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveREST(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.restRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.restDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) SetBreakerState(state int) {
	if m != nil {
		m.breakerState.Set(float64(state))
	}
}
