package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryptowatch/clock"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(from, to State)
	Clock         clock.Clock
}

// Breaker stops REST traffic after FailThreshold consecutive failures. After Timeout it lets
// trial requests through (half-open) and closes again after SuccessThreshold consecutive successes.
type Breaker struct {
	mu               sync.Mutex
	state            atomic.Int32
	failures         int
	successes        int
	openedAt         time.Time
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	onStateChange    func(from, to State)
	clock            clock.Clock
	metrics          *Metrics
}

type Metrics struct {
	totalRequests   atomic.Int64
	rejected        atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	stateChanges    atomic.Int32
}

func New(config Config) *Breaker {
	b := &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		onStateChange:    config.OnStateChange,
		clock:            config.Clock,
		metrics:          &Metrics{},
	}
	if b.clock == nil {
		b.clock = clock.New()
	}
	b.state.Store(int32(StateClosed))
	return b
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.metrics.totalRequests.Add(1)

	b.mu.Lock()
	from := b.State()
	allowed := true
	if from == StateOpen {
		if b.clock.Now().Sub(b.openedAt) >= b.timeout {
			b.setState(StateHalfOpen)
			b.successes = 0
		} else {
			allowed = false
		}
	}
	to := b.State()
	b.mu.Unlock()

	if !allowed {
		b.metrics.rejected.Add(1)
	}
	b.notify(from, to)
	return allowed
}

// Record reports the outcome of a call that Allow let through.
func (b *Breaker) Record(success bool) {
	if success {
		b.metrics.successRequests.Add(1)
	} else {
		b.metrics.failedRequests.Add(1)
	}

	b.mu.Lock()
	from := b.State()
	switch from {
	case StateClosed:
		if success {
			b.failures = 0
		} else {
			b.failures++
			if b.failures >= b.failThreshold {
				b.open()
			}
		}
	case StateHalfOpen:
		if success {
			b.successes++
			if b.successes >= b.successThreshold {
				b.setState(StateClosed)
				b.failures = 0
				b.successes = 0
			}
		} else {
			b.open()
		}
	case StateOpen:
		// late result of a call admitted before the breaker opened
	}
	to := b.State()
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) open() {
	b.openedAt = b.clock.Now()
	b.successes = 0
	b.setState(StateOpen)
}

func (b *Breaker) setState(s State) {
	if State(b.state.Swap(int32(s))) != s {
		b.metrics.stateChanges.Add(1)
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.State()
	b.setState(StateClosed)
	b.failures = 0
	b.successes = 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

func (b *Breaker) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:    b.metrics.totalRequests.Load(),
		RejectedRequests: b.metrics.rejected.Load(),
		SuccessRequests:  b.metrics.successRequests.Load(),
		FailedRequests:   b.metrics.failedRequests.Load(),
		StateChanges:     b.metrics.stateChanges.Load(),
		CurrentState:     b.State().String(),
	}
}

type MetricsSnapshot struct {
	TotalRequests    int64
	RejectedRequests int64
	SuccessRequests  int64
	FailedRequests   int64
	StateChanges     int32
	CurrentState     string
}
