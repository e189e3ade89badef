package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a global request weight budget plus an independent budget per bucket.
// The REST gateway uses one bucket per endpoint path.
type RateLimiter struct {
	global   *rate.Limiter
	buckets  sync.Map
	requests int
	period   time.Duration
	metrics  *Metrics
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	bucketCount     atomic.Int32
}

// New creates a new RateLimiter allowing requests units of weight per period, globally and per bucket.
func New(requests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		global:   newLimiter(requests, period),
		requests: requests,
		period:   period,
		metrics:  &Metrics{},
	}
}

func newLimiter(requests int, period time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(requests)/period.Seconds()), requests)
}

// Wait blocks until weight units are available in the global budget or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, weight int) error {
	return r.wait(ctx, weight, r.global)
}

// WaitBucket blocks until weight units are available in both the global budget and the named
// bucket. Buckets are created on demand with the default limit.
func (r *RateLimiter) WaitBucket(ctx context.Context, bucket string, weight int) error {
	return r.wait(ctx, weight, r.global, r.getBucket(bucket))
}

func (r *RateLimiter) wait(ctx context.Context, weight int, limiters ...*rate.Limiter) error {
	r.metrics.totalRequests.Add(1)
	if weight < 1 {
		weight = 1
	}
	for _, l := range limiters {
		if weight > l.Burst() {
			r.metrics.deniedRequests.Add(1)
			return fmt.Errorf("request weight %d exceeds limit %d", weight, l.Burst())
		}
		if err := l.WaitN(ctx, weight); err != nil {
			r.metrics.deniedRequests.Add(1)
			return err
		}
	}
	r.metrics.allowedRequests.Add(1)
	return nil
}

// Allow returns true if the global rate limiter permits a request immediately.
func (r *RateLimiter) Allow() bool {
	return r.allow(r.global)
}

// AllowBucket returns true if the named bucket permits a request immediately.
func (r *RateLimiter) AllowBucket(bucket string) bool {
	return r.allow(r.getBucket(bucket))
}

func (r *RateLimiter) allow(l *rate.Limiter) bool {
	r.metrics.totalRequests.Add(1)
	if l.Allow() {
		r.metrics.allowedRequests.Add(1)
		return true
	}
	r.metrics.deniedRequests.Add(1)
	return false
}

func (r *RateLimiter) getBucket(bucket string) *rate.Limiter {
	if v, ok := r.buckets.Load(bucket); ok {
		return v.(*rate.Limiter)
	}

	actual, loaded := r.buckets.LoadOrStore(bucket, newLimiter(r.requests, r.period))
	if !loaded {
		r.metrics.bucketCount.Add(1)
	}
	return actual.(*rate.Limiter)
}

// SetBucketLimit overrides the limit of one bucket, creating it if needed.
func (r *RateLimiter) SetBucketLimit(bucket string, requests int, period time.Duration) {
	limiter := r.getBucket(bucket)
	limiter.SetLimit(rate.Limit(float64(requests) / period.Seconds()))
	limiter.SetBurst(requests)
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   r.metrics.totalRequests.Load(),
		AllowedRequests: r.metrics.allowedRequests.Load(),
		DeniedRequests:  r.metrics.deniedRequests.Load(),
		BucketCount:     r.metrics.bucketCount.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the total number of rate limit checks performed.
	TotalRequests int64
	// AllowedRequests is the number of requests that were allowed.
	AllowedRequests int64
	// DeniedRequests is the number of requests that were denied.
	DeniedRequests int64
	// BucketCount is the number of rate limit buckets in use.
	BucketCount int32
}
