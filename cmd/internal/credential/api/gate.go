package credentialapi

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// hashGate bounds concurrent Argon2id work. Each hash allocates the configured
// Argon2id memory, so unbounded fan-in would let a burst exhaust the host.
type hashGate struct {
	sem     *semaphore.Weighted
	wait    time.Duration
	metrics *Metrics
}

func newHashGate(n int64, wait time.Duration, m *Metrics) *hashGate {
	if n <= 0 {
		n = 1
	}
	return &hashGate{sem: semaphore.NewWeighted(n), wait: wait, metrics: m}
}

// do runs fn while holding a slot. It returns the acquisition error (context
// cancellation or wait timeout) without running fn when no slot frees up.
func (g *hashGate) do(ctx context.Context, op string, fn func(context.Context) error) error {
	acquireCtx := ctx
	if g.wait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, g.wait)
		defer cancel()
	}

	if err := g.sem.Acquire(acquireCtx, 1); err != nil {
		return errGateBusy
	}
	defer g.sem.Release(1)

	if g.metrics != nil {
		g.metrics.HashInFlight.Inc()
		defer g.metrics.HashInFlight.Dec()
		start := time.Now()
		defer func() { g.metrics.HashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()
	}

	return fn(ctx)
}
