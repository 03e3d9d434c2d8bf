package httpx

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive outbound calls at least Interval apart.
// The first call proceeds immediately. A zero interval disables pacing.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer returns a Pacer allowing one call per interval.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{interval: interval, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Interval returns the configured minimum spacing.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
