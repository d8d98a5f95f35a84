package mailer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ThrottlerPlugin delays deliveries once the burst is used up. A send waits
// for its tokens or fails with ErrRateLimited when the context ends first,
// handing the reserved tokens back.
type ThrottlerPlugin struct {
	config  RateLimitConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottlerPlugin creates a throttler with a full bucket.
func NewThrottlerPlugin(config RateLimitConfig) *ThrottlerPlugin {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Period <= 0 {
		config.Period = time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &ThrottlerPlugin{
		config:  config,
		limiter: rate.NewLimiter(rate.Every(config.Period/time.Duration(config.Rate)), config.Burst),
		now:     time.Now,
	}
}

// BeforeSendPerformed takes one token per message, or one per recipient when
// PerRecipient is set.
func (t *ThrottlerPlugin) BeforeSendPerformed(ctx context.Context, evt *SendEvent) error {
	needed := 1
	if t.config.PerRecipient && evt.Envelope != nil && len(evt.Envelope.Recipients) > 0 {
		needed = len(evt.Envelope.Recipients)
	}
	if needed > t.config.Burst {
		needed = t.config.Burst
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	now := t.now()
	r := t.limiter.ReserveN(now, needed)
	if !r.OK() {
		return fmt.Errorf("%w: %d tokens exceed burst %d", ErrRateLimited, needed, t.limiter.Burst())
	}
	wait := r.DelayFrom(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(t.now())
		return fmt.Errorf("%w: %v", ErrRateLimited, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// SendPerformed does nothing.
func (t *ThrottlerPlugin) SendPerformed(context.Context, *SendEvent) {}

// Available returns the tokens currently in the bucket. It is negative while
// sends are waiting on reservations.
func (t *ThrottlerPlugin) Available() float64 {
	return t.limiter.TokensAt(t.now())
}
