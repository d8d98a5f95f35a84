package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func sendEvent(recipients ...string) *SendEvent {
	m := NewMessage(MailConfig{})
	for _, r := range recipients {
		m.AddTo(Address{Email: r})
	}
	return &SendEvent{Message: m, Envelope: m.envelope(nil), Transport: "memory"}
}

func TestThrottlerPlugin(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	th := NewThrottlerPlugin(RateLimitConfig{Rate: 1, Period: time.Second, Burst: 2})
	th.now = clock.Now

	ctx := context.Background()
	evt := sendEvent("ana@example.com")

	require.NoError(t, th.BeforeSendPerformed(ctx, evt))
	require.NoError(t, th.BeforeSendPerformed(ctx, evt))
	assert.InDelta(t, 0, th.Available(), 1e-9)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := th.BeforeSendPerformed(cancelled, evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.InDelta(t, 0, th.Available(), 1e-9)

	clock.Advance(time.Second)
	assert.InDelta(t, 1, th.Available(), 1e-9)

	clock.Advance(time.Hour)
	assert.InDelta(t, 2, th.Available(), 1e-9)
}

func TestThrottlerPlugin_PerRecipient(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	th := NewThrottlerPlugin(RateLimitConfig{Rate: 10, Period: time.Second, Burst: 5, PerRecipient: true})
	th.now = clock.Now

	evt := sendEvent("a@example.com", "b@example.com", "c@example.com")
	require.NoError(t, th.BeforeSendPerformed(context.Background(), evt))
	assert.InDelta(t, 2, th.Available(), 1e-9)
}

func TestThrottlerPlugin_CancelledWaitReturnsTokens(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	th := NewThrottlerPlugin(RateLimitConfig{Rate: 1, Period: time.Minute, Burst: 1})
	th.now = clock.Now

	evt := sendEvent("ana@example.com")
	require.NoError(t, th.BeforeSendPerformed(context.Background(), evt))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := th.BeforeSendPerformed(ctx, evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.InDelta(t, 0, th.Available(), 1e-9)
}

func TestThrottlerPlugin_WaitsForToken(t *testing.T) {
	t.Parallel()

	th := NewThrottlerPlugin(RateLimitConfig{Rate: 100, Period: time.Second, Burst: 1})
	ctx := context.Background()
	evt := sendEvent("ana@example.com")

	require.NoError(t, th.BeforeSendPerformed(ctx, evt))

	start := time.Now()
	require.NoError(t, th.BeforeSendPerformed(ctx, evt))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestCircuitBreakerPlugin(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := NewCircuitBreakerPlugin(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})
	cb.now = clock.Now

	ctx := context.Background()
	ok := sendEvent("ana@example.com")
	failed := sendEvent("ana@example.com")
	failed.Err = errors.New("relay down")

	assert.Equal(t, CircuitBreakerClosed, cb.State())

	cb.SendPerformed(ctx, failed)
	assert.Equal(t, CircuitBreakerClosed, cb.State())
	assert.Equal(t, 1, cb.FailureCount())

	cb.SendPerformed(ctx, failed)
	assert.Equal(t, CircuitBreakerOpen, cb.State())
	assert.ErrorIs(t, cb.BeforeSendPerformed(ctx, ok), ErrCircuitBreakerOpen)

	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.BeforeSendPerformed(ctx, ok))
	assert.Equal(t, CircuitBreakerHalfOpen, cb.State())

	cb.SendPerformed(ctx, failed)
	assert.Equal(t, CircuitBreakerOpen, cb.State())

	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.BeforeSendPerformed(ctx, ok))
	cb.SendPerformed(ctx, ok)
	assert.Equal(t, CircuitBreakerHalfOpen, cb.State())
	cb.SendPerformed(ctx, ok)
	assert.Equal(t, CircuitBreakerClosed, cb.State())
	assert.Zero(t, cb.FailureCount())
}

func TestCircuitBreakerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitBreakerClosed.String())
	assert.Equal(t, "open", CircuitBreakerOpen.String())
	assert.Equal(t, "half-open", CircuitBreakerHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(42).String())
}

func TestLoggerPlugin(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewLoggerPlugin(zerolog.New(&buf))
	ctx := context.Background()

	evt := sendEvent("ana@example.com")
	require.NoError(t, p.BeforeSendPerformed(ctx, evt))

	evt.Delivery = &Delivery{Accepted: []string{"ana@example.com"}}
	p.SendPerformed(ctx, evt)
	assert.Contains(t, buf.String(), `"channel":"MAILER"`)
	assert.Contains(t, buf.String(), `"message":"message sent"`)
	assert.Contains(t, buf.String(), `"accepted":1`)

	buf.Reset()
	evt.Err = errors.New("relay down")
	p.SendPerformed(ctx, evt)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "relay down")
}

func TestLoggerPlugin_OnBuilder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b, _ := newTestBuilder(t, WithLogWriter(&buf))

	_, err := b.To("ana@example.com").
		RegisterPlugin(NewLoggerPlugin(b.Logger())).
		Deliver(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"mailer"`)
	assert.Contains(t, buf.String(), "message sent")
}

func TestDispatcher_Send(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := NewMemoryTransport()
	d := NewDispatcher(mem)
	assert.Same(t, mem, d.Transport())

	m := NewMessage(MailConfig{From: Address{Email: "noreply@example.com"}})
	m.SetTo(Address{Email: "ana@example.com"})
	m.AddCc(Address{Email: "bounce@example.com"})
	mem.Reject("bounce@example.com")

	p := &recordingPlugin{}
	d.RegisterPlugin(p)
	d.RegisterPlugin(nil)

	n, rejected, err := d.Send(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"bounce@example.com"}, rejected)
	assert.Equal(t, 1, p.before)
	assert.Equal(t, 1, p.after)
	assert.Equal(t, "memory", p.last.Transport)
	assert.NotEmpty(t, mem.Last().Raw)
}
