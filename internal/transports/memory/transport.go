// Package memory keeps delivered envelopes in memory. It backs the "memory"
// driver used for previews and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/lattiq/fluentmailer/internal/core"
)

// Transport stores every envelope it receives.
type Transport struct {
	mu        sync.Mutex
	envelopes []*core.Envelope
	reject    map[string]bool
}

// NewTransport creates a memory transport. The "reject" setting is a comma
// separated list of addresses the transport refuses.
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	t := New()
	for _, addr := range strings.Split(settings.Get("reject"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			t.Reject(addr)
		}
	}
	return t, nil
}

// New returns an empty memory transport.
func New() *Transport {
	return &Transport{reject: make(map[string]bool)}
}

// Reject makes the transport refuse addr.
func (t *Transport) Reject(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reject[strings.ToLower(addr)] = true
}

// Send records the envelope.
func (t *Transport) Send(_ context.Context, env *core.Envelope) (*core.Delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delivery := &core.Delivery{Transport: t.Name()}
	for _, rcpt := range env.Recipients {
		if t.reject[strings.ToLower(rcpt)] {
			delivery.Rejected = append(delivery.Rejected, rcpt)
			continue
		}
		delivery.Accepted = append(delivery.Accepted, rcpt)
	}

	if len(delivery.Accepted) == 0 {
		return delivery, core.NewTransportError(t.Name(), "all_recipients_rejected", "no recipient accepted the message")
	}

	t.envelopes = append(t.envelopes, env)
	return delivery, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "memory"
}

// Envelopes returns the envelopes delivered so far.
func (t *Transport) Envelopes() []*core.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*core.Envelope, len(t.envelopes))
	copy(out, t.envelopes)
	return out
}

// Last returns the most recent envelope, or nil.
func (t *Transport) Last() *core.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.envelopes) == 0 {
		return nil
	}
	return t.envelopes[len(t.envelopes)-1]
}

// Clear forgets every stored envelope.
func (t *Transport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.envelopes = nil
}
