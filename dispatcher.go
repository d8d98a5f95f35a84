package mailer

import (
	"context"
	"fmt"
)

// Dispatcher delivers messages through one transport and runs the plugins
// registered on it.
type Dispatcher struct {
	transport Transport
	plugins   []Plugin
}

// NewDispatcher returns a dispatcher bound to t.
func NewDispatcher(t Transport) *Dispatcher {
	return &Dispatcher{transport: t}
}

// Transport returns the bound transport.
func (d *Dispatcher) Transport() Transport {
	return d.transport
}

// RegisterPlugin adds p to every following Send.
func (d *Dispatcher) RegisterPlugin(p Plugin) {
	if p != nil {
		d.plugins = append(d.plugins, p)
	}
}

// Send renders m and hands it to the transport. It returns how many
// recipients were accepted and which were rejected. Partial rejection is not
// an error; zero accepted recipients is a *DeliveryError.
func (d *Dispatcher) Send(ctx context.Context, m *Message) (int, []string, error) {
	raw, err := m.Render()
	if err != nil {
		return 0, nil, fmt.Errorf("rendering message: %w", err)
	}

	evt := &SendEvent{
		Message:   m,
		Envelope:  m.envelope(raw),
		Transport: d.transport.Name(),
	}

	for _, p := range d.plugins {
		if err := p.BeforeSendPerformed(ctx, evt); err != nil {
			return 0, nil, err
		}
	}

	delivery, sendErr := d.transport.Send(ctx, evt.Envelope)
	evt.Delivery = delivery
	evt.Err = sendErr
	if sendErr == nil && (delivery == nil || len(delivery.Accepted) == 0) {
		evt.Err = &DeliveryError{Transport: evt.Transport, Rejected: rejectedOf(delivery)}
	}

	for _, p := range d.plugins {
		p.SendPerformed(ctx, evt)
	}

	if evt.Err != nil {
		// A failed send delivers to nobody, even when RCPT accepted everyone.
		failed := append([]string(nil), evt.Envelope.Recipients...)
		if de, ok := evt.Err.(*DeliveryError); ok {
			return 0, failed, de
		}
		return 0, failed, &DeliveryError{Transport: evt.Transport, Rejected: failed, Cause: evt.Err}
	}

	return len(delivery.Accepted), rejectedOf(delivery), nil
}

func rejectedOf(d *Delivery) []string {
	if d == nil || len(d.Rejected) == 0 {
		return nil
	}
	return append([]string(nil), d.Rejected...)
}
