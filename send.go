package mailer

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SendResult is the outcome of TrySend.
type SendResult struct {
	// OK reports whether the message was handed to the transport and at
	// least one recipient was accepted.
	OK bool

	// Delivered is the number of accepted recipients.
	Delivered int

	// Failed lists the recipients that were not accepted.
	Failed []string

	// Error is the failure message, empty on success.
	Error string
}

type sendOptions struct {
	mutator  MessageMutator
	selector TransportSelector
	hook     SendHook
}

// SendOption customizes one send.
type SendOption func(*sendOptions)

// MutateWith runs m after the line buffer is flushed and before the
// transport is resolved.
func MutateWith(m MessageMutator) SendOption {
	return func(o *sendOptions) {
		o.mutator = m
	}
}

// Via selects the transport for this send.
func Via(sel TransportSelector) SendOption {
	return func(o *sendOptions) {
		o.selector = sel
	}
}

// SendWith hands delivery to h instead of the dispatcher's Send.
func SendWith(h SendHook) SendOption {
	return func(o *sendOptions) {
		o.hook = h
	}
}

// Send delivers the message. In debug mode it behaves like Deliver and
// returns the error; otherwise it behaves like TrySend and the error is nil.
func (b *Builder) Send(ctx context.Context, opts ...SendOption) (SendResult, error) {
	if b.config.Mail.Debug {
		n, err := b.Deliver(ctx, opts...)
		return b.result(n, err), err
	}
	return b.TrySend(ctx, opts...), nil
}

// Deliver sends the message and returns the number of accepted recipients.
// Every failure is a *MailerError naming the pipeline stage.
func (b *Builder) Deliver(ctx context.Context, opts ...SendOption) (int, error) {
	return b.run(ctx, opts)
}

// TrySend sends the message and never returns an error; failures are
// reported in the result and through LastError and Fails.
func (b *Builder) TrySend(ctx context.Context, opts ...SendOption) SendResult {
	n, err := b.run(ctx, opts)
	return b.result(n, err)
}

func (b *Builder) result(n int, err error) SendResult {
	res := SendResult{
		OK:        err == nil,
		Delivered: n,
		Failed:    b.Fails(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// run is the send pipeline: composing, flushing, resolving, dispatching.
func (b *Builder) run(ctx context.Context, opts []SendOption) (delivered int, err error) {
	var o sendOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	ctx, span := b.tracer.Start(ctx, "mailer.Builder.Send")
	defer span.End()

	b.lastError = ""
	b.fails = nil
	plugins := b.plugins
	b.plugins = nil
	composeErr := b.err
	b.err = nil

	defer func() {
		b.lines = nil
		if err != nil {
			b.lastError = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, "send failed")
			return
		}
		span.SetAttributes(attribute.Int("mailer.delivered", delivered))
		span.SetStatus(codes.Ok, "message sent")
	}()

	if composeErr != nil {
		return 0, &MailerError{Stage: StageComposing, Err: composeErr}
	}

	b.flush()
	if o.mutator != nil {
		ct, body := b.message.ContentType(), b.message.Body()
		if err := o.mutator.Mutate(b, b.message); err != nil {
			return 0, &MailerError{Stage: StageFlushing, Err: err}
		}
		if b.message.ContentType() != ct || b.message.Body() != body {
			b.lineBody = false
		}
	}

	transport, err := b.resolveTransport(o.selector)
	if err != nil {
		return 0, &MailerError{Stage: StageResolving, Err: err}
	}

	span.SetAttributes(
		attribute.String("mailer.transport", transport.Name()),
		attribute.String("mailer.selector", o.selector.String()),
		attribute.String("mailer.from", b.message.From().Email),
		attribute.Int("mailer.recipients", len(b.message.Recipients())),
		attribute.Int("mailer.attachments", len(b.message.attachments)),
	)

	d := NewDispatcher(transport)
	if b.config.Mail.Debug {
		b.logger.Info().
			Str("channel", "MAILER").
			Str("transport", transport.Name()).
			Str("headers", b.HeadersString()).
			Msg("dispatching message")
	}
	for _, p := range b.standing {
		d.RegisterPlugin(p)
	}
	for _, p := range plugins {
		d.RegisterPlugin(p)
	}
	defer b.message.renew()

	if o.hook != nil {
		n, err := o.hook.Send(ctx, d, b)
		if err != nil {
			return n, &MailerError{Stage: StageDispatching, Err: err}
		}
		return n, nil
	}

	n, rejected, err := d.Send(ctx, b.message)
	b.fails = rejected
	if err != nil {
		return n, &MailerError{Stage: StageDispatching, Err: err}
	}
	return n, nil
}

// flush moves the line buffer into the body. A body built from lines is
// consumed, so the next send without new lines has an empty plain body.
func (b *Builder) flush() {
	if len(b.lines) > 0 {
		b.message.SetBody(ContentPlain, strings.Join(b.lines, "\r\n"))
		b.lines = nil
		b.lineBody = true
		return
	}
	if b.lineBody {
		b.message.SetBody(ContentPlain, "")
	}
}
