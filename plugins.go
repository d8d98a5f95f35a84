package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// SendEvent describes one delivery attempt to plugins.
type SendEvent struct {
	// Message is the message being delivered.
	Message *Message

	// Envelope is what the transport receives.
	Envelope *Envelope

	// Transport is the name of the resolved transport.
	Transport string

	// Delivery is the transport outcome. Nil before the send.
	Delivery *Delivery

	// Err is the transport error. Nil before the send.
	Err error
}

// LoggerPlugin writes one log line per delivery attempt.
type LoggerPlugin struct {
	logger zerolog.Logger
}

// NewLoggerPlugin creates a plugin logging through logger.
func NewLoggerPlugin(logger zerolog.Logger) *LoggerPlugin {
	return &LoggerPlugin{logger: logger.With().Str("channel", "MAILER").Logger()}
}

// BeforeSendPerformed logs the outgoing message.
func (p *LoggerPlugin) BeforeSendPerformed(_ context.Context, evt *SendEvent) error {
	p.logger.Debug().
		Str("transport", evt.Transport).
		Str("message_id", evt.Message.MessageID()).
		Strs("recipients", evt.Envelope.Recipients).
		Msg("sending message")
	return nil
}

// SendPerformed logs the outcome.
func (p *LoggerPlugin) SendPerformed(_ context.Context, evt *SendEvent) {
	if evt.Err != nil {
		p.logger.Error().
			Err(evt.Err).
			Str("transport", evt.Transport).
			Str("message_id", evt.Message.MessageID()).
			Msg("message not sent")
		return
	}

	ev := p.logger.Info().
		Str("transport", evt.Transport).
		Str("message_id", evt.Message.MessageID())
	if evt.Delivery != nil {
		ev = ev.Int("accepted", len(evt.Delivery.Accepted)).
			Strs("rejected", evt.Delivery.Rejected)
	}
	ev.Msg("message sent")
}
