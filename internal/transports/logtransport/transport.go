// Package logtransport writes messages to a zerolog logger instead of
// delivering them. It backs the "log" driver for development setups.
package logtransport

import (
	"context"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/lattiq/fluentmailer/internal/core"
)

// Transport logs every envelope it receives.
type Transport struct {
	logger  zerolog.Logger
	withRaw bool
}

// NewTransport creates a log transport writing through logger. Setting
// "raw" to "true" includes the full rendered message.
func NewTransport(logger zerolog.Logger, settings core.TransportSettings) (core.Transport, error) {
	return &Transport{
		logger:  logger,
		withRaw: settings.Get("raw") == "true",
	}, nil
}

// Send logs the envelope and accepts every recipient.
func (t *Transport) Send(_ context.Context, env *core.Envelope) (*core.Delivery, error) {
	ev := t.logger.Info().
		Str("channel", "MAILER").
		Str("from", env.From).
		Strs("recipients", env.Recipients).
		Str("subject", env.Subject).
		Int("attachments", len(env.Attachments)).
		Str("size", units.HumanSize(float64(len(env.Raw))))
	if t.withRaw {
		ev = ev.Str("raw", string(env.Raw))
	}
	ev.Msg("message captured by log transport")

	return &core.Delivery{
		Transport: t.Name(),
		Accepted:  append([]string(nil), env.Recipients...),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "log"
}
