package mailer

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lattiq/fluentmailer/internal/transports/logtransport"
	"github.com/lattiq/fluentmailer/internal/transports/mailgun"
	"github.com/lattiq/fluentmailer/internal/transports/memory"
	"github.com/lattiq/fluentmailer/internal/transports/sendgrid"
	"github.com/lattiq/fluentmailer/internal/transports/sendmail"
	"github.com/lattiq/fluentmailer/internal/transports/ses"
	"github.com/lattiq/fluentmailer/internal/transports/smtp"
)

// MemoryTransport keeps delivered envelopes in memory.
type MemoryTransport = memory.Transport

// createTransport creates a transport instance based on type and settings.
func createTransport(transportType TransportType, settings TransportSettings, logger zerolog.Logger) (Transport, error) {
	if settings == nil {
		settings = TransportSettings{}
	}
	switch transportType {
	case TransportSMTP:
		return NewSMTPTransport(settings)
	case TransportSendmail:
		return NewSendmailTransport(settings)
	case TransportAWSSES:
		return NewSESTransport(settings)
	case TransportSendGrid:
		return NewSendGridTransport(settings)
	case TransportMailgun:
		return NewMailgunTransport(settings)
	case TransportLog:
		return logtransport.NewTransport(logger, settings)
	case TransportMemory:
		return memory.NewTransport(settings)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// NewSMTPTransport creates an SMTP transport. Settings: host, port,
// username, password, tls, starttls, tls_skip_verify, local_name, timeout.
func NewSMTPTransport(settings TransportSettings) (Transport, error) {
	return smtp.NewTransport(settings)
}

// NewSendmailTransport creates a transport piping to a sendmail binary.
// Settings: path, args.
func NewSendmailTransport(settings TransportSettings) (Transport, error) {
	return sendmail.NewTransport(settings)
}

// NewSESTransport creates an AWS SES transport. Settings: region,
// access_key, secret_key, configuration_set.
func NewSESTransport(settings TransportSettings) (Transport, error) {
	return ses.NewTransport(settings)
}

// NewSendGridTransport creates a SendGrid transport. Settings: api_key.
func NewSendGridTransport(settings TransportSettings) (Transport, error) {
	return sendgrid.NewTransport(settings)
}

// NewMailgunTransport creates a Mailgun transport. Settings: api_key,
// domain, base_url, tag.
func NewMailgunTransport(settings TransportSettings) (Transport, error) {
	return mailgun.NewTransport(settings)
}

// NewLogTransport creates a transport that only logs messages.
func NewLogTransport(logger zerolog.Logger) Transport {
	t, _ := logtransport.NewTransport(logger, TransportSettings{})
	return t
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return memory.New()
}
