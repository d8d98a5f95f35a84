package mailgun

import (
	"bytes"
	"context"
	"io"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/lattiq/fluentmailer/internal/core"
)

// Client is the part of the Mailgun client the transport needs.
type Client interface {
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// Transport implements core.Transport for Mailgun.
type Transport struct {
	client Client
	config core.TransportSettings
}

// NewTransport creates a new Mailgun transport.
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Mailgun API key is required")
	}

	domain := settings.Get("domain")
	if domain == "" {
		return nil, core.NewValidationError("domain", "Mailgun domain is required")
	}

	client := mailgun.NewMailgun(domain, apiKey)

	// Set base URL if provided (for EU customers)
	if baseURL := settings.Get("base_url"); baseURL != "" {
		client.SetAPIBase(baseURL)
	}

	return NewWithClient(client, settings), nil
}

// NewWithClient creates a transport around an existing client.
func NewWithClient(client Client, settings core.TransportSettings) *Transport {
	return &Transport{
		client: client,
		config: settings,
	}
}

// Send posts the rendered MIME message to Mailgun's messages.mime endpoint.
func (t *Transport) Send(ctx context.Context, env *core.Envelope) (*core.Delivery, error) {
	if len(env.Recipients) == 0 {
		return nil, core.NewTransportError(t.Name(), "no_recipients", "cannot send message without a recipient")
	}

	message := mailgun.NewMIMEMessage(io.NopCloser(bytes.NewReader(env.Raw)), env.Recipients...)

	if tag := t.config.Get("tag"); tag != "" {
		if err := message.AddTag(tag); err != nil {
			return nil, core.WrapTransportError(t.Name(), "tag_error", err)
		}
	}

	// Mailgun v4 returns the response message and the queued id
	_, id, err := t.client.Send(ctx, message)
	if err != nil {
		return nil, core.WrapTransportError(t.Name(), "send_failed", err)
	}

	return &core.Delivery{
		MessageID: id,
		Transport: t.Name(),
		Accepted:  append([]string(nil), env.Recipients...),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "mailgun"
}
