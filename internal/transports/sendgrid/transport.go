package sendgrid

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lattiq/fluentmailer/internal/core"
)

// reservedHeaders are managed by SendGrid itself and rejected in "headers".
var reservedHeaders = map[string]bool{
	"from": true, "to": true, "cc": true, "bcc": true, "subject": true,
	"reply-to": true, "content-type": true, "content-transfer-encoding": true,
	"mime-version": true, "date": true, "message-id": true,
}

// Client is the part of the SendGrid client the transport needs.
type Client interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Transport implements core.Transport for SendGrid.
type Transport struct {
	client Client
	config core.TransportSettings
}

// NewTransport creates a new SendGrid transport.
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "SendGrid API key is required")
	}

	return NewWithClient(sendgrid.NewSendClient(apiKey), settings), nil
}

// NewWithClient creates a transport around an existing client.
func NewWithClient(client Client, settings core.TransportSettings) *Transport {
	return &Transport{
		client: client,
		config: settings,
	}
}

// Send sends a single message using the SendGrid v3 API. The API takes
// structured fields rather than raw MIME, so the envelope's structured view
// is used.
func (t *Transport) Send(ctx context.Context, env *core.Envelope) (*core.Delivery, error) {
	if len(env.Recipients) == 0 {
		return nil, core.NewTransportError(t.Name(), "no_recipients", "at least one recipient is required")
	}
	if env.Signed {
		return nil, core.NewTransportError(t.Name(), "signing_unsupported",
			"S/MIME signed messages cannot be sent through the structured API")
	}

	message := t.buildMessage(env)

	response, err := t.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, core.WrapTransportError(t.Name(), "send_error", err)
	}

	// Check response status
	if response.StatusCode >= 400 {
		return nil, &core.TransportError{
			Transport:   t.Name(),
			Code:        "api_error",
			Message:     "SendGrid API error: " + response.Body,
			StatusCode:  response.StatusCode,
			IsTemporary: response.StatusCode == 429 || response.StatusCode >= 500,
		}
	}

	// Extract message ID from headers (SendGrid provides X-Message-Id)
	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}

	return &core.Delivery{
		MessageID: messageID,
		Transport: t.Name(),
		Accepted:  append([]string(nil), env.Recipients...),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "sendgrid"
}

func (t *Transport) buildMessage(env *core.Envelope) *mail.SGMailV3 {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(env.Sender.Name, env.Sender.Email))
	message.Subject = env.Subject

	if len(env.To) > 0 {
		personalization := mail.NewPersonalization()
		for _, recipient := range env.To {
			personalization.AddTos(mail.NewEmail(recipient.Name, recipient.Email))
		}
		for _, recipient := range env.CC {
			personalization.AddCCs(mail.NewEmail(recipient.Name, recipient.Email))
		}
		for _, recipient := range env.BCC {
			personalization.AddBCCs(mail.NewEmail(recipient.Name, recipient.Email))
		}
		message.AddPersonalizations(personalization)
	} else {
		// The API requires a To in every personalization, so Cc and Bcc only
		// messages go out as one copy per recipient.
		for _, recipient := range append(append([]core.Address(nil), env.CC...), env.BCC...) {
			personalization := mail.NewPersonalization()
			personalization.AddTos(mail.NewEmail(recipient.Name, recipient.Email))
			message.AddPersonalizations(personalization)
		}
	}

	if len(env.ReplyTo) > 0 {
		message.SetReplyTo(mail.NewEmail(env.ReplyTo[0].Name, env.ReplyTo[0].Email))
	}

	if text := env.TextBody(); text != "" {
		message.AddContent(mail.NewContent("text/plain", text))
	}
	if html := env.HTMLBody(); html != "" {
		message.AddContent(mail.NewContent("text/html", html))
	}

	for _, h := range env.Headers {
		if reservedHeaders[strings.ToLower(h.Name)] {
			continue
		}
		message.SetHeader(h.Name, h.Value)
	}

	for i := range env.Attachments {
		att := &env.Attachments[i]
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		a.SetType(att.DetectContentType())
		a.SetFilename(att.DisplayName())
		if att.Inline {
			a.SetDisposition("inline")
			a.SetContentID(att.ContentID)
		} else {
			a.SetDisposition("attachment")
		}
		message.AddAttachment(a)
	}

	return message
}
