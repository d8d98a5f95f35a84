package mailer

import (
	"context"

	"github.com/lattiq/fluentmailer/internal/core"
)

// Type aliases to re-export core types for the public API.
type (
	Transport         = core.Transport
	TransportSettings = core.TransportSettings
	Address           = core.Address
	Attachment        = core.Attachment
	Header            = core.Header
	Envelope          = core.Envelope
	Delivery          = core.Delivery
	Priority          = core.Priority
	ValidationError   = core.ValidationError
	TransportError    = core.TransportError
)

// Priority constants
const (
	PriorityHighest = core.PriorityHighest
	PriorityHigh    = core.PriorityHigh
	PriorityNormal  = core.PriorityNormal
	PriorityLow     = core.PriorityLow
	PriorityLowest  = core.PriorityLowest
)

// Error constructor functions
var (
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	NewTransportError           = core.NewTransportError
	IsTemporary                 = core.IsTemporary
)

// Extension points of the builder and the send pipeline.
type (
	// Plugin observes and may veto deliveries. Plugins registered on a
	// Builder apply to the next send only.
	Plugin interface {
		// BeforeSendPerformed runs before the transport is called. A non-nil
		// error aborts the delivery.
		BeforeSendPerformed(ctx context.Context, evt *SendEvent) error

		// SendPerformed runs after the transport returned.
		SendPerformed(ctx context.Context, evt *SendEvent)
	}

	// MessageMutator edits the builder and its message right before the
	// transport is resolved.
	MessageMutator interface {
		Mutate(b *Builder, m *Message) error
	}

	// SendHook replaces the standard delivery. Its result is returned to the
	// caller unchanged.
	SendHook interface {
		Send(ctx context.Context, d *Dispatcher, b *Builder) (int, error)
	}

	// AttachmentCustomizer adjusts an attachment before it is added.
	AttachmentCustomizer interface {
		Customize(a *Attachment, b *Builder)
	}

	// SignerConfigurer prepares an S/MIME signer for a message.
	SignerConfigurer interface {
		Configure(s *SMimeSigner) error
	}

	// TemplateEngine defines the interface for template rendering.
	TemplateEngine interface {
		// Render renders a template with the provided data.
		Render(templateName string, data interface{}) (string, error)

		// RegisterTemplate registers a template with the given name and content.
		RegisterTemplate(name string, content string) error

		// LoadTemplatesFromDir loads all templates from the specified directory.
		LoadTemplatesFromDir(dir string) error

		// IsHTML reports whether the named template produces HTML.
		IsHTML(templateName string) bool
	}
)

// MessageMutatorFunc adapts a function to MessageMutator.
type MessageMutatorFunc func(b *Builder, m *Message) error

// Mutate calls f(b, m).
func (f MessageMutatorFunc) Mutate(b *Builder, m *Message) error { return f(b, m) }

// SendHookFunc adapts a function to SendHook.
type SendHookFunc func(ctx context.Context, d *Dispatcher, b *Builder) (int, error)

// Send calls f(ctx, d, b).
func (f SendHookFunc) Send(ctx context.Context, d *Dispatcher, b *Builder) (int, error) {
	return f(ctx, d, b)
}

// AttachmentCustomizerFunc adapts a function to AttachmentCustomizer.
type AttachmentCustomizerFunc func(a *Attachment, b *Builder)

// Customize calls f(a, b).
func (f AttachmentCustomizerFunc) Customize(a *Attachment, b *Builder) { f(a, b) }

// SignerConfigurerFunc adapts a function to SignerConfigurer.
type SignerConfigurerFunc func(s *SMimeSigner) error

// Configure calls f(s).
func (f SignerConfigurerFunc) Configure(s *SMimeSigner) error { return f(s) }
