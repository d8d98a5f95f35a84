package mailer

import (
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Builder composes one message at a time through chained calls and sends it
// with Send, Deliver or TrySend. A Builder is not safe for concurrent use;
// give each goroutine or request its own.
type Builder struct {
	config    Config
	registry  *Registry
	templates TemplateEngine
	logger    zerolog.Logger
	logCloser io.Closer
	tracer    trace.Tracer

	// transport is the instance default set by UseTransport.
	transport Transport

	// plugins installed from config on every send.
	standing []Plugin

	maxAttachment int64

	message   *Message
	lines     []string
	lineBody  bool
	plugins   []Plugin
	err       error
	lastError string
	fails     []string
}

// New creates a builder with the given configuration. Call Close when the
// builder is no longer needed.
func New(config Config, opts ...Option) (*Builder, error) {
	for _, opt := range opts {
		opt(&config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger, closer, err := newLogger(config.Monitoring.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	b := &Builder{
		config:    config,
		logger:    logger,
		logCloser: closer,
	}

	if config.Monitoring.Tracing.Enabled {
		b.tracer = otel.Tracer("github.com/lattiq/fluentmailer")
	} else {
		b.tracer = noop.NewTracerProvider().Tracer("")
	}

	b.maxAttachment, _ = config.maxAttachmentBytes()

	registry, err := NewRegistryFromConfig(config.Transports, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.registry = registry

	if config.Templates.Enabled {
		engine, err := NewTemplateEngine(config.Templates)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create template engine: %w", err)
		}
		b.templates = engine
	}

	if config.RateLimit.Enabled {
		b.standing = append(b.standing, NewThrottlerPlugin(config.RateLimit))
	}
	if config.CircuitBreaker.Enabled {
		b.standing = append(b.standing, NewCircuitBreakerPlugin(config.CircuitBreaker))
	}

	return b.Init(), nil
}

// Default returns a builder for DefaultConfig with opts applied. It panics
// only when the options produce an invalid configuration.
func Default(opts ...Option) *Builder {
	b, err := New(DefaultConfig(), opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Init replaces the message with a fresh one carrying the configured sender,
// content type and charset, and drops pending lines, plugins and compose
// errors. LastError and Fails keep their values.
func (b *Builder) Init() *Builder {
	b.message = NewMessage(b.config.Mail)
	b.lines = nil
	b.lineBody = false
	b.plugins = nil
	b.err = nil
	return b
}

// Close releases the log file opened for the builder, if any.
func (b *Builder) Close() error {
	if b.logCloser != nil {
		err := b.logCloser.Close()
		b.logCloser = nil
		return err
	}
	return nil
}

// UseTransport sets the transport used when a send selects none. Nil clears it.
func (b *Builder) UseTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// Subject sets the subject. Placeholders in it are not substituted.
func (b *Builder) Subject(subject string) *Builder {
	b.message.SetSubject(subject)
	return b
}

// From sets the sender.
func (b *Builder) From(address string, name ...string) *Builder {
	b.message.SetFrom(Address{Email: address, Name: firstOf(name)})
	return b
}

// To replaces the recipients with address.
func (b *Builder) To(address string, name ...string) *Builder {
	b.message.SetTo(Address{Email: address, Name: firstOf(name)})
	return b
}

// AddTo adds a recipient, keeping the existing ones.
func (b *Builder) AddTo(address string, name ...string) *Builder {
	b.message.AddTo(Address{Email: address, Name: firstOf(name)})
	return b
}

// Cc adds a carbon copy recipient.
func (b *Builder) Cc(address string, name ...string) *Builder {
	b.message.AddCc(Address{Email: address, Name: firstOf(name)})
	return b
}

// Bcc adds a blind carbon copy recipient.
func (b *Builder) Bcc(address string, name ...string) *Builder {
	b.message.AddBcc(Address{Email: address, Name: firstOf(name)})
	return b
}

// ReplyTo adds a Reply-To address.
func (b *Builder) ReplyTo(address string, name ...string) *Builder {
	b.message.AddReplyTo(Address{Email: address, Name: firstOf(name)})
	return b
}

// HTML sets an HTML body, substituting params first when there are any.
func (b *Builder) HTML(content string, params Params, delims ...Delimiters) *Builder {
	b.message.SetBody(ContentHTML, b.substitute(content, params, delims))
	b.lineBody = false
	return b
}

// Text sets a plain text body, substituting params first when there are any.
func (b *Builder) Text(content string, params Params, delims ...Delimiters) *Builder {
	b.message.SetBody(ContentPlain, b.substitute(content, params, delims))
	b.lineBody = false
	return b
}

// Raw is Text.
func (b *Builder) Raw(content string, params Params, delims ...Delimiters) *Builder {
	return b.Text(content, params, delims...)
}

// Line appends a line to the plain text body assembled at send time.
func (b *Builder) Line(content string, params Params, delims ...Delimiters) *Builder {
	b.lines = append(b.lines, b.substitute(content, params, delims))
	return b
}

// View renders a registered template with data and uses it as the body.
func (b *Builder) View(name string, data any) *Builder {
	if b.templates == nil {
		b.fail(ErrNoTemplateEngine)
		return b
	}
	content, err := b.templates.Render(name, data)
	if err != nil {
		b.fail(err)
		return b
	}
	if b.templates.IsHTML(name) {
		b.message.SetBody(ContentHTML, content)
	} else {
		b.message.SetBody(ContentPlain, content)
	}
	b.lineBody = false
	return b
}

// Attach adds the file at path, named after its last path segment.
func (b *Builder) Attach(path string) *Builder {
	a, ok := b.loadAttachment(path)
	if !ok {
		return b
	}
	a.Filename = EncodeFilename(baseName(path))
	b.message.Attach(a)
	return b
}

// AttachAs adds the file at path under a different name.
func (b *Builder) AttachAs(path, name string) *Builder {
	a, ok := b.loadAttachment(path)
	if !ok {
		return b
	}
	a.Filename = EncodeFilename(name)
	b.message.Attach(a)
	return b
}

// AttachWith adds the file at path and lets c adjust the attachment first.
// The attachment starts out named after the last path segment.
func (b *Builder) AttachWith(path string, c AttachmentCustomizer) *Builder {
	a, ok := b.loadAttachment(path)
	if !ok {
		return b
	}
	a.Filename = EncodeFilename(baseName(path))
	if c != nil {
		c.Customize(a, b)
	}
	b.message.Attach(a)
	return b
}

// Charset sets the message character set.
func (b *Builder) Charset(charset string) *Builder {
	b.message.SetCharset(charset)
	return b
}

// LineLength sets the longest body line sent without quoted-printable encoding.
func (b *Builder) LineLength(n int) *Builder {
	b.message.SetLineLength(n)
	return b
}

// Priority sets the X-Priority header.
func (b *Builder) Priority(p Priority) *Builder {
	b.message.SetPriority(p)
	return b
}

// ReadReceiptTo requests a read receipt sent to address.
func (b *Builder) ReadReceiptTo(address string) *Builder {
	b.message.SetReadReceiptTo(address)
	return b
}

// Header sets a custom header, replacing one with the same name.
func (b *Builder) Header(name, value string) *Builder {
	b.message.SetHeader(name, value)
	return b
}

// RegisterPlugin adds p to the next send only.
func (b *Builder) RegisterPlugin(p Plugin) *Builder {
	if p != nil {
		b.plugins = append(b.plugins, p)
	}
	return b
}

// SignCertificate signs the message with S/MIME. c receives a new signer to
// configure. A nil c does nothing.
func (b *Builder) SignCertificate(c SignerConfigurer) *Builder {
	if c == nil {
		return b
	}
	signer := NewSMimeSigner()
	if err := c.Configure(signer); err != nil {
		b.fail(fmt.Errorf("configuring signer: %w", err))
		return b
	}
	b.message.AttachSigner(signer)
	return b
}

// Headers returns the message headers in order.
func (b *Builder) Headers() []Header {
	return b.message.Headers()
}

// HeadersString returns the message headers as CRLF-terminated lines.
func (b *Builder) HeadersString() string {
	return b.message.HeadersString()
}

// Message returns the message being composed.
func (b *Builder) Message() *Message {
	return b.message
}

// Registry returns the named transports.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Templates returns the template engine, or nil when templates are disabled.
func (b *Builder) Templates() TemplateEngine {
	return b.templates
}

// Logger returns the builder's logger.
func (b *Builder) Logger() zerolog.Logger {
	return b.logger
}

// Err returns the first compose error recorded since the last send.
func (b *Builder) Err() error {
	return b.err
}

// LastError returns the error message of the last send, or "".
func (b *Builder) LastError() string {
	return b.lastError
}

// Fails returns the recipients the last send could not deliver to.
func (b *Builder) Fails() []string {
	return append([]string(nil), b.fails...)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// substitute resolves each delimiter side as call override, then config,
// then the default.
func (b *Builder) substitute(content string, params Params, delims []Delimiters) string {
	if len(params) == 0 {
		return content
	}
	var d Delimiters
	if len(delims) > 0 {
		d = delims[0]
	}
	return Substitute(content, params, d.or(b.config.delimiters()))
}

func (b *Builder) loadAttachment(path string) (*Attachment, bool) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		err = fmt.Errorf("is a directory")
	}
	if err != nil {
		b.fail(&AttachmentError{Path: path, Cause: err})
		return nil, false
	}
	if b.maxAttachment > 0 && info.Size() > b.maxAttachment {
		b.fail(&AttachmentError{
			Path:     path,
			Cause:    fmt.Errorf("%s exceeds limit of %s", units.BytesSize(float64(info.Size())), units.BytesSize(float64(b.maxAttachment))),
			tooLarge: true,
		})
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		b.fail(&AttachmentError{Path: path, Cause: err})
		return nil, false
	}
	return &Attachment{Path: path, Data: data}, true
}

// EncodeFilename MIME-word encodes a display filename. ASCII names are
// returned unchanged.
func EncodeFilename(name string) string {
	return mime.BEncoding.Encode("UTF-8", name)
}

// baseName returns the last segment of path, treating both / and \ as
// separators.
func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
