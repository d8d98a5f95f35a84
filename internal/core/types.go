package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Transport defines the interface for delivery channels.
// Implementations hand a fully composed message to SMTP servers, local
// sendmail binaries or HTTP mail APIs.
type Transport interface {
	// Send delivers the envelope. Recipients the channel refused are reported
	// in Delivery.Rejected; an error means nothing was delivered.
	Send(ctx context.Context, env *Envelope) (*Delivery, error)

	// Name returns the transport's name for identification and logging.
	Name() string
}

// TransportSettings represents configuration settings for a transport driver.
type TransportSettings map[string]string

// Get retrieves a configuration value by key.
func (ts TransportSettings) Get(key string) string {
	return ts[key]
}

// Set sets a configuration value.
func (ts TransportSettings) Set(key, value string) {
	ts[key] = value
}

// Address represents an email address with optional display name.
type Address struct {
	Name  string `json:"name" yaml:"name"`     // Display name (optional)
	Email string `json:"email" yaml:"address"` // Email address (required)
}

// String returns the formatted email address.
// If Name is provided, returns "Name <email@domain.com>"
// Otherwise returns just "email@domain.com"
func (a Address) String() string {
	if a.Name != "" {
		return mime.QEncoding.Encode("UTF-8", a.Name) + " <" + a.Email + ">"
	}
	return a.Email
}

// IsZero reports whether the address has no email part.
func (a Address) IsZero() bool {
	return a.Email == ""
}

// Attachment represents a file attached to a message.
type Attachment struct {
	// Path is the source the content was loaded from.
	Path string

	// Filename is the MIME-word encoded name shown to the recipient.
	Filename string

	// ContentType is the MIME content type of the file.
	// If empty, it will be detected from the decoded filename.
	ContentType string

	// Data contains the file content.
	Data []byte

	// Inline indicates whether the attachment should be displayed inline.
	Inline bool

	// ContentID is used for inline attachments to reference them in HTML.
	// Only used when Inline is true.
	ContentID string
}

// DisplayName returns Filename with any MIME encoded-words decoded.
func (a *Attachment) DisplayName() string {
	dec := new(mime.WordDecoder)
	name, err := dec.DecodeHeader(a.Filename)
	if err != nil {
		return a.Filename
	}
	return name
}

// DetectContentType attempts to detect the content type from the filename.
func (a *Attachment) DetectContentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}

	ext := strings.ToLower(filepath.Ext(a.DisplayName()))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Header is a single message header.
type Header struct {
	Name  string
	Value string
}

// HeaderSet is an order-preserving collection of headers. Names are compared
// case-insensitively.
type HeaderSet struct {
	list []Header
}

// Set replaces the first header with the given name, or appends it.
// Any further headers with the same name are dropped.
func (hs *HeaderSet) Set(name, value string) {
	idx := -1
	kept := hs.list[:0]
	for _, h := range hs.list {
		if strings.EqualFold(h.Name, name) {
			if idx >= 0 {
				continue
			}
			idx = len(kept)
			h.Value = value
		}
		kept = append(kept, h)
	}
	hs.list = kept
	if idx < 0 {
		hs.list = append(hs.list, Header{Name: name, Value: value})
	}
}

// Add appends a header even if one with the same name exists.
func (hs *HeaderSet) Add(name, value string) {
	hs.list = append(hs.list, Header{Name: name, Value: value})
}

// Get returns the first value for name.
func (hs *HeaderSet) Get(name string) (string, bool) {
	for _, h := range hs.list {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Del removes every header with the given name.
func (hs *HeaderSet) Del(name string) {
	kept := hs.list[:0]
	for _, h := range hs.list {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	hs.list = kept
}

// All returns a copy of the headers in insertion order.
func (hs *HeaderSet) All() []Header {
	out := make([]Header, len(hs.list))
	copy(out, hs.list)
	return out
}

// Len returns the number of headers.
func (hs *HeaderSet) Len() int {
	return len(hs.list)
}

// Envelope is what a Transport receives: SMTP envelope addresses, the rendered
// message and a structured view for API-based transports.
type Envelope struct {
	// From is the envelope sender (MAIL FROM).
	From string

	// Recipients contains every To, Cc and Bcc address.
	Recipients []string

	// Raw is the complete RFC 5322 message.
	Raw []byte

	// Signed is set when Raw carries an S/MIME signature. Transports that
	// rebuild the message from the fields below cannot preserve it.
	Signed bool

	Sender      Address
	To          []Address
	CC          []Address
	BCC         []Address
	ReplyTo     []Address
	Subject     string
	ContentType string
	Body        string
	Headers     []Header
	Attachments []Attachment
}

// HTMLBody returns the body when it is HTML.
func (e *Envelope) HTMLBody() string {
	if strings.HasPrefix(e.ContentType, "text/html") {
		return e.Body
	}
	return ""
}

// TextBody returns the body when it is not HTML.
func (e *Envelope) TextBody() string {
	if strings.HasPrefix(e.ContentType, "text/html") {
		return ""
	}
	return e.Body
}

// Delivery contains the outcome of a single transport call.
type Delivery struct {
	// MessageID is the identifier assigned by the transport, if any.
	MessageID string

	// Transport is the name of the transport that handled the message.
	Transport string

	// Accepted lists the recipients the transport took responsibility for.
	Accepted []string

	// Rejected lists the recipients the transport refused.
	Rejected []string
}

// Priority is the X-Priority level of a message, 1 (highest) to 5 (lowest).
type Priority int

const (
	PriorityHighest Priority = iota + 1
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityLowest
)

// String returns the label used in the X-Priority header.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "Highest"
	case PriorityHigh:
		return "High"
	case PriorityNormal:
		return "Normal"
	case PriorityLow:
		return "Low"
	case PriorityLowest:
		return "Lowest"
	default:
		return "Normal"
	}
}

// Valid reports whether p is within 1..5.
func (p Priority) Valid() bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// HeaderValue returns the X-Priority header value, e.g. "1 (Highest)".
func (p Priority) HeaderValue() string {
	if !p.Valid() {
		p = PriorityNormal
	}
	return fmt.Sprintf("%d (%s)", int(p), p.String())
}

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// TransportError represents an error raised by a delivery channel.
type TransportError struct {
	// Transport is the name of the transport that generated the error.
	Transport string

	// Code is the transport-specific error code.
	Code string

	// Message is the error message from the transport.
	Message string

	// StatusCode is the SMTP reply code or HTTP status, when known.
	StatusCode int

	// IsTemporary indicates whether the error is transient (4xx SMTP, 5xx HTTP).
	IsTemporary bool

	// Cause is the underlying error that caused this transport error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport %s error [%s] (status: %d): %s",
			e.Transport, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport %s error [%s]: %s", e.Transport, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *TransportError) Is(target error) bool {
	te, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Transport == te.Transport && e.Code == te.Code
}

// Temporary implements TemporaryError for TransportError.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// TemporaryError interface indicates whether an error is temporary.
type TemporaryError interface {
	Temporary() bool
}

// NewTransportError creates a new transport error.
func NewTransportError(transport, code, message string) *TransportError {
	return &TransportError{
		Transport: transport,
		Code:      code,
		Message:   message,
	}
}

// WrapTransportError creates a transport error carrying its cause.
func WrapTransportError(transport, code string, cause error) *TransportError {
	return &TransportError{
		Transport: transport,
		Code:      code,
		Message:   cause.Error(),
		Cause:     cause,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsTemporary checks if an error is temporary.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	var te TemporaryError
	if errors.As(err, &te) {
		return te.Temporary()
	}

	return false
}
