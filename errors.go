package mailer

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined sentinel errors for common cases.
var (
	// ErrAttachmentNotFound indicates an attachment path could not be read.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrAttachmentTooLarge indicates an attachment exceeds the configured limit.
	ErrAttachmentTooLarge = errors.New("attachment too large")

	// ErrUnknownTransportDriver indicates a transport name missing from the registry.
	ErrUnknownTransportDriver = errors.New("unknown transport driver")

	// ErrDeliveryFailure indicates the transport refused or failed to deliver the message.
	ErrDeliveryFailure = errors.New("delivery failure")

	// ErrTemplateNotFound indicates a requested template was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrCircuitBreakerOpen indicates the circuit breaker plugin is blocking sends.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")

	// ErrRateLimited indicates the throttler plugin refused the send.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoTemplateEngine indicates View was called without templates enabled.
	ErrNoTemplateEngine = errors.New("template engine not enabled")
)

// Stage names the send pipeline step an error came from.
type Stage string

const (
	StageComposing   Stage = "composing"
	StageFlushing    Stage = "flushing"
	StageResolving   Stage = "resolving"
	StageDispatching Stage = "dispatching"
)

// MailerError is the single error type returned by Deliver. It records the
// pipeline stage that failed and wraps the underlying cause.
type MailerError struct {
	// Stage is the pipeline step that failed.
	Stage Stage

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *MailerError) Error() string {
	return fmt.Sprintf("mailer: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *MailerError) Unwrap() error {
	return e.Err
}

// AttachmentError reports a file that could not be attached.
type AttachmentError struct {
	// Path is the file that was requested.
	Path string

	// Cause is the underlying error.
	Cause error

	tooLarge bool
}

// Error implements the error interface.
func (e *AttachmentError) Error() string {
	if e.tooLarge {
		return fmt.Sprintf("attachment %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("attachment not found: %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *AttachmentError) Unwrap() error {
	return e.Cause
}

// Is matches ErrAttachmentNotFound or ErrAttachmentTooLarge.
func (e *AttachmentError) Is(target error) bool {
	if e.tooLarge {
		return target == ErrAttachmentTooLarge
	}
	return target == ErrAttachmentNotFound
}

// DriverError reports a transport driver lookup miss.
type DriverError struct {
	// Name is the driver that was requested; empty when none was configured.
	Name string

	// Known lists the registered drivers.
	Known []string
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.Name == "" {
		return "unknown transport driver: no driver selected and no default configured"
	}
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown transport driver %q", e.Name)
	}
	return fmt.Sprintf("unknown transport driver %q (registered: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Is matches ErrUnknownTransportDriver.
func (e *DriverError) Is(target error) bool {
	return target == ErrUnknownTransportDriver
}

// DeliveryError reports a send the transport could not complete.
type DeliveryError struct {
	// Transport is the name of the transport that was used.
	Transport string

	// Rejected lists the recipients the transport refused.
	Rejected []string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	msg := "delivery via " + e.Transport + " failed"
	if len(e.Rejected) > 0 {
		msg += fmt.Sprintf(" (rejected: %s)", strings.Join(e.Rejected, ", "))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDeliveryFailure.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailure
}

// TemplateError represents an error in template processing.
type TemplateError struct {
	// Template is the name of the template that caused the error.
	Template string

	// Operation is the operation that failed (e.g., "parse", "render").
	Operation string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %s during %s: %s", e.Template, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a new template error.
func NewTemplateError(template, operation, message string, cause error) *TemplateError {
	return &TemplateError{
		Template:  template,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
