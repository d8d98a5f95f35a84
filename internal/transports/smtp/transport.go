package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/lattiq/fluentmailer/internal/core"
)

const defaultTimeout = 30 * time.Second

// STARTTLS policies accepted by the "starttls" setting.
const (
	StartTLSOpportunistic = "opportunistic"
	StartTLSRequired      = "required"
	StartTLSDisabled      = "disabled"
)

// Transport implements core.Transport for SMTP relays.
type Transport struct {
	config   core.TransportSettings
	addr     string
	timeout  time.Duration
	startTLS string
}

// NewTransport creates a new SMTP transport.
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	host := settings.Get("host")
	if host == "" {
		return nil, core.NewValidationError("host", "SMTP host is required")
	}

	port := settings.Get("port")
	if port == "" {
		return nil, core.NewValidationError("port", "SMTP port is required")
	}

	if _, err := strconv.Atoi(port); err != nil {
		return nil, core.NewValidationError("port", "invalid port number: "+port)
	}

	timeout := defaultTimeout
	if v := settings.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, core.NewValidationErrorWithValue("timeout", "invalid timeout", v)
		}
		timeout = d
	}

	policy := settings.Get("starttls")
	switch policy {
	case "":
		policy = StartTLSOpportunistic
	case StartTLSOpportunistic, StartTLSRequired, StartTLSDisabled:
	default:
		return nil, core.NewValidationErrorWithValue("starttls", "unknown STARTTLS policy", policy)
	}

	return &Transport{
		config:   settings,
		addr:     net.JoinHostPort(host, port),
		timeout:  timeout,
		startTLS: policy,
	}, nil
}

// Send opens one SMTP session, offers every recipient and transmits the
// message to the ones the server accepted.
func (t *Transport) Send(ctx context.Context, env *core.Envelope) (*core.Delivery, error) {
	if len(env.Recipients) == 0 {
		return nil, core.NewTransportError(t.Name(), "no_recipients", "cannot send message without a recipient")
	}

	c, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := t.handshake(c); err != nil {
		return nil, err
	}

	if err := c.Mail(env.From, nil); err != nil {
		return nil, t.wrap("mail_from_rejected", err)
	}

	delivery := &core.Delivery{Transport: t.Name()}
	var lastRcptErr error
	for _, rcpt := range env.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			delivery.Rejected = append(delivery.Rejected, rcpt)
			lastRcptErr = err
			continue
		}
		delivery.Accepted = append(delivery.Accepted, rcpt)
	}

	if len(delivery.Accepted) == 0 {
		_ = c.Reset()
		return delivery, t.wrap("all_recipients_rejected", lastRcptErr)
	}

	w, err := c.Data()
	if err != nil {
		return delivery, t.wrap("data_rejected", err)
	}
	if _, err := bytes.NewReader(env.Raw).WriteTo(w); err != nil {
		_ = w.Close()
		return delivery, t.wrap("data_write_error", err)
	}
	if err := w.Close(); err != nil {
		return delivery, t.wrap("message_rejected", err)
	}

	_ = c.Quit()

	return delivery, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

func (t *Transport) dial(ctx context.Context) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: t.timeout}

	var conn net.Conn
	var err error
	if t.config.Get("tls") == "true" {
		td := &tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}
		conn, err = td.DialContext(ctx, "tcp", t.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", t.addr)
	}
	if err != nil {
		return nil, &core.TransportError{
			Transport:   t.Name(),
			Code:        "connection_error",
			Message:     "failed to connect to " + t.addr + ": " + err.Error(),
			IsTemporary: true,
			Cause:       err,
		}
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, t.config.Get("host"))
	if err != nil {
		conn.Close()
		return nil, t.wrap("greeting_error", err)
	}
	return c, nil
}

func (t *Transport) handshake(c *smtp.Client) error {
	localName := t.config.Get("local_name")
	if localName == "" {
		localName = "localhost"
	}
	if err := c.Hello(localName); err != nil {
		return t.wrap("hello_error", err)
	}

	if t.config.Get("tls") != "true" && t.startTLS != StartTLSDisabled {
		ok, _ := c.Extension("STARTTLS")
		switch {
		case ok:
			if err := c.StartTLS(t.tlsConfig()); err != nil {
				return t.wrap("starttls_error", err)
			}
		case t.startTLS == StartTLSRequired:
			return core.NewTransportError(t.Name(), "starttls_unsupported", "server does not support STARTTLS")
		}
	}

	username := t.config.Get("username")
	password := t.config.Get("password")
	if username != "" && password != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return core.NewTransportError(t.Name(), "auth_unsupported", "server does not support AUTH")
		}
		if err := c.Auth(sasl.NewPlainClient("", username, password)); err != nil {
			return t.wrap("auth_error", err)
		}
	}

	return nil
}

func (t *Transport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         t.config.Get("host"),
		InsecureSkipVerify: t.config.Get("tls_skip_verify") == "true", // #nosec G402 -- opt-in for development relays
		MinVersion:         tls.VersionTLS12,
	}
}

func (t *Transport) wrap(code string, err error) error {
	te := core.WrapTransportError(t.Name(), code, err)

	var se *smtp.SMTPError
	if errors.As(err, &se) {
		te.StatusCode = se.Code
		te.IsTemporary = se.Code >= 400 && se.Code < 500
	}
	return te
}
