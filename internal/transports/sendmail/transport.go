package sendmail

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/lattiq/fluentmailer/internal/core"
)

const defaultPath = "/usr/sbin/sendmail"

// Transport implements core.Transport by piping the message into a local
// sendmail-compatible binary.
type Transport struct {
	path string
	args []string
}

// NewTransport creates a new sendmail transport. The "path" setting overrides
// the binary location; "args" is a space separated list that replaces the
// default "-oi".
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	path := settings.Get("path")
	if path == "" {
		path = defaultPath
	}

	args := []string{"-oi"}
	if v := settings.Get("args"); v != "" {
		args = strings.Fields(v)
	}

	return &Transport{path: path, args: args}, nil
}

// Send runs the binary once with every recipient on the command line. The
// local MTA does not report per-recipient outcomes, so all recipients count as
// accepted when it exits cleanly.
func (t *Transport) Send(ctx context.Context, env *core.Envelope) (*core.Delivery, error) {
	if len(env.Recipients) == 0 {
		return nil, core.NewTransportError(t.Name(), "no_recipients", "cannot send message without a recipient")
	}

	args := append([]string{}, t.args...)
	if env.From != "" {
		args = append(args, "-f", env.From)
	}
	args = append(args, "--")
	args = append(args, env.Recipients...)

	cmd := exec.CommandContext(ctx, t.path, args...) // #nosec G204 -- binary path comes from configuration
	cmd.Stdin = bytes.NewReader(env.Raw)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		te := core.NewTransportError(t.Name(), "exec_error", msg)
		te.Cause = err
		return nil, te
	}

	return &core.Delivery{
		Transport: t.Name(),
		Accepted:  append([]string(nil), env.Recipients...),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "sendmail"
}
