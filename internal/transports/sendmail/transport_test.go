package sendmail

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/fluentmailer/internal/core"
)

// fakeSendmail writes a shell script that records its arguments and stdin.
func fakeSendmail(t *testing.T, exitCode int) (bin, argsFile, bodyFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}

	dir := t.TempDir()
	bin = filepath.Join(dir, "sendmail")
	argsFile = filepath.Join(dir, "args")
	bodyFile = filepath.Join(dir, "body")

	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"cat > " + bodyFile + "\n"
	if exitCode != 0 {
		script += "echo 'queue unavailable' >&2\nexit 75\n"
	}
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile, bodyFile
}

func TestSend_PipesMessage(t *testing.T) {
	t.Parallel()

	bin, argsFile, bodyFile := fakeSendmail(t, 0)
	tr, err := NewTransport(core.TransportSettings{"path": bin})
	require.NoError(t, err)

	env := &core.Envelope{
		From:       "sender@example.com",
		Recipients: []string{"a@example.com", "b@example.com"},
		Raw:        []byte("Subject: hi\r\n\r\nhello\r\n"),
	}

	delivery, err := tr.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, env.Recipients, delivery.Accepted)
	assert.Equal(t, "sendmail", delivery.Transport)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-oi -f sender@example.com -- a@example.com b@example.com\n", string(args))

	body, err := os.ReadFile(bodyFile)
	require.NoError(t, err)
	assert.Equal(t, string(env.Raw), string(body))
}

func TestSend_ExitFailure(t *testing.T) {
	t.Parallel()

	bin, _, _ := fakeSendmail(t, 75)
	tr, err := NewTransport(core.TransportSettings{"path": bin})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), &core.Envelope{Recipients: []string{"a@example.com"}})
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "exec_error", te.Code)
	assert.Equal(t, "queue unavailable", te.Message)
}

func TestSend_NoRecipients(t *testing.T) {
	t.Parallel()

	tr, err := NewTransport(core.TransportSettings{})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), &core.Envelope{})
	require.Error(t, err)
}
