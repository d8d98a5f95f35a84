package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/fluentmailer/internal/core"
)

func TestTransport_RecordsAndRejects(t *testing.T) {
	t.Parallel()

	tr, err := NewTransport(core.TransportSettings{"reject": "Bounce@example.com, "})
	require.NoError(t, err)
	mem := tr.(*Transport)

	env := &core.Envelope{Recipients: []string{"a@example.com", "bounce@example.com"}}
	delivery, err := mem.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, delivery.Accepted)
	assert.Equal(t, []string{"bounce@example.com"}, delivery.Rejected)
	assert.Same(t, env, mem.Last())

	_, err = mem.Send(context.Background(), &core.Envelope{Recipients: []string{"bounce@example.com"}})
	require.Error(t, err)
	assert.Len(t, mem.Envelopes(), 1)

	mem.Clear()
	assert.Nil(t, mem.Last())
}
