package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/fluentmailer/internal/core"
)

type mockSESClient struct {
	err       error
	lastInput *ses.SendRawEmailInput
}

func (m *mockSESClient) SendRawEmail(_ context.Context, params *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendRawEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestNewTransport_RequiresRegion(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(core.TransportSettings{})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "region", ve.Field)

	_, err = NewTransport(core.TransportSettings{"region": "eu-west-1", "access_key": "AKIA"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "secret_key", ve.Field)
}

func TestSend_RawMessage(t *testing.T) {
	t.Parallel()

	client := &mockSESClient{}
	tr := NewWithClient(client, core.TransportSettings{"configuration_set": "transactional"})

	env := &core.Envelope{
		From:       "sender@example.com",
		Recipients: []string{"a@example.com", "hidden@example.com"},
		Raw:        []byte("Subject: hi\r\n\r\nhello"),
	}

	delivery, err := tr.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "ses-123", delivery.MessageID)
	assert.Equal(t, env.Recipients, delivery.Accepted)

	require.NotNil(t, client.lastInput)
	assert.Equal(t, env.Raw, client.lastInput.RawMessage.Data)
	assert.Equal(t, env.Recipients, client.lastInput.Destinations)
	assert.Equal(t, "sender@example.com", aws.ToString(client.lastInput.Source))
	assert.Equal(t, "transactional", aws.ToString(client.lastInput.ConfigurationSetName))
}

func TestSend_Error(t *testing.T) {
	t.Parallel()

	tr := NewWithClient(&mockSESClient{err: errors.New("throttled")}, core.TransportSettings{})

	_, err := tr.Send(context.Background(), &core.Envelope{Recipients: []string{"a@example.com"}})
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "aws_ses", te.Transport)
	assert.Equal(t, "send_error", te.Code)
}
