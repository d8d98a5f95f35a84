package sendgrid

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/fluentmailer/internal/core"
)

type fakeClient struct {
	response *rest.Response
	last     *mail.SGMailV3
}

func (f *fakeClient) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.last = email
	return f.response, nil
}

func TestNewTransport_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(core.TransportSettings{})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "api_key", ve.Field)
}

func TestSend_BuildsStructuredMessage(t *testing.T) {
	t.Parallel()

	client := &fakeClient{response: &rest.Response{
		StatusCode: 202,
		Headers:    map[string][]string{"X-Message-Id": {"sg-1"}},
	}}
	tr := NewWithClient(client, core.TransportSettings{})

	env := &core.Envelope{
		Sender:      core.Address{Name: "Team", Email: "team@example.com"},
		To:          []core.Address{{Email: "a@example.com"}},
		BCC:         []core.Address{{Email: "audit@example.com"}},
		Recipients:  []string{"a@example.com", "audit@example.com"},
		Subject:     "Welcome",
		ContentType: "text/html",
		Body:        "<p>Hi</p>",
		Headers: []core.Header{
			{Name: "X-Campaign", Value: "onboarding"},
			{Name: "Subject", Value: "ignored"},
		},
		Attachments: []core.Attachment{{Filename: "=?UTF-8?b?5ZCN5YmNLnBkZg==?=", Data: []byte("pdf")}},
	}

	delivery, err := tr.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "sg-1", delivery.MessageID)
	assert.Len(t, delivery.Accepted, 2)

	msg := client.last
	require.NotNil(t, msg)
	assert.Equal(t, "team@example.com", msg.From.Address)
	assert.Equal(t, "Welcome", msg.Subject)
	require.Len(t, msg.Personalizations, 1)
	assert.Len(t, msg.Personalizations[0].To, 1)
	assert.Len(t, msg.Personalizations[0].BCC, 1)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "text/html", msg.Content[0].Type)
	assert.Equal(t, map[string]string{"X-Campaign": "onboarding"}, msg.Headers)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "名前.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].Type)
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()

	tr := NewWithClient(&fakeClient{response: &rest.Response{StatusCode: 503, Body: "busy"}}, core.TransportSettings{})

	_, err := tr.Send(context.Background(), &core.Envelope{
		To:         []core.Address{{Email: "a@example.com"}},
		Recipients: []string{"a@example.com"},
	})
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.True(t, te.IsTemporary)
}

func TestSend_RejectsSignedMessages(t *testing.T) {
	t.Parallel()

	client := &fakeClient{response: &rest.Response{StatusCode: 202}}
	tr := NewWithClient(client, core.TransportSettings{})

	_, err := tr.Send(context.Background(), &core.Envelope{
		To:         []core.Address{{Email: "a@example.com"}},
		Recipients: []string{"a@example.com"},
		Signed:     true,
	})
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "signing_unsupported", te.Code)
	assert.Nil(t, client.last)
}

func TestSend_CcAndBccOnly(t *testing.T) {
	t.Parallel()

	client := &fakeClient{response: &rest.Response{StatusCode: 202}}
	tr := NewWithClient(client, core.TransportSettings{})

	delivery, err := tr.Send(context.Background(), &core.Envelope{
		CC:         []core.Address{{Email: "c@example.com"}},
		BCC:        []core.Address{{Email: "b@example.com"}},
		Recipients: []string{"c@example.com", "b@example.com"},
		Body:       "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c@example.com", "b@example.com"}, delivery.Accepted)

	require.Len(t, client.last.Personalizations, 2)
	assert.Equal(t, "c@example.com", client.last.Personalizations[0].To[0].Address)
	assert.Equal(t, "b@example.com", client.last.Personalizations[1].To[0].Address)
	assert.Empty(t, client.last.Personalizations[1].BCC)
}

func TestSend_NoRecipients(t *testing.T) {
	t.Parallel()

	tr := NewWithClient(&fakeClient{}, core.TransportSettings{})
	_, err := tr.Send(context.Background(), &core.Envelope{})
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "no_recipients", te.Code)
}
