package ses

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/lattiq/fluentmailer/internal/core"
)

// SendRawEmailAPI is the part of the SES client the transport needs.
type SendRawEmailAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// Transport implements core.Transport for AWS SES.
type Transport struct {
	client SendRawEmailAPI
	config core.TransportSettings
}

// NewTransport creates a new AWS SES transport.
func NewTransport(settings core.TransportSettings) (core.Transport, error) {
	region := settings.Get("region")
	if region == "" {
		return nil, core.NewValidationError("region", "AWS region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	// Override with explicit credentials if provided
	if accessKey := settings.Get("access_key"); accessKey != "" {
		secretKey := settings.Get("secret_key")
		if secretKey == "" {
			return nil, core.NewValidationError("secret_key", "secret key is required when access key is provided")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, settings.Get("session_token")),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, core.WrapTransportError("aws_ses", "config_error", err)
	}

	return NewWithClient(ses.NewFromConfig(cfg), settings), nil
}

// NewWithClient creates a transport around an existing client.
func NewWithClient(client SendRawEmailAPI, settings core.TransportSettings) *Transport {
	return &Transport{
		client: client,
		config: settings,
	}
}

// Send submits the rendered message through SendRawEmail so headers,
// attachments and signatures reach SES untouched.
func (t *Transport) Send(ctx context.Context, env *core.Envelope) (*core.Delivery, error) {
	if len(env.Recipients) == 0 {
		return nil, core.NewTransportError(t.Name(), "no_recipients", "cannot send message without a recipient")
	}

	input := &ses.SendRawEmailInput{
		Destinations: env.Recipients,
		RawMessage:   &types.RawMessage{Data: env.Raw},
	}
	if env.From != "" {
		input.Source = aws.String(env.From)
	}

	// Add configuration set if specified
	if configSet := t.config.Get("configuration_set"); configSet != "" {
		input.ConfigurationSetName = aws.String(configSet)
	}

	output, err := t.client.SendRawEmail(ctx, input)
	if err != nil {
		return nil, core.WrapTransportError(t.Name(), "send_error", err)
	}

	return &core.Delivery{
		MessageID: aws.ToString(output.MessageId),
		Transport: t.Name(),
		Accepted:  append([]string(nil), env.Recipients...),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "aws_ses"
}
