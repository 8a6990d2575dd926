package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClientAPI is the subset of the SES client used by the notifier.
type SESClientAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier delivers email notices through Amazon SES.
type SESNotifier struct {
	client SESClientAPI
	from   string
}

// SESOption is a functional option for configuring the notifier.
type SESOption func(*SESNotifier)

// WithSESClient sets a custom SES client (for testing).
func WithSESClient(client SESClientAPI) SESOption {
	return func(n *SESNotifier) {
		n.client = client
	}
}

// NewSESNotifier creates an SES-backed email notifier sending from the
// given address.
func NewSESNotifier(cfg aws.Config, from string, opts ...SESOption) *SESNotifier {
	n := &SESNotifier{from: from}

	for _, opt := range opts {
		opt(n)
	}

	if n.client == nil {
		n.client = ses.NewFromConfig(cfg)
	}

	return n
}

// Name returns the backend name.
func (n *SESNotifier) Name() string {
	return "ses"
}

// Validate checks the notifier configuration.
func (n *SESNotifier) Validate(_ context.Context) error {
	if n.from == "" {
		return fmt.Errorf("sender address is required")
	}
	return nil
}

// Send delivers the notice to the principal's mail address.
func (n *SESNotifier) Send(ctx context.Context, notice Notice) error {
	return notice.exposeSecret(func(secret string) error {
		input := &ses.SendEmailInput{
			Source: aws.String(n.from),
			Destination: &sestypes.Destination{
				ToAddresses: []string{notice.Endpoint},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(sanitizeHeader(subject(notice))),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Html: &sestypes.Content{
						Data:    aws.String(htmlBody(notice, secret)),
						Charset: aws.String("UTF-8"),
					},
					Text: &sestypes.Content{
						Data:    aws.String(textBody(notice, secret)),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		}

		if _, err := n.client.SendEmail(ctx, input); err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", notice.Endpoint, err)
		}
		return nil
	})
}
