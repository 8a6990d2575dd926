package notify

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/systmms/keyrotator/internal/config"
	krerrors "github.com/systmms/keyrotator/internal/errors"
)

// BuildRegistry selects notification backends from settings once at
// startup and binds them to channels.
func BuildRegistry(ctx context.Context, awsCfg aws.Config, settings config.Settings) (*Registry, error) {
	var email Notifier
	switch strings.ToLower(settings.MailClient) {
	case "smtp":
		email = NewSMTPNotifier(SMTPConfig{
			Host:     settings.SMTP.Host,
			Port:     settings.SMTP.Port,
			Username: settings.SMTP.Username,
			Password: settings.SMTP.Password,
			From:     settings.MailFrom,
		})
	case "ses":
		email = NewSESNotifier(awsCfg, settings.MailFrom)
	default:
		return nil, krerrors.ConfigError{
			Field:      "mail_client",
			Value:      settings.MailClient,
			Message:    "unsupported mail client",
			Suggestion: "Supported mail clients: ses, smtp",
		}
	}

	if err := email.Validate(ctx); err != nil {
		return nil, krerrors.ConfigError{
			Field:   "mail_client",
			Value:   settings.MailClient,
			Message: err.Error(),
		}
	}

	registry := NewRegistry()
	registry.Register(ChannelEmail, email)
	registry.Register(ChannelSlack, NewSlackNotifier())
	return registry, nil
}
