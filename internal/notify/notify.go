// Package notify delivers rotation and deletion notices to principals.
//
// Backends are selected once at startup and registered per channel; send
// paths never branch on backend name strings.
package notify

import (
	"context"
	"strings"

	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/secure"
)

// Channel is a notification delivery channel a principal can opt into.
type Channel string

const (
	// ChannelEmail delivers notices by mail.
	ChannelEmail Channel = "email"

	// ChannelSlack delivers notices to a Slack incoming webhook.
	ChannelSlack Channel = "slack"
)

// RecognizedChannel reports whether the raw tag value names a channel this
// system can deliver to.
func RecognizedChannel(raw string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, true
	case ChannelSlack:
		return ChannelSlack, true
	default:
		return "", false
	}
}

// Kind distinguishes the two notices the rotator sends.
type Kind string

const (
	// KindRotation announces a freshly issued key pair.
	KindRotation Kind = "rotation"

	// KindDeletion announces that a superseded key has been destroyed.
	KindDeletion Kind = "deletion"
)

// Notice is one message to one principal. The secret, when present, stays
// in protected memory until the backend renders the outgoing payload.
type Notice struct {
	Kind      Kind
	Principal string

	// Endpoint is the channel-specific destination: a mail address or a
	// webhook URL.
	Endpoint string

	Account directory.Account

	NewKeyID     string
	Secret       *secure.Secret
	OldKeyID     string
	Instructions string
	GraceDays    int
}

// exposeSecret hands the notice's secret plaintext to fn, or an empty
// string when the notice carries none (deletion notices).
func (n Notice) exposeSecret(fn func(secret string) error) error {
	if n.Secret == nil {
		return fn("")
	}
	return n.Secret.Expose(fn)
}

// Notifier is a notification backend bound to one delivery mechanism.
type Notifier interface {
	// Name returns the backend name (e.g. "ses", "smtp", "slack").
	Name() string

	// Send delivers the notice to notice.Endpoint.
	Send(ctx context.Context, notice Notice) error

	// Validate checks the backend configuration.
	Validate(ctx context.Context) error
}

// Registry maps channels to the backend chosen for them at startup.
type Registry struct {
	byChannel map[Channel]Notifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byChannel: make(map[Channel]Notifier)}
}

// Register binds a backend to a channel, replacing any previous binding.
func (r *Registry) Register(channel Channel, notifier Notifier) {
	r.byChannel[channel] = notifier
}

// For returns the backend bound to the raw channel value, if the channel
// is recognized and bound.
func (r *Registry) For(raw string) (Notifier, bool) {
	channel, ok := RecognizedChannel(raw)
	if !ok {
		return nil, false
	}
	n, ok := r.byChannel[channel]
	return n, ok
}
