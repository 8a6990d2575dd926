package fakes

import (
	"context"
	"sync"

	"github.com/systmms/keyrotator/internal/notify"
)

// SentNotice is one recorded Send invocation. The secret plaintext is
// copied out so assertions work after the caller destroys the enclave.
type SentNotice struct {
	Notice notify.Notice
	Secret string
}

// FakeNotifier provides a mock implementation of notify.Notifier for
// testing.
type FakeNotifier struct {
	mu sync.Mutex

	// Configuration
	BackendName string

	// Mock behaviors
	SendFunc     func(ctx context.Context, notice notify.Notice) error
	ValidateFunc func(ctx context.Context) error

	// Recorded calls for verification
	Sent []SentNotice
}

// NewFakeNotifier creates a fake notifier with default behaviors.
func NewFakeNotifier(name string) *FakeNotifier {
	return &FakeNotifier{BackendName: name}
}

// Name returns the configured backend name.
func (f *FakeNotifier) Name() string {
	return f.BackendName
}

// Send records the notice, capturing the secret plaintext if present.
func (f *FakeNotifier) Send(ctx context.Context, notice notify.Notice) error {
	var secret string
	if notice.Secret != nil {
		_ = notice.Secret.Expose(func(plaintext string) error {
			secret = plaintext
			return nil
		})
	}

	f.mu.Lock()
	f.Sent = append(f.Sent, SentNotice{Notice: notice, Secret: secret})
	f.mu.Unlock()

	if f.SendFunc != nil {
		return f.SendFunc(ctx, notice)
	}
	return nil
}

// Validate runs the configured validation behavior.
func (f *FakeNotifier) Validate(ctx context.Context) error {
	if f.ValidateFunc != nil {
		return f.ValidateFunc(ctx)
	}
	return nil
}

// SentCount returns the number of recorded notices.
func (f *FakeNotifier) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// SentTo returns the recorded notices addressed to one principal.
func (f *FakeNotifier) SentTo(principal string) []SentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentNotice
	for _, s := range f.Sent {
		if s.Notice.Principal == principal {
			out = append(out, s)
		}
	}
	return out
}
