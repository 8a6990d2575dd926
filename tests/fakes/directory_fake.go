package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/secure"
)

// CreateKeyCall records one CreateKey invocation.
type CreateKeyCall struct {
	Principal string
}

// DeleteKeyCall records one DeleteKey invocation.
type DeleteKeyCall struct {
	Principal string
	KeyID     string
}

// FakeDirectory provides a mock implementation of CredentialDirectory and
// AccountResolver for testing.
type FakeDirectory struct {
	mu sync.Mutex

	// Configuration
	Principals []string
	Tags       map[string]map[string]string
	Keys       map[string][]directory.Credential
	Account    directory.Account

	// NextKeyID is issued by the default CreateKey behavior.
	NextKeyID string

	// Mock behaviors
	ListPrincipalsFunc func(ctx context.Context) ([]string, error)
	ListTagsFunc       func(ctx context.Context, principal string) (map[string]string, error)
	ListKeysFunc       func(ctx context.Context, principal string) ([]directory.Credential, error)
	CreateKeyFunc      func(ctx context.Context, principal string) (directory.KeyMaterial, error)
	DeleteKeyFunc      func(ctx context.Context, principal, keyID string) error
	AccountInfoFunc    func(ctx context.Context) (directory.Account, error)

	// Recorded calls for verification
	CreateKeyCalls []CreateKeyCall
	DeleteKeyCalls []DeleteKeyCall
}

// NewFakeDirectory creates a fake directory with empty state and default
// behaviors.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		Tags:      make(map[string]map[string]string),
		Keys:      make(map[string][]directory.Credential),
		NextKeyID: "AKIANEW",
		Account:   directory.Account{ID: "123456789012", Alias: "acme-prod"},
	}
}

// ListPrincipals returns the configured principal names.
func (f *FakeDirectory) ListPrincipals(ctx context.Context) ([]string, error) {
	if f.ListPrincipalsFunc != nil {
		return f.ListPrincipalsFunc(ctx)
	}
	return f.Principals, nil
}

// ListTags returns the configured tags for the principal.
func (f *FakeDirectory) ListTags(ctx context.Context, principal string) (map[string]string, error) {
	if f.ListTagsFunc != nil {
		return f.ListTagsFunc(ctx, principal)
	}
	return f.Tags[principal], nil
}

// ListKeys returns the configured credentials for the principal.
func (f *FakeDirectory) ListKeys(ctx context.Context, principal string) ([]directory.Credential, error) {
	if f.ListKeysFunc != nil {
		return f.ListKeysFunc(ctx, principal)
	}
	return f.Keys[principal], nil
}

// CreateKey records the call and issues NextKeyID with a fixed secret.
func (f *FakeDirectory) CreateKey(ctx context.Context, principal string) (directory.KeyMaterial, error) {
	f.mu.Lock()
	f.CreateKeyCalls = append(f.CreateKeyCalls, CreateKeyCall{Principal: principal})
	f.mu.Unlock()

	if f.CreateKeyFunc != nil {
		return f.CreateKeyFunc(ctx, principal)
	}
	return directory.KeyMaterial{
		ID:     f.NextKeyID,
		Secret: secure.NewSecretFromString("fake-secret-material"),
	}, nil
}

// DeleteKey records the call and removes the key from configured state.
func (f *FakeDirectory) DeleteKey(ctx context.Context, principal, keyID string) error {
	f.mu.Lock()
	f.DeleteKeyCalls = append(f.DeleteKeyCalls, DeleteKeyCall{Principal: principal, KeyID: keyID})
	f.mu.Unlock()

	if f.DeleteKeyFunc != nil {
		return f.DeleteKeyFunc(ctx, principal, keyID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	keys := f.Keys[principal]
	for i, k := range keys {
		if k.ID == keyID {
			f.Keys[principal] = append(keys[:i:i], keys[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("key %s not found for %s", keyID, principal)
}

// AccountInfo returns the configured account identity.
func (f *FakeDirectory) AccountInfo(ctx context.Context) (directory.Account, error) {
	if f.AccountInfoFunc != nil {
		return f.AccountInfoFunc(ctx)
	}
	return f.Account, nil
}

// CreateKeyCount returns the number of recorded CreateKey calls.
func (f *FakeDirectory) CreateKeyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CreateKeyCalls)
}

// CreateKeyCallsFor returns the recorded CreateKey calls for one principal.
func (f *FakeDirectory) CreateKeyCallsFor(principal string) []CreateKeyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []CreateKeyCall
	for _, c := range f.CreateKeyCalls {
		if c.Principal == principal {
			out = append(out, c)
		}
	}
	return out
}
