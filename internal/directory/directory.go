// Package directory abstracts the identity provider that owns principals
// and their access keys. The concrete implementation talks to AWS IAM.
package directory

import (
	"context"
	"time"

	"github.com/systmms/keyrotator/internal/secure"
)

// Credential is a snapshot of an access key at observation time. Age is
// captured once per rotation pass, never live-tracked.
type Credential struct {
	ID      string
	AgeDays int
}

// KeyMaterial is a freshly issued key pair. The secret lives in protected
// memory and must be destroyed by the consumer once the principal has been
// notified.
type KeyMaterial struct {
	ID     string
	Secret *secure.Secret
}

// Account identifies the account the directory belongs to.
type Account struct {
	ID    string
	Alias string
}

// CredentialDirectory enumerates principals and manages their keys.
//
// Implementations must fully drain pagination in the list operations. The
// directory enforces the two-key ceiling on CreateKey; callers never create
// a third key.
type CredentialDirectory interface {
	// ListPrincipals returns the names of every principal.
	ListPrincipals(ctx context.Context) ([]string, error)

	// ListTags returns the principal's attribute tags. Keys are matched
	// case-insensitively by callers; the map preserves original casing.
	ListTags(ctx context.Context, principal string) (map[string]string, error)

	// ListKeys returns the principal's current credentials with ages.
	ListKeys(ctx context.Context, principal string) ([]Credential, error)

	// CreateKey issues a new key pair for the principal. Irreversible: a
	// created key can only be deleted later, never un-created.
	CreateKey(ctx context.Context, principal string) (KeyMaterial, error)

	// DeleteKey destroys the identified key.
	DeleteKey(ctx context.Context, principal, keyID string) error
}

// AccountResolver resolves the owning account's identity for notices.
type AccountResolver interface {
	AccountInfo(ctx context.Context) (Account, error)
}

// ageDays converts a creation timestamp into whole elapsed days.
func ageDays(createdAt, now time.Time) int {
	if createdAt.After(now) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}
