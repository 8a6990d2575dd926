// Package secure holds freshly minted key secrets in protected memory
// between creation in the directory and delivery to the principal.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Secret wraps a memguard enclave holding a secret access key. The
// plaintext only exists in locked memory while a notice is being built.
type Secret struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewSecret copies the given bytes into an encrypted enclave. The caller
// should zero its own copy afterwards.
func NewSecret(data []byte) *Secret {
	return &Secret{enclave: memguard.NewEnclave(data)}
}

// NewSecretFromString is a convenience wrapper for API responses that hand
// the secret over as a string.
func NewSecretFromString(s string) *Secret {
	return NewSecret([]byte(s))
}

// Open decrypts the secret into a locked buffer. The caller must call
// Destroy on the returned buffer when done.
func (s *Secret) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return s.enclave.Open()
}

// Expose decrypts the secret, hands the plaintext to fn, and wipes the
// locked buffer before returning.
func (s *Secret) Expose(fn func(plaintext string) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.String())
}

// Destroy marks the secret as unusable. Idempotent; after Destroy, Open
// returns an empty buffer. Call memguard.Purge() at process exit for full
// cleanup of enclave key material.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
