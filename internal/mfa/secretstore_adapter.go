package mfa

import (
	"context"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/secrets"
)

// secretStoreCipher adapts internal/secrets.Store to SecretCipher, so
// TOTP secrets are encrypted at rest through the same AES-256-GCM store
// and audit trail every other secret in the system uses, rather than a
// second bespoke encryption path.
type secretStoreCipher struct {
	store    *secrets.Store
	accessor string
}

func NewSecretStoreCipher(store *secrets.Store, accessor string) SecretCipher {
	return &secretStoreCipher{store: store, accessor: accessor}
}

func (c *secretStoreCipher) Encrypt(ctx context.Context, id, value string) error {
	return c.store.Put(ctx, domain.SecretMetadata{
		ID:        id,
		Type:      domain.SecretTypeEncryptionKey,
		Status:    domain.SecretActive,
		CreatedAt: time.Now(),
	}, value)
}

func (c *secretStoreCipher) Decrypt(ctx context.Context, id string) (string, error) {
	return c.store.Get(ctx, id, c.accessor, "mfa")
}
