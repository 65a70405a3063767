// Package secrets implements both the secret store client (encrypted
// read/write of secret values) and the secret lifecycle and audit
// system (rotation policies, access auditing, anomaly detection) in one
// package: they are two tightly coupled views over the same storage.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

const MasterKeyEnv = "SECRETS_MASTER_KEY"

// Repository is the persistence seam: a SQL-backed implementation lives
// in internal/store; tests use an in-memory fake (see store_test.go).
type Repository interface {
	GetSecret(ctx context.Context, id string) (*StoredSecret, error)
	PutSecret(ctx context.Context, s *StoredSecret) error
	ListExpiringBefore(ctx context.Context, t time.Time) ([]*StoredSecret, error)
	RecordAccess(ctx context.Context, event domain.SecretAccessEvent) error
	RecentAccess(ctx context.Context, secretID string, since time.Time) ([]domain.SecretAccessEvent, error)
}

// StoredSecret is the persisted row: ciphertext plus metadata. Value is
// never held as plaintext once it leaves Store.Get.
type StoredSecret struct {
	Metadata   domain.SecretMetadata
	Ciphertext []byte
	Backups    [][]byte // most recent first, capped by LifecyclePolicy.BackupRetentionCount
}

// Store is the encrypted secret client. Encryption is AES-256-GCM with
// nonce-prefixed ciphertext; the 32-byte key is normalized from hex or
// raw input.
type Store struct {
	repo Repository
	aead cipher.AEAD
}

func NewStore(repo Repository, rawKey []byte) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("secrets: repository is required")
	}
	key, err := normalizeMasterKey(rawKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Store{repo: repo, aead: aead}, nil
}

// Get decrypts and returns a secret value, auditing both the success and
// failure path (the read-path auditing invariant applies unconditionally,
// not just on error).
func (s *Store) Get(ctx context.Context, id, accessor, serviceID string) (string, error) {
	stored, err := s.repo.GetSecret(ctx, id)
	if err != nil {
		s.audit(ctx, id, accessor, serviceID, false, err.Error())
		return "", voicehiveerr.Internal("load secret", err)
	}
	if stored == nil {
		s.audit(ctx, id, accessor, serviceID, false, "not found")
		return "", voicehiveerr.NotFound(fmt.Sprintf("secret %s not found", id), nil)
	}

	plaintext, err := s.decrypt(stored.Ciphertext)
	if err != nil {
		s.audit(ctx, id, accessor, serviceID, false, err.Error())
		return "", voicehiveerr.Internal("decrypt secret", err)
	}

	stored.Metadata.UsageCount++
	stored.Metadata.LastAccessedAt = time.Now()
	_ = s.repo.PutSecret(ctx, stored)

	s.audit(ctx, id, accessor, serviceID, true, "")
	return plaintext, nil
}

// Put encrypts and stores a secret value, creating or overwriting the
// row wholesale. Rotation (lifecycle.go) uses this after validating the
// rotation flow; callers outside that flow should rarely call Put
// directly.
func (s *Store) Put(ctx context.Context, meta domain.SecretMetadata, value string) error {
	ciphertext, err := s.encrypt(value)
	if err != nil {
		return voicehiveerr.Internal("encrypt secret", err)
	}
	return s.repo.PutSecret(ctx, &StoredSecret{Metadata: meta, Ciphertext: ciphertext})
}

func (s *Store) audit(ctx context.Context, id, accessor, serviceID string, ok bool, reason string) {
	_ = s.repo.RecordAccess(ctx, domain.SecretAccessEvent{
		SecretID:   id,
		Accessor:   accessor,
		ServiceID:  serviceID,
		Successful: ok,
		Reason:     reason,
		OccurredAt: time.Now(),
	})
}

func (s *Store) encrypt(value string) ([]byte, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := s.aead.Seal(nil, nonce, []byte(value), nil)
	return append(nonce, ciphertext...), nil
}

func (s *Store) decrypt(raw []byte) (string, error) {
	if len(raw) < 13 {
		return "", fmt.Errorf("invalid secret ciphertext")
	}
	nonce, ciphertext := raw[:12], raw[12:]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("invalid secret ciphertext: %w", err)
	}
	return string(plain), nil
}

func normalizeMasterKey(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("secrets: %s is required", MasterKeyEnv)
	}
	if isHex(trimmed) {
		if decoded, err := hex.DecodeString(trimmed); err == nil && len(decoded) == 32 {
			return decoded, nil
		}
	}
	if len(trimmed) == 32 {
		return []byte(trimmed), nil
	}
	return nil, fmt.Errorf("secrets: %s must be 32 bytes (or 64 hex chars)", MasterKeyEnv)
}

func isHex(value string) bool {
	if value == "" {
		return false
	}
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
