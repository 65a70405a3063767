package mfa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// EnrollmentStore persists per-user MFA enrollment state; internal/store
// provides the sqlx-backed implementation.
type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, userID string) (domain.MFAEnrollment, bool, error)
	SaveEnrollment(ctx context.Context, e domain.MFAEnrollment) error
}

// SessionCache is the narrow slice of internal/cache.TwoTier the
// session-gating dependencies need; session verification state lives
// here keyed by session id, with absence meaning "not verified".
type SessionCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error
}

// Manager implements enrollment, verification, and session gating.
type Manager struct {
	enrollments EnrollmentStore
	sessions    SessionCache
	cipher      SecretCipher
}

func NewManager(enrollments EnrollmentStore, sessions SessionCache, cipher SecretCipher) *Manager {
	return &Manager{enrollments: enrollments, sessions: sessions, cipher: cipher}
}

// StartEnrollment generates a new secret and recovery codes, persists
// the enrollment as unconfirmed, and returns the provisioning URI plus
// the plaintext recovery codes (shown exactly once). Enrollment is not
// usable for verification until ConfirmEnrollment succeeds.
func (m *Manager) StartEnrollment(ctx context.Context, userID, accountName string) (provisioningURI string, recoveryCodes []string, err error) {
	secret, uri, err := generateSecret(accountName)
	if err != nil {
		return "", nil, err
	}
	plaintext, hashes, err := generateRecoveryCodes(defaultRecoveryCodeCount)
	if err != nil {
		return "", nil, err
	}

	secretID := secretIDFor(userID)
	if err := m.cipher.Encrypt(ctx, secretID, secret); err != nil {
		return "", nil, err
	}

	enrollment := domain.MFAEnrollment{
		UserID:             userID,
		Confirmed:          false,
		RecoveryCodeHashes: hashes,
		CreatedAt:          time.Now(),
	}
	if err := m.enrollments.SaveEnrollment(ctx, enrollment); err != nil {
		return "", nil, err
	}

	return uri, plaintext, nil
}

// ConfirmEnrollment completes enrollment only after the first valid
// TOTP code is presented.
func (m *Manager) ConfirmEnrollment(ctx context.Context, userID, code string) error {
	enrollment, ok, err := m.enrollments.GetEnrollment(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return voicehiveerr.NotFound(fmt.Sprintf("no enrollment in progress for %s", userID), nil)
	}

	secret, err := m.cipher.Decrypt(ctx, secretIDFor(userID))
	if err != nil {
		return err
	}
	if !verifyCode(secret, code) {
		return voicehiveerr.Auth("invalid totp code", nil)
	}

	enrollment.Confirmed = true
	enrollment.ConfirmedAt = time.Now()
	return m.enrollments.SaveEnrollment(ctx, enrollment)
}

// IsEnabled reports whether userID has a confirmed enrollment; the
// "MFA enabled" session-gating dependency.
func (m *Manager) IsEnabled(ctx context.Context, userID string) (bool, error) {
	enrollment, ok, err := m.enrollments.GetEnrollment(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && enrollment.Confirmed, nil
}

// VerifyTOTP checks a live 6-digit code against the user's confirmed
// secret.
func (m *Manager) VerifyTOTP(ctx context.Context, userID, code string) (bool, error) {
	enrollment, ok, err := m.enrollments.GetEnrollment(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok || !enrollment.Confirmed {
		return false, voicehiveerr.Validation("mfa is not enabled for this user", nil)
	}
	secret, err := m.cipher.Decrypt(ctx, secretIDFor(userID))
	if err != nil {
		return false, err
	}
	return verifyCode(secret, code), nil
}

// VerifyRecoveryCode checks code against the user's unused recovery
// codes; a match is consumed (removed) so it cannot succeed twice, and
// the number of codes still unused is returned so callers can prompt
// regeneration.
func (m *Manager) VerifyRecoveryCode(ctx context.Context, userID, code string) (ok bool, remaining int, err error) {
	enrollment, found, err := m.enrollments.GetEnrollment(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	if !found || !enrollment.Confirmed {
		return false, 0, voicehiveerr.Validation("mfa is not enabled for this user", nil)
	}

	idx := matchRecoveryCode(enrollment.RecoveryCodeHashes, code)
	if idx == -1 {
		return false, len(enrollment.RecoveryCodeHashes), nil
	}

	enrollment.RecoveryCodeHashes = append(enrollment.RecoveryCodeHashes[:idx], enrollment.RecoveryCodeHashes[idx+1:]...)
	if err := m.enrollments.SaveEnrollment(ctx, enrollment); err != nil {
		return false, 0, err
	}
	return true, len(enrollment.RecoveryCodeHashes), nil
}

// sessionKey namespaces session-verification cache entries so they
// cannot collide with unrelated cache usage of the same session id.
func sessionKey(sessionID string) string { return "mfa:session:" + sessionID }

func secretIDFor(userID string) string { return "mfa:totp:" + userID }

// MarkSessionVerified records that sessionID passed MFA verification
// just now, valid for ttl; the "this session MFA-verified within N
// minutes" dependency's write side.
func (m *Manager) MarkSessionVerified(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return m.sessions.Set(ctx, sessionKey(sessionID), domain.SessionVerification{
		SessionID:  sessionID,
		UserID:     userID,
		VerifiedAt: time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}, ttl)
}

// IsSessionVerified reports whether sessionID currently carries a valid
// MFA verification; absence (including an expired one the cache has
// since evicted) is "not verified" rather than an error.
func (m *Manager) IsSessionVerified(ctx context.Context, sessionID string) (bool, error) {
	var existing any
	hit, err := m.sessions.Get(ctx, sessionKey(sessionID), &existing)
	if err != nil || !hit {
		return false, err
	}
	verification, ok := existing.(domain.SessionVerification)
	if m, isMap := existing.(map[string]any); isMap {
		// A shared-tier hit arrives JSON-decoded as a generic map.
		raw, _ := json.Marshal(m)
		ok = json.Unmarshal(raw, &verification) == nil
	}
	if !ok {
		return false, nil
	}
	return time.Now().Before(verification.ExpiresAt), nil
}
