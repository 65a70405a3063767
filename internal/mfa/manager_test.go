package mfa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

type fakeEnrollmentStore struct {
	mu   sync.Mutex
	data map[string]domain.MFAEnrollment
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{data: make(map[string]domain.MFAEnrollment)}
}

func (s *fakeEnrollmentStore) GetEnrollment(ctx context.Context, userID string) (domain.MFAEnrollment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[userID]
	return e, ok, nil
}

func (s *fakeEnrollmentStore) SaveEnrollment(ctx context.Context, e domain.MFAEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.UserID] = e
	return nil
}

type fakeCipher struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCipher() *fakeCipher { return &fakeCipher{values: make(map[string]string)} }

func (c *fakeCipher) Encrypt(ctx context.Context, id, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = value
	return nil
}

func (c *fakeCipher) Decrypt(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[id], nil
}

type fakeSessionCache struct {
	mu   sync.Mutex
	data map[string]any
}

func newFakeSessionCache() *fakeSessionCache { return &fakeSessionCache{data: make(map[string]any)} }

func (c *fakeSessionCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	if p, ok := dest.(*any); ok {
		*p = v
	}
	return true, nil
}

func (c *fakeSessionCache) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func newTestManager() (*Manager, *fakeCipher) {
	cipher := newFakeCipher()
	return NewManager(newFakeEnrollmentStore(), newFakeSessionCache(), cipher), cipher
}

func TestEnrollment_NotUsableUntilConfirmed(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	_, codes, err := mgr.StartEnrollment(ctx, "user-1", "user@example.com")
	require.NoError(t, err)
	assert.Len(t, codes, defaultRecoveryCodeCount)

	enabled, err := mgr.IsEnabled(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestConfirmEnrollment_RequiresValidCode(t *testing.T) {
	mgr, cipher := newTestManager()
	ctx := context.Background()

	_, _, err := mgr.StartEnrollment(ctx, "user-1", "user@example.com")
	require.NoError(t, err)

	err = mgr.ConfirmEnrollment(ctx, "user-1", "000000")
	secret, _ := cipher.Decrypt(ctx, secretIDFor("user-1"))
	correctCode, genErr := totp.GenerateCode(secret, time.Now())
	require.NoError(t, genErr)

	if correctCode == "000000" {
		t.Skip("collided with a valid code, flaky by construction")
	}
	require.Error(t, err)

	err = mgr.ConfirmEnrollment(ctx, "user-1", correctCode)
	require.NoError(t, err)

	enabled, err := mgr.IsEnabled(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestVerifyRecoveryCode_SingleUseOnly(t *testing.T) {
	mgr, cipher := newTestManager()
	ctx := context.Background()

	_, codes, err := mgr.StartEnrollment(ctx, "user-1", "user@example.com")
	require.NoError(t, err)

	secret, _ := cipher.Decrypt(ctx, secretIDFor("user-1"))
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, mgr.ConfirmEnrollment(ctx, "user-1", code))

	ok, remaining, err := mgr.VerifyRecoveryCode(ctx, "user-1", codes[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultRecoveryCodeCount-1, remaining)

	ok, _, err = mgr.VerifyRecoveryCode(ctx, "user-1", codes[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionVerification_AbsenceMeansNotVerified(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	verified, err := mgr.IsSessionVerified(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, mgr.MarkSessionVerified(ctx, "session-1", "user-1", time.Minute))
	verified, err = mgr.IsSessionVerified(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestSessionVerification_ExpiresAfterWindow(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	require.NoError(t, mgr.MarkSessionVerified(ctx, "session-1", "user-1", -time.Minute))
	verified, err := mgr.IsSessionVerified(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, verified)
}
