package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// DefaultPolicies holds the per-SecretType defaults: signing keys and
// encryption keys rotate least often but require the tightest
// compliance trail; database passwords rotate most often (60 days),
// API keys and webhook secrets every 90 days.
func DefaultPolicies() map[domain.SecretType]domain.LifecyclePolicy {
	return map[domain.SecretType]domain.LifecyclePolicy{
		domain.SecretTypeAPIKey: {
			Type: domain.SecretTypeAPIKey, MaxAgeDays: 90, RotationWarningDays: 14,
			AutoRotationEnabled: true, RotationStrategy: domain.RotationTimeBased,
			BackupRetentionCount: 3, EncryptionRequired: true,
		},
		domain.SecretTypeDBPassword: {
			Type: domain.SecretTypeDBPassword, MaxAgeDays: 60, RotationWarningDays: 10,
			AutoRotationEnabled: true, RotationStrategy: domain.RotationTimeBased,
			BackupRetentionCount: 2, EncryptionRequired: true,
		},
		domain.SecretTypeJWTSigningKey: {
			Type: domain.SecretTypeJWTSigningKey, MaxAgeDays: 180, RotationWarningDays: 30,
			AutoRotationEnabled: false, RotationStrategy: domain.RotationManual,
			BackupRetentionCount: 5, EncryptionRequired: true,
			ComplianceRules: []string{"pci-dss", "soc2"},
		},
		domain.SecretTypeWebhookSecret: {
			Type: domain.SecretTypeWebhookSecret, MaxAgeDays: 90, RotationWarningDays: 14,
			AutoRotationEnabled: true, RotationStrategy: domain.RotationTimeBased,
			BackupRetentionCount: 3, EncryptionRequired: true,
		},
		domain.SecretTypeEncryptionKey: {
			Type: domain.SecretTypeEncryptionKey, MaxAgeDays: 365, RotationWarningDays: 45,
			AutoRotationEnabled: false, RotationStrategy: domain.RotationManual,
			BackupRetentionCount: 5, EncryptionRequired: true,
			ComplianceRules: []string{"pci-dss", "soc2", "gdpr"},
		},
		domain.SecretTypeOAuthClientSecret: {
			Type: domain.SecretTypeOAuthClientSecret, MaxAgeDays: 120, RotationWarningDays: 21,
			AutoRotationEnabled: true, RotationStrategy: domain.RotationTimeBased,
			BackupRetentionCount: 3, EncryptionRequired: true,
		},
	}
}

// LifecycleManager drives rotation flow and expiry monitoring on top of
// a Store; lifecycle events and notifications are journaled through the
// relational store.
type LifecycleManager struct {
	store    *Store
	repo     Repository
	policies map[domain.SecretType]domain.LifecyclePolicy
	notify   NotificationSink
}

// NotificationSink delivers rotation-warning and rotation-completed
// notifications; out of scope to implement transport for (email/Slack
// are external systems), so this is a narrow interface a caller wires to
// whatever transport it has.
type NotificationSink interface {
	Notify(ctx context.Context, secretID string, event string, recipients []string)
}

func NewLifecycleManager(store *Store, repo Repository, notify NotificationSink) *LifecycleManager {
	return &LifecycleManager{store: store, repo: repo, policies: DefaultPolicies(), notify: notify}
}

func (m *LifecycleManager) PolicyFor(t domain.SecretType) domain.LifecyclePolicy {
	if p, ok := m.policies[t]; ok {
		return p
	}
	return domain.LifecyclePolicy{Type: t, MaxAgeDays: 90, RotationWarningDays: 14, BackupRetentionCount: 2}
}

// Rotate performs the rotate flow: mark ROTATING, back up the current
// ciphertext (retaining at most the policy's BackupRetentionCount),
// write the new value, bump RotationCount, reset UsageCount, extend
// ExpiresAt for time-based policies, then mark ACTIVE. Any failure after
// the backup step reverts to the backed-up value and leaves the secret
// ACTIVE rather than stuck ROTATING.
func (m *LifecycleManager) Rotate(ctx context.Context, secretID string, newValue string) error {
	stored, err := m.repo.GetSecret(ctx, secretID)
	if err != nil {
		return voicehiveerr.Internal("load secret for rotation", err)
	}
	if stored == nil {
		return voicehiveerr.NotFound(fmt.Sprintf("secret %s not found", secretID), nil)
	}

	policy := m.PolicyFor(stored.Metadata.Type)

	stored.Metadata.Status = domain.SecretRotating
	_ = m.repo.PutSecret(ctx, stored)

	backupCiphertext := stored.Ciphertext
	backups := append([][]byte{backupCiphertext}, stored.Backups...)
	if len(backups) > policy.BackupRetentionCount {
		backups = backups[:policy.BackupRetentionCount]
	}

	if err := m.store.Put(ctx, stored.Metadata, newValue); err != nil {
		// revert
		stored.Metadata.Status = domain.SecretActive
		_ = m.repo.PutSecret(ctx, stored)
		return err
	}

	refreshed, err := m.repo.GetSecret(ctx, secretID)
	if err != nil || refreshed == nil {
		stored.Metadata.Status = domain.SecretActive
		_ = m.repo.PutSecret(ctx, stored)
		return voicehiveerr.Internal("reload secret after rotation", err)
	}
	refreshed.Backups = backups
	refreshed.Metadata.RotationCount++
	refreshed.Metadata.UsageCount = 0
	refreshed.Metadata.LastRotatedAt = time.Now()
	if policy.RotationStrategy == domain.RotationTimeBased {
		refreshed.Metadata.ExpiresAt = time.Now().AddDate(0, 0, policy.MaxAgeDays)
	}
	refreshed.Metadata.Status = domain.SecretActive

	if err := m.repo.PutSecret(ctx, refreshed); err != nil {
		stored.Metadata.Status = domain.SecretActive
		_ = m.repo.PutSecret(ctx, stored)
		return voicehiveerr.Internal("persist rotated secret", err)
	}

	if m.notify != nil {
		m.notify.Notify(ctx, secretID, "rotation_completed", policy.NotificationRecipients)
	}
	return nil
}

// EmergencyRotateAll fans rotation out across every given secret ID with
// bounded concurrency (semaphore = 5, matching the chain engine's
// bounded fan-out), collecting per-secret results rather than failing
// fast on the first error.
func (m *LifecycleManager) EmergencyRotateAll(ctx context.Context, secretIDs []string, newValueFor func(id string) string) map[string]error {
	const maxConcurrency = 5
	sem := make(chan struct{}, maxConcurrency)
	results := make(map[string]error, len(secretIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range secretIDs {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := m.Rotate(ctx, id, newValueFor(id))
			mu.Lock()
			results[id] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// CheckExpiring scans for secrets within their policy's rotation-warning
// window and fires a notification for each, without rotating them
// automatically (that is AutoRotationEnabled's job, run by a supervisor
// task, not this method).
func (m *LifecycleManager) CheckExpiring(ctx context.Context) ([]*StoredSecret, error) {
	horizon := time.Now()
	var widest time.Duration
	for _, p := range m.policies {
		d := time.Duration(p.RotationWarningDays) * 24 * time.Hour
		if d > widest {
			widest = d
		}
	}
	expiring, err := m.repo.ListExpiringBefore(ctx, horizon.Add(widest))
	if err != nil {
		return nil, err
	}
	for _, s := range expiring {
		policy := m.PolicyFor(s.Metadata.Type)
		warnAt := s.Metadata.ExpiresAt.Add(-time.Duration(policy.RotationWarningDays) * 24 * time.Hour)
		if time.Now().After(warnAt) && m.notify != nil {
			m.notify.Notify(ctx, s.Metadata.ID, "rotation_warning", policy.NotificationRecipients)
		}
	}
	return expiring, nil
}
