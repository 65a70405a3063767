package domain

import "time"

type SecretType string

const (
	SecretTypeAPIKey       SecretType = "api_key"
	SecretTypeDBPassword   SecretType = "db_password"
	SecretTypeJWTSigningKey SecretType = "jwt_signing_key"
	SecretTypeWebhookSecret SecretType = "webhook_secret"
	SecretTypeEncryptionKey SecretType = "encryption_key"
	SecretTypeOAuthClientSecret SecretType = "oauth_client_secret"
)

type SecretStatus string

const (
	SecretActive    SecretStatus = "active"
	SecretRotating  SecretStatus = "rotating"
	SecretExpired   SecretStatus = "expired"
	SecretRevoked   SecretStatus = "revoked"
)

type RotationStrategy string

const (
	RotationTimeBased  RotationStrategy = "time_based"
	RotationUsageBased RotationStrategy = "usage_based"
	RotationManual     RotationStrategy = "manual"
)

// LifecyclePolicy governs how a given SecretType is rotated, retained,
// and reported on.
type LifecyclePolicy struct {
	Type                  SecretType
	MaxAgeDays            int
	RotationWarningDays   int
	AutoRotationEnabled   bool
	RotationStrategy      RotationStrategy
	BackupRetentionCount  int
	ComplianceRules       []string
	NotificationRecipients []string
	GeographicRestrictions []string
	EncryptionRequired    bool
}

// SecretMetadata is everything about a secret except its value: what the
// Store persists and indexes, as opposed to what the AEAD-sealed blob
// holds.
type SecretMetadata struct {
	ID             string
	Type           SecretType
	Status         SecretStatus
	Tenant         string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RotationCount  int
	UsageCount     int
	LastAccessedAt time.Time
	LastRotatedAt  time.Time
}

// SecretAccessEvent is recorded on every read path, success or failure.
type SecretAccessEvent struct {
	SecretID   string    `db:"secret_id"`
	Accessor   string    `db:"accessor"`
	ServiceID  string    `db:"service_id"`
	Successful bool      `db:"successful"`
	Reason     string    `db:"reason"`
	OccurredAt time.Time `db:"occurred_at"`
	SourceIP   string    `db:"source_ip"`
	Region     string    `db:"region"`
}

type AnomalyCategory string

const (
	AnomalyExcessiveAccess  AnomalyCategory = "excessive_access"
	AnomalyFailedAttempts   AnomalyCategory = "failed_attempts"
	AnomalyUnusualTime      AnomalyCategory = "unusual_time"
	AnomalyGeographic       AnomalyCategory = "geographic_violation"
	AnomalyConcurrentAccess AnomalyCategory = "concurrent_access"
)

// Anomaly is a detected irregularity in a secret's access pattern, scored
// 0-100 so handlers can threshold on severity.
type Anomaly struct {
	SecretID   string
	Category   AnomalyCategory
	RiskScore  int
	Detail     string
	DetectedAt time.Time
}
