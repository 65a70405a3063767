package domain

import "time"

// MFAEnrollment tracks a user's TOTP enrollment lifecycle. Enrollment is
// not considered complete (Confirmed) until the first valid TOTP code is
// presented after provisioning; a bare secret generation is not enough,
// since the user may never have successfully scanned/entered it.
type MFAEnrollment struct {
	UserID            string
	EncryptedSecret   []byte
	Confirmed         bool
	RecoveryCodeHashes []string
	CreatedAt         time.Time
	ConfirmedAt       time.Time
}

// RecoveryCode is a single-use backup code. The plaintext is shown to the
// user exactly once at generation time and never persisted; only the
// salted hash is stored.
type RecoveryCode struct {
	Hash string
	Used bool
	UsedAt time.Time
}

// SessionVerification records that a session has passed MFA for a bounded
// window. Absence from the store means "not verified"; there is no
// separate negative record.
type SessionVerification struct {
	SessionID  string
	UserID     string
	VerifiedAt time.Time
	ExpiresAt  time.Time
}
