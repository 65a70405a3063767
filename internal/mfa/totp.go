// Package mfa implements TOTP enrollment/verification, recovery codes,
// and session-level MFA gating.
package mfa

import (
	"context"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// issuer names every provisioning URI, mirroring TOTPService's
// issuer_name default.
const issuer = "VoiceHive Hotels"

// 30-second interval with ±1-step drift tolerance.
const period = 30
const skew = 1

// SecretCipher encrypts/decrypts the TOTP secret at rest. secretStoreCipher
// implements it on top of internal/secrets.Store's Put/Get, keyed per-user
// by the caller.
type SecretCipher interface {
	Encrypt(ctx context.Context, id, value string) error
	Decrypt(ctx context.Context, id string) (string, error)
}

// generateSecret produces a 160-bit (20-byte) base32 TOTP secret and its
// provisioning URI for accountName, matching
// TOTPService.generate_secret's token size.
func generateSecret(accountName string) (secret string, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Period:      period,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", voicehiveerr.Internal("generate totp secret", err)
	}
	return key.Secret(), key.URL(), nil
}

// verifyCode checks a 6-digit TOTP code against secret, tolerating
// ±skew time steps (30s tolerance at skew=1), matching
// TOTPService.verify_token.
func verifyCode(secret, code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
