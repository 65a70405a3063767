package mfa

import (
	"crypto/rand"

	"golang.org/x/crypto/bcrypt"

	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// recoveryCodeAlphabet and recoveryCodeLength reproduce
// _generate_recovery_codes's 8-character alphanumeric code shape.
const recoveryCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const recoveryCodeLength = 8

// defaultRecoveryCodeCount is the number of one-time codes issued per
// enrollment.
const defaultRecoveryCodeCount = 10

// generateRecoveryCodes returns plaintext codes (shown to the caller
// exactly once) and their bcrypt hashes (the only form persisted).
func generateRecoveryCodes(count int) (plaintext []string, hashes []string, err error) {
	if count <= 0 {
		count = defaultRecoveryCodeCount
	}
	plaintext = make([]string, count)
	hashes = make([]string, count)
	for i := 0; i < count; i++ {
		code, err := randomCode()
		if err != nil {
			return nil, nil, voicehiveerr.Internal("generate recovery code", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, voicehiveerr.Internal("hash recovery code", err)
		}
		plaintext[i] = code
		hashes[i] = string(hash)
	}
	return plaintext, hashes, nil
}

func randomCode() (string, error) {
	buf := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, recoveryCodeLength)
	for i, b := range buf {
		out[i] = recoveryCodeAlphabet[int(b)%len(recoveryCodeAlphabet)]
	}
	return string(out), nil
}

// matchRecoveryCode returns the index of the first hash in hashes that
// code satisfies, or -1 if none match. Each hash is checked
// independently since recovery codes are salted and cannot be looked up
// by equality.
func matchRecoveryCode(hashes []string, code string) int {
	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			return i
		}
	}
	return -1
}
