package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// Fingerprint computes the cache key for a synthesis request:
// sha256(text|language|voice|engine|speed|pitch|emotion|format|sample_rate),
// lowercasing every enumeration field. Text is matched verbatim; no
// whitespace normalization.
func Fingerprint(req domain.SynthesisRequest) string {
	voice := req.VoiceID
	if voice == "" {
		voice = req.VoiceName
	}

	parts := []string{
		req.Text,
		strings.ToLower(req.LanguageCode),
		strings.ToLower(voice),
		strings.ToLower(req.Engine),
		fmt.Sprintf("%g", req.Speed),
		fmt.Sprintf("%g", req.Pitch),
		strings.ToLower(req.Emotion),
		strings.ToLower(string(req.Format)),
		fmt.Sprintf("%d", req.SampleRateHz),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
