package asr

import (
	"context"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// defaultDetectionWindow caps how much audio is used for the initial
// default-model transcription pass.
const defaultDetectionWindow = 5 * time.Second

// confidenceThreshold is the cutoff below which alternative languages
// are surfaced alongside the primary guess.
const confidenceThreshold = 0.95

// fallbackLanguage and fallbackConfidence are what detect-language
// degrades to on ANY failure path, so the operation never hard-fails.
const fallbackLanguage = "en-US"
const fallbackConfidence = 0.5

// bcp47ByClassifierCode maps the classifier's two-letter codes to the
// BCP-47 tags the rest of the system expects.
var bcp47ByClassifierCode = map[string]string{
	"en": "en-US",
	"de": "de-DE",
	"es": "es-ES",
	"fr": "fr-FR",
	"it": "it-IT",
}

// Classifier scores a short audio transcript/sample for candidate
// languages; an external implementation wraps whichever language-ID
// model the deployment uses. Kept as a seam so DetectLanguage is
// testable without one.
type Classifier interface {
	Classify(ctx context.Context, sample []byte) ([]domain.LanguageAlternative, error)
}

// DetectLanguage runs the first ≤5s of audio through the default model,
// classifies the result, and only surfaces alternatives when the top
// guess's confidence is below confidenceThreshold. It never returns an
// error: any failure along the way (transcription, classification, or
// an unrecognized classifier code) degrades to the fallback language at
// fixed confidence instead.
func (p *Proxy) DetectLanguage(ctx context.Context, audio []byte) domain.LanguageDetectionResult {
	windowed := limitDuration(audio, defaultDetectionWindow)

	_, err := p.TranscribeUnary(ctx, windowed, domain.StreamConfig{LanguageCode: fallbackLanguage, SampleRateHz: 16000, Encoding: "LINEAR16"})
	if err != nil {
		return fallbackResult()
	}
	if p.classifier == nil {
		return fallbackResult()
	}

	alts, err := p.classifier.Classify(ctx, windowed)
	if err != nil || len(alts) == 0 {
		return fallbackResult()
	}

	top := alts[0]
	tag, ok := bcp47ByClassifierCode[top.LanguageCode]
	if !ok {
		return fallbackResult()
	}

	result := domain.LanguageDetectionResult{LanguageCode: tag, Confidence: top.Confidence}
	if top.Confidence < confidenceThreshold {
		limit := 2
		if len(alts) < limit+1 {
			limit = len(alts) - 1
		}
		for i := 1; i <= limit; i++ {
			if mapped, ok := bcp47ByClassifierCode[alts[i].LanguageCode]; ok {
				result.Alternatives = append(result.Alternatives, domain.LanguageAlternative{
					LanguageCode: mapped, Confidence: alts[i].Confidence,
				})
			}
		}
	}
	return result
}

func fallbackResult() domain.LanguageDetectionResult {
	return domain.LanguageDetectionResult{LanguageCode: fallbackLanguage, Confidence: fallbackConfidence, Fallback: true}
}

// limitDuration trims a raw PCM16 mono buffer to at most d worth of
// audio at 16kHz, assuming 2 bytes/sample; good enough for bounding the
// detection pass without a full audio-format parser.
func limitDuration(audio []byte, d time.Duration) []byte {
	const bytesPerSecond = 16000 * 2
	maxBytes := int(d.Seconds() * bytesPerSecond)
	if maxBytes <= 0 || maxBytes >= len(audio) {
		return audio
	}
	return audio[:maxBytes]
}
