package tts

import (
	"context"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// msPerCharacter approximates spoken-word pacing for the mock engine's
// duration: about 15 characters per second of speech.
const msPerCharacter = 67

// mockEngine synthesizes silent PCM16 audio, proportional in duration to
// the input text length. It exists only as a last-resort fallback when
// every real engine is unavailable and the deployment has explicitly
// opted into AllowMockFallback.
type mockEngine struct{}

func (mockEngine) Name() string { return "mock" }

func (mockEngine) Synthesize(ctx context.Context, req domain.SynthesisRequest) ([]byte, int64, error) {
	durationMS := int64(len(req.Text) * msPerCharacter)
	if durationMS <= 0 {
		durationMS = msPerCharacter
	}

	sampleRate := req.SampleRateHz
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	samples := int(int64(sampleRate) * durationMS / 1000)
	audio := make([]byte, samples*2) // 16-bit silence, all zero bytes
	return audio, durationMS, nil
}
