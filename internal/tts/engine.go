package tts

import (
	"context"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// Engine is a single synthesis back-end (ElevenLabs, Azure, ...). A
// real implementation maps the request onto the vendor's HTTP API
// through the resilience fabric; failures surface as
// voicehiveerr-classified errors rather than raw HTTP/transport errors.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, req domain.SynthesisRequest) (audio []byte, durationMS int64, err error)
}
