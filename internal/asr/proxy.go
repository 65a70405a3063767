// Package asr implements the ASR proxy: a pooled gRPC client fronting a
// streaming speech-recognition backend, with unary transcription,
// bidirectional streaming sessions, and language-detection fallback.
package asr

import (
	"context"
	"fmt"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// callDeadline bounds a single recognition call once the "asr" breaker
// has admitted it; connectDeadline bounds acquiring a channel and
// opening a stream, guarded by the stricter "connection" breaker.
// ConfigureBreakers wires the thresholds these deadlines pair with.
const (
	callDeadline    = 120 * time.Second
	connectDeadline = 30 * time.Second
)

// ConfigureBreakers registers the two breakers this proxy depends on:
// "asr" is tolerant of transient upstream hiccups on individual
// recognition calls, "connection" trips fast on repeated failures to
// even establish a channel, since a bad channel should stop being tried
// well before the call-level breaker would give up on it.
func ConfigureBreakers(fabric *resilience.Fabric) {
	fabric.Configure("asr", "asr", resilience.Config{
		MaxFailures: 5,
		Timeout:     60 * time.Second,
	})
	fabric.Configure("asr", "connection", resilience.Config{
		MaxFailures: 3,
		Timeout:     120 * time.Second,
	})
}

// Recognizer is the narrow seam over the concrete gRPC-generated speech
// client, so the pool and proxy are testable without a running ASR
// backend. A real implementation wraps the generated streaming/unary
// stubs for whichever speech backend is deployed.
type Recognizer interface {
	TranscribeUnary(ctx context.Context, audio []byte, cfg domain.StreamConfig) (domain.TranscriptSegment, error)
	OpenStream(ctx context.Context, cfg domain.StreamConfig) (Stream, error)
}

// Stream is a bidirectional transcription session: audio chunks go in,
// ordered partial/final segments come out, and EndOfStream() drains any
// outstanding final segment before closing.
type Stream interface {
	SendAudio(chunk []byte) error
	Recv() (domain.TranscriptSegment, error)
	EndOfStream() error
	Close() error
}

// Proxy fronts a pool of Recognizer channels with round-robin selection
// and circuit-breaker protection.
type Proxy struct {
	pool          *resilience.GRPCPool
	fabric        *resilience.Fabric
	newRecognizer func(*resilience.GRPCPool) Recognizer
	classifier    Classifier
}

func NewProxy(pool *resilience.GRPCPool, fabric *resilience.Fabric, newRecognizer func(*resilience.GRPCPool) Recognizer) *Proxy {
	return &Proxy{pool: pool, fabric: fabric, newRecognizer: newRecognizer}
}

// WithClassifier attaches a language classifier used by DetectLanguage;
// without one, DetectLanguage always degrades to the fallback language.
func (p *Proxy) WithClassifier(c Classifier) *Proxy {
	p.classifier = c
	return p
}

// validateConfig normalizes and bounds a recognition config: encoding
// must be one of the supported codecs (empty defaults to LINEAR16),
// sample rate must fall within [8000, 48000] Hz (zero defaults to
// 16000), and MaxAlternatives within [1, 10] (zero defaults to 1).
func validateConfig(cfg domain.StreamConfig) (domain.StreamConfig, error) {
	switch cfg.Encoding {
	case "":
		cfg.Encoding = "LINEAR16"
	case "LINEAR16", "FLAC", "MULAW":
	default:
		return cfg, voicehiveerr.Validation("unsupported audio encoding "+cfg.Encoding, nil)
	}

	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 16000
	}
	if cfg.SampleRateHz < 8000 || cfg.SampleRateHz > 48000 {
		return cfg, voicehiveerr.Validation("sample rate must be within [8000, 48000] Hz", nil)
	}

	if cfg.MaxAlternatives == 0 {
		cfg.MaxAlternatives = 1
	}
	if cfg.MaxAlternatives < 1 || cfg.MaxAlternatives > 10 {
		return cfg, voicehiveerr.Validation("max alternatives must be within [1, 10]", nil)
	}
	return cfg, nil
}

// TranscribeUnary performs a single non-streaming transcription request,
// protected by the "asr"/"asr" breaker and bounded by callDeadline.
func (p *Proxy) TranscribeUnary(ctx context.Context, audio []byte, cfg domain.StreamConfig) (domain.TranscriptSegment, error) {
	cfg, err := validateConfig(cfg)
	if err != nil {
		return domain.TranscriptSegment{}, err
	}

	var result domain.TranscriptSegment
	err = p.fabric.Execute(ctx, "asr", "asr", func(ctx context.Context) error {
		return resilience.WithDeadline(ctx, callDeadline, func(ctx context.Context) error {
			recognizer := p.newRecognizer(p.pool)
			seg, err := recognizer.TranscribeUnary(ctx, audio, cfg)
			if err != nil {
				return err
			}
			result = seg
			return nil
		})
	})
	return result, err
}

// NewSession opens a client-facing streaming session enforcing the wire
// protocol: the first frame handed to Session.HandleFrame must be a
// Config frame (anything else is rejected and the session closes),
// audio is only accepted once a vendor stream is open, and EndOfStream
// drains the vendor stream before the session closes. The
// underlying vendor stream itself is not opened until the Config frame
// arrives, since opening it is what openVendorStream needs cfg for.
func (p *Proxy) NewSession(ctx context.Context) *Session {
	return newSession(ctx, p)
}

// openVendorStream opens the underlying bidirectional stream under the
// "asr"/"connection" breaker and connectDeadline; a channel that can't
// even open a stream should trip faster than one that opens but then
// fails mid-call.
func (p *Proxy) openVendorStream(ctx context.Context, cfg domain.StreamConfig) (Stream, error) {
	if cfg.LanguageCode == "" || cfg.SampleRateHz == 0 {
		return nil, voicehiveerr.Validation("stream config must set language_code and sample_rate_hz", nil)
	}
	cfg, err := validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	var stream Stream
	err = p.fabric.Execute(ctx, "asr", "connection", func(ctx context.Context) error {
		return resilience.WithDeadline(ctx, connectDeadline, func(ctx context.Context) error {
			recognizer := p.newRecognizer(p.pool)
			s, err := recognizer.OpenStream(ctx, cfg)
			if err != nil {
				return err
			}
			stream = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// HealthCheck reports the proxy healthy iff the underlying channel pool
// has at least one healthy channel.
func (p *Proxy) HealthCheck(ctx context.Context) error {
	healthy, err := p.pool.HealthCheckAll(ctx)
	if err != nil {
		return voicehiveerr.Transient(fmt.Sprintf("asr pool unhealthy: %d/%d channels", healthy, p.pool.Size()), err)
	}
	return nil
}
