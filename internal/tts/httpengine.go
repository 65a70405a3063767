package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/httputil"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

const (
	defaultSynthesisTimeout = 30 * time.Second
	maxAudioBytes           = 16 << 20
)

// HTTPEngineConfig configures one remote synthesis back-end reached
// over POST {base_url}/synthesize.
type HTTPEngineConfig struct {
	Name       string
	BaseURL    string
	AuthHeader string // e.g. "xi-api-key" or "Ocp-Apim-Subscription-Key"
	AuthValue  string
	Timeout    time.Duration
}

// HTTPEngine is an Engine over a vendor's synthesis HTTP API. The
// response body is the raw audio; the optional X-Duration-Ms response
// header carries the audio duration, estimated from text length when
// absent.
type HTTPEngine struct {
	cfg     HTTPEngineConfig
	baseURL string
	http    *http.Client
}

func NewHTTPEngine(cfg HTTPEngineConfig) (*HTTPEngine, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSynthesisTimeout
	}
	client, normalized, err := httputil.NewClientWithBaseURL(httputil.ClientConfig{
		BaseURL: cfg.BaseURL,
		HTTPClient: &http.Client{
			Transport: httputil.DefaultTransportWithMinTLS12(),
		},
	}, httputil.ClientDefaults{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("tts: invalid engine url for %s: %w", cfg.Name, err)
	}
	return &HTTPEngine{cfg: cfg, baseURL: normalized, http: client}, nil
}

func (e *HTTPEngine) Name() string { return e.cfg.Name }

type synthesisPayload struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	VoiceID    string  `json:"voice_id,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Pitch      float64 `json:"pitch,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate,omitempty"`
}

func (e *HTTPEngine) Synthesize(ctx context.Context, req domain.SynthesisRequest) ([]byte, int64, error) {
	payload := synthesisPayload{
		Text:       req.Text,
		Language:   req.LanguageCode,
		VoiceID:    req.VoiceID,
		Speed:      req.Speed,
		Pitch:      req.Pitch,
		Emotion:    req.Emotion,
		Format:     string(req.Format),
		SampleRate: req.SampleRateHz,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/synthesize", bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.AuthHeader != "" {
		httpReq.Header.Set(e.cfg.AuthHeader, e.cfg.AuthValue)
	}

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, 0, voicehiveerr.Transient("tts engine "+e.cfg.Name+" unreachable", err)
	}
	defer resp.Body.Close()

	body, truncated, err := httputil.ReadAllWithLimit(resp.Body, maxAudioBytes)
	if err != nil {
		return nil, 0, err
	}
	if truncated {
		return nil, 0, voicehiveerr.Internal(fmt.Sprintf("tts engine %s: audio exceeds %d bytes", e.cfg.Name, maxAudioBytes), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, e.classify(resp.StatusCode)
	}

	durationMS := int64(len(req.Text) * msPerCharacter)
	if v := resp.Header.Get("X-Duration-Ms"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			durationMS = parsed
		}
	}
	return body, durationMS, nil
}

// classify maps the engine's HTTP status into the error taxonomy; the
// response status is the single source of truth.
func (e *HTTPEngine) classify(status int) error {
	msg := fmt.Sprintf("tts engine %s responded %d", e.cfg.Name, status)
	switch {
	case status == 400 || status == 422:
		return voicehiveerr.Validation(msg, nil)
	case status == 401 || status == 403:
		return voicehiveerr.Auth(msg, nil)
	case status == 404:
		return voicehiveerr.NotFound(msg, nil)
	case status == 429:
		return voicehiveerr.RateLimited(msg, 5*time.Second)
	case status >= 500:
		return voicehiveerr.Transient(msg, nil)
	default:
		return voicehiveerr.Internal(msg, nil)
	}
}
